// Package creator implements the batch VM creation orchestration: fan a
// set of instance plans out over a bounded worker pool, drive each plan
// through VM creation, agent readiness, and disk attachment and state
// application, compensate by deleting the VM if anything from binding
// the VM record through updating cloud properties fails, and release
// obsolete network reservations for plans whose VM was successfully
// created once the batch settles.
//
// The shape is: build a sized workpool, submit one named job per plan,
// drain it, then do a second pass over the same slice to release network
// reservations for the plans that succeeded, whatever happened to the
// others.
package creator

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/inconshreveable/log15.v2"

	"github.com/vvelazquez/bosh/pkg/director"
	"github.com/vvelazquez/bosh/pkg/directorlog"
	"github.com/vvelazquez/bosh/pkg/workpool"
)

// VMFactory is the narrow vm.Factory capability this package depends on.
type VMFactory interface {
	Create(
		ctx context.Context,
		deployment director.DeploymentRef,
		stemcell director.Stemcell,
		cloudProperties director.CloudProperties,
		networkSettings director.NetworkSettings,
		disks []string,
		env director.Env,
	) (*director.VMRecord, error)
}

// AgentClient is the narrow agentclient.Client capability this package
// depends on: apply state, push settings, and block until the in-VM
// agent responds.
type AgentClient interface {
	director.SettingsUpdater
	director.StateApplier
	WaitUntilReady(ctx context.Context, deadline time.Duration) error
}

// AgentClientFactory builds the AgentClient for a freshly created VM's
// agent id.
type AgentClientFactory interface {
	NewAgentClient(agentID string) AgentClient
}

// ThreadLimiter reports the current worker pool size for batch creation,
// e.g. *config.Config.
type ThreadLimiter interface {
	MaxThreads() int
}

// Options configures a new Creator.
type Options struct {
	Factory         VMFactory
	Agents          AgentClientFactory
	DiskManager     director.DiskManager
	MetadataUpdater director.MetadataUpdater // optional
	VMDeleter       director.VMDeleter
	Threads         ThreadLimiter
}

// Creator drives instance plans through VM creation.
type Creator struct {
	factory   VMFactory
	agents    AgentClientFactory
	disks     director.DiskManager
	metadata  director.MetadataUpdater
	vmDeleter director.VMDeleter
	threads   ThreadLimiter
	log       log15.Logger
}

// New builds a Creator.
func New(opts Options) *Creator {
	return &Creator{
		factory:   opts.Factory,
		agents:    opts.Agents,
		disks:     opts.DiskManager,
		metadata:  opts.MetadataUpdater,
		vmDeleter: opts.VMDeleter,
		threads:   opts.Threads,
		log:       directorlog.New("module", "creator"),
	}
}

// CreateForInstancePlans creates every plan concurrently, up to the
// configured thread limit, then releases any network reservation an
// obsolete network plan held — for each plan whose VM was successfully
// created, and only once its own creation attempt has settled. A plan
// whose creation failed keeps its obsolete reservation untouched: there
// is no new VM to have taken over the network, so nothing to release.
// An empty plan set is a no-op; it never opens an event-log stage.
//
// The first error raised by any plan is returned once the whole batch
// has drained; every other plan still runs to completion, success or
// failure.
func (c *Creator) CreateForInstancePlans(ctx context.Context, plans []director.InstancePlan, ipProvider director.IPProvider, eventLog director.EventLog) error {
	if len(plans) == 0 {
		return nil
	}

	stage := eventLog.BeginStage("Creating missing VMs", len(plans))

	succeeded := make([]bool, len(plans))

	err := workpool.Wrap(c.threads.MaxThreads(), func(pool *workpool.Pool) error {
		for i, plan := range plans {
			i, plan := i, plan
			name := fmt.Sprintf("job/%s/%d/%d", plan.Instance().Name(), i+1, len(plans))
			pool.Process(workpool.Job{
				Name: name,
				Run: func() error {
					stage.Advance(name)
					runErr := c.CreateForInstancePlan(ctx, plan, plan.PersistentDiskCIDs())
					succeeded[i] = runErr == nil
					stage.Finish(runErr)
					return runErr
				},
			})
		}
		return nil
	})

	for i, plan := range plans {
		if !succeeded[i] {
			continue
		}
		for _, np := range plan.NetworkPlans() {
			if !np.Obsolete {
				continue
			}
			if relErr := ipProvider.Release(np.Reservation); relErr != nil {
				c.log.Warn("failed to release obsolete ip reservation", "ip", np.Reservation.IP, "err", relErr)
			}
		}
		plan.ReleaseObsoleteNetworkPlans()
	}

	return err
}

// CreateForInstancePlan drives a single instance plan through VM
// creation and everything that must happen before the VM counts as
// provisioned: binding the record, pushing metadata, waiting for the
// agent, pushing trusted certs, updating cloud properties, attaching
// disks, and applying state.
//
// Compensation — deleting the VM via VMDeleter before re-raising the
// original error — covers only BindToVMModel through UpdateCloudProperties.
// A failure from Create itself needs no compensation since no VM exists
// yet; a failure attaching disks or applying state happens after the VM
// is already fully bound and propagates directly, without deleting it.
func (c *Creator) CreateForInstancePlan(ctx context.Context, plan director.InstancePlan, disks []string) error {
	instance := plan.Instance()

	var existingSpec director.ApplySpec
	existing, hasExisting := plan.ExistingInstance()
	if hasExisting {
		existingSpec = existing.ApplySpec()
	}

	rec, err := c.factory.Create(
		ctx,
		instance.Deployment(),
		instance.Stemcell(),
		instance.CloudProperties(),
		plan.NetworkSettings(),
		disks,
		instance.Env(),
	)
	if err != nil {
		return err
	}

	compensate := func(cause error) error {
		if delErr := c.vmDeleter.DeleteForInstancePlan(plan); delErr != nil {
			c.log.Warn("failed to delete vm after provisioning failure", "vm_cid", rec.CID, "err", delErr)
		}
		return cause
	}

	if err := instance.BindToVMModel(rec); err != nil {
		return compensate(err)
	}

	if c.metadata != nil {
		if err := c.metadata.UpdateMetadata(rec, instanceMetadata(instance)); err != nil {
			return compensate(err)
		}
	}

	agent := c.agents.NewAgentClient(rec.AgentID)

	if err := agent.WaitUntilReady(ctx, 0); err != nil {
		return compensate(err)
	}

	if err := instance.UpdateTrustedCerts(ctx, agent); err != nil {
		return compensate(err)
	}

	if err := instance.UpdateCloudProperties(); err != nil {
		return compensate(err)
	}

	if err := c.disks.AttachDisksFor(instance); err != nil {
		return err
	}

	if hasExisting && plan.NeedsRecreate() {
		if err := instance.ApplyExistingVMState(ctx, agent, existingSpec); err != nil {
			return err
		}
	} else {
		if err := instance.ApplyVMState(ctx, agent); err != nil {
			return err
		}
	}

	plan.MarkDesiredNetworkPlansAsExisting()
	return nil
}

func instanceMetadata(instance director.Instance) map[string]string {
	return map[string]string{
		"deployment": instance.Deployment().Name,
		"name":       instance.Name(),
	}
}
