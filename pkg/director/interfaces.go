package director

import "context"

// SettingsUpdater is the narrow agent capability Instance.UpdateTrustedCerts
// needs; agentclient.Client satisfies it via its UpdateSettings method.
type SettingsUpdater interface {
	UpdateSettings(ctx context.Context, settings map[string]interface{}) error
}

// StateApplier is the narrow agent capability Instance.ApplyVMState needs;
// agentclient.Client satisfies it via its Apply method.
type StateApplier interface {
	Apply(ctx context.Context, spec ApplySpec) error
}

// Instance is the desired-state side of an instance plan. Its
// implementation (manifest-driven spec computation, persistence) is an
// external collaborator; the core only calls these operations.
type Instance interface {
	// Name identifies the instance for logging, e.g. "job/3".
	Name() string
	Deployment() DeploymentRef
	Stemcell() Stemcell
	CloudProperties() CloudProperties
	Env() Env

	// BindToVMModel associates the freshly created VM record with this
	// instance's persisted record.
	BindToVMModel(rec *VMRecord) error

	// UpdateTrustedCerts pushes the trusted certificate bundle to the
	// agent via UpdateSettings and persists that it was sent.
	UpdateTrustedCerts(ctx context.Context, agent SettingsUpdater) error

	// UpdateCloudProperties persists the cloud properties used to create
	// the VM, for later diffing.
	UpdateCloudProperties() error

	// ApplyVMState computes the instance's current desired apply spec
	// and applies it via the agent.
	ApplyVMState(ctx context.Context, agent StateApplier) error

	// ApplyExistingVMState re-applies a previously captured apply spec
	// directly, skipping desired-state computation. Used only when
	// recreating an instance that already existed, to restore the actual
	// state the old VM was running rather than recomputing desired state
	// from the manifest.
	ApplyExistingVMState(ctx context.Context, agent StateApplier, spec ApplySpec) error
}

// ExistingInstance is the actual-state side of an instance plan, present
// only when the plan is re-creating an instance that already exists.
type ExistingInstance interface {
	ApplySpec() ApplySpec
}

// InstancePlan is the desired-vs-actual diff for one logical instance,
// immutable for the duration of a creation attempt except via the two
// hooks below.
type InstancePlan interface {
	Instance() Instance
	ExistingInstance() (ExistingInstance, bool)
	NeedsRecreate() bool
	NetworkPlans() []NetworkPlan
	NetworkSettings() NetworkSettings

	// PersistentDiskCIDs returns the non-null persistent disk CID, if
	// any, as a 0- or 1-element slice. By design this is not the full
	// disk set; further disks are attached after VM creation.
	PersistentDiskCIDs() []string

	// ReleaseObsoleteNetworkPlans marks obsolete network plans released.
	// Called at most once per plan, only for a plan whose VM was created,
	// after IPProvider.Release.
	ReleaseObsoleteNetworkPlans()

	// MarkDesiredNetworkPlansAsExisting promotes desired network plans
	// to existing once the VM has successfully applied its state.
	MarkDesiredNetworkPlansAsExisting()
}

// IPProvider is the narrow IP-allocation capability this core consumes:
// releasing a reservation that a network plan marked obsolete.
type IPProvider interface {
	Release(reservation IPReservation) error
}

// DiskManager attaches any disks (beyond the single persistent-disk CID
// passed to CPI create_vm) that the instance needs once it exists.
type DiskManager interface {
	AttachDisksFor(instance Instance) error
}

// MetadataUpdater applies CPI-level metadata to a freshly created VM.
type MetadataUpdater interface {
	UpdateMetadata(vm *VMRecord, metadata map[string]string) error
}

// VMDeleter performs the compensating deletion of the cloud VM (and its
// record, if any) referenced by a plan.
type VMDeleter interface {
	DeleteForInstancePlan(plan InstancePlan) error
}

// Stage is a single named, sized step of an event-log, e.g. creating a
// batch of VMs; Advance and Finish report each task within it.
type Stage interface {
	Advance(task string)
	Finish(err error)
}

// EventLog opens a named, sized stage for a batch operation.
type EventLog interface {
	BeginStage(name string, total int) Stage
}
