// Package vm implements the CPI-facing VM Factory: invoke the cloud
// provider to allocate a VM, retry on a retryable failure up to a fixed
// attempt budget, persist the resulting record, and compensate (delete
// the cloud VM, destroy any partial record) if anything after the CPI
// call fails.
//
// Only an explicit retry signal from the CPI is retried; every other
// failure propagates as an outcome value rather than relying on
// exception-style rescue-all control flow.
package vm

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/inconshreveable/log15.v2"

	"github.com/vvelazquez/bosh/pkg/cpi"
	"github.com/vvelazquez/bosh/pkg/director"
	"github.com/vvelazquez/bosh/pkg/directorlog"
)

// Store is the persistence capability Factory needs: save the record once
// a cloud VM exists, and destroy a partially-built record during
// compensation. Schema, transactions, and row-level locking are out of
// scope; this is the narrow interface the factory drives.
type Store interface {
	Save(rec *director.VMRecord) error
	Destroy(rec *director.VMRecord) error
}

// Options configures a new Factory.
type Options struct {
	CPI              cpi.CPI
	Store            Store
	Encryption       bool
	MaxVMCreateTries int // total CPI attempts per VM on retryable failures
}

// Factory creates and destroys cloud VMs and their persisted records.
type Factory struct {
	cpi        cpi.CPI
	store      Store
	encryption bool
	maxTries   int
	log        log15.Logger
}

// New builds a Factory. MaxVMCreateTries below 1 is treated as 1 (no
// retries).
func New(opts Options) *Factory {
	maxTries := opts.MaxVMCreateTries
	if maxTries < 1 {
		maxTries = 1
	}
	return &Factory{
		cpi:        opts.CPI,
		store:      opts.Store,
		encryption: opts.Encryption,
		maxTries:   maxTries,
		log:        directorlog.New("module", "vm.factory"),
	}
}

// NewFromRegistry builds a Factory against the CPI registered under name,
// so the factory is constructed against a named CPI rather than a single
// hardcoded instance. opts.CPI is overwritten with the looked-up CPI; it
// need not be set by the caller.
func NewFromRegistry(registry *cpi.Registry, name string, opts Options) (*Factory, error) {
	c, ok := registry.Lookup(name)
	if !ok {
		return nil, errors.Errorf("cpi: no cpi registered under name %q", name)
	}
	opts.CPI = c
	return New(opts), nil
}

// Create allocates a cloud VM and persists its record. The caller's env
// map is never mutated; a deep copy is used and, if encryption is
// enabled, stamped with generated credentials under env.bosh.credentials.
//
// If any step after the CPI call succeeds fails — persisting the record,
// for instance — the cloud VM is deleted and any partial record
// destroyed before the original error is returned.
func (f *Factory) Create(
	ctx context.Context,
	deployment director.DeploymentRef,
	stemcell director.Stemcell,
	cloudProperties director.CloudProperties,
	networkSettings director.NetworkSettings,
	disks []string,
	env director.Env,
) (*director.VMRecord, error) {

	envCopy, err := deepCopyEnv(env)
	if err != nil {
		return nil, errors.Wrap(err, "copy env")
	}

	agentID := uuid.New().String()

	var creds *director.AgentCredentials
	if f.encryption {
		creds, err = generateCredentials()
		if err != nil {
			return nil, errors.Wrap(err, "generate agent credentials")
		}
		injectCredentials(envCopy, creds)
	}

	cid, err := f.createVMWithRetry(ctx, agentID, stemcell, cloudProperties, networkSettings, disks, envCopy)
	if err != nil {
		return nil, err
	}

	rec := &director.VMRecord{
		CID:         cid,
		AgentID:     agentID,
		Deployment:  deployment,
		Env:         envCopy,
		Credentials: creds,
	}

	if err := f.store.Save(rec); err != nil {
		f.compensate(ctx, cid, rec)
		return nil, errors.Wrap(err, "save vm record")
	}

	return rec, nil
}

// createVMWithRetry retries cpi.CreateVM while it fails with
// *cpi.CreationFailed{OkToRetry: true}, up to f.maxTries total attempts.
// Any other error, or exhausting the attempt budget, propagates.
func (f *Factory) createVMWithRetry(
	ctx context.Context,
	agentID string,
	stemcell director.Stemcell,
	cloudProperties director.CloudProperties,
	networkSettings director.NetworkSettings,
	disks []string,
	env director.Env,
) (string, error) {

	var lastErr error
	for attempt := 1; attempt <= f.maxTries; attempt++ {
		cid, err := f.cpi.CreateVM(ctx, agentID, stemcell, cloudProperties, networkSettings, disks, env)
		if err == nil {
			return cid, nil
		}

		var failed *cpi.CreationFailed
		if stderrors.As(err, &failed) && failed.OkToRetry && attempt < f.maxTries {
			f.log.Warn("vm creation failed, retrying", "attempt", attempt, "max_tries", f.maxTries, "err", err)
			lastErr = err
			continue
		}
		return "", err
	}
	return "", lastErr
}

// compensate deletes the cloud VM and destroys any partially-built
// record. Errors here become warnings, never propagate: only the
// original failure that triggered compensation is raised to the caller
// of Create.
func (f *Factory) compensate(ctx context.Context, cid string, rec *director.VMRecord) {
	f.DeleteVM(ctx, cid)

	if rec != nil {
		if err := f.store.Destroy(rec); err != nil {
			f.log.Warn("failed to destroy partially-built vm record", "cid", cid, "err", err)
		}
	}
}

// DeleteVM wraps cpi.DeleteVM and swallows its errors: they become
// warnings with stack context rather than propagating.
func (f *Factory) DeleteVM(ctx context.Context, cid string) {
	if err := f.cpi.DeleteVM(ctx, cid); err != nil {
		f.log.Warn("cpi delete_vm failed", "cid", cid, "err", err)
	}
}

func deepCopyEnv(env director.Env) (director.Env, error) {
	if env == nil {
		return director.Env{}, nil
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	var copy director.Env
	if err := json.Unmarshal(raw, &copy); err != nil {
		return nil, err
	}
	return copy, nil
}

func generateCredentials() (*director.AgentCredentials, error) {
	creds := &director.AgentCredentials{}
	if _, err := rand.Read(creds.Key[:]); err != nil {
		return nil, err
	}
	return creds, nil
}

func injectCredentials(env director.Env, creds *director.AgentCredentials) {
	bosh, _ := env["bosh"].(map[string]interface{})
	if bosh == nil {
		bosh = map[string]interface{}{}
	}
	bosh["credentials"] = base64.StdEncoding.EncodeToString(creds.Key[:])
	env["bosh"] = bosh
}
