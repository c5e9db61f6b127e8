// Package cpi defines the pluggable cloud provider contract consumed by
// vm.Factory: create_vm/delete_vm only. Everything else about a CPI
// (protocol framing, discovery, the rest of the CPI method surface) is
// out of scope here — this exposes only the vendor-agnostic operations a
// caller needs and nothing about how a given provider implements them.
package cpi

import (
	"context"

	"github.com/vvelazquez/bosh/pkg/director"
)

// CreationFailed is raised by CreateVM. OkToRetry distinguishes transient
// provider hiccups (capacity, API throttling) the factory should retry from
// failures that should propagate immediately.
type CreationFailed struct {
	OkToRetry bool
	Err       error
}

func (e *CreationFailed) Error() string {
	if e.Err == nil {
		return "vm creation failed"
	}
	return "vm creation failed: " + e.Err.Error()
}

func (e *CreationFailed) Unwrap() error { return e.Err }

// CPI is the cloud provider interface contract this core depends on.
type CPI interface {
	// CreateVM allocates a cloud VM and returns its provider-assigned
	// CID. May return *CreationFailed.
	CreateVM(ctx context.Context, agentID string, stemcell director.Stemcell,
		cloudProperties director.CloudProperties, networkSettings director.NetworkSettings,
		disks []string, env director.Env) (cid string, err error)

	// DeleteVM destroys a cloud VM. Errors from this call are logged by
	// the factory, never propagated.
	DeleteVM(ctx context.Context, cid string) error
}

// Registry maps a CPI name to its implementation. Real CPI discovery
// (locating and handshaking with a plugin binary) is out of scope; this
// is the in-process stand-in that lets vm.NewFromRegistry build a
// Factory against a named CPI instead of a single hardcoded one.
type Registry struct {
	cpis map[string]CPI
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cpis: map[string]CPI{}}
}

// Register adds or replaces the CPI known by name.
func (r *Registry) Register(name string, c CPI) {
	r.cpis[name] = c
}

// Lookup returns the CPI registered under name, if any.
func (r *Registry) Lookup(name string) (CPI, bool) {
	c, ok := r.cpis[name]
	return c, ok
}
