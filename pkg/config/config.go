// Package config bundles the small set of runtime knobs the VM
// provisioning core needs, as an injected capability rather than a
// global: how many VMs to create concurrently, how many times to retry a
// failed cpi create_vm call, whether the agent encryption envelope is
// active, and whether the current run has been cancelled.
//
// The shape is a handful of narrow accessor methods on a struct built
// once at startup and threaded through constructors: a single object
// callers ask for capabilities rather than reaching into package-level
// state.
package config

import "sync/atomic"

// Config is the capability bundle creator.Creator, vm.Factory, and
// agentclient.Client are built from.
type Config struct {
	maxThreads       int
	maxVMCreateTries int
	encryption       bool

	cancelled atomic.Bool
}

// Options are the static values a Config is built from.
type Options struct {
	// MaxThreads bounds how many VMs are created concurrently. Must be
	// >= 1; values below 1 are raised to 1.
	MaxThreads int

	// MaxVMCreateTries bounds how many times the CPI's create_vm is
	// attempted for a single VM before giving up. Must be >= 1; values
	// below 1 are raised to 1.
	MaxVMCreateTries int

	// Encryption turns on the agent message encryption envelope.
	Encryption bool
}

// New builds a Config from opts, clamping MaxThreads and
// MaxVMCreateTries to a minimum of 1.
func New(opts Options) *Config {
	maxThreads := opts.MaxThreads
	if maxThreads < 1 {
		maxThreads = 1
	}
	maxTries := opts.MaxVMCreateTries
	if maxTries < 1 {
		maxTries = 1
	}
	return &Config{
		maxThreads:       maxThreads,
		maxVMCreateTries: maxTries,
		encryption:       opts.Encryption,
	}
}

// MaxThreads is the worker pool size for concurrent VM creation.
func (c *Config) MaxThreads() int { return c.maxThreads }

// MaxVMCreateTries is the per-VM cpi create_vm attempt budget.
func (c *Config) MaxVMCreateTries() int { return c.maxVMCreateTries }

// Encryption reports whether the agent message encryption envelope is
// active.
func (c *Config) Encryption() bool { return c.encryption }

// Cancelled reports whether the current deployment run has been asked to
// cancel. Safe to call concurrently; checked by long-running waits such
// as agentclient.Client.WaitUntilReady.
func (c *Config) Cancelled() bool { return c.cancelled.Load() }

// Cancel marks the current run cancelled. Idempotent.
func (c *Config) Cancel() { c.cancelled.Store(true) }
