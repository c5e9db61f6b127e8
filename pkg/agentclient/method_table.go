package agentclient

import "time"

// RetryPolicy is a per-method retry/timeout override: an explicit method
// table in place of dynamic method-name interception onto the bus.
type RetryPolicy struct {
	// Retries is how many additional attempts are made after an
	// RpcTimeout. Only RpcTimeout is retried here; other errors
	// propagate immediately.
	Retries int

	// TimeoutOverride, if non-zero, replaces the client's default
	// per-request timeout for this method.
	TimeoutOverride time.Duration
}

// MethodTable is the closed list of agent RPC methods this client issues
// through call, mapped to their retry policy. DefaultMethodTable retries
// get_state and get_task twice, retries upload_blob three times, and
// leaves everything else at the client's default timeout with no retry
// at this layer.
//
// sync_dns has no entry here: it never goes through call — SyncDNS keeps
// its reply subscription open and hands cancellation to the caller via
// CancelSyncDNS, so there is no single synchronous wait for a policy
// entry to time out.
type MethodTable map[string]RetryPolicy

// DefaultMethodTable is the retry/timeout table new clients are configured
// with unless the caller overrides it.
func DefaultMethodTable() MethodTable {
	return MethodTable{
		"get_state":   {Retries: 2},
		"get_task":    {Retries: 2},
		"upload_blob": {Retries: 3},
	}
}

func (t MethodTable) policyFor(method string) RetryPolicy {
	if p, ok := t[method]; ok {
		return p
	}
	return RetryPolicy{}
}
