// Package director holds the shared data model of the VM provisioning
// core: instance plans, the VM record, and the small collaborator
// interfaces that the core consumes but does not implement (manifest
// parsing, IP allocation policy, disk attachment, persistence — all
// explicitly out of scope per the core's own contract).
package director

// DeploymentRef identifies the deployment an instance belongs to.
type DeploymentRef struct {
	Name string
}

// Stemcell is the base OS image used to provision a VM.
type Stemcell struct {
	CID string
}

// CloudProperties is the opaque, provider-specific instance configuration
// handed to the CPI verbatim.
type CloudProperties map[string]interface{}

// NetworkSettings is the opaque, provider-specific network configuration
// handed to the CPI verbatim.
type NetworkSettings map[string]interface{}

// Env is the agent's opaque, nested bootstrap environment. Callers must
// treat it as belonging to the original instance until a copy is made;
// vm.Factory deep-copies it before mutating env.bosh.credentials.
type Env map[string]interface{}

// ApplySpec is the declarative state (jobs, packages, properties) the
// agent should realize.
type ApplySpec map[string]interface{}

// IPReservation is a single address reservation owned by a network plan.
type IPReservation struct {
	IP          string
	NetworkName string
}

// NetworkPlan is one network attachment decision within an instance plan.
type NetworkPlan struct {
	Reservation IPReservation
	Obsolete    bool
}

// AgentCredentials is the symmetric key material used by the encryption
// envelope, stored in the VM record and injected into env.bosh.credentials
// so the in-VM agent can decrypt inbound messages.
type AgentCredentials struct {
	Key [32]byte
}

// VMRecord is the persistent entity created after a successful CPI call.
// CID and AgentID are immutable once set; Credentials is present only when
// encryption is enabled.
type VMRecord struct {
	CID         string
	AgentID     string
	Deployment  DeploymentRef
	Env         Env
	Credentials *AgentCredentials
}

// RPCTask is the agent's normalized reply shape: either terminal (Value
// populated, AgentTaskID empty) or long-running (AgentTaskID populated,
// State carrying the current poll status).
type RPCTask struct {
	Value       interface{}
	AgentTaskID string
	State       string
}

// HasAgentTask reports whether this reply handed back a long-running task
// to poll, regardless of what State (if anything) came along with it — a
// reply can carry an agent_task_id with no state at all on its first leg.
func (t RPCTask) HasAgentTask() bool {
	return t.AgentTaskID != ""
}

// Running reports whether a polled task is still in flight. Only
// meaningful once HasAgentTask is true; every get_task poll carries an
// explicit State, so anything other than "running" ends the poll.
func (t RPCTask) Running() bool {
	return t.State == "running"
}
