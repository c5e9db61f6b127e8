package creator

import "github.com/vvelazquez/bosh/pkg/agentclient"

// AgentClients adapts an *agentclient.ClientFactory to AgentClientFactory.
// The indirection exists only because Go interface satisfaction is
// invariant on return type: agentclient.ClientFactory.NewAgentClient
// returns the concrete *agentclient.Client, not the AgentClient
// interface this package consumes.
type AgentClients struct {
	factory *agentclient.ClientFactory
}

// NewAgentClients wraps factory for use as a Creator's AgentClientFactory.
func NewAgentClients(factory *agentclient.ClientFactory) AgentClients {
	return AgentClients{factory: factory}
}

// NewAgentClient implements AgentClientFactory.
func (a AgentClients) NewAgentClient(agentID string) AgentClient {
	return a.factory.NewAgentClient(agentID)
}
