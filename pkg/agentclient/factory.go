package agentclient

import (
	"github.com/vvelazquez/bosh/pkg/bus"
	"github.com/vvelazquez/bosh/pkg/director"
	"github.com/vvelazquez/bosh/pkg/envelope"
)

// CredentialsLookup resolves the per-agent symmetric key a VM was created
// with, if encryption is enabled for it. Absent a lookup, every Client
// built by a ClientFactory talks to its agent in the clear.
type CredentialsLookup interface {
	CredentialsFor(agentID string) *director.AgentCredentials
}

// FactoryOptions configures a new ClientFactory.
type FactoryOptions struct {
	Bus       *bus.Bus
	Service   string
	Blobs     BlobFetcher
	Creds     CredentialsLookup // nil disables encryption for every agent
	Cancelled func() bool
}

// ClientFactory builds one Client per agent id, each with its own
// dedicated bus.Transport and encryption envelope, sharing the same bus,
// service name, blob fetcher, and cancellation check. It does not satisfy
// creator.AgentClientFactory directly (NewAgentClient returns the concrete
// *Client); creator.AgentClients adapts it.
type ClientFactory struct {
	bus       *bus.Bus
	service   string
	blobs     BlobFetcher
	creds     CredentialsLookup
	cancelled func() bool
}

// NewClientFactory returns a ClientFactory.
func NewClientFactory(opts FactoryOptions) *ClientFactory {
	return &ClientFactory{
		bus:       opts.Bus,
		service:   opts.Service,
		blobs:     opts.Blobs,
		creds:     opts.Creds,
		cancelled: opts.Cancelled,
	}
}

// NewAgentClient builds a Client for agentID, wired to its own
// bus.Transport so its pending requests never collide with another
// agent's.
func (f *ClientFactory) NewAgentClient(agentID string) *Client {
	var creds *director.AgentCredentials
	if f.creds != nil {
		creds = f.creds.CredentialsFor(agentID)
	}

	return New(Options{
		Service:   f.service,
		AgentID:   agentID,
		Transport: bus.NewTransport(f.bus, agentID),
		Creds:     envelope.New(creds),
		Blobs:     f.blobs,
		Cancelled: f.cancelled,
	})
}
