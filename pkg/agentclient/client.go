// Package agentclient implements a synchronous façade over the bus
// transport and encryption envelope: a fixed set of named RPC methods,
// per-method retry policy, timeouts, task polling, and cancellation,
// bridging the bus's callback-driven async replies into a single
// blocking call per request.
package agentclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gopkg.in/inconshreveable/log15.v2"

	"github.com/vvelazquez/bosh/pkg/bus"
	"github.com/vvelazquez/bosh/pkg/directorlog"
	"github.com/vvelazquez/bosh/pkg/envelope"
)

// DefaultTimeout is the per-request RPC deadline.
const DefaultTimeout = 45 * time.Second

// TaskPollInterval is the fixed inter-poll sleep for long-running tasks.
const TaskPollInterval = 1 * time.Second

// Transport is the narrow bus capability this client depends on. Any type
// satisfying it (in practice *bus.Transport) can back a Client, which
// makes every end-to-end scenario directly fakeable in tests.
type Transport interface {
	SendRequest(service string, payload bus.Message, onReply bus.ReplyFunc) (requestID string, err error)
	CancelRequest(requestID string)
}

// BlobFetcher is the narrow blobstore capability response normalization
// needs: fetching and deleting a server-side blob referenced by an
// exception payload or a compile log.
type BlobFetcher interface {
	DownloadAndDeleteBlob(ctx context.Context, id string) ([]byte, error)
}

// Client is the agent RPC façade for a single VM's agent.
type Client struct {
	service   string
	agentID   string
	transport Transport
	env       *envelope.Envelope
	methods   MethodTable
	blobs     BlobFetcher
	cancelled func() bool
	log       log15.Logger

	timeoutMu sync.RWMutex
	timeout   time.Duration
}

// Options configures a new Client.
type Options struct {
	// Service is the bus subject prefix the agent listens on, e.g.
	// "agent". The wire subject becomes "<service>.<agent_id>".
	Service string
	AgentID string

	Transport Transport
	Creds     *envelope.Envelope // New(nil) for no encryption
	Methods   MethodTable        // nil uses DefaultMethodTable()
	Blobs     BlobFetcher        // nil disables blob splicing/exception blobs
	Cancelled func() bool        // nil means never cancelled
}

// New builds a Client ready to issue requests.
func New(opts Options) *Client {
	methods := opts.Methods
	if methods == nil {
		methods = DefaultMethodTable()
	}
	env := opts.Creds
	if env == nil {
		env = envelope.New(nil)
	}
	cancelled := opts.Cancelled
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	return &Client{
		service:   opts.Service,
		agentID:   opts.AgentID,
		transport: opts.Transport,
		env:       env,
		methods:   methods,
		blobs:     opts.Blobs,
		cancelled: cancelled,
		log:       directorlog.New("module", "agentclient", "agent_id", opts.AgentID),
		timeout:   DefaultTimeout,
	}
}

func (c *Client) currentTimeout() time.Duration {
	c.timeoutMu.RLock()
	defer c.timeoutMu.RUnlock()
	return c.timeout
}

func (c *Client) setTimeout(d time.Duration) {
	c.timeoutMu.Lock()
	c.timeout = d
	c.timeoutMu.Unlock()
}

// subject is the wire subject this client's requests are published to.
func (c *Client) subject() string {
	return c.service + "." + c.agentID
}

// call issues method with args, applying method's retry policy: only
// RPCTimeout is retried, up to policy.Retries additional attempts, each
// with a fresh correlation id and a fresh deadline (timeouts are never
// inherited across retries).
func (c *Client) call(ctx context.Context, method string, args []interface{}, cancelled func() bool) (bus.Message, error) {
	policy := c.methods.policyFor(method)
	timeout := c.currentTimeout()
	if policy.TimeoutOverride > 0 {
		timeout = policy.TimeoutOverride
	}

	var lastErr error
	for attempt := 0; attempt <= policy.Retries; attempt++ {
		reply, err := c.singleCall(ctx, method, args, timeout, cancelled)
		if err == nil {
			return reply, nil
		}
		if _, isTimeout := err.(*RPCTimeout); !isTimeout {
			return nil, err
		}
		lastErr = err
		c.log.Warn("rpc timeout, retrying", "method", method, "attempt", attempt, "retries", policy.Retries)
	}
	return nil, lastErr
}

func (c *Client) singleCall(ctx context.Context, method string, args []interface{}, timeout time.Duration, cancelled func() bool) (bus.Message, error) {
	payload := bus.Message{
		"protocol":  3,
		"method":    method,
		"arguments": args,
	}

	wrapped, err := c.env.Encrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("encrypt request: %w", err)
	}

	w := newWaiter()
	requestID, err := c.transport.SendRequest(c.subject(), bus.Message(wrapped), func(reply bus.Message) {
		w.deliver(c.env.Decrypt(reply))
	})
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	deadline := time.Now().Add(timeout)
	reply, timedOut, wasCancelled := w.wait(deadline, cancelled)

	if timedOut {
		c.transport.CancelRequest(requestID)
		return nil, &RPCTimeout{Method: method}
	}
	if wasCancelled {
		c.transport.CancelRequest(requestID)
		return nil, &TaskCancelled{Method: method}
	}
	return reply, nil
}
