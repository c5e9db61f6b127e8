package bus

import (
	"sync"

	"github.com/google/uuid"
)

// ReplyFunc is invoked exactly once, on whatever goroutine Publish runs on,
// when a reply arrives on the dedicated reply subject for a request.
type ReplyFunc func(reply Message)

// Transport is a correlated request/reply façade over a Bus. It is
// single-owner: each caller (agentclient.Client, in practice) creates
// requests through its own Transport and does not share callbacks across
// instances.
type Transport struct {
	bus      *Bus
	clientID string

	mu      sync.Mutex
	pending map[string]func()
}

// NewTransport returns a Transport bound to bus, identified on the wire
// as clientID. clientID only namespaces this transport's own reply
// subjects; the outbound subject passed to SendRequest is used verbatim
// (agentclient.Client already builds it as "<service>.<agent_id>").
func NewTransport(b *Bus, clientID string) *Transport {
	return &Transport{bus: b, clientID: clientID, pending: map[string]func(){}}
}

// SendRequest publishes payload to service, the caller's own fully-formed
// subject, and arranges for onReply to run when a reply lands on the
// dedicated reply subject. It returns the request id the caller uses to
// CancelRequest.
func (t *Transport) SendRequest(service string, payload Message, onReply ReplyFunc) (requestID string, err error) {
	requestID = uuid.New().String()
	replySubject := t.clientID + ".reply." + requestID

	var unsubscribe func()
	unsubscribe = t.bus.Subscribe(replySubject, func(_ string, msg Message) {
		t.mu.Lock()
		_, stillPending := t.pending[requestID]
		delete(t.pending, requestID)
		t.mu.Unlock()
		if !stillPending {
			return
		}
		unsubscribe()
		onReply(msg)
	})

	t.mu.Lock()
	t.pending[requestID] = unsubscribe
	t.mu.Unlock()

	msg := Message{}
	for k, v := range payload {
		msg[k] = v
	}
	msg["reply_to"] = replySubject

	t.bus.Publish(service, msg)
	return requestID, nil
}

// CancelRequest detaches the reply callback for requestID and best-effort
// unsubscribes from the bus. Calling it for an unknown or already-replied
// request id is a no-op.
func (t *Transport) CancelRequest(requestID string) {
	t.mu.Lock()
	unsubscribe, ok := t.pending[requestID]
	delete(t.pending, requestID)
	t.mu.Unlock()

	if ok {
		unsubscribe()
	}
}
