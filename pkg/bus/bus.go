// Package bus implements the correlated request/reply transport that
// carries send_request/cancel_request calls to an agent, opaque to
// payload. Bus is an in-process publish/subscribe primitive that keeps
// subscribers in a radix tree keyed by subject and dispatches published
// messages to them directly, in place of a real wire transport (NATS in
// the deployed system) that only send_request/cancel_request semantics
// are consumed from here.
package bus

import (
	"sync"

	"github.com/armon/go-radix"
	"github.com/sirupsen/logrus"
)

// Message is the opaque, JSON-shaped payload carried over the bus. The
// transport must not interpret its contents.
type Message map[string]interface{}

// Handler receives messages published to a subject it is subscribed to.
type Handler func(subject string, msg Message)

// Bus is a single-process publish/subscribe primitive. Subjects are plain
// strings (e.g. "agent.<client-id>" or a dedicated reply subject);
// delivery is exact-match against a subject's registered subscribers.
type Bus struct {
	mu          sync.Mutex
	subscribers *radix.Tree
	log         *logrus.Entry
}

type subscription struct {
	handlers map[int]Handler
	next     int
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{
		subscribers: radix.New(),
		log:         logrus.WithField("component", "bus"),
	}
}

// Subscribe registers handler to receive messages published to subject.
// The returned func unsubscribes; it is safe to call more than once.
func (b *Bus) Subscribe(subject string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sub *subscription
	if v, ok := b.subscribers.Get(subject); ok {
		sub = v.(*subscription)
	} else {
		sub = &subscription{handlers: map[int]Handler{}}
		b.subscribers.Insert(subject, sub)
	}
	id := sub.next
	sub.next++
	sub.handlers[id] = handler

	b.log.WithField("subject", subject).Debug("subscribed")

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if v, ok := b.subscribers.Get(subject); ok {
			s := v.(*subscription)
			delete(s.handlers, id)
			if len(s.handlers) == 0 {
				b.subscribers.Delete(subject)
			}
		}
	}
}

// Publish dispatches msg to every handler currently subscribed to subject.
// Handlers run synchronously on the publishing goroutine, so Publish
// returns only after every handler has; they are expected to be cheap
// (the agent client's handler only stores a map and signals a condition
// variable).
func (b *Bus) Publish(subject string, msg Message) {
	b.mu.Lock()
	var handlers []Handler
	if v, ok := b.subscribers.Get(subject); ok {
		sub := v.(*subscription)
		handlers = make([]Handler, 0, len(sub.handlers))
		for _, h := range sub.handlers {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	if len(handlers) == 0 {
		b.log.WithField("subject", subject).Debug("publish with no subscriber")
	}
	for _, h := range handlers {
		h(subject, msg)
	}
}
