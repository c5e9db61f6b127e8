package agentclient

import (
	"sync"
	"time"

	"github.com/vvelazquez/bosh/pkg/bus"
)

// wakeInterval is how often a pending waiter is nudged to re-check its
// deadline and cancellation predicate. This is not a poll of the reply
// itself (the bus callback delivers that directly under the same mutex);
// it only bounds how long a deadline or cancellation can go unnoticed,
// without busy-waiting on the reply.
const wakeInterval = 50 * time.Millisecond

// waiter bridges the bus's callback-driven async reply to a single
// blocking caller via a mutex and condition variable. The transport
// callback acquires the mutex, stores the reply, and signals; the waiter
// re-checks "reply arrived" under the same mutex, applying the
// cancellation predicate between wakeups.
type waiter struct {
	mu    sync.Mutex
	cond  *sync.Cond
	reply bus.Message
}

func newWaiter() *waiter {
	w := &waiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// deliver is the bus reply callback: store the reply and wake the
// waiter.
func (w *waiter) deliver(reply bus.Message) {
	w.mu.Lock()
	w.reply = reply
	w.cond.Broadcast()
	w.mu.Unlock()
}

// wait blocks until a reply has been delivered, deadline passes, or
// cancelled (if non-nil) reports true. All three checks happen under the
// waiter's own mutex.
func (w *waiter) wait(deadline time.Time, cancelled func() bool) (reply bus.Message, timedOut bool, wasCancelled bool) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(wakeInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				w.mu.Lock()
				w.cond.Broadcast()
				w.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.reply == nil {
		if cancelled != nil && cancelled() {
			return nil, false, true
		}
		if !time.Now().Before(deadline) {
			return nil, true, false
		}
		w.cond.Wait()
	}
	return w.reply, false, false
}
