package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	b := New()

	received := make(chan Message, 1)
	b.Subscribe("agent.abc", func(subject string, msg Message) {
		received <- msg
	})

	b.Publish("agent.abc", Message{"hello": "world"})

	select {
	case msg := <-received:
		require.Equal(t, "world", msg["hello"])
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestPublishDoesNotDeliverToOtherSubjects(t *testing.T) {
	b := New()

	received := make(chan Message, 1)
	b.Subscribe("agent.abc", func(subject string, msg Message) {
		received <- msg
	})

	b.Publish("agent.xyz", Message{"hello": "world"})

	select {
	case <-received:
		t.Fatal("should not have received a message for a different subject")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	received := make(chan Message, 1)
	unsubscribe := b.Subscribe("agent.abc", func(subject string, msg Message) {
		received <- msg
	})
	unsubscribe()

	b.Publish("agent.abc", Message{"hello": "world"})

	select {
	case <-received:
		t.Fatal("should not have received a message after unsubscribing")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransportSendRequestRoutesReplyBack(t *testing.T) {
	b := New()
	transport := NewTransport(b, "vm-1")

	b.Subscribe("agent.vm-1", func(subject string, msg Message) {
		replyTo, _ := msg["reply_to"].(string)
		b.Publish(replyTo, Message{"value": "pong"})
	})

	reply := make(chan Message, 1)
	_, err := transport.SendRequest("agent.vm-1", Message{"method": "ping"}, func(msg Message) {
		reply <- msg
	})
	require.NoError(t, err)

	select {
	case msg := <-reply:
		require.Equal(t, "pong", msg["value"])
	case <-time.After(time.Second):
		t.Fatal("reply not delivered")
	}
}

func TestTransportCancelRequestStopsDelivery(t *testing.T) {
	b := New()
	transport := NewTransport(b, "vm-1")

	reply := make(chan Message, 1)
	requestID, err := transport.SendRequest("agent.vm-1", Message{"method": "ping"}, func(msg Message) {
		reply <- msg
	})
	require.NoError(t, err)

	transport.CancelRequest(requestID)

	// A reply that arrives after cancellation is not delivered, because
	// the subscription backing it has been removed.
	b.Publish("vm-1.reply."+requestID, Message{"value": "late"})

	select {
	case <-reply:
		t.Fatal("should not have received a reply after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}
