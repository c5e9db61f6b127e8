package agentclient

import (
	"context"
	"time"

	"github.com/vvelazquez/bosh/pkg/bus"
)

// SendMessage issues method as a standard blocking call: it waits for the
// agent's reply and, if the reply is long-running, polls get_task on a
// fixed interval until the task leaves the "running" state, with no outer
// deadline on the poll.
func (c *Client) SendMessage(ctx context.Context, method string, args []interface{}) (interface{}, error) {
	return c.sendMessage(ctx, method, args, 0, nil)
}

// SendMessageWithTimeout is SendMessage with an outer deadline on the task
// poll (not the per-request timeout). Used by Stop with a 300s outer
// deadline.
func (c *Client) SendMessageWithTimeout(ctx context.Context, method string, outerTimeout time.Duration, args []interface{}) (interface{}, error) {
	return c.sendMessage(ctx, method, args, outerTimeout, nil)
}

// SendCancellableMessage is SendMessage with the client's cancellation
// predicate checked at every wake, including during task-poll sleeps. On
// cancellation it sends a best-effort cancel_task before returning
// TaskCancelled. Used by Drain.
func (c *Client) SendCancellableMessage(ctx context.Context, method string, args []interface{}) (interface{}, error) {
	return c.sendMessage(ctx, method, args, 0, c.cancelled)
}

func (c *Client) sendMessage(ctx context.Context, method string, args []interface{}, outerTimeout time.Duration, pollCancelled func() bool) (interface{}, error) {
	reply, err := c.call(ctx, method, args, pollCancelled)
	if err != nil {
		return nil, err
	}

	task, err := c.normalize(ctx, reply, method)
	if err != nil {
		return nil, err
	}
	if !task.HasAgentTask() {
		return task.Value, nil
	}

	hasDeadline := outerTimeout > 0
	var deadline time.Time
	if hasDeadline {
		deadline = time.Now().Add(outerTimeout)
	}

	taskID := task.AgentTaskID
	for {
		if pollCancelled != nil && pollCancelled() {
			if _, cancelErr := c.call(ctx, "cancel_task", []interface{}{taskID}, nil); cancelErr != nil {
				c.log.Warn("best-effort cancel_task failed", "agent_task_id", taskID, "err", cancelErr)
			}
			return nil, &TaskCancelled{Method: method}
		}
		if hasDeadline && !time.Now().Before(deadline) {
			return nil, &RPCTimeout{Method: method}
		}

		time.Sleep(TaskPollInterval)

		reply, err := c.call(ctx, "get_task", []interface{}{taskID}, nil)
		if err != nil {
			return nil, err
		}
		task, err = c.normalize(ctx, reply, method)
		if err != nil {
			return nil, err
		}
		if !task.Running() {
			return task.Value, nil
		}
	}
}

// FireAndForget issues method and immediately cancels the reply
// subscription: the caller never sees an error, only a log entry. Used by
// DeleteARPEntries.
func (c *Client) FireAndForget(method string, args []interface{}) {
	payload := bus.Message{"protocol": 3, "method": method, "arguments": args}
	wrapped, err := c.env.Encrypt(payload)
	if err != nil {
		c.log.Error("fire_and_forget: encrypt failed", "method", method, "err", err)
		return
	}

	requestID, err := c.transport.SendRequest(c.subject(), bus.Message(wrapped), func(bus.Message) {})
	if err != nil {
		c.log.Error("fire_and_forget: send failed", "method", method, "err", err)
		return
	}
	c.transport.CancelRequest(requestID)
}

// SyncDNS is the low-level send used for sync_dns: it returns the request
// id to the caller immediately, who owns cancellation via CancelSyncDNS.
func (c *Client) SyncDNS(args []interface{}, onReply func(reply map[string]interface{})) (requestID string, err error) {
	payload := bus.Message{"protocol": 3, "method": "sync_dns", "arguments": args}
	wrapped, err := c.env.Encrypt(payload)
	if err != nil {
		return "", err
	}

	return c.transport.SendRequest(c.subject(), bus.Message(wrapped), func(reply bus.Message) {
		onReply(c.env.Decrypt(reply))
	})
}

// CancelSyncDNS detaches the reply callback a prior SyncDNS registered.
func (c *Client) CancelSyncDNS(requestID string) {
	c.transport.CancelRequest(requestID)
}
