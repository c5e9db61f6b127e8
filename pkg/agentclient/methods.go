package agentclient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvelazquez/bosh/pkg/director"
)

// StopOuterTimeout is the outer deadline on Stop's task poll.
const StopOuterTimeout = 300 * time.Second

// WaitUntilReadyDefaultDeadline is the wall-clock budget WaitUntilReady
// allows by default.
const WaitUntilReadyDefaultDeadline = 600 * time.Second

// waitUntilReadyPingTimeout is the per-request timeout WaitUntilReady
// installs for the duration of its ping loop.
const waitUntilReadyPingTimeout = 1 * time.Second

func uniqueMessageID() string {
	return "unique_message_id " + uuid.New().String()
}

// Ping checks agent liveness.
func (c *Client) Ping(ctx context.Context) (interface{}, error) {
	return c.SendMessage(ctx, "ping", nil)
}

// GetState fetches the agent's reported state. A correlation id is
// appended as an extra positional argument for server-side
// deduplication/tracing, and logged.
func (c *Client) GetState(ctx context.Context) (interface{}, error) {
	id := uniqueMessageID()
	c.log.Debug("get_state", "correlation_id", id)
	return c.SendMessage(ctx, "get_state", []interface{}{id})
}

// Apply pushes an apply spec to the agent.
func (c *Client) Apply(ctx context.Context, spec director.ApplySpec) error {
	_, err := c.SendMessage(ctx, "apply", []interface{}{spec})
	return err
}

// Start starts the instance's jobs.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.SendMessage(ctx, "start", nil)
	return err
}

// Stop stops the instance's jobs, tolerating a "Timed out waiting for
// service" reply, with a 300s outer deadline on the task poll.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.SendMessageWithTimeout(ctx, "stop", StopOuterTimeout, nil)
	return err
}

// Prepare primes the agent for an upcoming apply.
func (c *Client) Prepare(ctx context.Context, spec director.ApplySpec) error {
	_, err := c.SendMessage(ctx, "prepare", []interface{}{spec})
	return err
}

// Drain runs the instance's drain scripts. Cancellable: see
// SendCancellableMessage.
func (c *Client) Drain(ctx context.Context, args []interface{}) (interface{}, error) {
	return c.SendCancellableMessage(ctx, "drain", args)
}

// CompilePackage asks the agent to compile a package; a compile_log_id in
// the result is downloaded, spliced into result.compile_log, and deleted.
func (c *Client) CompilePackage(ctx context.Context, args []interface{}) (interface{}, error) {
	return c.SendMessage(ctx, "compile_package", args)
}

// FetchLogs downloads logs matching args, with the same correlation id
// convention as GetState.
func (c *Client) FetchLogs(ctx context.Context, args []interface{}) (interface{}, error) {
	id := uniqueMessageID()
	c.log.Debug("fetch_logs", "correlation_id", id)
	return c.SendMessage(ctx, "fetch_logs", append(append([]interface{}{}, args...), id))
}

// ListDisk lists attached disks.
func (c *Client) ListDisk(ctx context.Context) (interface{}, error) {
	return c.SendMessage(ctx, "list_disk", nil)
}

// MountDisk mounts the given disk CID.
func (c *Client) MountDisk(ctx context.Context, diskCID string) error {
	_, err := c.SendMessage(ctx, "mount_disk", []interface{}{diskCID})
	return err
}

// UnmountDisk unmounts the given disk CID.
func (c *Client) UnmountDisk(ctx context.Context, diskCID string) error {
	_, err := c.SendMessage(ctx, "unmount_disk", []interface{}{diskCID})
	return err
}

// MigrateDisk migrates data from one disk CID to another.
func (c *Client) MigrateDisk(ctx context.Context, fromCID, toCID string) error {
	_, err := c.SendMessage(ctx, "migrate_disk", []interface{}{fromCID, toCID})
	return err
}

// AssociateDisks associates the given disk CIDs with the instance.
func (c *Client) AssociateDisks(ctx context.Context, diskCIDs []string) error {
	args := make([]interface{}, len(diskCIDs))
	for i, cid := range diskCIDs {
		args[i] = cid
	}
	_, err := c.SendMessage(ctx, "associate_disks", args)
	return err
}

// RunScript runs a named lifecycle script, tolerating an unknown-message
// reply.
func (c *Client) RunScript(ctx context.Context, name string, options map[string]interface{}) error {
	_, err := c.SendMessage(ctx, "run_script", []interface{}{name, options})
	return err
}

// RunErrand runs an errand job and returns its result.
func (c *Client) RunErrand(ctx context.Context) (interface{}, error) {
	return c.SendMessage(ctx, "run_errand", nil)
}

// UpdateSettings pushes updated settings (trusted certs among them) to the
// agent, tolerating an unknown-message reply. Satisfies
// director.SettingsUpdater.
func (c *Client) UpdateSettings(ctx context.Context, settings map[string]interface{}) error {
	_, err := c.SendMessage(ctx, "update_settings", []interface{}{settings})
	return err
}

// UploadBlob uploads blob data described by args. An unknown-message
// reply is raised as AgentUnsupportedAction rather than swallowed.
func (c *Client) UploadBlob(ctx context.Context, args []interface{}) error {
	_, err := c.SendMessage(ctx, "upload_blob", args)
	return err
}

// DeleteARPEntries is a fire-and-forget request: the director does not
// wait for (or raise on) a reply.
func (c *Client) DeleteARPEntries(ips []string) {
	args := make([]interface{}, len(ips))
	for i, ip := range ips {
		args[i] = ip
	}
	c.FireAndForget("delete_arp_entries", args)
}

// CancelTask asks the agent to cancel a long-running task by id.
func (c *Client) CancelTask(ctx context.Context, agentTaskID string) error {
	_, err := c.SendMessage(ctx, "cancel_task", []interface{}{agentTaskID})
	return err
}

// WaitUntilReady pings the agent repeatedly until it responds, retrying on
// RPCTimeout and on a "restarting agent" remote exception while deadline
// is still in the future, and honoring cancellation. The per-request
// timeout is set to 1s for the duration of the wait and restored on every
// exit path, including cancellation and the deadline itself expiring.
//
// Cancellation is sampled once before the first ping; a cancellation
// arriving between subsequent pings is observed only when that ping
// times out, not proactively.
func (c *Client) WaitUntilReady(ctx context.Context, deadline time.Duration) error {
	if deadline <= 0 {
		deadline = WaitUntilReadyDefaultDeadline
	}

	original := c.currentTimeout()
	c.setTimeout(waitUntilReadyPingTimeout)
	defer c.setTimeout(original)

	if c.cancelled() {
		return &TaskCancelled{Method: "wait_until_ready"}
	}

	wallDeadline := time.Now().Add(deadline)
	for {
		reply, err := c.call(ctx, "ping", nil, nil)

		var callErr error
		if err != nil {
			callErr = err
		} else {
			_, callErr = c.normalize(ctx, reply, "ping")
		}

		if callErr == nil {
			return nil
		}

		switch e := callErr.(type) {
		case *RPCTimeout:
			if c.cancelled() {
				return &TaskCancelled{Method: "wait_until_ready"}
			}
			if time.Now().Before(wallDeadline) {
				continue
			}
			return e
		case *RPCRemoteException:
			if isRestartingAgent(e.Message) && time.Now().Before(wallDeadline) {
				continue
			}
			return e
		default:
			return callErr
		}
	}
}

func isRestartingAgent(message string) bool {
	return strings.HasPrefix(strings.ToLower(message), "restarting agent")
}
