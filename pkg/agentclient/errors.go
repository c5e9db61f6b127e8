package agentclient

import "strings"

// RPCTimeout means no reply arrived within the per-request deadline.
type RPCTimeout struct {
	Method string
}

func (e *RPCTimeout) Error() string {
	return "RpcTimeout: no reply to " + e.Method + " within deadline"
}

// RPCRemoteException is raised when the agent's reply carries an
// exception. Message is formatted as message + "\n" + the backtrace
// joined by newlines, with any downloaded remote-blob contents appended.
type RPCRemoteException struct {
	Message   string
	Backtrace []string
	BlobText  string
	HasBlob   bool
}

func (e *RPCRemoteException) Error() string {
	parts := []string{e.Message}
	if len(e.Backtrace) > 0 {
		parts = append(parts, strings.Join(e.Backtrace, "\n"))
	}
	text := strings.Join(parts, "\n")
	if e.HasBlob {
		text += "\n" + e.BlobText
	}
	return text
}

// unknownMessage reports whether msg matches the agent's "I don't
// recognize this method" response, case-insensitively.
func unknownMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "unknown message")
}

// AgentUnsupportedAction is raised in place of RPCRemoteException when an
// "unknown message" reply is received for upload_blob, which has no
// silent-swallow fallback.
type AgentUnsupportedAction struct {
	Method string
}

func (e *AgentUnsupportedAction) Error() string {
	return "agent does not support " + e.Method
}

// TaskCancelled is raised when a cooperative cancellation interrupts a
// long-running task wait. It is always preceded by a best-effort
// cancel_task call for the task in flight, if any.
type TaskCancelled struct {
	Method string
}

func (e *TaskCancelled) Error() string {
	return "task cancelled: " + e.Method
}
