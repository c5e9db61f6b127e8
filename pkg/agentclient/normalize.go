package agentclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/vvelazquez/bosh/pkg/director"
)

// normalize turns a raw reply into a director.RPCTask: exceptions become
// RPCRemoteException (with remote-blob contents spliced in and the blob
// deleted), compile logs referenced by blobstore id are downloaded and
// spliced in, and "unknown message" replies are tolerated per method.
func (c *Client) normalize(ctx context.Context, reply map[string]interface{}, method string) (director.RPCTask, error) {
	if excRaw, ok := reply["exception"]; ok {
		return c.normalizeException(ctx, excRaw, method)
	}

	task := director.RPCTask{}
	value := reply["value"]

	if asMap, ok := value.(map[string]interface{}); ok {
		if taskID, ok := asMap["agent_task_id"].(string); ok && taskID != "" {
			task.AgentTaskID = taskID
			if state, ok := asMap["state"].(string); ok {
				task.State = state
			}
			task.Value = value
			return task, nil
		}

		if result, ok := asMap["result"].(map[string]interface{}); ok {
			if logID, ok := result["compile_log_id"].(string); ok && logID != "" && c.blobs != nil {
				contents, err := c.blobs.DownloadAndDeleteBlob(ctx, logID)
				if err != nil {
					return director.RPCTask{}, fmt.Errorf("download compile log blob %s: %w", logID, err)
				}
				result["compile_log"] = string(contents)
				delete(result, "compile_log_id")
			}
		}
	}

	task.Value = value
	return task, nil
}

func (c *Client) normalizeException(ctx context.Context, excRaw interface{}, method string) (director.RPCTask, error) {
	excMap, _ := excRaw.(map[string]interface{})
	message, _ := excMap["message"].(string)
	if message == "" {
		message = fmt.Sprintf("%v", excRaw)
	}

	backtrace := toStringSlice(excMap["backtrace"])

	var blobText string
	hasBlob := false
	if blobID, ok := excMap["blobstore_id"].(string); ok && blobID != "" && c.blobs != nil {
		contents, err := c.blobs.DownloadAndDeleteBlob(ctx, blobID)
		if err == nil {
			blobText = string(contents)
			hasBlob = true
		} else {
			c.log.Warn("failed to download exception blob", "blobstore_id", blobID, "err", err)
		}
	}

	if unknownMessage(message) {
		switch method {
		case "update_settings", "run_script", "delete_arp_entries":
			c.log.Warn("agent does not recognize method, continuing", "method", method, "message", message)
			return director.RPCTask{}, nil
		case "upload_blob":
			return director.RPCTask{}, &AgentUnsupportedAction{Method: method}
		}
	}

	if method == "stop" && strings.Contains(message, "Timed out waiting for service") {
		c.log.Warn("agent timed out waiting for service to stop, continuing", "message", message)
		return director.RPCTask{}, nil
	}

	return director.RPCTask{}, &RPCRemoteException{
		Message:   message,
		Backtrace: backtrace,
		BlobText:  blobText,
		HasBlob:   hasBlob,
	}
}

func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
