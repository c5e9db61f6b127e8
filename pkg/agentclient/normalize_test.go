package agentclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBlobFetcher is a Do*-function-field fake for BlobFetcher.
type fakeBlobFetcher struct {
	DoDownloadAndDeleteBlob func(ctx context.Context, id string) ([]byte, error)

	fetched []string
}

func (f *fakeBlobFetcher) DownloadAndDeleteBlob(ctx context.Context, id string) ([]byte, error) {
	f.fetched = append(f.fetched, id)
	return f.DoDownloadAndDeleteBlob(ctx, id)
}

func TestNormalizeExceptionSplicesAndDeletesBlob(t *testing.T) {
	blobs := &fakeBlobFetcher{
		DoDownloadAndDeleteBlob: func(ctx context.Context, id string) ([]byte, error) {
			require.Equal(t, "blob-1", id)
			return []byte("stack overflow at line 42"), nil
		},
	}
	c := New(Options{Service: "agent", AgentID: "agent-1", Blobs: blobs})

	reply := map[string]interface{}{
		"exception": map[string]interface{}{
			"message":      "job failed",
			"backtrace":    []interface{}{"frame1", "frame2"},
			"blobstore_id": "blob-1",
		},
	}

	_, err := c.normalize(context.Background(), reply, "apply")
	require.Error(t, err)

	remoteErr, ok := err.(*RPCRemoteException)
	require.True(t, ok)
	require.Equal(t, "job failed\nframe1\nframe2\nstack overflow at line 42", remoteErr.Error())
	require.Equal(t, []string{"blob-1"}, blobs.fetched)
}

func TestNormalizeSplicesCompileLogAndDropsCompileLogID(t *testing.T) {
	blobs := &fakeBlobFetcher{
		DoDownloadAndDeleteBlob: func(ctx context.Context, id string) ([]byte, error) {
			require.Equal(t, "log-1", id)
			return []byte("compiling foo... done"), nil
		},
	}
	c := New(Options{Service: "agent", AgentID: "agent-1", Blobs: blobs})

	reply := map[string]interface{}{
		"value": map[string]interface{}{
			"result": map[string]interface{}{
				"compile_log_id": "log-1",
			},
		},
	}

	task, err := c.normalize(context.Background(), reply, "compile_package")
	require.NoError(t, err)

	value, ok := task.Value.(map[string]interface{})
	require.True(t, ok)
	result, ok := value["result"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "compiling foo... done", result["compile_log"])
	require.NotContains(t, result, "compile_log_id")
	require.Equal(t, []string{"log-1"}, blobs.fetched)
}
