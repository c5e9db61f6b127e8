// Package blobstore implements fetch-then-delete blob injection, used to
// splice remote exception details and compile logs into agent RPC
// responses. The resource manager contract here narrows a shared KV
// store down to the two operations this core needs: read and delete.
package blobstore

import (
	"context"

	"gopkg.in/inconshreveable/log15.v2"

	"github.com/vvelazquez/bosh/pkg/directorlog"
)

// ResourceManager is the server-side blobstore capability this core
// depends on: a shared, reentrant store the director and every agent
// client can read server-side blobs from and delete once consumed.
type ResourceManager interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// Injector fetches and deletes server-side blobs on behalf of the agent
// client's response normalization.
type Injector struct {
	manager ResourceManager
	log     log15.Logger
}

// New returns an Injector backed by manager.
func New(manager ResourceManager) *Injector {
	return &Injector{manager: manager, log: directorlog.New("module", "blobstore")}
}

// DownloadAndDeleteBlob fetches id's contents and deletes it from the
// store. The delete is attempted on every exit path — even when Get
// itself failed, or when the caller goes on to fail to use the returned
// bytes — so a blob is never left behind because of a downstream error.
// This is a known, accepted loss window if the process crashes between
// fetch and use; it is not made transactional here.
func (i *Injector) DownloadAndDeleteBlob(ctx context.Context, id string) (data []byte, err error) {
	defer func() {
		if delErr := i.manager.Delete(ctx, id); delErr != nil {
			i.log.Warn("failed to delete blob", "id", id, "err", delErr)
		}
	}()

	data, err = i.manager.Get(ctx, id)
	return data, err
}
