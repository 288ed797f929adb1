package core

import (
	"context"

	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

// QueueService defines the operations the client performs against the WebUI.
// RemoteService is the network implementation; tests substitute fakes.
type QueueService interface {
	// SubmitDownload enqueues one URL and returns the remote's acknowledgment.
	SubmitDownload(ctx context.Context, req types.DownloadRequest) (types.Ack, error)

	// FetchQueue returns the current queue snapshot.
	FetchQueue(ctx context.Context) (types.QueueSnapshot, error)

	// CancelTask cancels an active or queued task by id.
	CancelTask(ctx context.Context, id string) (bool, error)

	// ClearCompleted drops finished tasks from the remote queue.
	ClearCompleted(ctx context.Context) error

	// Locations lists the download location names configured on the WebUI.
	Locations(ctx context.Context) ([]string, error)
}
