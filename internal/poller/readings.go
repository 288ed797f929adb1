package poller

import (
	"time"

	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

// Reading names.
const (
	ReadingActive    = "active"
	ReadingPending   = "pending"
	ReadingCompleted = "completed"
)

// ReadingNames lists the readings in display order.
var ReadingNames = []string{ReadingActive, ReadingPending, ReadingCompleted}

// QueueKey is the detail key holding the item list of pending and completed readings.
const QueueKey = "queue"

// DeriveReadings turns a snapshot into Fresh readings stamped with at.
//
// active: 1 when a task is downloading, detail is that task's fields. An
// empty active object counts as idle.
// pending: number of queued tasks, detail {"queue": [...]} in queue order.
// completed: number of finished tasks the WebUI still lists, same detail shape.
func DeriveReadings(snap types.QueueSnapshot, at time.Time) []types.Reading {
	snap = snap.Normalize().Clone()

	active := types.Reading{
		Name:      ReadingActive,
		Detail:    map[string]any{},
		State:     types.ReadingFresh,
		UpdatedAt: at,
	}
	if len(snap.Active) > 0 {
		active.Value = 1
		active.Detail = map[string]any(snap.Active)
	}

	return []types.Reading{
		active,
		{
			Name:      ReadingPending,
			Value:     len(snap.Pending),
			Detail:    map[string]any{QueueKey: snap.Pending},
			State:     types.ReadingFresh,
			UpdatedAt: at,
		},
		{
			Name:      ReadingCompleted,
			Value:     len(snap.Completed),
			Detail:    map[string]any{QueueKey: snap.Completed},
			State:     types.ReadingFresh,
			UpdatedAt: at,
		},
	}
}

func emptyDetail(name string) map[string]any {
	if name == ReadingActive {
		return map[string]any{}
	}
	return map[string]any{QueueKey: []types.Item{}}
}

// QueueItems returns the item list carried in a pending or completed reading.
func QueueItems(r types.Reading) []types.Item {
	items, _ := r.Detail[QueueKey].([]types.Item)
	return items
}
