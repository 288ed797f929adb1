package types

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DownloadRequest is a validated request to enqueue one URL on the remote WebUI.
type DownloadRequest struct {
	URL       string  `json:"url"`
	Location  *string `json:"location,omitempty"` // Named download location configured on the WebUI
	AudioOnly bool    `json:"audio_only"`
	Force     bool    `json:"force"` // Re-download even if the WebUI history has it
}

// LocationName returns the location or "" when unset.
func (r DownloadRequest) LocationName() string {
	if r.Location == nil {
		return ""
	}
	return *r.Location
}

// Item is a queue entry as reported by the remote service. The schema belongs
// to the WebUI so fields are forwarded verbatim.
type Item map[string]any

// ID returns the task id if the entry carries one.
func (i Item) ID() string {
	id, _ := i["id"].(string)
	return id
}

// Title returns a human readable label for the entry.
func (i Item) Title() string {
	for _, key := range []string{"title", "url", "id"} {
		if s, ok := i[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Status returns the WebUI task status (queued, downloading, completed, ...).
func (i Item) Status() string {
	s, _ := i["status"].(string)
	return s
}

// Progress parses the WebUI's "10.5%" progress string into a 0..1 fraction.
// Non-numeric progress such as "Cancelled" reports false.
func (i Item) Progress() (float64, bool) {
	s, ok := i["progress"].(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	pct, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return math.Max(0, math.Min(pct/100, 1)), true
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = cloneValue(v)
	}
	return out
}

// QueueSnapshot is the remote queue state at the time of the last successful poll.
type QueueSnapshot struct {
	Active    Item   `json:"active"`
	Pending   []Item `json:"pending"`
	Completed []Item `json:"completed"`
}

// Normalize guarantees Pending and Completed are non-nil.
func (s QueueSnapshot) Normalize() QueueSnapshot {
	if s.Pending == nil {
		s.Pending = []Item{}
	}
	if s.Completed == nil {
		s.Completed = []Item{}
	}
	return s
}

// Clone returns a deep copy of the snapshot.
func (s QueueSnapshot) Clone() QueueSnapshot {
	return QueueSnapshot{
		Active:    s.Active.Clone(),
		Pending:   cloneItems(s.Pending),
		Completed: cloneItems(s.Completed),
	}
}

// Ack is the remote service's acknowledgment of an enqueue request.
type Ack struct {
	Message string   `json:"message"`
	TaskIDs []string `json:"task_ids,omitempty"`
}

// ReadingState tracks the freshness of a reading.
type ReadingState int

const (
	ReadingUninitialized ReadingState = iota
	ReadingFresh
	ReadingStale
)

func (s ReadingState) String() string {
	switch s {
	case ReadingFresh:
		return "fresh"
	case ReadingStale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// MarshalText lets the state render as a word in JSON output.
func (s ReadingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reading is a named value derived from the queue snapshot and exposed to the host.
type Reading struct {
	Name      string         `json:"name"`
	Value     int            `json:"value"`
	Detail    map[string]any `json:"detail"`
	State     ReadingState   `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the reading.
func (r Reading) Clone() Reading {
	out := r
	out.Detail = cloneMap(r.Detail)
	return out
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Item:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []Item:
		return cloneItems(val)
	default:
		return v
	}
}
