package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

// ReadingsUpdatedMsg is published after a successful poll.
type ReadingsUpdatedMsg struct {
	Readings []types.Reading
	At       time.Time
}

// PollFailedMsg is published when a poll fails; readings are unchanged.
type PollFailedMsg struct {
	Err      error
	At       time.Time
	Failures int // Consecutive failures including this one
}

// DownloadQueuedMsg signals that the WebUI acknowledged a download.
type DownloadQueuedMsg struct {
	TaskID string // Local dispatch id
	URL    string
	Ack    types.Ack
}

// DownloadErrorMsg signals that a download could not be queued.
type DownloadErrorMsg struct {
	TaskID string
	URL    string
	Err    error
}

// TaskCancelledMsg signals the outcome of a cancel request.
type TaskCancelledMsg struct {
	ID      string
	Success bool
}

type errorPayload struct {
	TaskID string `json:"TaskID,omitempty"`
	URL    string `json:"URL,omitempty"`
	Err    string `json:"Err,omitempty"`
}

func (m DownloadErrorMsg) MarshalJSON() ([]byte, error) {
	out := errorPayload{TaskID: m.TaskID, URL: m.URL}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}
	return json.Marshal(out)
}

func (m *DownloadErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		TaskID string          `json:"TaskID"`
		URL    string          `json:"URL"`
		Err    json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.TaskID = aux.TaskID
	m.URL = aux.URL
	m.Err = decodeErr(aux.Err)
	return nil
}

func (m PollFailedMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		Err      string    `json:"Err,omitempty"`
		At       time.Time `json:"At"`
		Failures int       `json:"Failures"`
	}
	out := encoded{At: m.At, Failures: m.Failures}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}
	return json.Marshal(out)
}

func decodeErr(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var errStr string
	if err := json.Unmarshal(raw, &errStr); err == nil {
		if errStr != "" {
			return errors.New(errStr)
		}
		return nil
	}
	// Accept non-string payloads (e.g. {}).
	if s := string(raw); s != "" && s != "null" {
		return errors.New(s)
	}
	return nil
}

// Bus fans messages out to subscribers. Publishing never blocks: a subscriber
// with a full buffer misses the message.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan any
	nextID int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan any)}
}

// Subscribe returns a channel of messages and a function that unsubscribes
// and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan any, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan any, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers msg to every subscriber that has room for it.
func (b *Bus) Publish(msg any) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
