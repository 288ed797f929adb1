package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/core"
	"github.com/surge-downloader/ytdlp-remote/internal/dispatch"
	"github.com/surge-downloader/ytdlp-remote/internal/events"
	"github.com/surge-downloader/ytdlp-remote/internal/poller"
)

// daemon is the local HTTP surface of the serve command.
type daemon struct {
	dispatcher *dispatch.Dispatcher
	poller     *poller.Poller
	bus        *events.Bus
	endpoint   string
	log        *zap.Logger
}

type statsView struct {
	Successes           int       `json:"successes"`
	Failures            int       `json:"failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Handler routes the daemon's endpoints.
func (d *daemon) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"endpoint": d.endpoint,
			"version":  Version,
		})
	})

	mux.HandleFunc("POST /download", d.handleDownload)

	mux.HandleFunc("GET /readings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.poller.Readings())
	})

	mux.HandleFunc("GET /readings/{name}", func(w http.ResponseWriter, r *http.Request) {
		reading, ok := d.poller.Reading(r.PathValue("name"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown reading"})
			return
		}
		writeJSON(w, http.StatusOK, reading)
	})

	mux.HandleFunc("GET /snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap, at, ok := d.poller.Snapshot()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no successful poll yet"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap, "updated_at": at})
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		st := d.poller.Stats()
		view := statsView{
			Successes:           st.Successes,
			Failures:            st.Failures,
			ConsecutiveFailures: st.ConsecutiveFailures,
			LastAttempt:         st.LastAttempt,
			LastSuccess:         st.LastSuccess,
		}
		if st.LastError != nil {
			view.LastError = st.LastError.Error()
		}
		writeJSON(w, http.StatusOK, view)
	})

	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		if err := d.poller.Poll(r.Context()); err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, d.poller.Readings())
	})

	mux.HandleFunc("POST /cancel", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		ok, err := d.dispatcher.Cancel(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "success": ok})
	})

	mux.HandleFunc("POST /clear", func(w http.ResponseWriter, r *http.Request) {
		if err := d.dispatcher.ClearCompleted(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	})

	mux.HandleFunc("GET /events", d.handleEvents)

	return mux
}

// handleDownload feeds the raw JSON object to the dispatcher. Invalid input is
// answered with 400 and never reaches the WebUI.
func (d *daemon) handleDownload(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	if err := dec.Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, daemonResponse{Status: "invalid", Error: "body must be a JSON object"})
		return
	}

	task, err := d.dispatcher.Dispatch(r.Context(), params)
	if err != nil {
		resp := daemonResponse{Status: "invalid", Error: err.Error()}
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			resp.Field = ve.Field
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, daemonResponse{Status: "queued", TaskID: task.ID})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if core.IsValidation(err) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleEvents streams bus messages as server-sent events until the client
// goes away.
func (d *daemon) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch, unsubscribe := d.bus.Subscribe(32)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			name := eventName(msg)
			if name == "" {
				continue
			}
			data, err := json.Marshal(msg)
			if err != nil {
				d.log.Warn("failed to encode event", zap.String("event", name), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func eventName(msg any) string {
	switch msg.(type) {
	case events.ReadingsUpdatedMsg:
		return "readings"
	case events.PollFailedMsg:
		return "poll_failed"
	case events.DownloadQueuedMsg:
		return "download_queued"
	case events.DownloadErrorMsg:
		return "download_error"
	case events.TaskCancelledMsg:
		return "task_cancelled"
	}
	return ""
}
