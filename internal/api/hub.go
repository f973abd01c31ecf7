package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/podiumlabs/podium/internal/store"
)

// writeTimeout bounds a single websocket write.
const writeTimeout = 10 * time.Second

// StatusEvent is the message delivered to websocket subscribers when a
// recording reaches a terminal status.
type StatusEvent struct {
	RecordingID string       `json:"recording_id"`
	Status      store.Status `json:"status"`
}

// Hub fans terminal-status events out to per-recording websocket subscribers.
// Publish is wired as the pipeline runner's done callback.
type Hub struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[string]map[chan StatusEvent]struct{}
}

// NewHub creates an empty [Hub].
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:  log,
		subs: make(map[string]map[chan StatusEvent]struct{}),
	}
}

// Publish delivers a terminal-status event to every subscriber of the
// recording. Slow subscribers are skipped rather than blocked on; each
// subscriber channel is buffered for the single event it will ever receive.
func (h *Hub) Publish(recordingID string, status store.Status) {
	event := StatusEvent{RecordingID: recordingID, Status: status}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[recordingID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) subscribe(recordingID string) chan StatusEvent {
	ch := make(chan StatusEvent, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[recordingID] == nil {
		h.subs[recordingID] = make(map[chan StatusEvent]struct{})
	}
	h.subs[recordingID][ch] = struct{}{}
	return ch
}

func (h *Hub) unsubscribe(recordingID string, ch chan StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[recordingID], ch)
	if len(h.subs[recordingID]) == 0 {
		delete(h.subs, recordingID)
	}
}

// handleRecordingEvents upgrades the request to a websocket and delivers the
// recording's terminal-status event: immediately when the recording is
// already terminal, otherwise once the pipeline finishes. The connection
// closes normally after the single event.
func (s *Server) handleRecordingEvents(w http.ResponseWriter, r *http.Request) {
	recordingID := r.PathValue("id")
	rec, err := s.store.GetRecording(r.Context(), recordingID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "recording_id", recordingID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	// The connection is write-only; CloseRead cancels the context when the
	// client goes away.
	ctx := conn.CloseRead(r.Context())

	// Subscribe before re-checking so a completion between the two cannot be
	// missed.
	ch := s.hub.subscribe(recordingID)
	defer s.hub.unsubscribe(recordingID, ch)

	var event StatusEvent
	if rec.Status == store.StatusCompleted || rec.Status == store.StatusFailed {
		event = StatusEvent{RecordingID: recordingID, Status: rec.Status}
	} else if fresh, err := s.store.GetRecording(ctx, recordingID); err == nil &&
		(fresh.Status == store.StatusCompleted || fresh.Status == store.StatusFailed) {
		event = StatusEvent{RecordingID: recordingID, Status: fresh.Status}
	} else {
		select {
		case event = <-ch:
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "client disconnected")
			return
		}
	}

	if err := writeEvent(ctx, conn, event); err != nil {
		s.log.Warn("websocket write failed", "recording_id", recordingID, "error", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "analysis finished")
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
