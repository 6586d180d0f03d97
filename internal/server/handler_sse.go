package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/me/onelane/internal/hub"
	"github.com/me/onelane/pkg/model"
)

const sseHeartbeat = 15 * time.Second

// handleSSEEvents streams every broadcast event via Server-Sent Events.
// GET /api/v1/sse/events
func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	if !s.beginSession() {
		respondError(w, r, model.NewUnavailableError("server is shutting down"))
		return
	}
	defer s.sessions.Done()

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := sessionID("sse")
	logger := s.logger.With("session_id", id)

	// Frames are handed back to this goroutine so only it writes to w.
	frames := make(chan model.Event, 1)
	peer := hub.NewPeer(id, s.config.PeerBuffer, func(frame any) error {
		ev, ok := frame.(model.Event)
		if !ok {
			return fmt.Errorf("unexpected frame %T", frame)
		}
		select {
		case frames <- ev:
			return nil
		case <-r.Context().Done():
			return r.Context().Err()
		}
	})
	defer func() {
		s.hub.Leave(peer)
		peer.Close()
	}()

	var initial model.Snapshot
	s.scheduler.Attach(func(snap model.Snapshot) {
		s.hub.Join(peer)
		initial = snap
	})
	go peer.Run()

	if err := sendSSEEvent(w, flusher, "init", initial); err != nil {
		logger.Debug("sse client disconnected", "error", err)
		return
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-peer.Done():
			logger.Warn("sse observer dropped")
			return
		case ev := <-frames:
			if err := sendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				logger.Debug("sse client disconnected", "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
