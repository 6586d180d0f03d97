package server

import (
	"net/http"
	"runtime"
	"time"
)

// Version is reported by the health and discovery endpoints.
const Version = "0.1.0"

type healthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	GoVersion    string `json:"go_version"`
	Uptime       string `json:"uptime"`
	Scheduler    string `json:"scheduler"`
	Journal      string `json:"journal"`
	Observers    int    `json:"observers"`
	LastEventSeq uint64 `json:"last_event_seq"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, sched := "healthy", "ok"
	if err := s.scheduler.CheckInvariants(); err != nil {
		s.logger.Error("invariant check failed", "error", err)
		status, sched = "degraded", err.Error()
	}
	journal := "disabled"
	if s.store != nil {
		journal = "enabled"
	}

	respond(w, r, http.StatusOK, healthResponse{
		Status:       status,
		Version:      Version,
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Scheduler:    sched,
		Journal:      journal,
		Observers:    s.hub.Subscribers(),
		LastEventSeq: s.hub.LastSeq(),
	})
}
