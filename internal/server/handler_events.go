package server

import (
	"net/http"

	"github.com/me/onelane/pkg/model"
)

// handleListEvents pages through the event journal, newest first.
// GET /api/v1/events?limit=&offset=&type=
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, model.NewUnavailableError("event journal is disabled"))
		return
	}

	opts, errs := model.ParseListOptions(r.URL.Query())
	if len(errs) > 0 {
		respondError(w, r, model.NewValidationError("invalid query", errs...))
		return
	}

	entries, total, err := s.store.ListEvents(r.Context(), opts)
	if err != nil {
		s.logger.Error("list events", "error", err)
		respondError(w, r, model.NewInternalError("failed to list events"))
		return
	}
	if entries == nil {
		entries = []*model.JournalEntry{}
	}
	respondPage(w, r, entries, model.NewPagination(total, opts))
}
