package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/me/onelane/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// sessionID generates a unique websocket/SSE session identifier.
func sessionID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// respond writes data in a success envelope.
func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, status, model.OK(RequestIDFromContext(r.Context()), data))
}

// respondPage writes one page of a list with its pagination block.
func respondPage(w http.ResponseWriter, r *http.Request, data any, pg *model.Pagination) {
	resp := model.OK(RequestIDFromContext(r.Context()), data)
	resp.Pagination = pg
	writeEnvelope(w, http.StatusOK, resp)
}

// respondError writes apiErr with the status its code maps to.
func respondError(w http.ResponseWriter, r *http.Request, apiErr *model.APIError) {
	writeEnvelope(w, apiErr.Code.HTTPStatus(), model.Failed(RequestIDFromContext(r.Context()), apiErr))
}

func writeEnvelope(w http.ResponseWriter, status int, resp model.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
