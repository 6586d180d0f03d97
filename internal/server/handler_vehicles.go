package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/onelane/pkg/model"
)

// finishResponse is the REST reply to finish-crossing.
type finishResponse struct {
	Finished bool           `json:"finished"`
	Exited   bool           `json:"exited,omitempty"`
	Vehicle  *model.Vehicle `json:"vehicle,omitempty"`
}

// GET /api/v1/state
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, s.scheduler.Snapshot())
}

// POST /api/v1/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, s.scheduler.Reset())
}

// POST /api/v1/vehicles
func (s *Server) handleRegisterVehicle(w http.ResponseWriter, r *http.Request) {
	var spec model.VehicleSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, r, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}
	if errs := spec.Validate(); len(errs) > 0 {
		respondError(w, r, model.NewValidationError("invalid vehicle", errs...))
		return
	}

	v, err := s.scheduler.Register(spec)
	if err != nil {
		s.logger.Error("register vehicle", "error", err)
		respondError(w, r, model.NewInternalError("failed to register vehicle"))
		return
	}
	respond(w, r, http.StatusCreated, v)
}

// GET /api/v1/vehicles/{id}
func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := vehicleIDParam(w, r)
	if !ok {
		return
	}
	v, found := s.scheduler.Get(id)
	if !found {
		respondError(w, r, model.NewVehicleNotFoundError(id))
		return
	}
	respond(w, r, http.StatusOK, v)
}

// POST /api/v1/vehicles/{id}/request-crossing
// Denials are reported in the payload with status 200.
func (s *Server) handleRequestCrossing(w http.ResponseWriter, r *http.Request) {
	id, ok := vehicleIDParam(w, r)
	if !ok {
		return
	}
	res, err := s.scheduler.RequestCrossing(id)
	if err != nil {
		s.logger.Error("request crossing", "vehicle_id", id, "error", err)
		respondError(w, r, model.NewInternalError("failed to process crossing request"))
		return
	}
	respond(w, r, http.StatusOK, res.Response())
}

// POST /api/v1/vehicles/{id}/finish-crossing
func (s *Server) handleFinishCrossing(w http.ResponseWriter, r *http.Request) {
	id, ok := vehicleIDParam(w, r)
	if !ok {
		return
	}
	res, err := s.scheduler.FinishCrossing(id)
	if err != nil {
		s.logger.Error("finish crossing", "vehicle_id", id, "error", err)
		respondError(w, r, model.NewInternalError("failed to finish crossing"))
		return
	}
	out := finishResponse{Finished: res.Finished, Exited: res.Exited}
	if res.Finished {
		v := res.Vehicle
		out.Vehicle = &v
	}
	respond(w, r, http.StatusOK, out)
}

// vehicleIDParam parses the {id} route parameter, writing a 400 on failure.
func vehicleIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, r, model.NewValidationError("invalid vehicle id", model.FieldError{Field: "id", Message: "must be an integer"}))
		return 0, false
	}
	return id, true
}
