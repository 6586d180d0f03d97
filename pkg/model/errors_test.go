package model

import (
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := NewVehicleNotFoundError(12)
	want := "NOT_FOUND: vehicle 12 not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{ErrInternal, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("invalid vehicle",
		FieldError{Field: "vehicle.direction", Message: "unknown direction"},
		FieldError{Field: "vehicle.trips", Message: "expected int"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestNewUnavailableError(t *testing.T) {
	err := NewUnavailableError("event journal is disabled")
	if err.Code != ErrUnavailable || err.Message != "event journal is disabled" {
		t.Errorf("err = %+v", err)
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{
		VehicleID: 3,
		From:      VehicleStateWaiting,
		To:        VehicleStateRemoved,
	}
	want := "invalid vehicle state transition: waiting → removed (vehicle 3)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
