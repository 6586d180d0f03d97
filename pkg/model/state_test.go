package model

import (
	"encoding/json"
	"testing"
)

func TestVehicleState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    VehicleState
		terminal bool
	}{
		{VehicleStateWaiting, false},
		{VehicleStateCrossing, false},
		{VehicleStateRemoved, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("VehicleState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestVehicleState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  VehicleState
		to    VehicleState
		valid bool
	}{
		{VehicleStateWaiting, VehicleStateCrossing, true},
		{VehicleStateCrossing, VehicleStateWaiting, true},
		{VehicleStateCrossing, VehicleStateRemoved, true},

		{VehicleStateWaiting, VehicleStateRemoved, false},
		{VehicleStateWaiting, VehicleStateWaiting, false},
		{VehicleStateCrossing, VehicleStateCrossing, false},
		{VehicleStateRemoved, VehicleStateWaiting, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input   string
		want    Direction
		wantErr bool
	}{
		{"", DirectionNorth, false},
		{"N", DirectionNorth, false},
		{"north", DirectionNorth, false},
		{"NORTH", DirectionNorth, false},
		{"s", DirectionSouth, false},
		{"South", DirectionSouth, false},
		{"east", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDirection(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDirection_Opposite(t *testing.T) {
	if got := DirectionNorth.Opposite(); got != DirectionSouth {
		t.Errorf("N.Opposite() = %q, want S", got)
	}
	if got := DirectionSouth.Opposite(); got != DirectionNorth {
		t.Errorf("S.Opposite() = %q, want N", got)
	}
}

func TestDirection_UnmarshalJSON(t *testing.T) {
	var spec VehicleSpec
	if err := json.Unmarshal([]byte(`{"name":"a","direction":"south"}`), &spec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if spec.Direction != DirectionSouth {
		t.Errorf("Direction = %q, want S", spec.Direction)
	}

	if err := json.Unmarshal([]byte(`{"direction":"west"}`), &spec); err == nil {
		t.Error("expected error for unknown direction")
	}
	if err := json.Unmarshal([]byte(`{"direction":7}`), &spec); err == nil {
		t.Error("expected error for non-string direction")
	}
}
