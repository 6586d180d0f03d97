package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VehicleState represents the lifecycle state of a Vehicle.
// A vehicle absent from the registry is considered removed.
type VehicleState string

const (
	VehicleStateWaiting  VehicleState = "waiting"
	VehicleStateCrossing VehicleState = "crossing"
	VehicleStateRemoved  VehicleState = "removed"
)

// String returns the string representation of the vehicle state.
func (s VehicleState) String() string {
	return string(s)
}

// IsTerminal returns true if the vehicle has left the system.
func (s VehicleState) IsTerminal() bool {
	return s == VehicleStateRemoved
}

// ValidVehicleTransitions defines the allowed state transitions for Vehicles.
var ValidVehicleTransitions = map[VehicleState][]VehicleState{
	VehicleStateWaiting:  {VehicleStateCrossing},
	VehicleStateCrossing: {VehicleStateWaiting, VehicleStateRemoved},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s VehicleState) CanTransitionTo(next VehicleState) bool {
	for _, allowed := range ValidVehicleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Direction is the heading of a vehicle on the bridge.
type Direction string

const (
	DirectionNorth Direction = "N"
	DirectionSouth Direction = "S"
)

// ParseDirection accepts "N", "S", "north" and "south" in any case.
// The empty string yields DirectionNorth.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "north":
		return DirectionNorth, nil
	case "s", "south":
		return DirectionSouth, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Opposite returns the reverse heading.
func (d Direction) Opposite() Direction {
	if d == DirectionSouth {
		return DirectionNorth
	}
	return DirectionSouth
}

// Label returns a human-readable description of the heading.
func (d Direction) Label() string {
	if d == DirectionSouth {
		return "south to north"
	}
	return "north to south"
}

// UnmarshalJSON normalizes the accepted spellings and rejects anything else.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("direction: %w", err)
	}
	parsed, err := ParseDirection(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
