package model

import "time"

// EventType identifies a frame exchanged with observers.
type EventType string

// Outbound frame types.
const (
	EventInitialState      EventType = "initial_state"
	EventVehicleRegistered EventType = "vehicle_registered"
	EventCrossingResponse  EventType = "crossing_response"
	EventVehicleCrossing   EventType = "vehicle_crossing"
	EventVehicleReturned   EventType = "vehicle_returned_to_queue"
	EventVehicleExited     EventType = "vehicle_exited"
	EventStateUpdated      EventType = "state_updated"
	EventSystemReset       EventType = "system_reset"
	EventError             EventType = "error"
)

// Broadcast reports whether events of type t are fanned out to every
// observer, and so recorded in the journal.
func (t EventType) Broadcast() bool {
	switch t {
	case EventVehicleRegistered, EventVehicleCrossing, EventVehicleReturned,
		EventVehicleExited, EventStateUpdated, EventSystemReset:
		return true
	}
	return false
}

// Inbound command types.
const (
	CommandRegisterVehicle = "register_vehicle"
	CommandRequestCrossing = "request_crossing"
	CommandFinishCrossing  = "finish_crossing"
	CommandResetSystem     = "reset_system"
)

// Event is a domain event fanned out to every observer.
// Seq is assigned by the broadcaster and is strictly increasing per process.
type Event struct {
	Type     EventType `json:"type"`
	Seq      uint64    `json:"seq,omitempty"`
	Vehicle  *Vehicle  `json:"vehicle,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Removed  bool      `json:"removed,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// VehicleID returns the id of the vehicle carried by the event, or 0.
func (e Event) VehicleID() int64 {
	if e.Vehicle == nil {
		return 0
	}
	return e.Vehicle.ID
}

// NewVehicleEvent builds an event carrying a copy of v.
func NewVehicleEvent(t EventType, v Vehicle) Event {
	return Event{Type: t, Vehicle: &v}
}

// NewSnapshotEvent builds an event carrying a copy of s.
func NewSnapshotEvent(t EventType, s Snapshot) Event {
	return Event{Type: t, Snapshot: &s}
}

// NewErrorEvent builds a direct error frame.
func NewErrorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg}
}

// DenialReason classifies a refused crossing request.
type DenialReason string

const (
	DenialVehicleNotFound DenialReason = "VEHICLE_NOT_FOUND"
	DenialNotYourTurn     DenialReason = "NOT_YOUR_TURN"
	DenialBridgeOccupied  DenialReason = "BRIDGE_OCCUPIED"
)

// CrossingResponse is the direct reply to a crossing request.
type CrossingResponse struct {
	Type      EventType    `json:"type"`
	Success   bool         `json:"success"`
	Permitted bool         `json:"permitted"`
	Message   string       `json:"message"`
	Reason    DenialReason `json:"reason,omitempty"`
	Vehicle   *Vehicle     `json:"vehicle,omitempty"`
	VehicleID int64        `json:"vehicleId"`
}

// JournalEntry is one persisted broadcast event.
type JournalEntry struct {
	ID        int64     `json:"id"`
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	VehicleID int64     `json:"vehicle_id,omitempty"`
	Payload   Event     `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
