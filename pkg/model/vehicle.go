package model

// DefaultPriority is applied when a registration omits a priority.
// Lower values are served first; no meaning is attached to specific numbers.
const DefaultPriority = 3

// Vehicle is one actor that needs to cross the bridge one or more times.
type Vehicle struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Speed           float64      `json:"speed"`
	WaitTimeHint    float64      `json:"waitTimeHint"`
	CrossingSeconds float64      `json:"crossingSeconds"`
	Direction       Direction    `json:"direction"`
	Priority        int          `json:"priority"`
	ArrivalSequence int64        `json:"arrivalSequence"`
	State           VehicleState `json:"state"`
	TripsTotal      int          `json:"tripsTotal"`
	TripsCompleted  int          `json:"tripsCompleted"`
	TripsRemaining  int          `json:"tripsRemaining"`
}

// VehicleSpec is the caller-supplied registration payload.
// Nil pointers mean "not specified" and receive defaults.
type VehicleSpec struct {
	Name         string    `json:"name"`
	Speed        float64   `json:"speed"`
	WaitTimeHint float64   `json:"waitTimeHint"`
	Direction    Direction `json:"direction,omitempty"`
	Priority     *int      `json:"priority,omitempty"`
	Trips        *int      `json:"trips,omitempty"`
}

// Snapshot is a consistent point-in-time view of the bridge.
type Snapshot struct {
	Crossing      []Vehicle `json:"crossing"`
	Waiting       []Vehicle `json:"waiting"`
	TotalVehicles int       `json:"totalVehicles"`
}

// EmptySnapshot returns a snapshot with non-nil empty lists so it encodes as [].
func EmptySnapshot() Snapshot {
	return Snapshot{Crossing: []Vehicle{}, Waiting: []Vehicle{}}
}

// Occupant returns the vehicle on the bridge, if any.
func (s Snapshot) Occupant() (Vehicle, bool) {
	if len(s.Crossing) == 0 {
		return Vehicle{}, false
	}
	return s.Crossing[0], true
}

// Validate reports fields that cannot describe a vehicle.
func (s VehicleSpec) Validate() []FieldError {
	var errs []FieldError
	if s.Speed < 0 {
		errs = append(errs, FieldError{Field: "speed", Message: "must not be negative"})
	}
	if s.WaitTimeHint < 0 {
		errs = append(errs, FieldError{Field: "waitTimeHint", Message: "must not be negative"})
	}
	if len(s.Name) > 128 {
		errs = append(errs, FieldError{Field: "name", Message: "must be at most 128 characters"})
	}
	return errs
}
