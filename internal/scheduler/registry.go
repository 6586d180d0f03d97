package scheduler

import (
	"fmt"

	"github.com/me/onelane/pkg/model"
)

// Registry owns vehicle records together with the id and arrival counters.
// It is not safe for concurrent use; Scheduler serializes access.
type Registry struct {
	vehicles        map[int64]*model.Vehicle
	nextID          int64
	nextArrival     int64
	defaultPriority int
}

// NewRegistry creates an empty registry. defaultPriority is applied to
// registrations that omit a priority.
func NewRegistry(defaultPriority int) *Registry {
	r := &Registry{defaultPriority: defaultPriority}
	r.Clear()
	return r
}

// Create allocates the next id and stores a Waiting vehicle built from spec.
// Trips below 1 are clamped to 1, a missing priority takes the default and a
// missing direction means north.
func (r *Registry) Create(spec model.VehicleSpec) *model.Vehicle {
	id := r.nextID
	r.nextID++

	trips := 1
	if spec.Trips != nil && *spec.Trips > 1 {
		trips = *spec.Trips
	}
	priority := r.defaultPriority
	if spec.Priority != nil {
		priority = *spec.Priority
	}
	direction := spec.Direction
	if direction == "" {
		direction = model.DirectionNorth
	}
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("vehicle-%d", id)
	}

	v := &model.Vehicle{
		ID:             id,
		Name:           name,
		Speed:          spec.Speed,
		WaitTimeHint:   spec.WaitTimeHint,
		Direction:      direction,
		Priority:       priority,
		State:          model.VehicleStateWaiting,
		TripsTotal:     trips,
		TripsCompleted: 0,
		TripsRemaining: trips,
	}
	r.vehicles[id] = v
	return v
}

// NextArrival returns a fresh arrival sequence, strictly greater than every
// value handed out since the last Clear.
func (r *Registry) NextArrival() int64 {
	seq := r.nextArrival
	r.nextArrival++
	return seq
}

// Get returns the stored vehicle or false when it does not exist.
func (r *Registry) Get(id int64) (*model.Vehicle, bool) {
	v, ok := r.vehicles[id]
	return v, ok
}

// Remove deletes the record. Removing an absent id is a no-op.
func (r *Registry) Remove(id int64) {
	delete(r.vehicles, id)
}

// Len returns the number of registered vehicles.
func (r *Registry) Len() int {
	return len(r.vehicles)
}

// All returns every stored vehicle in no particular order.
func (r *Registry) All() []*model.Vehicle {
	out := make([]*model.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, v)
	}
	return out
}

// Clear removes all records and resets both counters to 1.
func (r *Registry) Clear() {
	r.vehicles = make(map[int64]*model.Vehicle)
	r.nextID = 1
	r.nextArrival = 1
}
