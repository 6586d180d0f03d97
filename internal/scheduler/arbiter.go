package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrBridgeOccupied is returned by Occupy when the bridge is held.
	ErrBridgeOccupied = errors.New("bridge is occupied")
	// ErrBridgeFree is returned by Release when nobody holds the bridge.
	ErrBridgeFree = errors.New("bridge is free")
)

// Arbiter holds the identity of the vehicle on the bridge, if any.
type Arbiter struct {
	occupant int64
	occupied bool
}

// NewArbiter returns a free bridge.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// IsFree reports whether no vehicle holds the bridge.
func (a *Arbiter) IsFree() bool {
	return !a.occupied
}

// Occupant returns the holder of the bridge.
func (a *Arbiter) Occupant() (int64, bool) {
	return a.occupant, a.occupied
}

// Occupy grants the bridge to vehicleID. It fails without mutating when the
// bridge is already held.
func (a *Arbiter) Occupy(vehicleID int64) error {
	if a.occupied {
		return fmt.Errorf("occupy for vehicle %d: %w (held by %d)", vehicleID, ErrBridgeOccupied, a.occupant)
	}
	a.occupant = vehicleID
	a.occupied = true
	return nil
}

// Release frees the bridge and returns the vehicle that vacated it.
func (a *Arbiter) Release() (int64, error) {
	if !a.occupied {
		return 0, ErrBridgeFree
	}
	id := a.occupant
	a.occupant = 0
	a.occupied = false
	return id, nil
}

// Reset forces the bridge free.
func (a *Arbiter) Reset() {
	a.occupant = 0
	a.occupied = false
}
