package scheduler

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/me/onelane/pkg/model"
)

// Broadcaster receives the domain events of each command. Publish is called
// while the scheduler holds its lock, so implementations must not block.
type Broadcaster interface {
	Publish(events ...model.Event)
}

// Config holds scheduler configuration.
type Config struct {
	DefaultPriority    int
	BridgeLengthMeters float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPriority:    model.DefaultPriority,
		BridgeLengthMeters: 500,
	}
}

// CrossingResult is the outcome of a crossing request. A denial is an
// expected result, not an error.
type CrossingResult struct {
	Granted   bool
	Reason    model.DenialReason
	Message   string
	VehicleID int64
	Vehicle   *model.Vehicle
}

// Response converts the result into the direct reply frame.
func (r CrossingResult) Response() model.CrossingResponse {
	resp := model.CrossingResponse{
		Type:      model.EventCrossingResponse,
		Success:   r.Granted,
		Permitted: r.Granted,
		Message:   r.Message,
		Reason:    r.Reason,
		VehicleID: r.VehicleID,
	}
	if r.Vehicle != nil {
		v := *r.Vehicle
		resp.Vehicle = &v
	}
	return resp
}

// FinishResult is the outcome of a finish-crossing command.
// Finished is false when the vehicle was not the bridge occupant.
type FinishResult struct {
	Finished bool
	Exited   bool
	Vehicle  model.Vehicle
}

// Scheduler arbitrates the bridge. Every command runs under one mutex so
// commands form a single global sequence and invariants hold between any two.
type Scheduler struct {
	mu       sync.Mutex
	registry *Registry
	queue    *Queue
	arbiter  *Arbiter
	config   Config
	events   Broadcaster
	logger   *slog.Logger
}

// New creates a scheduler publishing to events. events may be nil.
func New(cfg Config, events Broadcaster, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		registry: NewRegistry(cfg.DefaultPriority),
		queue:    NewQueue(),
		arbiter:  NewArbiter(),
		config:   cfg,
		events:   events,
		logger:   logger.With("component", "scheduler"),
	}
}

// Register adds a vehicle to the tail of its priority class.
func (s *Scheduler) Register(spec model.VehicleSpec) (model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.registry.Create(spec)
	v.CrossingSeconds = crossingSeconds(s.config.BridgeLengthMeters, v.Speed)
	v.ArrivalSequence = s.registry.NextArrival()
	if err := s.queue.Push(v.ID, v.Priority, v.ArrivalSequence); err != nil {
		s.registry.Remove(v.ID)
		return model.Vehicle{}, fmt.Errorf("enqueue vehicle %d: %w", v.ID, err)
	}

	s.logger.Info("vehicle registered",
		"vehicle_id", v.ID,
		"name", v.Name,
		"priority", v.Priority,
		"direction", v.Direction,
		"trips", v.TripsTotal,
	)
	s.publish(
		model.NewVehicleEvent(model.EventVehicleRegistered, *v),
		model.NewSnapshotEvent(model.EventStateUpdated, s.snapshotLocked()),
	)
	return *v, nil
}

// RequestCrossing grants the bridge to vehicleID when it exists, heads the
// queue and the bridge is free, checked in that order.
func (s *Scheduler) RequestCrossing(vehicleID int64) (CrossingResult, error) {
	return s.RequestCrossingReply(vehicleID, nil)
}

// RequestCrossingReply is RequestCrossing with reply called inside the
// critical section before the grant is broadcast, so a transport can queue
// the direct reply in line with every other command's events.
func (s *Scheduler) RequestCrossingReply(vehicleID int64, reply func(model.CrossingResponse)) (CrossingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.requestCrossingLocked(vehicleID)
	if err != nil {
		return res, err
	}
	if reply != nil {
		reply(res.Response())
	}
	if res.Granted {
		s.publish(model.NewVehicleEvent(model.EventVehicleCrossing, *res.Vehicle))
	}
	return res, nil
}

func (s *Scheduler) requestCrossingLocked(vehicleID int64) (CrossingResult, error) {
	v, ok := s.registry.Get(vehicleID)
	if !ok {
		return s.deny(vehicleID, nil, model.DenialVehicleNotFound,
			fmt.Sprintf("vehicle %d not found", vehicleID)), nil
	}

	if !s.queue.IsFront(vehicleID) {
		msg := "not your turn to cross the bridge"
		if front, ok := s.queue.PeekFront(); ok {
			if fv, ok := s.registry.Get(front); ok {
				msg = fmt.Sprintf("not your turn to cross the bridge; next in line is %s", fv.Name)
			}
		}
		return s.deny(vehicleID, v, model.DenialNotYourTurn, msg), nil
	}

	if occupant, held := s.arbiter.Occupant(); held {
		msg := "bridge is occupied"
		if ov, ok := s.registry.Get(occupant); ok {
			msg = fmt.Sprintf("bridge is occupied by %s", ov.Name)
		}
		return s.deny(vehicleID, v, model.DenialBridgeOccupied, msg), nil
	}

	if !v.State.CanTransitionTo(model.VehicleStateCrossing) {
		return CrossingResult{}, &model.InvalidTransitionError{VehicleID: v.ID, From: v.State, To: model.VehicleStateCrossing}
	}
	// Occupy before popping: it is the only step that can fail.
	if err := s.arbiter.Occupy(vehicleID); err != nil {
		return CrossingResult{}, err
	}
	if _, err := s.queue.PopFront(); err != nil {
		s.arbiter.Reset()
		return CrossingResult{}, fmt.Errorf("pop front for vehicle %d: %w", vehicleID, err)
	}
	v.State = model.VehicleStateCrossing

	s.logger.Info("crossing granted", "vehicle_id", v.ID, "name", v.Name, "direction", v.Direction)

	granted := *v
	return CrossingResult{
		Granted:   true,
		Message:   fmt.Sprintf("%s may cross the bridge", v.Name),
		VehicleID: vehicleID,
		Vehicle:   &granted,
	}, nil
}

// FinishCrossing completes the current trip of the bridge occupant. For any
// other vehicle it is a no-op.
func (s *Scheduler) FinishCrossing(vehicleID int64) (FinishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	occupant, held := s.arbiter.Occupant()
	if !held || occupant != vehicleID {
		s.logger.Debug("finish ignored (not the occupant)", "vehicle_id", vehicleID)
		return FinishResult{}, nil
	}
	v, ok := s.registry.Get(vehicleID)
	if !ok {
		return FinishResult{}, fmt.Errorf("occupant %d missing from registry", vehicleID)
	}
	if v.TripsCompleted >= v.TripsTotal {
		return FinishResult{}, fmt.Errorf("vehicle %d already completed %d trips", v.ID, v.TripsTotal)
	}

	if _, err := s.arbiter.Release(); err != nil {
		return FinishResult{}, fmt.Errorf("release bridge: %w", err)
	}
	v.TripsCompleted++
	v.TripsRemaining = v.TripsTotal - v.TripsCompleted
	v.State = model.VehicleStateWaiting

	var ev model.Event
	exited := v.TripsRemaining == 0
	if exited {
		s.registry.Remove(v.ID)
		v.State = model.VehicleStateRemoved
		ev = model.NewVehicleEvent(model.EventVehicleExited, *v)
		ev.Removed = true
		s.logger.Info("vehicle exited", "vehicle_id", v.ID, "name", v.Name, "trips", v.TripsTotal)
	} else {
		v.Direction = v.Direction.Opposite()
		v.ArrivalSequence = s.registry.NextArrival()
		if err := s.queue.Push(v.ID, v.Priority, v.ArrivalSequence); err != nil {
			return FinishResult{}, fmt.Errorf("requeue vehicle %d: %w", v.ID, err)
		}
		ev = model.NewVehicleEvent(model.EventVehicleReturned, *v)
		s.logger.Info("vehicle returned to queue",
			"vehicle_id", v.ID,
			"name", v.Name,
			"direction", v.Direction,
			"trips_remaining", v.TripsRemaining,
		)
	}

	s.publish(ev, model.NewSnapshotEvent(model.EventStateUpdated, s.snapshotLocked()))
	return FinishResult{Finished: true, Exited: exited, Vehicle: *v}, nil
}

// Reset drops every vehicle, frees the bridge and restarts the counters.
// It returns the resulting empty snapshot.
func (s *Scheduler) Reset() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Clear()
	s.queue.Clear()
	s.arbiter.Reset()

	s.logger.Info("system reset")
	snap := s.snapshotLocked()
	s.publish(
		model.Event{Type: model.EventSystemReset},
		model.NewSnapshotEvent(model.EventStateUpdated, snap),
	)
	return snap
}

// Snapshot returns a consistent view of the bridge and the waiting queue.
func (s *Scheduler) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Attach runs fn with the current snapshot while holding the scheduler lock,
// so fn can subscribe an observer without missing or repeating events.
// fn must not block.
func (s *Scheduler) Attach(fn func(model.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snapshotLocked())
}

// Get returns a copy of one registered vehicle.
func (s *Scheduler) Get(vehicleID int64) (model.Vehicle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(vehicleID)
	if !ok {
		return model.Vehicle{}, false
	}
	return *v, true
}

// CheckInvariants verifies the structural invariants of the scheduler state.
func (s *Scheduler) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	occupant, held := s.arbiter.Occupant()
	if held {
		v, ok := s.registry.Get(occupant)
		if !ok {
			return fmt.Errorf("occupant %d not registered", occupant)
		}
		if v.State != model.VehicleStateCrossing {
			return fmt.Errorf("occupant %d in state %s", occupant, v.State)
		}
	}

	crossing := 0
	for _, v := range s.registry.All() {
		switch v.State {
		case model.VehicleStateCrossing:
			crossing++
			if !held || occupant != v.ID {
				return fmt.Errorf("vehicle %d crossing without holding the bridge", v.ID)
			}
			if s.queue.Contains(v.ID) {
				return fmt.Errorf("crossing vehicle %d still queued", v.ID)
			}
		case model.VehicleStateWaiting:
			if !s.queue.Contains(v.ID) {
				return fmt.Errorf("waiting vehicle %d not queued", v.ID)
			}
		default:
			return fmt.Errorf("vehicle %d in unexpected state %s", v.ID, v.State)
		}
		if v.TripsCompleted < 0 || v.TripsCompleted >= v.TripsTotal {
			return fmt.Errorf("vehicle %d has %d/%d trips", v.ID, v.TripsCompleted, v.TripsTotal)
		}
		if v.TripsRemaining != v.TripsTotal-v.TripsCompleted {
			return fmt.Errorf("vehicle %d trips remaining %d inconsistent", v.ID, v.TripsRemaining)
		}
	}
	if crossing > 1 {
		return fmt.Errorf("%d vehicles crossing", crossing)
	}

	if s.queue.Len() != len(s.queue.members) {
		return fmt.Errorf("queue has duplicate entries")
	}
	for _, e := range s.queue.Entries() {
		v, ok := s.registry.Get(e.VehicleID)
		if !ok {
			return fmt.Errorf("queued vehicle %d not registered", e.VehicleID)
		}
		if v.ArrivalSequence != e.ArrivalSequence || v.Priority != e.Priority {
			return fmt.Errorf("queue entry for vehicle %d out of date", e.VehicleID)
		}
	}
	return nil
}

func (s *Scheduler) snapshotLocked() model.Snapshot {
	snap := model.EmptySnapshot()
	if occupant, held := s.arbiter.Occupant(); held {
		if v, ok := s.registry.Get(occupant); ok {
			snap.Crossing = append(snap.Crossing, *v)
		}
	}
	for _, e := range s.queue.Entries() {
		if v, ok := s.registry.Get(e.VehicleID); ok {
			snap.Waiting = append(snap.Waiting, *v)
		}
	}
	snap.TotalVehicles = s.registry.Len()
	return snap
}

func (s *Scheduler) deny(vehicleID int64, v *model.Vehicle, reason model.DenialReason, msg string) CrossingResult {
	s.logger.Debug("crossing denied", "vehicle_id", vehicleID, "reason", reason, "message", msg)
	res := CrossingResult{
		Reason:    reason,
		Message:   msg,
		VehicleID: vehicleID,
	}
	if v != nil {
		cp := *v
		res.Vehicle = &cp
	}
	return res
}

func (s *Scheduler) publish(events ...model.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(events...)
}

// crossingSeconds estimates the time to cross at speed km/h. It is metadata
// only and never drives scheduling.
func crossingSeconds(lengthMeters, speedKmh float64) float64 {
	if speedKmh <= 0 || lengthMeters <= 0 {
		return 0
	}
	secs := lengthMeters / (speedKmh * 1000 / 3600)
	return math.Round(secs*100) / 100
}
