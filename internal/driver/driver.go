// Package driver simulates traffic against a running bridge server. Each
// vehicle retries its crossing request after its wait hint and releases the
// bridge once its crossing time has elapsed, the way a real client would.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/me/onelane/pkg/model"
)

// ErrVehicleGone is returned when the server no longer knows a vehicle,
// typically after a reset.
var ErrVehicleGone = errors.New("vehicle no longer registered")

// FinishResult mirrors the finish-crossing reply.
type FinishResult struct {
	Finished bool           `json:"finished"`
	Exited   bool           `json:"exited"`
	Vehicle  *model.Vehicle `json:"vehicle"`
}

// Bridge is the set of commands the driver issues. *Client implements it.
type Bridge interface {
	Register(ctx context.Context, spec model.VehicleSpec) (model.Vehicle, error)
	RequestCrossing(ctx context.Context, vehicleID int64) (model.CrossingResponse, error)
	FinishCrossing(ctx context.Context, vehicleID int64) (FinishResult, error)
}

// Config holds simulation settings.
type Config struct {
	TimeScale   float64       // Multiplier applied to every wait; 1 is real time
	RetryJitter time.Duration // Upper bound of random delay added to each retry
	Seed        uint64        // Random seed; 0 picks one from the clock
}

// Summary counts what happened during a run.
type Summary struct {
	Registered int
	Crossings  int
	Denials    int
	Exited     int
}

// Driver runs simulated vehicles until they complete their trips.
type Driver struct {
	bridge Bridge
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	summary Summary
}

// New creates a Driver from configuration.
func New(bridge Bridge, cfg Config, logger *slog.Logger) *Driver {
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}
	if cfg.RetryJitter < 0 {
		cfg.RetryJitter = 0
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	return &Driver{
		bridge: bridge,
		cfg:    cfg,
		logger: logger.With("component", "driver"),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// RandomSpecs builds n vehicles with priorities 1-5, 1-4 trips, speeds of
// 30-80 km/h and wait hints of 1-3 seconds.
func (d *Driver) RandomSpecs(n int) []model.VehicleSpec {
	d.mu.Lock()
	defer d.mu.Unlock()

	specs := make([]model.VehicleSpec, n)
	for i := range specs {
		priority := d.rng.IntN(5) + 1
		trips := d.rng.IntN(4) + 1
		dir := model.DirectionNorth
		if d.rng.IntN(2) == 1 {
			dir = model.DirectionSouth
		}
		specs[i] = model.VehicleSpec{
			Name:         fmt.Sprintf("car-%04d-p%d-%dt", d.rng.IntN(9000)+1000, priority, trips),
			Speed:        30 + d.rng.Float64()*50,
			WaitTimeHint: 1 + d.rng.Float64()*2,
			Direction:    dir,
			Priority:     &priority,
			Trips:        &trips,
		}
	}
	return specs
}

// Run registers every spec and drives the vehicles concurrently. It returns
// when all vehicles have exited, ctx is cancelled or a vehicle fails.
func (d *Driver) Run(ctx context.Context, specs []model.VehicleSpec) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, spec := range specs {
		v, err := d.bridge.Register(ctx, spec)
		if err != nil {
			fail(fmt.Errorf("register %q: %w", spec.Name, err))
			break
		}
		d.count(func(s *Summary) { s.Registered++ })
		d.logger.Info("vehicle registered", "vehicle_id", v.ID, "name", v.Name, "priority", v.Priority, "trips", v.TripsTotal)

		wg.Add(1)
		go func(v model.Vehicle) {
			defer wg.Done()
			if err := d.drive(ctx, v); err != nil && !errors.Is(err, context.Canceled) {
				fail(fmt.Errorf("vehicle %d: %w", v.ID, err))
			}
		}(v)
	}
	wg.Wait()

	d.mu.Lock()
	summary := d.summary
	d.mu.Unlock()

	if firstErr != nil {
		return summary, firstErr
	}
	return summary, ctx.Err()
}

// drive runs one vehicle's request/cross/finish cycle until it exits.
func (d *Driver) drive(ctx context.Context, v model.Vehicle) error {
	logger := d.logger.With("vehicle_id", v.ID)
	for {
		resp, err := d.bridge.RequestCrossing(ctx, v.ID)
		if err != nil {
			return err
		}
		if !resp.Permitted {
			if resp.Reason == model.DenialVehicleNotFound {
				return ErrVehicleGone
			}
			d.count(func(s *Summary) { s.Denials++ })
			logger.Debug("crossing denied", "reason", resp.Reason)
			if err := d.sleep(ctx, d.retryDelay(v)); err != nil {
				return err
			}
			continue
		}

		d.count(func(s *Summary) { s.Crossings++ })
		logger.Info("crossing", "name", v.Name, "seconds", v.CrossingSeconds)
		if err := d.sleep(ctx, d.scaled(v.CrossingSeconds)); err != nil {
			return err
		}

		res, err := d.bridge.FinishCrossing(ctx, v.ID)
		if err != nil {
			return err
		}
		if !res.Finished {
			return ErrVehicleGone
		}
		if res.Exited {
			d.count(func(s *Summary) { s.Exited++ })
			logger.Info("vehicle exited", "name", v.Name)
			return nil
		}
		if res.Vehicle != nil {
			v = *res.Vehicle
		}
	}
}

func (d *Driver) retryDelay(v model.Vehicle) time.Duration {
	d.mu.Lock()
	jitter := time.Duration(d.rng.Int64N(int64(d.cfg.RetryJitter) + 1))
	d.mu.Unlock()
	return d.scaled(v.WaitTimeHint) + time.Duration(float64(jitter)*d.cfg.TimeScale)
}

func (d *Driver) scaled(seconds float64) time.Duration {
	return time.Duration(seconds * d.cfg.TimeScale * float64(time.Second))
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *Driver) count(fn func(*Summary)) {
	d.mu.Lock()
	fn(&d.summary)
	d.mu.Unlock()
}
