package driver

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me/onelane/internal/config"
	"github.com/me/onelane/internal/hub"
	"github.com/me/onelane/internal/scheduler"
	"github.com/me/onelane/internal/server"
	"github.com/me/onelane/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startServer runs a real bridge server and returns its URL and scheduler.
func startServer(t *testing.T) (string, *scheduler.Scheduler) {
	t.Helper()
	logger := testLogger()
	h := hub.New(logger)
	sched := scheduler.New(scheduler.DefaultConfig(), h, logger)
	srv := server.New(config.DefaultServerConfig(), sched, h, logger)

	ctx, cancel := context.WithCancel(context.Background())
	srv.StartHub(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		h.Stop()
	})
	return ts.URL, sched
}

func intPtr(n int) *int { return &n }

func TestRun_AllVehiclesExit(t *testing.T) {
	url, sched := startServer(t)
	d := New(NewClient(url), Config{TimeScale: 0.001, Seed: 42}, testLogger())

	specs := []model.VehicleSpec{
		{Name: "a", Speed: 60, WaitTimeHint: 1, Trips: intPtr(2)},
		{Name: "b", Speed: 40, WaitTimeHint: 2, Direction: model.DirectionSouth, Priority: intPtr(1)},
		{Name: "c", Speed: 80, WaitTimeHint: 1, Trips: intPtr(3), Priority: intPtr(5)},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary, err := d.Run(ctx, specs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Registered != 3 || summary.Exited != 3 {
		t.Errorf("summary = %+v, want 3 registered and exited", summary)
	}
	if summary.Crossings != 6 {
		t.Errorf("Crossings = %d, want 6", summary.Crossings)
	}

	snap := sched.Snapshot()
	if snap.TotalVehicles != 0 || len(snap.Waiting) != 0 || len(snap.Crossing) != 0 {
		t.Errorf("snapshot after run = %+v, want empty", snap)
	}
	if err := sched.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestRun_RandomSpecs(t *testing.T) {
	url, _ := startServer(t)
	d := New(NewClient(url), Config{TimeScale: 0.0005, Seed: 7}, testLogger())

	specs := d.RandomSpecs(5)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary, err := d.Run(ctx, specs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantCrossings := 0
	for _, s := range specs {
		wantCrossings += *s.Trips
	}
	if summary.Crossings != wantCrossings || summary.Exited != 5 {
		t.Errorf("summary = %+v, want %d crossings and 5 exits", summary, wantCrossings)
	}
}

func TestRandomSpecs_Ranges(t *testing.T) {
	d := New(nil, Config{Seed: 1}, testLogger())
	for _, s := range d.RandomSpecs(50) {
		if *s.Priority < 1 || *s.Priority > 5 {
			t.Errorf("priority %d out of range", *s.Priority)
		}
		if *s.Trips < 1 || *s.Trips > 4 {
			t.Errorf("trips %d out of range", *s.Trips)
		}
		if s.Speed < 30 || s.Speed > 80 {
			t.Errorf("speed %v out of range", s.Speed)
		}
		if s.WaitTimeHint < 1 || s.WaitTimeHint > 3 {
			t.Errorf("wait %v out of range", s.WaitTimeHint)
		}
		if len(s.Validate()) != 0 {
			t.Errorf("generated spec invalid: %+v", s)
		}
	}
}

// resetBridge grants the first request and then forgets the vehicle.
type resetBridge struct {
	requests int
}

func (b *resetBridge) Register(_ context.Context, spec model.VehicleSpec) (model.Vehicle, error) {
	return model.Vehicle{ID: 1, Name: spec.Name, TripsTotal: 2, TripsRemaining: 2}, nil
}

func (b *resetBridge) RequestCrossing(_ context.Context, id int64) (model.CrossingResponse, error) {
	b.requests++
	if b.requests == 1 {
		return model.CrossingResponse{Success: true, Permitted: true, VehicleID: id}, nil
	}
	return model.CrossingResponse{Reason: model.DenialVehicleNotFound, VehicleID: id}, nil
}

func (b *resetBridge) FinishCrossing(_ context.Context, _ int64) (FinishResult, error) {
	return FinishResult{Finished: true, Vehicle: &model.Vehicle{ID: 1, TripsRemaining: 1}}, nil
}

func TestRun_VehicleGone(t *testing.T) {
	d := New(&resetBridge{}, Config{TimeScale: 0.001, Seed: 3}, testLogger())
	summary, err := d.Run(context.Background(), []model.VehicleSpec{{Name: "x"}})
	if !errors.Is(err, ErrVehicleGone) {
		t.Fatalf("err = %v, want ErrVehicleGone", err)
	}
	if summary.Crossings != 1 {
		t.Errorf("Crossings = %d, want 1", summary.Crossings)
	}
}

func TestRun_Cancelled(t *testing.T) {
	url, _ := startServer(t)
	d := New(NewClient(url), Config{Seed: 9}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// Real-time waits of 10s cannot finish before the deadline.
	_, err := d.Run(ctx, []model.VehicleSpec{
		{Name: "slow", Speed: 1, WaitTimeHint: 10},
		{Name: "blocked", WaitTimeHint: 10},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
