package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/onelane/internal/config"
	"github.com/me/onelane/internal/hub"
	"github.com/me/onelane/internal/scheduler"
	"github.com/me/onelane/pkg/model"
	"golang.org/x/net/websocket"
)

// wsTestFrame decodes both broadcast events and direct replies.
type wsTestFrame struct {
	Type      model.EventType    `json:"type"`
	Seq       uint64             `json:"seq"`
	Vehicle   *model.Vehicle     `json:"vehicle"`
	Snapshot  *model.Snapshot    `json:"snapshot"`
	Removed   bool               `json:"removed"`
	Message   string             `json:"message"`
	Success   bool               `json:"success"`
	Permitted bool               `json:"permitted"`
	Reason    model.DenialReason `json:"reason"`
	VehicleID int64              `json:"vehicleId"`
}

func startWSServer(t *testing.T, cfg config.ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	srv := testServerWithConfig(t, cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", ts.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// dialObserver connects and consumes the initial_state frame.
func dialObserver(t *testing.T, ts *httptest.Server) (*websocket.Conn, model.Snapshot) {
	t.Helper()
	conn := dialWS(t, ts)
	got := readFrame(t, conn)
	if got.Type != model.EventInitialState {
		t.Fatalf("first frame type = %q, want %q", got.Type, model.EventInitialState)
	}
	if got.Snapshot == nil {
		t.Fatal("initial_state without snapshot")
	}
	return conn, *got.Snapshot
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := websocket.JSON.Send(conn, frame); err != nil {
		t.Fatalf("send frame: %v", err)
	}
}

func writeRaw(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := websocket.Message.Send(conn, raw); err != nil {
		t.Fatalf("send raw frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsTestFrame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got wsTestFrame
	if err := websocket.JSON.Receive(conn, &got); err != nil {
		t.Fatalf("receive server frame: %v", err)
	}
	return got
}

// readFrames reads exactly n frames.
func readFrames(t *testing.T, conn *websocket.Conn, n int) []wsTestFrame {
	t.Helper()
	frames := make([]wsTestFrame, 0, n)
	for range n {
		frames = append(frames, readFrame(t, conn))
	}
	return frames
}

func frameTypes(frames []wsTestFrame) []model.EventType {
	types := make([]model.EventType, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	return types
}

func findFrame(frames []wsTestFrame, typ model.EventType) (wsTestFrame, bool) {
	for _, f := range frames {
		if f.Type == typ {
			return f, true
		}
	}
	return wsTestFrame{}, false
}

func TestWebSocketInitialState(t *testing.T) {
	srv, ts := startWSServer(t, config.DefaultServerConfig())
	if _, err := srv.scheduler.Register(model.VehicleSpec{Name: "early"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, snap := dialObserver(t, ts)
	if snap.TotalVehicles != 1 || len(snap.Waiting) != 1 || snap.Waiting[0].Name != "early" {
		t.Errorf("initial snapshot = %+v, want one waiting vehicle", snap)
	}
}

func TestWebSocketRegisterBroadcastsToEveryObserver(t *testing.T) {
	_, ts := startWSServer(t, config.DefaultServerConfig())
	a, _ := dialObserver(t, ts)
	b, _ := dialObserver(t, ts)

	writeFrame(t, a, map[string]any{
		"type":    "register_vehicle",
		"vehicle": map[string]any{"name": "bus", "speed": 30, "waitTimeHint": 1, "priority": 1},
	})

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		frames := readFrames(t, conn, 2)
		types := frameTypes(frames)
		if types[0] != model.EventVehicleRegistered || types[1] != model.EventStateUpdated {
			t.Errorf("%s: frames = %v, want registered then state_updated", name, types)
			continue
		}
		if frames[0].Vehicle == nil || frames[0].Vehicle.Name != "bus" || frames[0].Vehicle.Priority != 1 {
			t.Errorf("%s: registered vehicle = %+v", name, frames[0].Vehicle)
		}
		if frames[1].Seq <= frames[0].Seq {
			t.Errorf("%s: seq not increasing: %d then %d", name, frames[0].Seq, frames[1].Seq)
		}
	}
}

func TestWebSocketCrossingRoundTrip(t *testing.T) {
	_, ts := startWSServer(t, config.DefaultServerConfig())
	driver, _ := dialObserver(t, ts)
	watcher, _ := dialObserver(t, ts)

	writeFrame(t, driver, map[string]any{
		"type":    "register_vehicle",
		"vehicle": map[string]any{"name": "van", "trips": 2},
	})
	readFrames(t, driver, 2)
	readFrames(t, watcher, 2)

	writeFrame(t, driver, map[string]any{"type": "request_crossing", "vehicleId": 1})
	// The direct reply and the broadcast travel separately.
	frames := readFrames(t, driver, 2)
	resp, ok := findFrame(frames, model.EventCrossingResponse)
	if !ok {
		t.Fatalf("frames = %v, want a crossing_response", frameTypes(frames))
	}
	if !resp.Success || !resp.Permitted || resp.VehicleID != 1 {
		t.Errorf("crossing_response = %+v, want granted for vehicle 1", resp)
	}
	if _, ok := findFrame(frames, model.EventVehicleCrossing); !ok {
		t.Errorf("frames = %v, want vehicle_crossing", frameTypes(frames))
	}
	if got := readFrame(t, watcher); got.Type != model.EventVehicleCrossing {
		t.Errorf("watcher frame = %q, want vehicle_crossing", got.Type)
	}

	writeFrame(t, driver, map[string]any{"type": "finish_crossing", "vehicleId": 1})
	frames = readFrames(t, watcher, 2)
	if frames[0].Type != model.EventVehicleReturned || frames[1].Type != model.EventStateUpdated {
		t.Fatalf("watcher frames = %v, want returned then state_updated", frameTypes(frames))
	}
	v := frames[0].Vehicle
	if v == nil || v.Direction != model.DirectionSouth || v.TripsRemaining != 1 || v.State != model.VehicleStateWaiting {
		t.Errorf("returned vehicle = %+v, want waiting southbound with 1 trip left", v)
	}
}

func TestWebSocketDeniedRequestIsDirectOnly(t *testing.T) {
	_, ts := startWSServer(t, config.DefaultServerConfig())
	driver, _ := dialObserver(t, ts)
	watcher, _ := dialObserver(t, ts)

	writeFrame(t, driver, map[string]any{"type": "request_crossing", "vehicleId": 7})
	got := readFrame(t, driver)
	if got.Type != model.EventCrossingResponse || got.Success || got.Reason != model.DenialVehicleNotFound {
		t.Fatalf("reply = %+v, want VEHICLE_NOT_FOUND denial", got)
	}

	// The watcher sees nothing for the denial; the next frame it gets is
	// the reset that follows.
	writeFrame(t, driver, map[string]any{"type": "reset_system"})
	if got := readFrame(t, watcher); got.Type != model.EventSystemReset {
		t.Errorf("watcher frame = %q, want system_reset", got.Type)
	}
}

func TestWebSocketErrors(t *testing.T) {
	_, ts := startWSServer(t, config.DefaultServerConfig())
	conn, _ := dialObserver(t, ts)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"unknown type", `{"type":"bogus"}`, "unrecognized message type: bogus"},
		{"not json", `{nope`, "invalid JSON"},
		{"missing vehicle id", `{"type":"request_crossing"}`, "invalid request_crossing payload"},
		{"string vehicle id", `{"type":"finish_crossing","vehicleId":"one"}`, "invalid finish_crossing payload"},
		{"bad direction", `{"type":"register_vehicle","vehicle":{"direction":"W"}}`, "invalid register_vehicle payload"},
		{"negative speed", `{"type":"register_vehicle","vehicle":{"speed":-3}}`, "invalid register_vehicle payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeRaw(t, conn, tt.raw)
			got := readFrame(t, conn)
			if got.Type != model.EventError {
				t.Fatalf("frame type = %q, want error", got.Type)
			}
			if got.Message != tt.want {
				t.Errorf("message = %q, want %q", got.Message, tt.want)
			}
		})
	}

	// The connection survives and nothing was registered.
	writeFrame(t, conn, map[string]any{"type": "register_vehicle"})
	got := readFrame(t, conn)
	if got.Type != model.EventVehicleRegistered || got.Vehicle == nil || got.Vehicle.ID != 1 {
		t.Errorf("frame after errors = %+v, want registration of vehicle 1", got)
	}
}

func TestWebSocketFrameTooLarge(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.MaxFrameBytes = 128
	_, ts := startWSServer(t, cfg)
	conn, _ := dialObserver(t, ts)

	writeRaw(t, conn, `{"type":"register_vehicle","vehicle":{"name":"`+strings.Repeat("x", 512)+`"}}`)
	got := readFrame(t, conn)
	if got.Type != model.EventError || got.Message != "frame too large" {
		t.Fatalf("frame = %+v, want frame too large error", got)
	}

	writeFrame(t, conn, map[string]any{"type": "reset_system"})
	if got := readFrame(t, conn); got.Type != model.EventSystemReset {
		t.Errorf("frame = %q, want system_reset", got.Type)
	}
}

func TestWebSocketClosesAfterRepeatedDecodeErrors(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.MaxDecodeErrors = 2
	_, ts := startWSServer(t, cfg)
	conn, _ := dialObserver(t, ts)

	writeRaw(t, conn, `garbage`)
	writeRaw(t, conn, `garbage`)

	// Queued error frames may be discarded on close; at most two arrive.
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	for i := 0; ; i++ {
		var got wsTestFrame
		if err := websocket.JSON.Receive(conn, &got); err != nil {
			return
		}
		if got.Type != model.EventError || i >= 2 {
			t.Fatalf("frame %d = %+v, want connection closed", i, got)
		}
	}
}

func TestWebSocketDisconnectKeepsState(t *testing.T) {
	srv, ts := startWSServer(t, config.DefaultServerConfig())
	conn, _ := dialObserver(t, ts)

	writeFrame(t, conn, map[string]any{"type": "register_vehicle", "vehicle": map[string]any{"name": "ghost"}})
	writeFrame(t, conn, map[string]any{"type": "request_crossing", "vehicleId": 1})
	readFrames(t, conn, 4)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d after disconnect, want 0", srv.hub.Subscribers())
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := srv.scheduler.Snapshot()
	occ, ok := snap.Occupant()
	if !ok || occ.Name != "ghost" {
		t.Errorf("occupant after disconnect = %+v, want ghost still crossing", occ)
	}
}

func TestWebSocketReplyFollowsEarlierBroadcasts(t *testing.T) {
	// The hub is dispatched by hand so events pile up as if the dispatcher lagged.
	logger := testLogger()
	h := hub.New(logger)
	sched := scheduler.New(scheduler.DefaultConfig(), h, logger)
	srv := New(config.DefaultServerConfig(), sched, h, logger)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	conn, _ := dialObserver(t, ts)
	if _, err := sched.Register(model.VehicleSpec{Name: "A"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	writeFrame(t, conn, map[string]any{"type": "request_crossing", "vehicleId": 1})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := sched.Snapshot().Occupant(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("crossing request was not processed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.Dispatch()

	want := []model.EventType{
		model.EventVehicleRegistered,
		model.EventStateUpdated,
		model.EventCrossingResponse,
		model.EventVehicleCrossing,
	}
	got := frameTypes(readFrames(t, conn, len(want)))
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames = %v, want %v", got, want)
		}
	}
}

func TestCloseSessions_EndsStreamsAndRefusesNew(t *testing.T) {
	srv, ts := startWSServer(t, config.DefaultServerConfig())
	conn, _ := dialObserver(t, ts)

	done := make(chan struct{})
	go func() {
		srv.CloseSessions()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CloseSessions did not return")
	}

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got wsTestFrame
	if err := websocket.JSON.Receive(conn, &got); err == nil {
		t.Errorf("received %+v after CloseSessions, want closed connection", got)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if late, err := websocket.Dial(wsURL, "", ts.URL); err == nil {
		_ = late.Close()
		t.Error("websocket dial succeeded after CloseSessions")
	}
	env := doRequest(t, srv, "GET", "/api/v1/sse/events", "", http.StatusServiceUnavailable)
	if env.Error == nil || env.Error.Code != model.ErrUnavailable {
		t.Errorf("sse error = %+v, want UNAVAILABLE", env.Error)
	}

	// Plain REST keeps working until the HTTP server itself shuts down.
	doGet(t, srv, "/api/v1/state")
}
