package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/me/onelane/internal/hub"
	"github.com/me/onelane/pkg/model"
	"golang.org/x/net/websocket"
)

// wsFrame is the envelope of every inbound command. The rest of the frame
// is decoded according to Type.
type wsFrame struct {
	Type string `json:"type"`
}

type registerPayload struct {
	Vehicle *model.VehicleSpec `json:"vehicle"`
}

type vehiclePayload struct {
	VehicleID *int64 `json:"vehicleId"`
}

// handleWS upgrades the request and serves one observer.
// GET /ws
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.beginSession() {
		respondError(w, r, model.NewUnavailableError("server is shutting down"))
		return
	}
	defer s.sessions.Done()
	websocket.Handler(s.serveWS).ServeHTTP(w, r)
}

func (s *Server) serveWS(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()
	conn.MaxPayloadBytes = s.config.MaxFrameBytes

	id := sessionID("ws")
	logger := s.logger.With("session_id", id)
	if req := conn.Request(); req != nil {
		logger = logger.With("remote", req.RemoteAddr)
	}

	peer := hub.NewPeer(id, s.config.PeerBuffer, func(frame any) error {
		return websocket.JSON.Send(conn, frame)
	})
	defer func() {
		s.hub.Leave(peer)
		peer.Close()
	}()

	// Joining under the scheduler lock puts initial_state ahead of every
	// broadcast this observer will see.
	s.scheduler.Attach(func(snap model.Snapshot) {
		s.hub.Join(peer)
		peer.Send(model.NewSnapshotEvent(model.EventInitialState, snap))
	})

	go func() {
		if err := peer.Run(); err != nil {
			logger.Warn("websocket write failed", "error", err)
		}
		// Unblocks the read loop when the peer is dropped.
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-s.closing:
			_ = conn.Close()
		case <-peer.Done():
		}
	}()

	logger.Info("observer connected")
	defer logger.Info("observer disconnected")

	decodeErrors := 0
	for {
		var data []byte
		err := websocket.Message.Receive(conn, &data)
		if errors.Is(err, websocket.ErrFrameTooLarge) {
			logger.Warn("frame too large", "limit", conn.MaxPayloadBytes)
			s.hub.PublishTo(peer, model.NewErrorEvent("frame too large"))
			decodeErrors++
			if s.tooManyDecodeErrors(decodeErrors) {
				logger.Warn("closing connection after repeated bad frames", "count", decodeErrors)
				return
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		if s.dispatchFrame(peer, logger, data) {
			decodeErrors = 0
			continue
		}
		decodeErrors++
		if s.tooManyDecodeErrors(decodeErrors) {
			logger.Warn("closing connection after repeated bad frames", "count", decodeErrors)
			return
		}
	}
}

func (s *Server) tooManyDecodeErrors(n int) bool {
	return s.config.MaxDecodeErrors > 0 && n >= s.config.MaxDecodeErrors
}

// dispatchFrame decodes and executes one inbound command. It reports false
// when the frame or its payload could not be decoded.
func (s *Server) dispatchFrame(peer *hub.Peer, logger *slog.Logger, data []byte) (decoded bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic handling frame", "panic", rec, "stack", string(debug.Stack()))
			s.hub.PublishTo(peer, model.NewErrorEvent("internal error"))
			decoded = true
		}
	}()

	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Debug("invalid frame", "error", err)
		s.hub.PublishTo(peer, model.NewErrorEvent("invalid JSON"))
		return false
	}

	switch frame.Type {
	case model.CommandRegisterVehicle:
		var p registerPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return s.invalidPayload(peer, logger, frame.Type, err)
		}
		spec := model.VehicleSpec{}
		if p.Vehicle != nil {
			spec = *p.Vehicle
		}
		if errs := spec.Validate(); len(errs) > 0 {
			return s.invalidPayload(peer, logger, frame.Type, fmt.Errorf("%s %s", errs[0].Field, errs[0].Message))
		}
		if _, err := s.scheduler.Register(spec); err != nil {
			s.commandFailed(peer, logger, frame.Type, err)
		}

	case model.CommandRequestCrossing:
		id, err := decodeVehicleID(data)
		if err != nil {
			return s.invalidPayload(peer, logger, frame.Type, err)
		}
		reply := func(resp model.CrossingResponse) { s.hub.PublishTo(peer, resp) }
		if _, err := s.scheduler.RequestCrossingReply(id, reply); err != nil {
			s.commandFailed(peer, logger, frame.Type, err)
		}

	case model.CommandFinishCrossing:
		id, err := decodeVehicleID(data)
		if err != nil {
			return s.invalidPayload(peer, logger, frame.Type, err)
		}
		if _, err := s.scheduler.FinishCrossing(id); err != nil {
			s.commandFailed(peer, logger, frame.Type, err)
		}

	case model.CommandResetSystem:
		s.scheduler.Reset()

	default:
		logger.Debug("unrecognized message type", "type", frame.Type)
		s.hub.PublishTo(peer, model.NewErrorEvent(fmt.Sprintf("unrecognized message type: %s", frame.Type)))
	}
	return true
}

func decodeVehicleID(data []byte) (int64, error) {
	var p vehiclePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, err
	}
	if p.VehicleID == nil {
		return 0, errors.New("vehicleId is required")
	}
	return *p.VehicleID, nil
}

func (s *Server) invalidPayload(peer *hub.Peer, logger *slog.Logger, msgType string, err error) bool {
	logger.Debug("invalid payload", "type", msgType, "error", err)
	s.hub.PublishTo(peer, model.NewErrorEvent(fmt.Sprintf("invalid %s payload", msgType)))
	return false
}

func (s *Server) commandFailed(peer *hub.Peer, logger *slog.Logger, msgType string, err error) {
	logger.Error("command failed", "type", msgType, "error", err)
	s.hub.PublishTo(peer, model.NewErrorEvent("internal error"))
}
