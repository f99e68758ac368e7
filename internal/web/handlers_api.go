package web

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"zigbee-color-light/internal/device"
)

// commandResponse reports the ZCL status a command produced.
type commandResponse struct {
	Endpoint uint8  `json:"endpoint"`
	Command  string `json:"command"`
	Status   string `json:"status"`
	Code     uint8  `json:"code"`
}

func (s *Server) handleAPIListEndpoints(w http.ResponseWriter, r *http.Request) {
	states := make([]*device.EndpointState, 0, len(s.light.Endpoints()))
	for _, ep := range s.light.Endpoints() {
		st, err := s.light.Endpoint(r.Context(), ep)
		if err != nil {
			s.writeDeviceError(w, "list endpoints", err)
			return
		}
		states = append(states, st)
	}
	s.writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleAPIGetEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.endpointParam(w, r)
	if !ok {
		return
	}
	st, err := s.light.Endpoint(r.Context(), ep)
	if err != nil {
		s.writeDeviceError(w, "get endpoint", err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAPICommand(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.endpointParam(w, r)
	if !ok {
		return
	}

	var cmd device.Command
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	status, err := s.light.Execute(r.Context(), ep, cmd, "api")
	if err != nil {
		s.writeDeviceError(w, "execute command", err)
		return
	}
	s.writeJSON(w, http.StatusOK, commandResponse{Endpoint: ep, Command: cmd.Command, Status: status.String(), Code: uint8(status)})
}

type zclRequest struct {
	CommandID uint8  `json:"command_id"`
	Payload   string `json:"payload"` // hex, spaces allowed
}

func (s *Server) handleAPIZCL(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.endpointParam(w, r)
	if !ok {
		return
	}

	var req zclRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	payload, err := hex.DecodeString(strings.ReplaceAll(req.Payload, " ", ""))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload must be hex"})
		return
	}
	if len(payload) > 128 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload limited to 128 bytes"})
		return
	}

	status, err := s.light.HandleZCL(r.Context(), ep, req.CommandID, payload, "api")
	if err != nil {
		s.writeDeviceError(w, "handle zcl", err)
		return
	}
	s.writeJSON(w, http.StatusOK, commandResponse{
		Endpoint: ep,
		Command:  fmt.Sprintf("0x%02X", req.CommandID),
		Status:   status.String(),
		Code:     uint8(status),
	})
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.light.Registry().All())
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// endpointParam parses the {ep} path value, writing 400 when invalid.
func (s *Server) endpointParam(w http.ResponseWriter, r *http.Request) (uint8, bool) {
	n, err := strconv.ParseUint(r.PathValue("ep"), 10, 8)
	if err != nil || n == 0 || n > 240 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint must be 1-240"})
		return 0, false
	}
	return uint8(n), true
}

// writeDeviceError maps device errors onto HTTP statuses.
func (s *Server) writeDeviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, device.ErrUnknownEndpoint):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, device.ErrInvalidCommand):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, device.ErrStopped):
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		s.logger.Error(op, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
