package web

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"zigbee-color-light/internal/colorcontrol"
	"zigbee-color-light/internal/device"
	"zigbee-color-light/internal/store"
	"zigbee-color-light/internal/zcl"
	"zigbee-color-light/internal/zcl/clusters"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestLight(t *testing.T) *device.Device {
	t.Helper()
	logger := testLogger()
	registry := zcl.NewRegistry(logger)
	registry.Register(clusters.ColorControl)

	db, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"), registry)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	d := device.New(db, registry, device.NewEventBus(logger), nil, device.Config{
		Endpoints: []device.EndpointConfig{{ID: 1, Hue: 100, Saturation: 200}, {ID: 2}},
	}, logger)
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Stop)
	return d
}

func setupTestServer(t *testing.T, opts ...ServerOption) (*Server, *device.Device) {
	t.Helper()
	d := newTestLight(t)
	srv := NewServer(d, testLogger(), opts...)
	t.Cleanup(srv.Stop)
	return srv, d
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestAPIListEndpoints(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(srv, "GET", "/api/endpoints", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var states []device.EndpointState
	if err := json.NewDecoder(w.Body).Decode(&states); err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Fatalf("endpoint count = %d, want 2", len(states))
	}
	if states[0].ID != 1 || states[1].ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", states[0].ID, states[1].ID)
	}
	if states[0].Phase != colorcontrol.PhaseIdle {
		t.Errorf("phase = %q, want idle", states[0].Phase)
	}
}

func TestAPIGetEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(srv, "GET", "/api/endpoints/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var st device.EndpointState
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Properties["hue"] != 100.0 || st.Properties["saturation"] != 200.0 {
		t.Errorf("properties = %v, want hue 100 saturation 200", st.Properties)
	}
	if st.Transition != nil {
		t.Errorf("transition = %+v, want none", st.Transition)
	}
}

func TestAPIGetEndpointErrors(t *testing.T) {
	srv, _ := setupTestServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/endpoints/0", http.StatusBadRequest},
		{"/api/endpoints/241", http.StatusBadRequest},
		{"/api/endpoints/abc", http.StatusBadRequest},
		{"/api/endpoints/9", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if w := do(srv, "GET", tt.path, ""); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAPICommand(t *testing.T) {
	srv, d := setupTestServer(t)

	w := do(srv, "POST", "/api/endpoints/1/command", `{"command":"move_hue","mode":"up","rate":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp commandResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != zcl.StatusSuccess.String() || resp.Code != 0 || resp.Command != "move_hue" || resp.Endpoint != 1 {
		t.Errorf("response = %+v", resp)
	}

	st, err := d.Endpoint(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Phase != colorcontrol.PhaseRunningUnbounded {
		t.Errorf("phase = %q, want running_unbounded", st.Phase)
	}

	if w := do(srv, "POST", "/api/endpoints/1/command", `{"command":"stop"}`); w.Code != http.StatusOK {
		t.Errorf("stop status = %d", w.Code)
	}
}

func TestAPICommandErrors(t *testing.T) {
	srv, _ := setupTestServer(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantCode   int
		wantStatus zcl.Status
	}{
		{"rejected value", "/api/endpoints/1/command", `{"command":"move_hue","mode":"up","rate":0}`, http.StatusOK, zcl.StatusInvalidValue},
		{"unknown command", "/api/endpoints/1/command", `{"command":"blink"}`, http.StatusBadRequest, 0},
		{"bad direction", "/api/endpoints/1/command", `{"command":"move_to_hue","direction":"sideways"}`, http.StatusBadRequest, 0},
		{"bad json", "/api/endpoints/1/command", `{`, http.StatusBadRequest, 0},
		{"unknown endpoint", "/api/endpoints/7/command", `{"command":"stop"}`, http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, "POST", tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp commandResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != uint8(tt.wantStatus) || resp.Status != tt.wantStatus.String() {
				t.Errorf("response = %+v, want %v", resp, tt.wantStatus)
			}
		})
	}
}

func TestAPIZCL(t *testing.T) {
	srv, _ := setupTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStatus zcl.Status
	}{
		{"move to saturation", `{"command_id":3,"payload":"32 0a 00"}`, http.StatusOK, zcl.StatusSuccess},
		{"short payload", `{"command_id":0,"payload":"10"}`, http.StatusOK, zcl.StatusMalformedCommand},
		{"unsupported command", `{"command_id":10}`, http.StatusOK, zcl.StatusUnsupportedClusterCommand},
		{"stop move step", `{"command_id":71,"payload":"0000"}`, http.StatusOK, zcl.StatusSuccess},
		{"bad hex", `{"command_id":3,"payload":"zz"}`, http.StatusBadRequest, 0},
		{"payload too long", `{"command_id":3,"payload":"` + string(bytes.Repeat([]byte("00"), 129)) + `"}`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, "POST", "/api/endpoints/2/zcl", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp commandResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != uint8(tt.wantStatus) {
				t.Errorf("code = 0x%02X, want 0x%02X (%v)", resp.Code, uint8(tt.wantStatus), tt.wantStatus)
			}
		})
	}
}

func TestAPIStoppedDevice(t *testing.T) {
	srv, d := setupTestServer(t)
	d.Stop()

	if w := do(srv, "GET", "/api/endpoints/1", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAPIListClusters(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(srv, "GET", "/api/clusters", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var defs []zcl.ClusterDef
	if err := json.NewDecoder(w.Body).Decode(&defs); err != nil {
		t.Fatal(err)
	}
	if len(defs) != 1 || defs[0].ID != clusters.ColorControlID {
		t.Errorf("clusters = %+v, want Color Control only", defs)
	}
}

func TestAPIVersion(t *testing.T) {
	srv, _ := setupTestServer(t, WithVersion("1.2.3"))

	w := do(srv, "GET", "/api/version", "")
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["version"] != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", resp["version"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := setupTestServer(t, WithAPIKey("secret-key"))

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"correct key", "secret-key", http.StatusOK},
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "wrong-key", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/endpoints", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	srv, _ := setupTestServer(t, WithAllowedOrigins([]string{"http://panel.local"}))

	tests := []struct {
		name   string
		method string
		origin string
		want   int
	}{
		{"preflight allowed", http.MethodOptions, "http://panel.local", http.StatusNoContent},
		{"preflight denied", http.MethodOptions, "http://evil.local", http.StatusForbidden},
		{"post denied", http.MethodPost, "http://evil.local", http.StatusForbidden},
		{"get from any origin", http.MethodGet, "http://evil.local", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/api/endpoints"
			if tt.method == http.MethodPost {
				path = "/api/endpoints/1/command"
			}
			req := httptest.NewRequest(tt.method, path, bytes.NewBufferString(`{"command":"stop"}`))
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := setupTestServer(t)
	if w := do(srv, "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("without handler: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("color_light_commands_total 0\n"))
	})
	srv, _ = setupTestServer(t, WithMetrics(h), WithAPIKey("secret"))
	w := do(srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "color_light_commands_total 0\n" {
		t.Errorf("body = %q", got)
	}
}
