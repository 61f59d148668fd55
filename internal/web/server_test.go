package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
	"github.com/carhud/headunit/internal/usecase"
)

// --- stubs for the supervisor's dependencies ---

type stubBuild struct{ built bool }

func (b stubBuild) Built() bool { return b.built }

type stubUSB struct{}

func (stubUSB) DongleDetected() bool { return false }

type stubPipe struct {
	mu     sync.Mutex
	writes [][]byte
}

func (p *stubPipe) Available() bool { return true }
func (p *stubPipe) Path() string    { return "/tmp/test_pipe" }

func (p *stubPipe) Write(codes []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, codes)
	return nil
}

type stubSettings struct{}

func (stubSettings) Write(cfg domain.EngineConfig) error { return nil }
func (stubSettings) Path() string                        { return "/tmp/settings.txt" }

type stubPM struct{}

func (stubPM) Terminate(pid int) error { return nil }
func (stubPM) Kill(pid int) error      { return nil }
func (stubPM) IsRunning(pid int) bool  { return false }

type idleSource struct{}

func (idleSource) Name() string { return "test" }

func (idleSource) Run(ctx context.Context, events chan<- domain.PhoneEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

type memoryLog struct {
	mu      sync.Mutex
	records []domain.CallRecord
}

func (l *memoryLog) Append(r domain.CallRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return nil
}

func (l *memoryLog) Recent(limit int) ([]domain.CallRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.CallRecord{}, l.records...), nil
}

func (l *memoryLog) Close() error { return nil }

type stubBT struct{}

func (stubBT) Scan(ctx context.Context, d time.Duration) ([]domain.BluetoothDevice, error) {
	return []domain.BluetoothDevice{{Address: "AA:BB:CC:DD:EE:FF", Name: "Pixel 8"}}, nil
}
func (stubBT) Connect(address string) error    { return nil }
func (stubBT) Disconnect(address string) error { return nil }
func (stubBT) ConnectedDevices() ([]domain.BluetoothDevice, error) {
	return []domain.BluetoothDevice{}, nil
}

type stubCalls struct{}

func (stubCalls) Answer() error            { return nil }
func (stubCalls) Hangup() error            { return nil }
func (stubCalls) Dial(number string) error { return nil }
func (stubCalls) SendDTMF(d string) error  { return nil }

type stubMedia struct{}

func (stubMedia) Play() error                 { return nil }
func (stubMedia) Pause() error                { return nil }
func (stubMedia) Stop() error                 { return nil }
func (stubMedia) SetVolume(percent int) error { return nil }

type failingBT struct{ stubBT }

func (failingBT) Scan(ctx context.Context, d time.Duration) ([]domain.BluetoothDevice, error) {
	return nil, errors.New("bluetoothctl: command not found")
}

func newTestServer(t *testing.T) (*httptest.Server, *usecase.Phone, *stubPipe) {
	return newTestServerWith(t, stubBT{})
}

func newTestServerWith(t *testing.T, bt domain.BluetoothController) (*httptest.Server, *usecase.Phone, *stubPipe) {
	t.Helper()
	logger := zap.NewNop()

	pipe := &stubPipe{}
	supCfg := usecase.DefaultSupervisorConfig("/tmp/engine", "/tmp/engine/out/app")
	supervisor := usecase.NewSupervisor(supCfg, stubSettings{}, pipe, stubUSB{}, stubBuild{built: false}, stubPM{}, logger)

	// No native controller, only the shell-out fallback stub
	phone := usecase.NewPhone(nil, idleSource{}, nil, stubCalls{}, &memoryLog{}, logger)
	bluetooth := usecase.NewBluetooth(bt, logger)
	media := usecase.NewMedia(stubMedia{}, logger)

	server := NewServer("127.0.0.1:0", Deps{
		Supervisor: supervisor,
		Phone:      phone,
		Bluetooth:  bluetooth,
		Media:      media,
		Logger:     logger,
	})

	ts := httptest.NewServer(server.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return ts, phone, pipe
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var body map[string]string
	code := getJSON(t, ts.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestAggregateStatus(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var body map[string]json.RawMessage
	code := getJSON(t, ts.URL+"/api/status", &body)

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "carplay")
	assert.Contains(t, body, "phone")
	assert.Contains(t, body, "bluetooth")
}

func TestCarplayStatus(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var st domain.EngineStatus
	code := getJSON(t, ts.URL+"/api/carplay/status", &st)

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, st.Running)
	assert.Equal(t, domain.EngineStopped, st.State)
}

func TestCarplayStartNotBuilt(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var res domain.EngineResult
	code := postJSON(t, ts.URL+"/api/carplay/start", `{"fullscreen":true}`, &res)

	// Operational failure, not a protocol error
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not built")
}

func TestCarplayStopIdempotent(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var res domain.EngineResult
	code := postJSON(t, ts.URL+"/api/carplay/stop", `{}`, &res)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	assert.Equal(t, "engine was not running", res.Message)
}

func TestCarplayKey(t *testing.T) {
	ts, _, pipe := newTestServer(t)

	var res domain.Result
	code := postJSON(t, ts.URL+"/api/carplay/key", `{"key":"select"}`, &res)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	pipe.mu.Lock()
	defer pipe.mu.Unlock()
	require.Len(t, pipe.writes, 1)
	assert.Equal(t, []byte{104, 105}, pipe.writes[0])
}

func TestCarplayKeyValidation(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var res domain.Result
	code := postJSON(t, ts.URL+"/api/carplay/key", `{}`, &res)
	assert.Equal(t, http.StatusBadRequest, code)

	code = postJSON(t, ts.URL+"/api/carplay/key", `{"key":"warp"}`, &res)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unknown key")
}

func TestPhoneStatusAndDial(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var st domain.PhoneStatus
	code := getJSON(t, ts.URL+"/api/phone/status", &st)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, st.Connected)
	assert.Equal(t, domain.CallIdle, st.CallState)

	var res domain.Result
	code = postJSON(t, ts.URL+"/api/phone/dial", `{"number":"+15551234567"}`, &res)
	assert.Equal(t, http.StatusOK, code)
	// No call controller wired in this test
	assert.False(t, res.Success)
	assert.Equal(t, "no phone service available", res.Message)
}

func TestBluetoothScanAndConnect(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var scan struct {
		Success bool                     `json:"success"`
		Devices []domain.BluetoothDevice `json:"devices"`
	}
	code := postJSON(t, ts.URL+"/api/bluetooth/scan", `{}`, &scan)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, scan.Success)
	require.Len(t, scan.Devices, 1)

	var res domain.Result
	code = postJSON(t, ts.URL+"/api/bluetooth/connect", `{}`, &res)
	assert.Equal(t, http.StatusBadRequest, code)

	code = postJSON(t, ts.URL+"/api/bluetooth/connect", `{"address":"AA:BB:CC:DD:EE:FF"}`, &res)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
}

func TestBluetoothScanFailureStaysOperational(t *testing.T) {
	ts, _, _ := newTestServerWith(t, failingBT{})

	var res domain.Result
	code := postJSON(t, ts.URL+"/api/bluetooth/scan", `{}`, &res)

	// Missing tool is an operational failure, not a protocol error
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "scan failed")
}

func TestMusicEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var res domain.Result
	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/music/play", `{}`, &res))
	assert.True(t, res.Success)

	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/music/volume", `{"volume":60}`, &res))
	assert.True(t, res.Success)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPhoneWebSocketStreamsUpdates(t *testing.T) {
	ts, phone, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/phone"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// First frame is the current snapshot
	var st domain.PhoneStatus
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&st))
	assert.False(t, st.Connected)

	// A state change pushes a fresh snapshot
	require.True(t, phone.Hangup().Success)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, domain.CallIdle, st.CallState)
}
