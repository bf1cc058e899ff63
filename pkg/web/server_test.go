package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-vision/internal/log"
	"github.com/teslashibe/go-vision/pkg/tracking"
)

func newTestServer() *Server {
	return NewServer(":0", map[string]any{"pipeline": "camera"}, log.Discard())
}

func TestStatus(t *testing.T) {
	s := newTestServer()
	s.ObserveStats(tracking.Stats{Input: "camera", FPS: 29.5, Frames: 120, Emitted: 7})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "camera", body.Stats.Input)
	assert.Equal(t, uint64(120), body.Stats.Frames)
	assert.Equal(t, uint64(7), body.Stats.Emitted)
}

func TestTarget(t *testing.T) {
	s := newTestServer()

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/target", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	s.ObserveTarget(tracking.OutputData{RawCenter: [2]float64{100, 80}, Angle: 1.6})

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/api/target", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TargetState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Target)
	assert.Equal(t, [2]float64{100, 80}, body.Target.RawCenter)
	assert.Equal(t, 1.6, body.Target.Angle)
}

func TestConfig(t *testing.T) {
	s := newTestServer()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"pipeline":"camera"}`, string(body))
}

func TestFrame(t *testing.T) {
	s := newTestServer()

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/frame.jpg", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.ObserveFrame([]byte{0xff, 0xd8, 0xff, 0xd9})
	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/frame.jpg", nil))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xd9}, body)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := newTestServer()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/ws/camera", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestIndex(t *testing.T) {
	s := newTestServer()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLatestFrameNext(t *testing.T) {
	f := newLatestFrame()
	stop := make(chan struct{})

	_, _, ok := f.next(0, 10*time.Millisecond, stop)
	assert.False(t, ok, "times out with no frame")

	go func() {
		time.Sleep(5 * time.Millisecond)
		f.set([]byte("a"))
	}()
	data, seq, ok := f.next(0, time.Second, stop)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), data)
	assert.Equal(t, uint64(1), seq)

	close(stop)
	_, _, ok = f.next(seq, time.Second, stop)
	assert.False(t, ok, "stops when the server shuts down")
}
