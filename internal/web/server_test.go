package web

import (
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

	"github.com/relabs-tech/nmea_simulator/internal/feeder"
	"github.com/relabs-tech/nmea_simulator/internal/gps"
)

type fakeController struct {
	mu       sync.Mutex
	canStart bool
	running  bool
	cursor   int
}

func (f *fakeController) Start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.canStart {
		return false
	}
	f.running = true
	return true
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}

func (f *fakeController) Rewind() {
	f.mu.Lock()
	f.cursor = 0
	f.mu.Unlock()
}

func (f *fakeController) Stats() feeder.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return feeder.Stats{Batches: 8, Cursor: f.cursor, Running: f.running, Period: time.Second}
}

type fakeFixes struct {
	fix  gps.Fix
	have bool
}

func (f *fakeFixes) Latest() (gps.Fix, bool) { return f.fix, f.have }

func newTestServer(canStart bool) (*Server, *fakeController, *fakeFixes) {
	ctl := &fakeController{canStart: canStart, cursor: 3}
	fixes := &fakeFixes{}
	return New(ctl, fixes, NewHub()), ctl, fixes
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(true)
	rec := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStartStopRewind(t *testing.T) {
	s, ctl, _ := newTestServer(true)

	rec := do(t, s, http.MethodPost, "/api/feeder/start")
	require.Equal(t, http.StatusOK, rec.Code)
	var st feeder.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Running)
	assert.Equal(t, 8, st.Batches)

	rec = do(t, s, http.MethodPost, "/api/feeder/rewind")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, ctl.Stats().Cursor)

	rec = do(t, s, http.MethodPost, "/api/feeder/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ctl.Stats().Running)
}

func TestStart_NothingToPlay(t *testing.T) {
	s, _, _ := newTestServer(false)
	rec := do(t, s, http.MethodPost, "/api/feeder/start")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"CONFLICT"`)
}

func TestGPS_NoDataYet(t *testing.T) {
	s, _, _ := newTestServer(true)
	for _, path := range []string{"/api/gps", "/api/gps/msgpack"} {
		rec := do(t, s, http.MethodGet, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "no data yet")
	}
}

func TestGPS_LatestFix(t *testing.T) {
	s, _, fixes := newTestServer(true)
	fixes.fix = gps.Fix{Epoch: 5, Latitude: 34.0575, Longitude: -117.1927, Validity: "A"}
	fixes.have = true

	rec := do(t, s, http.MethodGet, "/api/gps")
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := gps.Decode(rec.Body.Bytes(), gps.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, fixes.fix, got)

	rec = do(t, s, http.MethodGet, "/api/gps/msgpack")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))
	got, err = gps.Decode(rec.Body.Bytes(), gps.FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, fixes.fix, got)
}

func TestStatus(t *testing.T) {
	s, _, fixes := newTestServer(true)
	fixes.fix = gps.Fix{Epoch: 6}
	fixes.have = true

	rec := do(t, s, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var st StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.HaveFix)
	assert.Equal(t, 6, st.LastEpoch)
	assert.Equal(t, 8, st.Feeder.Batches)
	assert.Equal(t, 0, st.WSClients)
}

func TestSerialPorts(t *testing.T) {
	s, _, _ := newTestServer(true)

	rec := do(t, s, http.MethodGet, "/api/serial/ports")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ports":[]}`, rec.Body.String())

	s.ListPorts = func() ([]string, error) { return []string{"/dev/ttyUSB0"}, nil }
	rec = do(t, s, http.MethodGet, "/api/serial/ports")
	assert.JSONEq(t, `{"ports":["/dev/ttyUSB0"]}`, rec.Body.String())

	s.ListPorts = func() ([]string, error) { return nil, errors.New("no sysfs") }
	rec = do(t, s, http.MethodGet, "/api/serial/ports")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no sysfs")
}

func TestUnknownRoute(t *testing.T) {
	s, _, _ := newTestServer(true)
	rec := do(t, s, http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketStream(t *testing.T) {
	s, _, _ := newTestServer(true)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readMessage(t, conn)
	assert.Equal(t, MsgTypeConnected, hello.Type)
	assert.NotEmpty(t, hello.ID)
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.hub.Push(feeder.Batch{Seq: 1, Sentences: []string{"$GPGGA,1", "$GPRMC,1"}})
	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeNMEA, msg.Type)
	assert.Equal(t, 1, msg.Epoch)
	assert.Equal(t, []string{"$GPGGA,1", "$GPRMC,1"}, msg.Sentences)

	s.hub.PublishFix(gps.Fix{Epoch: 1, Latitude: 34.05})
	msg = readMessage(t, conn)
	assert.Equal(t, MsgTypeFix, msg.Type)
	require.NotNil(t, msg.Fix)
	assert.Equal(t, 34.05, msg.Fix.Latitude)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return s.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DropsForSlowClient(t *testing.T) {
	h := NewHub()
	c := &client{id: "slow", send: make(chan []byte, 1)}
	h.register(c)

	h.Push(feeder.Batch{Seq: 0})
	h.Push(feeder.Batch{Seq: 1})
	h.Push(feeder.Batch{Seq: 2})

	assert.Equal(t, uint64(2), h.Dropped())
	h.unregister(c)
	assert.Equal(t, 0, h.Clients())

	// broadcasting with no clients is fine
	h.Push(feeder.Batch{Seq: 3})
}
