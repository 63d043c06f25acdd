package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"image"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/relabs-tech/telescope_server/internal/config"
	"github.com/relabs-tech/telescope_server/internal/env"
	"github.com/relabs-tech/telescope_server/internal/orientation"
	"github.com/relabs-tech/telescope_server/internal/protocol"
	"github.com/relabs-tech/telescope_server/internal/sensors/sensorstest"
	"github.com/relabs-tech/telescope_server/internal/session"
)

var epoch = time.Date(2026, 4, 10, 21, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	fake  *sensorstest.Fake
	est   *orientation.Estimator
	state *session.State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	now := func() time.Time { return epoch }

	fake := sensorstest.Level()
	est, err := orientation.NewEstimator(fake, orientation.WithClock(now), orientation.WithLogger(logger))
	require.NoError(t, err)
	state := session.New(est,
		session.Site{Latitude: 51.4772 * math.Pi / 180},
		session.Calibration{},
		session.WithClock(now),
		session.WithLogger(logger))
	return &fixture{fake: fake, est: est, state: state}
}

func startServer(t *testing.T, f *fixture) (string, func()) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	srv := NewServer("127.0.0.1:0", protocol.NewDispatcher(f.state, logger), f.est, logger)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	return srv.Addr().String(), func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func readReply(t *testing.T, r *bufio.Reader, n int) string {
	t.Helper()
	buf := make([]byte, n)
	_, err := r.Read(buf[:1])
	require.NoError(t, err)
	got := 1
	for got < n {
		m, err := r.Read(buf[got:])
		require.NoError(t, err)
		got += m
	}
	return string(buf)
}

func TestServerRoundTrip(t *testing.T) {
	f := newFixture(t)
	addr, stop := startServer(t, f)
	defer stop()

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	r := bufio.NewReader(c)
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = c.Write([]byte(":Sr07:01:55#:Sd+22*49:43#"))
	require.NoError(t, err)
	assert.Equal(t, "11", readReply(t, r, 2))

	_, err = c.Write([]byte(":CM#"))
	require.NoError(t, err)
	assert.Equal(t, "M31 EX GAL MAG 3.5 SZ178.0'#", readReply(t, r, len("M31 EX GAL MAG 3.5 SZ178.0'#")))

	// Split across writes.
	_, err = c.Write([]byte(":G"))
	require.NoError(t, err)
	_, err = c.Write([]byte("R#"))
	require.NoError(t, err)
	assert.Equal(t, "07:01:55#", readReply(t, r, 9))
}

func TestServerSharesSessionAcrossClients(t *testing.T) {
	f := newFixture(t)
	addr, stop := startServer(t, f)
	defer stop()

	a, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer a.Close()
	_, err = a.Write([]byte(":U#:Sr07:01:55#"))
	require.NoError(t, err)
	require.Equal(t, "1", readReply(t, bufio.NewReader(a), 1))

	b, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer b.Close()
	_, err = b.Write([]byte(":GR#"))
	require.NoError(t, err)
	assert.Regexp(t, `^\d{2}:\d{2}\.\d#$`, readReply(t, bufio.NewReader(b), 8))
}

func TestServerDropsClientOnSensorFailure(t *testing.T) {
	f := newFixture(t)
	addr, stop := startServer(t, f)
	defer stop()

	f.fake.Fail(errors.New("spi: no device"))
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = c.Write([]byte(":GR#"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := c.Read(buf)
	assert.Zero(t, n)
	assert.Error(t, err)
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads map[string][][]byte
	err      error
}

func (p *recordingPublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payloads == nil {
		p.payloads = make(map[string][][]byte)
	}
	p.payloads[topic] = append(p.payloads[topic], payload)
	return p.err
}

type stubEnv struct {
	sample env.Sample
	err    error
}

func (s stubEnv) Read() (env.Sample, error) { return s.sample, s.err }

func TestTelemetryPublishOnce(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	tel := &Telemetry{
		State:         f.state,
		Env:           stubEnv{sample: env.Sample{Temperature: 11.5, Pressure: 1013.2}},
		Publisher:     pub,
		TopicPointing: "telescope/pointing",
		TopicEnv:      "telescope/env",
		Logger:        zaptest.NewLogger(t),
	}
	tel.PublishOnce()

	require.Len(t, pub.payloads["telescope/pointing"], 1)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(pub.payloads["telescope/pointing"][0], &snap))
	assert.Equal(t, epoch, snap.Time)
	assert.InDelta(t, 0, snap.Alt, 1e-9)

	require.Len(t, pub.payloads["telescope/env"], 1)
	assert.JSONEq(t, `{"temp_c":11.5,"pressure_hpa":1013.2,"time":""}`, string(pub.payloads["telescope/env"][0]))
}

func TestTelemetrySkipsFailedReads(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(errors.New("i2c: nack"))
	pub := &recordingPublisher{}
	tel := &Telemetry{
		State:         f.state,
		Env:           stubEnv{err: errors.New("bmp gone")},
		Publisher:     pub,
		TopicPointing: "p",
		TopicEnv:      "e",
	}
	tel.PublishOnce()
	assert.Empty(t, pub.payloads)
}

func TestTelemetryRunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	pub := &recordingPublisher{}
	tel := &Telemetry{State: f.state, Publisher: pub, TopicPointing: "p", Interval: time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, tel.Run(ctx))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.NotEmpty(t, pub.payloads["p"])
}

func TestWebPointing(t *testing.T) {
	f := newFixture(t)
	router := NewWeb(f.state, 10*time.Millisecond, zaptest.NewLogger(t)).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pointing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.InDelta(t, 51.4772, snap.Latitude, 1e-9)

	f.fake.Fail(errors.New("spi: no device"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pointing", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebSite(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.SetTargetRA("07:01:55"))
	router := NewWeb(f.state, time.Second, nil).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/site", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info SiteInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.InDelta(t, 1.84096, info.Target.RA, 1e-5)
	assert.True(t, info.HighPrecision)
	assert.Equal(t, epoch, info.Time)
}

func TestWebSocketStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(NewWeb(f.state, 10*time.Millisecond, zaptest.NewLogger(t)).Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	for i := 0; i < 2; i++ {
		var snap session.Snapshot
		require.NoError(t, ws.ReadJSON(&snap))
		assert.Equal(t, epoch, snap.Time)
	}
}

func TestFormatConsoleLines(t *testing.T) {
	line := FormatPointing(session.Snapshot{Time: epoch, RAText: "07:01:55", DecText: "+22*49:43", Alt: 12.5, Az: 270})
	assert.Equal(t, "[POINT] 21:00:00  RA=07:01:55 DEC=+22*49:43  ALT=  12.50 AZ= 270.00\n", line)
	assert.Equal(t, "[ENV ]  T= 11.50°C  P=1013.20 hPa\n", FormatEnv(env.Sample{Temperature: 11.5, Pressure: 1013.2}))
}

func TestRenderPointing(t *testing.T) {
	lit := func(pix []byte) int {
		n := 0
		for _, b := range pix {
			for ; b != 0; b &= b - 1 {
				n++
			}
		}
		return n
	}

	img := renderPointing(session.Snapshot{RAText: "07:01:55", DecText: "+22*49:43", Alt: 10, Az: 20}, true)
	assert.Equal(t, image.Rect(0, 0, displayWidth, displayHeight), img.Bounds())
	full := lit(img.Pix)
	assert.Positive(t, full)

	blank := lit(renderPointing(session.Snapshot{}, false).Pix)
	assert.Positive(t, blank)
	assert.Less(t, blank, full)
}

func TestFormatPoses(t *testing.T) {
	line := FormatPoses(orientation.Pose{Yaw: math.Pi / 2}, orientation.Pose{Pitch: -math.Pi / 4})
	assert.Equal(t, "HYBRID ROLL=   0.00 PITCH=   0.00 YAW=  90.00 | ACC/MAG ROLL=   0.00 PITCH= -45.00 YAW=   0.00\n", line)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunOrientationConsole(t *testing.T) {
	f := newFixture(t)
	out := &lockedBuffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, RunOrientationConsole(ctx, f.est, time.Millisecond, out))
	assert.Contains(t, out.String(), "HYBRID ROLL=")

	f.fake.Fail(errors.New("spi: no device"))
	err := RunOrientationConsole(context.Background(), f.est, time.Millisecond, out)
	assert.ErrorContains(t, err, "spi: no device")
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "", "warn", "error"} {
		logger, err := NewLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}
	_, err := NewLogger("loud")
	assert.Error(t, err)
}

func TestOpenSensorsMock(t *testing.T) {
	cfg := config.Default()
	cfg.SensorMode = config.SensorModeMock

	r, release, err := OpenSensors(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	a, err := r.ReadAccelerometer()
	require.NoError(t, err)
	assert.InDelta(t, 1, a.Norm(), 1e-9)
	assert.NoError(t, release())
}

func TestNewSessionFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.SiteLongitude = 3.7
	cfg.OffsetAzimuth = 0.25
	path := filepath.Join(t.TempDir(), "telescope_config.env")
	state := NewSession(cfg, &fixedAttitude{}, config.NewStore(path, cfg), zaptest.NewLogger(t))

	assert.InDelta(t, 51.4772*math.Pi/180, state.Site().Latitude, 1e-4)
	assert.InDelta(t, 3.7*math.Pi/180, state.Site().Longitude, 1e-12)
	assert.Equal(t, 0.25, state.Calibration().Azimuth)

	require.NoError(t, state.SetLatitude("+40*24"))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 40.4, loaded.SiteLatitude, 1e-9)
}

type fixedAttitude struct{}

func (fixedAttitude) Euler() (orientation.Pose, error) { return orientation.Pose{}, nil }
