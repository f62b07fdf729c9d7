package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/nmea_simulator/internal/config"
	"github.com/relabs-tech/nmea_simulator/internal/feeder"
	"github.com/relabs-tech/nmea_simulator/internal/gps"
)

const fixture = `$GPGGA,183000.00,3403.4520,N,11711.5610,W,1,09,0.9,402.0,M,-32.1,M,,*5D
$GPGSA,A,3,02,05,12,13,15,18,24,25,29,,,,1.6,0.9,1.3*3F
$GPVTG,318.4,T,,M,12.3,N,22.8,K,A*0B
$GPRMC,183000.00,A,3403.4520,N,11711.5610,W,12.3,318.4,181026,12.1,E,A*2F
$GPGGA,183001.00,3403.4625,N,11711.5528,W,1,09,0.9,402.1,M,-32.1,M,,*53
$GPGSA,A,3,02,05,12,13,15,18,24,25,29,,,,1.6,0.9,1.3*3F
$GPVTG,318.6,T,,M,12.4,N,23.0,K,A*07
$GPRMC,183001.00,A,3403.4625,N,11711.5528,W,12.4,318.6,181026,12.1,E,A*25
`

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.nmea")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// syncBuffer is a bytes.Buffer safe for the feeder goroutine to write to.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunBatchDump(t *testing.T) {
	var out bytes.Buffer
	err := RunBatchDump(writeFixture(t, fixture), feeder.Options{SpeedMultiplier: 2}, &out)
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "2 batches, one every 500ms")
	assert.Contains(t, s, "   0   4 sentences  time=18:30:00.000 lat=34.057533")
	assert.Contains(t, s, "   1   4 sentences  time=18:30:01.000")
	assert.NotContains(t, s, "invalid")
}

func TestRunBatchDump_ReportsInvalid(t *testing.T) {
	bad := strings.Replace(fixture, "*0B", "*0C", 1)
	var out bytes.Buffer
	err := RunBatchDump(writeFixture(t, bad), feeder.DefaultOptions(), &out)
	require.Error(t, err)
	assert.Equal(t, "1 invalid sentences", err.Error())
	assert.Contains(t, out.String(), "invalid: batch 0 line 2")
}

func TestRunBatchDump_MissingFile(t *testing.T) {
	err := RunBatchDump(filepath.Join(t.TempDir(), "none.nmea"), feeder.DefaultOptions(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open fixture")
}

func TestPrintBatch(t *testing.T) {
	var out bytes.Buffer
	printBatch(&out, []byte("$GPGGA,1\r\n$GPRMC,1\r\n"))
	assert.Equal(t, "[NMEA]  2 sentences\n        $GPGGA,1\n        $GPRMC,1\n", out.String())
}

func TestPrintFix(t *testing.T) {
	payload, err := gps.Encode(gps.Fix{Epoch: 3, Latitude: 34.5, Validity: "A"}, gps.FormatMsgpack)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printFix(&out, payload, gps.FormatMsgpack))
	assert.Contains(t, out.String(), "[GPS ]  epoch=3")
	assert.Contains(t, out.String(), "lat=34.500000")

	assert.Error(t, printFix(&out, []byte("nope"), gps.FormatJSON))
}

func TestRunFeeder_ConsoleEcho(t *testing.T) {
	cfg := config.Default()
	cfg.NMEAFixturePath = writeFixture(t, fixture)
	cfg.NMEASpeedMultiplier = 50
	cfg.ConsoleEcho = true
	cfg.WebServerPort = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() { errCh <- runFeeder(ctx, cfg, out) }()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "[NMEA]") >= 3
	}, 3*time.Second, 10*time.Millisecond)

	// round robin: the third delivery is epoch 0 again
	lines := strings.Split(out.String(), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "[NMEA] epoch=  0"))
	assert.True(t, strings.HasPrefix(lines[1], "[NMEA] epoch=  1"))
	assert.True(t, strings.HasPrefix(lines[2], "[NMEA] epoch=  0"))

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("runFeeder did not return after cancel")
	}
}

func TestRunFeeder_MissingFixtureStaysIdle(t *testing.T) {
	cfg := config.Default()
	cfg.NMEAFixturePath = filepath.Join(t.TempDir(), "gone.nmea")
	cfg.ConsoleEcho = true
	cfg.WebServerPort = 0

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	out := &syncBuffer{}
	require.NoError(t, runFeeder(ctx, cfg, out))
	assert.Empty(t, out.String())
}

func TestPlayback(t *testing.T) {
	f, err := feeder.New(strings.NewReader(fixture), feeder.Options{SpeedMultiplier: 100})
	require.NoError(t, err)
	defer f.Close()

	var mu sync.Mutex
	var seqs []int
	pb := &playback{f: f, sink: feeder.SinkFunc(func(b feeder.Batch) {
		mu.Lock()
		seqs = append(seqs, b.Seq)
		mu.Unlock()
	})}

	require.True(t, pb.Start())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seqs) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	pb.Stop()
	time.Sleep(2 * f.Period())
	pb.Rewind()

	st := pb.Stats()
	assert.False(t, st.Running)
	assert.Equal(t, 0, st.Cursor)
	assert.Equal(t, 2, st.Batches)
}
