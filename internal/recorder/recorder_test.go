package recorder

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(i int) model.SampleRecord {
	return model.SampleRecord{
		Timestamp: time.Date(2024, 5, 1, 12, 0, i, 0, time.UTC),
		DPID:      1,
		Priority:  model.PriorityL2,
		MatchKey:  "in_port=1,eth_src=00:00:00:00:00:0a",
		Identity:  "mac:00:00:00:00:00:0a",
		Duration:  2 * time.Second,
		Features: model.FeatureVector{
			PacketRate:     500,
			ByteRate:       32000,
			MeanPacketSize: 64,
			PacketCount:    1000,
			ByteCount:      64000,
		},
		Verdict: model.VerdictAttack,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "samples.csv")
	w, err := NewCSVWriter(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, w.Write([]model.SampleRecord{sampleRecord(0), sampleRecord(1)}))
	require.NoError(t, w.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"2024-05-01T12:00:00Z", "0000000000000001", "1",
		"in_port=1,eth_src=00:00:00:00:00:0a", "mac:00:00:00:00:00:0a", "2.000",
		"500.000", "32000.000", "64.000", "1000", "64000", "attack",
	}, rows[1])

	// Reopening appends without a second header.
	w, err = NewCSVWriter(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, w.Write([]model.SampleRecord{sampleRecord(2)}))
	require.NoError(t, w.Close())
	assert.Len(t, readCSV(t, path), 4)

	_, err = NewCSVWriter("", time.Second)
	assert.Error(t, err)
}

func TestRecorder_FlushesOnStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	r, err := New(config.RecorderConfig{
		Enabled:    true,
		BufferSize: 64,
		Writers: []config.WriterDef{
			{Type: "csv", Enabled: true, FlushInterval: "1h", CSV: config.CSVConfig{Path: path}},
		},
	})
	require.NoError(t, err)
	r.Start()
	for i := 0; i < 10; i++ {
		r.Record(sampleRecord(i))
	}
	r.Stop()
	r.Record(sampleRecord(99)) // ignored after stop

	assert.Len(t, readCSV(t, path), 11)
	assert.Zero(t, r.Dropped())
}

type memWriter struct {
	mu      sync.Mutex
	batches [][]model.SampleRecord
	closed  bool
}

func (w *memWriter) Write(records []model.SampleRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, records)
	return nil
}
func (w *memWriter) GetInterval() time.Duration { return 10 * time.Millisecond }
func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func (w *memWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func TestRecorder_PeriodicFlush(t *testing.T) {
	a, b := &memWriter{}, &memWriter{}
	r := NewWithWriters(16, a, b)
	r.Start()
	defer r.Stop()

	r.Record(sampleRecord(0))
	r.Record(sampleRecord(1))
	require.Eventually(t, func() bool { return a.total() == 2 && b.total() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	w := &memWriter{}
	r := NewWithWriters(1, w)
	// Not started: the intake queue holds one record.
	r.Record(sampleRecord(0))
	r.Record(sampleRecord(1))
	assert.Equal(t, uint64(1), r.Dropped())
	r.Stop()
	assert.True(t, w.closed)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.RecorderConfig{Enabled: true})
	assert.Error(t, err, "no writers")

	_, err = New(config.RecorderConfig{Writers: []config.WriterDef{{Type: "csv", Enabled: true, FlushInterval: "1s"}}})
	assert.Error(t, err, "csv without path")
}
