package stats

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewTransfer(t *testing.T) {
	tr := NewTransfer("alice", Upload, 4_000_000, t0, t0.Add(2*time.Second), 50*time.Millisecond)
	assert.Equal(t, 2.0, tr.DurationSecs)
	assert.Equal(t, 2.0, tr.DataRateMbps)
	assert.InDelta(t, 0.05, tr.LatencySecs, 1e-9)

	instant := NewTransfer("alice", Download, 10, t0, t0, 0)
	assert.Zero(t, instant.DataRateMbps)

	backwards := NewTransfer("alice", Download, 10, t0, t0.Add(-time.Second), 0)
	assert.Zero(t, backwards.DurationSecs)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize([]Transfer{
		NewTransfer("a", Upload, 1_000_000, t0, t0.Add(time.Second), time.Second),
		NewTransfer("a", Download, 3_000_000, t0, t0.Add(time.Second), 3*time.Second),
	})
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, int64(4_000_000), s.TotalBytes)
	assert.InDelta(t, 2.0, s.AvgDataRateMbps, 1e-9)
	assert.InDelta(t, 1.0, s.AvgTransferSecs, 1e-9)
	assert.InDelta(t, 2.0, s.AvgLatencySecs, 1e-9)
}

func TestNewReportNeverNil(t *testing.T) {
	r := NewReport(nil)
	assert.NotNil(t, r.Transfers)
	assert.Zero(t, r.Summary.Count)
}

func TestHistoryBounded(t *testing.T) {
	h, err := OpenHistory("", 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		h.RecordTransfer(NewTransfer("alice", Upload, int64(i), t0, t0, 0))
	}
	all := h.All()
	require.Len(t, all, 3)
	assert.Equal(t, int64(2), all[0].Size)
	assert.Equal(t, int64(4), all[2].Size)
	assert.NoError(t, h.Close())
}

func TestHistoryForUser(t *testing.T) {
	h, err := OpenHistory("", 0)
	require.NoError(t, err)
	h.RecordTransfer(NewTransfer("alice", Upload, 1, t0, t0, 0))
	h.RecordTransfer(NewTransfer("bob", Upload, 2, t0, t0, 0))
	h.RecordTransfer(NewTransfer("alice", Download, 3, t0, t0, 0))

	mine := h.ForUser("alice")
	require.Len(t, mine, 2)
	assert.Equal(t, Download, mine[1].Direction)

	assert.Empty(t, h.ForUser("carol"))
	assert.NotNil(t, h.ForUser("carol"))

	r := h.Report("bob")
	assert.Equal(t, 1, r.Summary.Count)
	assert.Equal(t, 3, h.Len())
}

func TestHistoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "transfers.json")

	h, err := OpenHistory(path, 10)
	require.NoError(t, err)
	h.RecordTransfer(NewTransfer("alice", Upload, 5, t0, t0.Add(time.Second), time.Millisecond))
	require.NoError(t, h.Close())

	reopened, err := OpenHistory(path, 10)
	require.NoError(t, err)
	all := reopened.All()
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].Username)
	assert.True(t, t0.Equal(all[0].StartedAt))
}

func TestHistoryLoadTrimsToLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfers.json")
	h, err := OpenHistory(path, 10)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		h.RecordTransfer(NewTransfer("alice", Upload, int64(i), t0, t0, 0))
	}
	require.NoError(t, h.Save())

	small, err := OpenHistory(path, 4)
	require.NoError(t, err)
	all := small.All()
	require.Len(t, all, 4)
	assert.Equal(t, int64(6), all[0].Size)
}

func TestHistoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfers.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0644))
	_, err := OpenHistory(path, 10)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, nil, 0644))
	h, err := OpenHistory(path, 10)
	require.NoError(t, err)
	assert.Zero(t, h.Len())
}

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (c *countingSink) RecordTransfer(Transfer) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func TestMulti(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := Multi{a, nil, b, Discard}
	m.RecordTransfer(Transfer{})
	m.RecordTransfer(Transfer{})
	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)
}

func TestHistoryConcurrent(t *testing.T) {
	h, err := OpenHistory("", 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.RecordTransfer(Transfer{Username: "alice"})
				_ = h.ForUser("alice")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, h.Len())
}
