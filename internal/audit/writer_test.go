package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStorage копит пачки в памяти, имитируя репозиторий.
type fakeStorage struct {
	mu      sync.Mutex
	batches [][]Event
}

func (f *fakeStorage) WriteBatch(_ context.Context, events []Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]Event, len(events))
	copy(batch, events)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeStorage) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func (f *fakeStorage) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestWriterFlushesOnBatchSize(t *testing.T) {
	repo := &fakeStorage{}
	w := NewWriter(repo, WriterConfig{
		BufferSize:    100,
		BatchSize:     5,
		FlushInterval: time.Hour, // сброс только по размеру пачки
	}, zap.NewNop())
	w.Start()
	defer w.Stop()

	for i := 0; i < 5; i++ {
		w.Enqueue(Event{ID: "e", Type: "tick"})
	}

	require.Eventually(t, func() bool { return repo.total() == 5 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, repo.batchCount())
}

func TestWriterFlushesOnInterval(t *testing.T) {
	repo := &fakeStorage{}
	w := NewWriter(repo, WriterConfig{
		BufferSize:    100,
		BatchSize:     1000, // по размеру не сбросится
		FlushInterval: 30 * time.Millisecond,
	}, zap.NewNop())
	w.Start()
	defer w.Stop()

	w.Enqueue(Event{ID: "a", Type: "tick"})
	w.Enqueue(Event{ID: "b", Type: "tick"})

	require.Eventually(t, func() bool { return repo.total() == 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestWriterStopDrainsBuffer(t *testing.T) {
	repo := &fakeStorage{}
	w := NewWriter(repo, WriterConfig{
		BufferSize:    100,
		BatchSize:     1000,
		FlushInterval: time.Hour,
	}, zap.NewNop())
	w.Start()

	for i := 0; i < 7; i++ {
		w.Enqueue(Event{ID: "e", Type: "tick"})
	}
	w.Stop()

	assert.Equal(t, 7, repo.total(), "Stop must flush everything buffered")
}

func TestWriterDropsAfterStop(t *testing.T) {
	repo := &fakeStorage{}
	w := NewWriter(repo, WriterConfig{}, zap.NewNop())
	w.Start()
	w.Stop()

	// Не паникует и не пишет
	w.Enqueue(Event{ID: "late", Type: "tick"})
	assert.Zero(t, repo.total())
}

func TestWriterFillGauge(t *testing.T) {
	repo := &fakeStorage{}
	w := NewWriter(repo, WriterConfig{BufferSize: 10, BatchSize: 100, FlushInterval: time.Hour}, zap.NewNop())

	var mu sync.Mutex
	seen := 0
	w.SetFillGauge(func(n int) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	w.Start()
	defer w.Stop()

	w.Enqueue(Event{ID: "e", Type: "tick"})
	mu.Lock()
	assert.Equal(t, 1, seen)
	mu.Unlock()
}
