package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusEmitDeliversToSubscribers(t *testing.T) {
	b := New(0, zap.NewNop())

	var got []Event
	b.On("run_started", func(ev Event) { got = append(got, ev) })
	b.On("run_started", func(ev Event) { got = append(got, ev) })
	b.On("other", func(ev Event) { t.Fatal("wrong type delivered") })

	b.Emit("run_started", map[string]any{"run_id": "r1"})

	require.Len(t, got, 2)
	assert.Equal(t, "run_started", got[0].Type)
	assert.Equal(t, "r1", got[0].Payload["run_id"])
}

func TestBusOnceDeliversExactlyOnce(t *testing.T) {
	b := New(0, zap.NewNop())

	calls := 0
	b.Once("tick", func(Event) { calls++ })

	b.Emit("tick", nil)
	b.Emit("tick", nil)
	b.Emit("tick", nil)

	assert.Equal(t, 1, calls)
}

func TestBusOff(t *testing.T) {
	b := New(0, zap.NewNop())

	calls := 0
	id := b.On("tick", func(Event) { calls++ })

	b.Emit("tick", nil)
	b.Off("tick", id)
	b.Emit("tick", nil)

	assert.Equal(t, 1, calls)
	// Неизвестный id не паникует
	b.Off("tick", 9999)
}

func TestBusPanicIsolation(t *testing.T) {
	b := New(0, zap.NewNop())

	survived := false
	b.On("tick", func(Event) { panic("handler exploded") })
	b.On("tick", func(Event) { survived = true })

	require.NotPanics(t, func() { b.Emit("tick", nil) })
	assert.True(t, survived, "panic of one handler must not starve the rest")
}

func TestBusEmitFromHandlerNoDeadlock(t *testing.T) {
	b := New(0, zap.NewNop())

	chained := false
	b.On("first", func(Event) { b.Emit("second", nil) })
	b.On("second", func(Event) { chained = true })

	done := make(chan struct{})
	go func() {
		b.Emit("first", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit from handler deadlocked")
	}
	assert.True(t, chained)
}

func TestBusReplay(t *testing.T) {
	b := New(8, zap.NewNop())

	b.Emit("step", map[string]any{"n": 1})
	b.Emit("noise", nil)
	b.Emit("step", map[string]any{"n": 2})
	b.Emit("step", map[string]any{"n": 3})

	var replayed []int
	b.On("step", func(ev Event) { replayed = append(replayed, ev.Payload["n"].(int)) })

	require.NoError(t, b.Replay("step", time.Time{}, 0))
	assert.Equal(t, []int{1, 2, 3}, replayed, "history replays in original order")

	replayed = nil
	require.NoError(t, b.Replay("step", time.Time{}, 2))
	assert.Equal(t, []int{1, 2}, replayed)
}

func TestBusReplayRingOverflow(t *testing.T) {
	b := New(3, zap.NewNop())

	for i := 1; i <= 5; i++ {
		b.Emit("step", map[string]any{"n": i})
	}

	var replayed []int
	b.On("step", func(ev Event) { replayed = append(replayed, ev.Payload["n"].(int)) })

	require.NoError(t, b.Replay("step", time.Time{}, 0))
	assert.Equal(t, []int{3, 4, 5}, replayed, "ring keeps only the newest events")
}

func TestBusReplayHistoryDisabled(t *testing.T) {
	b := New(0, zap.NewNop())
	b.Emit("step", nil)

	err := b.Replay("step", time.Time{}, 0)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}
