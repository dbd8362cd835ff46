package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTrail(opts ...Option) *Trail {
	return NewTrail(SHA256Hasher{}, zap.NewNop(), opts...)
}

func TestTrailChainLinks(t *testing.T) {
	tr := newTestTrail()

	id1 := tr.LogEvent("run_started", map[string]any{"run_id": "r1"}, nil, "info")
	id2 := tr.LogEvent("action_completed", map[string]any{"agent_id": "validator"}, []string{"validator"}, "info")
	assert.NotEqual(t, id1, id2)

	events := tr.Events()
	require.Len(t, events, 2)
	assert.Empty(t, events[0].PreviousHash, "first event anchors the chain")
	assert.Equal(t, events[0].Hash, events[1].PreviousHash)
	assert.NotEmpty(t, events[1].Hash)
}

func TestTrailVerifyValidChain(t *testing.T) {
	tr := newTestTrail()
	for i := 0; i < 25; i++ {
		tr.LogEvent("tick", map[string]any{"i": i}, nil, "info")
	}

	report := tr.VerifyChainIntegrity()
	assert.True(t, report.IsValid)
	assert.False(t, report.CorruptionDetected)
	assert.Equal(t, 25, report.TotalEvents)
	assert.Empty(t, report.Problems)
}

func TestTrailVerifyDetectsDataTampering(t *testing.T) {
	tr := newTestTrail()
	for i := 0; i < 5; i++ {
		tr.LogEvent("tick", map[string]any{"i": i}, nil, "info")
	}

	tr.Tamper(2, func(ev *Event) {
		ev.Data["i"] = 999
	})

	report := tr.VerifyChainIntegrity()
	require.False(t, report.IsValid)
	assert.True(t, report.CorruptionDetected)
	require.NotEmpty(t, report.Problems)
	assert.Contains(t, report.Problems[0], "hash mismatch")
}

func TestTrailVerifyDetectsBrokenLink(t *testing.T) {
	tr := newTestTrail()
	for i := 0; i < 5; i++ {
		tr.LogEvent("tick", map[string]any{"i": i}, nil, "info")
	}

	tr.Tamper(3, func(ev *Event) {
		ev.PreviousHash = "forged"
	})

	report := tr.VerifyChainIntegrity()
	require.False(t, report.IsValid)

	found := false
	for _, p := range report.Problems {
		if strings.Contains(p, "chain link broken") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTrailCheckpoints(t *testing.T) {
	tr := newTestTrail() // DefaultCheckpointEvery = 10
	for i := 0; i < 25; i++ {
		tr.LogEvent("tick", nil, nil, "info")
	}

	cps := tr.Checkpoints()
	require.Len(t, cps, 2)
	assert.Equal(t, 10, cps[0].AtEvent)
	assert.Equal(t, 20, cps[1].AtEvent)

	events := tr.Events()
	assert.Equal(t, events[9].Hash, cps[0].Hash)
	assert.Equal(t, events[9].ID, cps[0].EventID)
}

func TestTrailCheckpointEveryOption(t *testing.T) {
	tr := newTestTrail(WithCheckpointEvery(3))
	for i := 0; i < 7; i++ {
		tr.LogEvent("tick", nil, nil, "info")
	}
	assert.Len(t, tr.Checkpoints(), 2)

	disabled := newTestTrail(WithCheckpointEvery(0))
	for i := 0; i < 30; i++ {
		disabled.LogEvent("tick", nil, nil, "info")
	}
	assert.Empty(t, disabled.Checkpoints())
}

func TestTrailCheckpointSink(t *testing.T) {
	var persisted []Checkpoint
	tr := newTestTrail(
		WithCheckpointEvery(2),
		WithCheckpointSink(func(cp Checkpoint) { persisted = append(persisted, cp) }),
	)
	for i := 0; i < 5; i++ {
		tr.LogEvent("tick", nil, nil, "info")
	}

	require.Len(t, persisted, 2)
	assert.Equal(t, tr.Checkpoints(), persisted)
}

func TestTrailExportMerkleRoot(t *testing.T) {
	tr := newTestTrail()
	for i := 0; i < 3; i++ { // нечетное число листьев: последний дублируется
		tr.LogEvent("tick", map[string]any{"i": i}, nil, "info")
	}

	exp := tr.Export()
	require.NotEmpty(t, exp.MerkleRoot)
	assert.True(t, exp.Report.IsValid)
	assert.Len(t, exp.Events, 3)

	tr.Tamper(1, func(ev *Event) { ev.Hash = "forged" })
	exp2 := tr.Export()
	assert.NotEqual(t, exp.MerkleRoot, exp2.MerkleRoot, "merkle root must follow event hashes")
}

func TestTrailExportEmpty(t *testing.T) {
	tr := newTestTrail()
	exp := tr.Export()
	assert.Empty(t, exp.MerkleRoot)
	assert.True(t, exp.Report.IsValid)
}

func TestTrailClear(t *testing.T) {
	tr := newTestTrail()
	tr.LogEvent("tick", nil, nil, "info")
	tr.Clear()

	assert.Empty(t, tr.Events())
	assert.Empty(t, tr.Checkpoints())

	// После очистки цепочка начинается заново
	tr.LogEvent("tick", nil, nil, "info")
	assert.Empty(t, tr.Events()[0].PreviousHash)
}

func TestVerifyEventsStandalone(t *testing.T) {
	tr := newTestTrail()
	for i := 0; i < 4; i++ {
		tr.LogEvent("tick", map[string]any{"i": i}, nil, "info")
	}

	// Проверка по копии, как это делает консоль поверх выборки из базы
	report := VerifyEvents(tr.Events(), SHA256Hasher{})
	assert.True(t, report.IsValid)

	events := tr.Events()
	events[1].Data["i"] = -1
	report = VerifyEvents(events, SHA256Hasher{})
	assert.False(t, report.IsValid)
}

func TestHashersDisagree(t *testing.T) {
	payload := []byte("same input")
	assert.NotEqual(t, SHA256Hasher{}.Sum(payload), SHA3Hasher{}.Sum(payload))
	assert.Equal(t, "sha256", SHA256Hasher{}.Name())
	assert.Equal(t, "sha3-256", SHA3Hasher{}.Name())
}
