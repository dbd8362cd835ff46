package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink принимает события для асинхронной персистентности (Writer).
// Журнал не ждет подтверждения записи: цепочка живет в памяти,
// база — поток для консоли и восстановления.
type Sink interface {
	Enqueue(event Event)
}

// DefaultCheckpointEvery — период снимков-якорей.
const DefaultCheckpointEvery = 10

// Trail — append-only журнал с hash-цепочкой. Пишут в него оркестратор и
// внешние коллабораторы, поэтому вход сериализуется мьютексом.
type Trail struct {
	mu              sync.Mutex
	hasher          Hasher
	events          []Event
	checkpoints     []Checkpoint
	checkpointEvery int
	sink            Sink
	checkpointSink  func(Checkpoint)
	logger          *zap.Logger
}

// Option настраивает Trail при сборке.
type Option func(*Trail)

// WithSink подключает асинхронную персистентность.
func WithSink(s Sink) Option { return func(t *Trail) { t.sink = s } }

// WithCheckpointEvery меняет период контрольных снимков (<=0 отключает).
func WithCheckpointEvery(n int) Option { return func(t *Trail) { t.checkpointEvery = n } }

// WithCheckpointSink подключает персистентность якорей. Вызывается вне
// мьютекса журнала; медленное хранилище требует собственной горутины.
func WithCheckpointSink(fn func(Checkpoint)) Option {
	return func(t *Trail) { t.checkpointSink = fn }
}

func NewTrail(hasher Hasher, logger *zap.Logger, opts ...Option) *Trail {
	t := &Trail{
		hasher:          hasher,
		checkpointEvery: DefaultCheckpointEvery,
		logger:          logger.Named("audit"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LogEvent строит очередное звено цепочки и возвращает его id.
// previousHash — хэш последнего события, пустая строка для первого.
func (t *Trail) LogEvent(eventType string, data map[string]any, agentTrace []string, safetyLevel string) string {
	t.mu.Lock()

	ev := Event{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		Type:        eventType,
		Data:        data,
		AgentTrace:  agentTrace,
		SafetyLevel: safetyLevel,
	}
	if n := len(t.events); n > 0 {
		ev.PreviousHash = t.events[n-1].Hash
	}
	ev.Hash = t.hasher.Sum(ev.canonical())

	t.events = append(t.events, ev)

	var cp Checkpoint
	haveCP := t.checkpointEvery > 0 && len(t.events)%t.checkpointEvery == 0
	if haveCP {
		cp = Checkpoint{
			AtEvent:   len(t.events),
			EventID:   ev.ID,
			Hash:      ev.Hash,
			Timestamp: ev.Timestamp,
		}
		t.checkpoints = append(t.checkpoints, cp)
	}

	sink := t.sink
	cpSink := t.checkpointSink
	t.mu.Unlock()

	if sink != nil {
		sink.Enqueue(ev)
	}
	if haveCP && cpSink != nil {
		cpSink(cp)
	}
	return ev.ID
}

// Report — вердикт проверки целостности.
type Report struct {
	IsValid            bool     `json:"is_valid"`
	TotalEvents        int      `json:"total_events"`
	CorruptionDetected bool     `json:"corruption_detected"`
	Problems           []string `json:"problems,omitempty"`
}

// VerifyChainIntegrity пересчитывает хэш каждого события и непрерывность
// ссылок. Любое расхождение фиксируется, авторемонта нет: журнал
// tamper-evident, не tamper-proof.
func (t *Trail) VerifyChainIntegrity() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return verify(t.events, t.hasher)
}

// VerifyEvents проверяет цепочку, восстановленную из внешнего хранилища
// (например, выборку консоли из Postgres).
func VerifyEvents(events []Event, hasher Hasher) Report {
	return verify(events, hasher)
}

func verify(events []Event, hasher Hasher) Report {
	report := Report{IsValid: true, TotalEvents: len(events)}

	prevHash := ""
	for i, ev := range events {
		if ev.PreviousHash != prevHash {
			report.Problems = append(report.Problems,
				fmt.Sprintf("event %d (%s): chain link broken", i, ev.ID))
		}
		if recomputed := hasher.Sum(ev.canonical()); recomputed != ev.Hash {
			report.Problems = append(report.Problems,
				fmt.Sprintf("event %d (%s): hash mismatch", i, ev.ID))
		}
		prevHash = ev.Hash
	}

	if len(report.Problems) > 0 {
		report.IsValid = false
		report.CorruptionDetected = true
	}
	return report
}

// Export — полный журнал с Merkle-корнем по хэшам событий и текущим вердиктом.
type Export struct {
	Events      []Event      `json:"events"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	MerkleRoot  string       `json:"merkle_root"`
	Report      Report       `json:"report"`
	ExportedAt  time.Time    `json:"exported_at"`
}

func (t *Trail) Export() Export {
	t.mu.Lock()
	defer t.mu.Unlock()

	events := make([]Event, len(t.events))
	copy(events, t.events)
	checkpoints := make([]Checkpoint, len(t.checkpoints))
	copy(checkpoints, t.checkpoints)

	return Export{
		Events:      events,
		Checkpoints: checkpoints,
		MerkleRoot:  merkleRoot(events, t.hasher),
		Report:      verify(t.events, t.hasher),
		ExportedAt:  time.Now(),
	}
}

// Events возвращает копию журнала (для тестов и инспекции).
func (t *Trail) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Checkpoints возвращает копию якорей.
func (t *Trail) Checkpoints() []Checkpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Checkpoint, len(t.checkpoints))
	copy(out, t.checkpoints)
	return out
}

// Tamper подменяет поле события по индексу. Только для тестов целостности.
func (t *Trail) Tamper(idx int, mutate func(*Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx >= 0 && idx < len(t.events) {
		mutate(&t.events[idx])
	}
}

// Clear — явная очистка журнала (граница ретенции).
func (t *Trail) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
	t.checkpoints = nil
	t.logger.Info("audit trail cleared")
}

// merkleRoot строит дерево по хэшам событий; нечетный лист дублируется.
func merkleRoot(events []Event, hasher Hasher) string {
	if len(events) == 0 {
		return ""
	}
	level := make([]string, len(events))
	for i, ev := range events {
		level[i] = ev.Hash
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hasher.Sum([]byte(level[i]+level[i+1])))
		}
		level = next
	}
	return level[0]
}
