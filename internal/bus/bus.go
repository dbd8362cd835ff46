package bus

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrHistoryDisabled — replay запрошен при выключенной истории (размер 0).
var ErrHistoryDisabled = errors.New("event history is disabled")

// Event — единица доставки: тип плюс произвольная полезная нагрузка.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Handler вызывается синхронно при Emit и Replay.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
	once    bool
}

// Bus — внутрипроцессный pub/sub по строковому типу события.
// Корректность пайплайна от шины не зависит: она питает наблюдателей
// (UI, логирование), поэтому паника одного обработчика изолируется
// и не мешает остальным.
type Bus struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[string][]subscription
	history []Event // кольцевой буфер последних histSize событий
	histPos int
	histLen int
	logger  *zap.Logger
}

// New создает шину с историей на histSize событий (0 выключает replay).
func New(histSize int, logger *zap.Logger) *Bus {
	b := &Bus{
		subs:   make(map[string][]subscription),
		logger: logger.Named("bus"),
	}
	if histSize > 0 {
		b.history = make([]Event, histSize)
	}
	return b
}

// On регистрирует постоянный обработчик, возвращает id подписки для Off.
func (b *Bus) On(eventType string, h Handler) uint64 {
	return b.subscribe(eventType, h, false)
}

// Once регистрирует обработчик на одну доставку.
func (b *Bus) Once(eventType string, h Handler) uint64 {
	return b.subscribe(eventType, h, true)
}

func (b *Bus) subscribe(eventType string, h Handler, once bool) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[eventType] = append(b.subs[eventType], subscription{id: b.nextID, handler: h, once: once})
	return b.nextID
}

// Off снимает подписку по id. Неизвестный id молча игнорируется.
func (b *Bus) Off(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i := range subs {
		if subs[i].id == id {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Emit доставляет событие всем текущим подписчикам типа.
// Снимок подписчиков берется под локом, сами обработчики зовутся вне лока:
// обработчик может подписываться и публиковать без дедлока.
func (b *Bus) Emit(eventType string, payload map[string]any) {
	ev := Event{Type: eventType, Timestamp: time.Now(), Payload: payload}

	b.mu.Lock()
	b.record(ev)
	subs := b.subs[eventType]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)

	// once-подписки удаляются до вызова: повторный Emit из обработчика
	// не должен доставить их второй раз.
	kept := subs[:0]
	for _, s := range subs {
		if !s.once {
			kept = append(kept, s)
		}
	}
	b.subs[eventType] = kept
	b.mu.Unlock()

	for _, s := range snapshot {
		b.invoke(s.handler, ev)
	}
}

// invoke изолирует панику обработчика: один упавший не валит остальных
// и не портит состояние шины.
func (b *Bus) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("type", ev.Type),
				zap.Any("panic", r))
		}
	}()
	h(ev)
}

func (b *Bus) record(ev Event) {
	if b.history == nil {
		return
	}
	b.history[b.histPos] = ev
	b.histPos = (b.histPos + 1) % len(b.history)
	if b.histLen < len(b.history) {
		b.histLen++
	}
}

// historySnapshot возвращает записанные события от старых к новым.
func (b *Bus) historySnapshot() []Event {
	out := make([]Event, 0, b.histLen)
	start := b.histPos - b.histLen
	if start < 0 {
		start += len(b.history)
	}
	for i := 0; i < b.histLen; i++ {
		out = append(out, b.history[(start+i)%len(b.history)])
	}
	return out
}

// Replay повторно доставляет текущим подписчикам исторические события типа
// eventType в исходном порядке. from (нулевое время = без фильтра) отсекает
// ранние события, limit > 0 ограничивает количество.
func (b *Bus) Replay(eventType string, from time.Time, limit int) error {
	b.mu.Lock()
	if b.history == nil {
		b.mu.Unlock()
		return ErrHistoryDisabled
	}

	var matched []Event
	for _, ev := range b.historySnapshot() {
		if ev.Type != eventType {
			continue
		}
		if !from.IsZero() && ev.Timestamp.Before(from) {
			continue
		}
		matched = append(matched, ev)
		if limit > 0 && len(matched) == limit {
			break
		}
	}

	subs := b.subs[eventType]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.mu.Unlock()

	for _, ev := range matched {
		for _, s := range snapshot {
			b.invoke(s.handler, ev)
		}
	}
	return nil
}
