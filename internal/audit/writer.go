package audit

/*
Writer — асинхронная персистентность журнала аудита.

- Non-blocking: события уходят из Hot Path оркестратора через неблокирующий
  канал, задержки базы не влияют на время шага.
- Batching: накопление в памяти и пакетная вставка по таймеру или при
  достижении лимита пачки.
- Drain Pattern: при остановке канал запирается, воркер вычитывает остатки
  и делает финальный flush — события не теряются при перезагрузке.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Storage определяет, куда физически сохраняются события.
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз.
	WriteBatch(ctx context.Context, events []Event) error
}

// WriterConfig — размеры буфера и пачки, период сброса.
type WriterConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 500 * time.Millisecond
	}
	return c
}

type Writer struct {
	ch     chan Event
	repo   Storage
	cfg    WriterConfig
	logger *zap.Logger
	wg     sync.WaitGroup

	// Атомарный флаг (0 - открыт, 1 - закрыт): защита от Log после Stop.
	isClosed int32

	// fillGauge, если задан, получает текущую заполненность буфера.
	fillGauge func(n int)
}

func NewWriter(repo Storage, cfg WriterConfig, logger *zap.Logger) *Writer {
	cfg = cfg.withDefaults()
	return &Writer{
		ch:     make(chan Event, cfg.BufferSize),
		repo:   repo,
		cfg:    cfg,
		logger: logger.With(zap.String("mod", "audit-writer")),
	}
}

// SetFillGauge подключает метрику заполненности буфера (backpressure).
func (w *Writer) SetFillGauge(g func(n int)) { w.fillGauge = g }

func (w *Writer) Start() {
	w.wg.Add(1)
	go w.worker()
}

// Stop запирает вход в канал и ждет, пока воркер всё допишет.
func (w *Writer) Stop() {
	atomic.StoreInt32(&w.isClosed, 1)

	// Крошечная пауза, чтобы текущие Enqueue успели проскочить.
	time.Sleep(10 * time.Millisecond)

	w.logger.Info("stopping audit writer: closing channel and flushing buffer...")
	close(w.ch)
	w.wg.Wait()
	w.logger.Info("audit writer stopped gracefully")
}

// Enqueue реализует audit.Sink. При переполнении буфера применяется
// Load Shedding: событие остается в памяти Trail, но в базу не попадает,
// факт сброса уходит в обычный лог.
func (w *Writer) Enqueue(event Event) {
	if atomic.LoadInt32(&w.isClosed) == 1 {
		w.logger.Warn("audit event dropped: writer is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case w.ch <- event:
		if w.fillGauge != nil {
			w.fillGauge(len(w.ch))
		}
	default:
		w.logger.Error("audit_buffer_overflow",
			zap.String("id", event.ID),
			zap.String("type", event.Type),
		)
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()

	batch := make([]Event, 0, w.cfg.BatchSize)
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст может быть уже закрыт.
			if err := w.repo.WriteBatch(context.Background(), batch); err != nil {
				w.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-w.ch:
			if !ok {
				// Канал закрыт в Stop(): дочитали остатки, финальный сброс.
				flush()
				w.logger.Info("audit writer worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
