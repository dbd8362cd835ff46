package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"go.uber.org/zap"
)

// ErrOpen возвращается, когда предохранитель разомкнут и fallback не задан.
// Текст — часть контракта для вызывающих.
var ErrOpen = errors.New("Circuit is OPEN")

// Config — пороги одного предохранителя.
type Config struct {
	MaxFailures      uint32        // подряд идущих ошибок до размыкания
	ResetTimeout     time.Duration // пауза перед попыткой HALF_OPEN
	SuccessThreshold uint32        // успехов подряд в HALF_OPEN до замыкания
}

// DefaultConfig — пороги по умолчанию для шагов пайплайна.
var DefaultConfig = Config{
	MaxFailures:      5,
	ResetTimeout:     30 * time.Second,
	SuccessThreshold: 2,
}

// Operation — защищаемый вызов.
type Operation func(ctx context.Context) (any, error)

// Breaker оборачивает sony/gobreaker в контракт оркестратора: немедленный
// отказ "Circuit is OPEN" с опциональным fallback и независимые от гейтинга
// счетчики totalExecutions/totalSuccesses для отчетности.
//
// Соответствие порогов: ReadyToTrip по ConsecutiveFailures >= MaxFailures,
// Timeout = ResetTimeout, MaxRequests = SuccessThreshold (gobreaker замыкается
// после MaxRequests успехов подряд в HALF_OPEN, любая ошибка в HALF_OPEN
// немедленно размыкает — ровно требуемый автомат состояний).
type Breaker struct {
	name   string
	cfg    Config
	logger *zap.Logger

	// Мьютекс сериализует счетчики и подмену cb при Reset: инстанс разделяется
	// между прогонами одного agentID.
	mu              sync.Mutex
	cb              *gobreaker.CircuitBreaker
	totalExecutions uint64
	totalSuccesses  uint64

	onStateChange func(name string, state domain.BreakerState)
}

func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.Named("breaker").With(zap.String("agent_id", name)),
	}
	b.cb = gobreaker.NewCircuitBreaker(b.settings())
	return b
}

// SetStateChangeHook подключает наблюдателя переходов (метрики).
// Вызывать до первого Execute.
func (b *Breaker) SetStateChangeHook(hook func(name string, state domain.BreakerState)) {
	b.onStateChange = hook
}

func (b *Breaker) settings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.cfg.SuccessThreshold,
		Timeout:     b.cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if b.onStateChange != nil {
				b.onStateChange(name, mapState(to))
			}
		},
	}
}

// Execute пропускает op через предохранитель. Пока тот разомкнут и таймаут
// не истек — отказ без вызова op; при заданном fallback возвращается его
// результат вместо ошибки.
func (b *Breaker) Execute(ctx context.Context, op Operation, fallback Operation) (any, error) {
	b.mu.Lock()
	b.totalExecutions++
	cb := b.cb
	b.mu.Unlock()

	res, err := cb.Execute(func() (any, error) {
		return op(ctx)
	})

	if err == nil {
		b.mu.Lock()
		b.totalSuccesses++
		b.mu.Unlock()
		return res, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		if fallback != nil {
			b.logger.Info("circuit open, serving fallback")
			return fallback(ctx)
		}
		return nil, fmt.Errorf("%w: %s", ErrOpen, b.name)
	}

	return nil, err
}

// State возвращает текущее видимое состояние автомата.
func (b *Breaker) State() domain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return mapState(b.cb.State())
}

// Stats — счетчики за все время жизни, независимые от автомата гейтинга.
type Stats struct {
	State           domain.BreakerState `json:"state"`
	TotalExecutions uint64              `json:"total_executions"`
	TotalSuccesses  uint64              `json:"total_successes"`
	SuccessRate     float64             `json:"success_rate"`
	FailureRate     float64             `json:"failure_rate"`
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		State:           mapState(b.cb.State()),
		TotalExecutions: b.totalExecutions,
		TotalSuccesses:  b.totalSuccesses,
	}
	if s.TotalExecutions > 0 {
		s.SuccessRate = float64(s.TotalSuccesses) / float64(s.TotalExecutions)
		s.FailureRate = 1 - s.SuccessRate
	}
	return s
}

// Reset принудительно замыкает предохранитель и обнуляет счетчики.
// gobreaker не умеет сбрасываться — подменяем внутренний инстанс свежим.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.cb = gobreaker.NewCircuitBreaker(b.settings())
	b.totalExecutions = 0
	b.totalSuccesses = 0
	b.mu.Unlock()

	b.logger.Info("reset to CLOSED")
	if b.onStateChange != nil {
		b.onStateChange(b.name, domain.BreakerClosed)
	}
}

func mapState(s gobreaker.State) domain.BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return domain.BreakerOpen
	case gobreaker.StateHalfOpen:
		return domain.BreakerHalfOpen
	default:
		return domain.BreakerClosed
	}
}
