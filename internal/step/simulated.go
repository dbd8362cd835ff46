package step

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/xela07ax/agentflow-prototype/internal/catalog"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

// simulate имитирует задержку внешнего вызова 20-120мс с уважением к ctx.
func simulate(ctx context.Context) error {
	latency := time.Duration(20+rand.Intn(100)) * time.Millisecond
	select {
	case <-time.After(latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SimulatedRunners — имитированный набор реализаций для встроенного каталога.
// Доменной работы здесь нет: каждый шаг имитирует внешний сервис и
// возвращает метаданные плюс, где нужно, патч состояния.
//
// Классификатор — единственный шаг, который меняет маршрут: он «измеряет»
// confidence и, если фактическая ветка расходится с запланированной,
// просит перепланирование.
func SimulatedRunners(confidence float64) RunnerMap {
	return RunnerMap{
		"validator": RunnerFunc(func(ctx context.Context, _ domain.State, _ Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			return &Result{Metadata: map[string]string{"mime": "image/png", "size_kb": "482"}}, nil
		}),

		"classifier": RunnerFunc(func(ctx context.Context, state domain.State, _ Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			low := confidence < catalog.LowConfidenceThreshold

			res := &Result{
				Metadata: map[string]string{
					"label":      "landscape",
					"confidence": fmt.Sprintf("%.2f", confidence),
				},
				StateUpdates: domain.State{
					catalog.FieldConfidenceScore: domain.NumberValue(confidence),
					catalog.FieldLowConfidence:   domain.BoolValue(low),
				},
			}

			// План строился до измерения: если флаг в рабочем состоянии
			// не совпал с фактом, дальнейшая ветка ревью выбрана неверно.
			if planned, ok := state[catalog.FieldLowConfidence]; !ok || planned.Bool != low {
				res.Replan = true
			}
			return res, nil
		}),

		"reviewer": RunnerFunc(func(ctx context.Context, _ domain.State, _ Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			return &Result{Metadata: map[string]string{"verdict": "approved", "reviewer": "ops-queue"}}, nil
		}),

		"auto_accepter": RunnerFunc(func(ctx context.Context, _ domain.State, _ Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			return &Result{Metadata: map[string]string{"verdict": "auto_approved"}}, nil
		}),

		"encryptor": RunnerFunc(func(ctx context.Context, _ domain.State, _ Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			return &Result{Metadata: map[string]string{"cipher": "aes-256-gcm", "key_id": "k-2024-07"}}, nil
		}),

		"indexer": RunnerFunc(func(ctx context.Context, _ domain.State, _ Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			return &Result{Metadata: map[string]string{"index": "similarity-v3", "neighbors": "14"}}, nil
		}),

		"notifier": RunnerFunc(func(ctx context.Context, _ domain.State, _ Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			return &Result{Metadata: map[string]string{"channel": "email", "delivery": "queued"}}, nil
		}),

		"calibrator": RunnerFunc(func(ctx context.Context, _ domain.State, inv Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			return &Result{Metadata: map[string]string{"mode": inv.Action.Name}}, nil
		}),

		// Нестабильный агент для проверки предохранителя: падает всегда.
		"unstable": RunnerFunc(func(ctx context.Context, _ domain.State, _ Invocation) (*Result, error) {
			if err := simulate(ctx); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("service internal error")
		}),
	}
}
