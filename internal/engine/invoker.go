package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/agentflow-prototype/internal/breaker"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"github.com/xela07ax/agentflow-prototype/internal/step"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// InvokerConfig — пороги надежности одного вызова шага.
type InvokerConfig struct {
	ActionTimeout time.Duration // дедлайн одного вызова шага
	AgentRate     rate.Limit    // вызовов в секунду на агента
	AgentBurst    int
}

func (c InvokerConfig) withDefaults() InvokerConfig {
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.AgentRate <= 0 {
		c.AgentRate = 100
	}
	if c.AgentBurst <= 0 {
		c.AgentBurst = 20
	}
	return c
}

// Invoker — слой надежности вокруг реализации шага: rate limiter на агента,
// Circuit Breaker агента и гонка с дедлайном. Таймаут неотличим для
// вызывающего от ошибки самого шага.
type Invoker struct {
	runners  step.RunnerMap
	breakers *breaker.Registry
	cfg      InvokerConfig
	logger   *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewInvoker(runners step.RunnerMap, breakers *breaker.Registry, cfg InvokerConfig, logger *zap.Logger) *Invoker {
	return &Invoker{
		runners:  runners,
		breakers: breakers,
		cfg:      cfg.withDefaults(),
		logger:   logger.Named("invoker"),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (v *Invoker) limiter(agentID string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.limiters[agentID]
	if !ok {
		l = rate.NewLimiter(v.cfg.AgentRate, v.cfg.AgentBurst)
		v.limiters[agentID] = l
	}
	return l
}

// Invoke выполняет один живой вызов шага через предохранитель агента.
// Шаг получает клон состояния: изменяемая копия остается у оркестратора.
func (v *Invoker) Invoke(ctx context.Context, state domain.State, inv step.Invocation) (*step.Result, error) {
	agentID := inv.Action.AgentID

	runner, ok := v.runners[agentID]
	if !ok {
		return nil, fmt.Errorf("%w for agent %s", ErrNoRunner, agentID)
	}

	// 1. Rate Limiter
	if err := v.limiter(agentID).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	// 2. Circuit Breaker + гонка с дедлайном
	raw, err := v.breakers.For(agentID).Execute(ctx, func(ctx context.Context) (any, error) {
		return v.race(ctx, runner, state.Clone(), inv)
	}, nil)
	if err != nil {
		return nil, err
	}
	return raw.(*step.Result), nil
}

// race — завершение шага против таймера дедлайна. Реализация, игнорирующая
// контекст, все равно не задержит прогон дольше таймаута.
func (v *Invoker) race(ctx context.Context, runner step.Runner, state domain.State, inv step.Invocation) (*step.Result, error) {
	tCtx, cancel := context.WithTimeout(ctx, v.cfg.ActionTimeout)
	defer cancel()

	type outcome struct {
		res *step.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := runner.Invoke(tCtx, state, inv)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-tCtx.Done():
		v.logger.Warn("step timed out",
			zap.String("agent_id", inv.Action.AgentID),
			zap.Duration("timeout", v.cfg.ActionTimeout))
		return nil, fmt.Errorf("step %s timed out after %v: %w",
			inv.Action.AgentID, v.cfg.ActionTimeout, tCtx.Err())
	}
}
