package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/agentflow-prototype/internal/audit"
	"github.com/xela07ax/agentflow-prototype/internal/breaker"
	"github.com/xela07ax/agentflow-prototype/internal/bus"
	"github.com/xela07ax/agentflow-prototype/internal/catalog"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"github.com/xela07ax/agentflow-prototype/internal/handoff"
	"github.com/xela07ax/agentflow-prototype/internal/planner"
	"github.com/xela07ax/agentflow-prototype/internal/step"
	"go.uber.org/zap"
)

// DefaultMaxReplans ограничивает пересчеты плана за прогон:
// превышение фатально, зацикленные шаги не крутят планировщик бесконечно.
const DefaultMaxReplans = 5

// Config — параметры оркестратора.
type Config struct {
	MaxReplans int
	Invoker    InvokerConfig
}

func (c Config) withDefaults() Config {
	if c.MaxReplans <= 0 {
		c.MaxReplans = DefaultMaxReplans
	}
	return c
}

// Deps — явные зависимости оркестратора. Никаких процессных синглтонов:
// всё, что нужно прогону, передается при сборке.
type Deps struct {
	Planner     *planner.Planner
	Catalog     *catalog.Catalog
	Coordinator *handoff.Coordinator
	Breakers    *breaker.Registry
	Runners     step.RunnerMap
	Trail       *audit.Trail
	Bus         *bus.Bus
	Hooks       step.Hooks      // nil -> NopHooks
	Suspend     *SuspendManager // nil -> kill-switch выключен
	Sandbox     *SandboxManager // nil -> песочница выключена
	Metrics     *Metrics        // nil -> локальный незарегистрированный набор
	Logger      *zap.Logger
}

// Orchestrator исполняет план действие за действием: валидация хендоффа,
// вызов шага через предохранитель с таймаутом, слияние эффектов,
// восстановление по Recovery Strategy и перепланирование по сигналу шага.
// Один логический поток управления на прогон; рабочим состоянием владеет
// только оркестратор.
type Orchestrator struct {
	cfg     Config
	planner *planner.Planner
	cat     *catalog.Catalog
	coord   *handoff.Coordinator
	invoker *Invoker
	runners step.RunnerMap
	trail   *audit.Trail
	bus     *bus.Bus
	hooks   step.Hooks
	suspend *SuspendManager
	sandbox *SandboxManager
	metrics *Metrics
	logger  *zap.Logger
}

func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	cfg = cfg.withDefaults()
	if deps.Hooks == nil {
		deps.Hooks = step.NopHooks{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	logger := deps.Logger.Named("orchestrator")
	deps.Breakers.SetStateChangeHook(deps.Metrics.ObserveBreakerState)

	return &Orchestrator{
		cfg:     cfg,
		planner: deps.Planner,
		cat:     deps.Catalog,
		coord:   deps.Coordinator,
		invoker: NewInvoker(deps.Runners, deps.Breakers, cfg.Invoker, logger),
		runners: deps.Runners,
		trail:   deps.Trail,
		bus:     deps.Bus,
		hooks:   deps.Hooks,
		suspend: deps.Suspend,
		sandbox: deps.Sandbox,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Execute ведет прогон от start к goal и возвращает полную трассу.
// Ошибка возвращается только для фатального исхода (критичный шаг,
// недостижимая цель, лимит перепланирований, отмена контекста); все
// остальные отказы поглощаются трассой. Трасса возвращается и при ошибке —
// она отражает ровно то, что успело произойти.
func (o *Orchestrator) Execute(ctx context.Context, start, goal domain.State) (*domain.RunTrace, error) {
	runID := uuid.New().String()
	traceID := extractTraceID(ctx)
	logger := o.logger.With(zap.String("run_id", runID))

	trace := &domain.RunTrace{RunID: runID, StartTime: time.Now()}
	working := start.Clone()
	replans := 0
	var agentTrail []string // пройденные агенты для аудита

	o.bus.Emit(EventRunStarted, map[string]any{"run_id": runID, "goal": goal})
	o.trail.LogEvent(EventRunStarted, map[string]any{
		"run_id": runID, "trace_id": traceID, "goal": goal.Key(),
	}, nil, SafetyInfo)

	abort := func(err error) (*domain.RunTrace, error) {
		trace.EndTime = time.Now()
		trace.Replans = replans
		trace.FinalWorldState = working
		o.metrics.RunDuration.WithLabelValues("failed").Observe(time.Since(trace.StartTime).Seconds())
		o.bus.Emit(EventRunFailed, map[string]any{"run_id": runID, "error": err.Error()})
		o.trail.LogEvent(EventRunFailed, map[string]any{
			"run_id": runID, "error": err.Error(),
		}, agentTrail, SafetyCritical)
		logger.Error("run aborted", zap.Error(err))
		return trace, err
	}

	plan, err := o.planner.Plan(working, goal)
	if err != nil {
		return abort(fmt.Errorf("planning: %w", err))
	}
	logger.Info("plan computed", zap.Int("actions", len(plan)))

	fromAgent := ""
	for i := 0; i < len(plan); i++ {
		if ctx.Err() != nil {
			return abort(criticalf("run cancelled: %v", ctx.Err()))
		}

		action := plan[i]
		rec, res, stepErr := o.runAction(ctx, runID, traceID, fromAgent, action, working)
		trace.Agents = append(trace.Agents, *rec)
		agentTrail = append(agentTrail, action.AgentID)
		o.metrics.ActionsTotal.WithLabelValues(action.AgentID, string(rec.Status)).Inc()

		switch rec.Status {
		case domain.StatusCompleted:
			// Сначала статические эффекты, затем патч шага поверх.
			working = working.Apply(action.Effects)
			if res != nil && res.StateUpdates != nil {
				working = working.Apply(res.StateUpdates)
			}
			o.emitAction(EventActionCompleted, runID, rec, agentTrail, SafetyInfo)

		case domain.StatusSkipped:
			// Эффекты пропущенного шага НЕ применяются: последующие
			// предусловия, зависящие от него, просто не выполнятся.
			o.emitAction(EventActionSkipped, runID, rec, agentTrail, SafetyWarning)

		case domain.StatusFailed:
			o.emitAction(EventActionFailed, runID, rec, agentTrail, SafetyCritical)
			return abort(stepErr)
		}

		if res != nil && res.Replan {
			replans++
			o.metrics.ReplansTotal.Inc()
			if replans > o.cfg.MaxReplans {
				return abort(criticalf("%v after %d replans", ErrReplanLimit, replans))
			}

			logger.Info("replan requested by step",
				zap.String("agent_id", action.AgentID),
				zap.Int("replan", replans))
			o.bus.Emit(EventReplanTriggered, map[string]any{
				"run_id": runID, "agent_id": action.AgentID, "replan": replans,
			})
			o.trail.LogEvent(EventReplanTriggered, map[string]any{
				"run_id": runID, "agent_id": action.AgentID, "replan": replans,
			}, agentTrail, SafetyInfo)

			plan, err = o.planner.Plan(working, goal)
			if err != nil {
				return abort(fmt.Errorf("replanning: %w", err))
			}
			i = -1 // новая итерация начнет новый план с нуля
			fromAgent = action.AgentID
			continue
		}

		fromAgent = action.AgentID
	}

	trace.EndTime = time.Now()
	trace.Replans = replans
	trace.FinalWorldState = working
	o.metrics.RunDuration.WithLabelValues("completed").Observe(time.Since(trace.StartTime).Seconds())
	o.bus.Emit(EventRunCompleted, map[string]any{
		"run_id": runID, "actions": len(trace.Agents), "replans": replans,
	})
	o.trail.LogEvent(EventRunCompleted, map[string]any{
		"run_id": runID, "actions": len(trace.Agents), "replans": replans,
	}, agentTrail, SafetyInfo)
	logger.Info("run completed",
		zap.Int("actions", len(trace.Agents)),
		zap.Int("replans", replans))
	return trace, nil
}

// runAction — полный жизненный цикл одного действия: хендофф, вызов с
// восстановлением, решение о фатальности. Третий результат не nil только
// для фатального исхода.
func (o *Orchestrator) runAction(
	ctx context.Context,
	runID, traceID, fromAgent string,
	action domain.Action,
	working domain.State,
) (*domain.ExecutionRecord, *step.Result, error) {
	rec := &domain.ExecutionRecord{
		AgentID:    action.AgentID,
		ActionName: action.Name,
		Mode:       domain.ModeLive,
		StartTime:  time.Now(),
		Metadata:   make(map[string]string),
	}

	verdict := o.coord.ValidateHandoff(fromAgent, action.AgentID, working, action)
	for _, w := range verdict.Warnings {
		o.logger.Warn("handoff warning", zap.String("agent_id", action.AgentID), zap.String("warning", w))
		o.trail.LogEvent("handoff_warning", map[string]any{
			"run_id": runID, "agent_id": action.AgentID, "warning": w,
		}, nil, SafetyWarning)
	}

	var res *step.Result
	var stepErr error

	switch {
	case !verdict.Valid:
		// Отказ валидации — собственный отказ действия, не тихий пропуск.
		stepErr = &PreconditionError{AgentID: action.AgentID, Reason: verdict.Reason}

	case o.suspend != nil && o.suspend.IsSuspended(action.AgentID):
		stepErr = fmt.Errorf("%w: %s", ErrAgentSuspended, action.AgentID)

	default:
		correlationID := o.hooks.OnAgentStart(action)
		rec.Metadata["correlation_id"] = correlationID
		inv := step.Invocation{
			RunID:         runID,
			TraceID:       traceID,
			CorrelationID: correlationID,
			Action:        action,
		}

		if o.sandbox != nil && o.sandbox.IsSandbox(action.AgentID) {
			rec.Mode = domain.ModeSandbox
			res = o.simulateSandbox(action)
		} else {
			res, stepErr = o.invokeWithRecovery(ctx, working, inv)
		}
	}

	rec.EndTime = time.Now()

	if stepErr == nil {
		rec.Status = domain.StatusCompleted
		if res != nil {
			for k, v := range res.Metadata {
				rec.Metadata[k] = v
			}
		}
		o.hooks.OnAgentEnd(action, *rec)
		return rec, res, nil
	}

	strategy := o.cat.StrategyFor(action.AgentID)
	fatal := strategy.Critical || hasCriticalPrefix(stepErr)

	rec.Error = stepErr.Error()
	if fatal {
		rec.Status = domain.StatusFailed
		o.hooks.OnAgentEnd(action, *rec)

		err := stepErr
		if !hasCriticalPrefix(err) {
			err = criticalf("agent %s failed: %v", action.AgentID, stepErr)
		}
		return rec, nil, err
	}

	rec.Status = domain.StatusSkipped
	o.logger.Warn("non-critical step skipped",
		zap.String("agent_id", action.AgentID),
		zap.Error(stepErr))
	o.hooks.OnAgentEnd(action, *rec)
	return rec, nil, nil
}

// invokeWithRecovery — ретраи по Recovery Strategy и разовый fallback-агент.
func (o *Orchestrator) invokeWithRecovery(ctx context.Context, working domain.State, inv step.Invocation) (*step.Result, error) {
	strategy := o.cat.StrategyFor(inv.Action.AgentID)

	res, err := o.invokeWithRetry(ctx, strategy, working, inv)
	if err == nil {
		return res, nil
	}

	if strategy.FallbackAgentID != "" && strategy.FallbackAgentID != inv.Action.AgentID {
		o.logger.Warn("primary agent failed, trying fallback",
			zap.String("agent_id", inv.Action.AgentID),
			zap.String("fallback", strategy.FallbackAgentID),
			zap.Error(err))

		fbInv := inv
		fbInv.Action.AgentID = strategy.FallbackAgentID
		fbRes, fbErr := o.invoker.Invoke(ctx, working, fbInv)
		if fbErr == nil {
			if fbRes.Metadata == nil {
				fbRes.Metadata = make(map[string]string)
			}
			fbRes.Metadata["fallback_agent"] = strategy.FallbackAgentID
			return fbRes, nil
		}
		return nil, fmt.Errorf("agent %s: %v; fallback %s: %w",
			inv.Action.AgentID, err, strategy.FallbackAgentID, fbErr)
	}

	return nil, err
}

func (o *Orchestrator) invokeWithRetry(ctx context.Context, strategy domain.RecoveryStrategy, working domain.State, inv step.Invocation) (*step.Result, error) {
	var res *step.Result
	attempt := 0
	do := func() error {
		attempt++
		if attempt > 1 {
			o.metrics.RetriesTotal.WithLabelValues(inv.Action.AgentID).Inc()
		}
		r, err := o.invoker.Invoke(ctx, working, inv)
		if err != nil {
			return err
		}
		res = r
		return nil
	}

	if !strategy.Retry || strategy.MaxRetries <= 0 {
		if err := do(); err != nil {
			return nil, err
		}
		return res, nil
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(strategy.MaxRetries)+1),
		retry.Delay(strategy.RetryDelay),
		retry.LastErrorOnly(true),
		// Задержка из конфига, но ThrottleError шага знает лучше
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			var tErr *step.ThrottleError
			if errors.As(err, &tErr) {
				return tErr.RetryAfter
			}
			return retry.FixedDelay(n, err, config)
		}),
		// Разомкнутый предохранитель и kill-switch повторами не лечатся
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, breaker.ErrOpen) && !errors.Is(err, ErrAgentSuspended)
		}),
	)
	if err := r.Do(do); err != nil {
		return nil, err
	}
	return res, nil
}

// simulateSandbox подставляет имитированный ответ вместо реального вызова.
// Эффекты действия применяются как обычно: песочница меняет исполнителя,
// а не траекторию прогона.
func (o *Orchestrator) simulateSandbox(action domain.Action) *step.Result {
	o.logger.Info("sandbox mode: step simulated",
		zap.String("agent_id", action.AgentID),
		zap.String("action", action.Name))
	return &step.Result{
		Metadata: map[string]string{
			"simulated": "true",
			"details":   "action captured in sandbox mode, no real impact made",
		},
	}
}

func (o *Orchestrator) emitAction(eventType, runID string, rec *domain.ExecutionRecord, agentTrail []string, safety string) {
	payload := map[string]any{
		"run_id":      runID,
		"agent_id":    rec.AgentID,
		"action":      rec.ActionName,
		"status":      string(rec.Status),
		"mode":        string(rec.Mode),
		"duration_ms": rec.EndTime.Sub(rec.StartTime).Milliseconds(),
	}
	if rec.Error != "" {
		payload["error"] = rec.Error
	}
	o.bus.Emit(eventType, payload)
	o.trail.LogEvent(eventType, payload, agentTrail, safety)
}
