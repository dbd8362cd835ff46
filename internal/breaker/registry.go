package breaker

import (
	"sync"

	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"go.uber.org/zap"
)

// Registry держит по одному предохранителю на AgentID.
// Инстансы долгоживущие и разделяются всеми прогонами процесса.
type Registry struct {
	cfg    Config
	logger *zap.Logger
	hook   func(name string, state domain.BreakerState)

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// SetStateChangeHook задает наблюдателя для всех будущих предохранителей.
func (r *Registry) SetStateChangeHook(hook func(name string, state domain.BreakerState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
	for _, b := range r.breakers {
		b.SetStateChangeHook(hook)
	}
}

// For возвращает (создавая при первом обращении) предохранитель агента.
func (r *Registry) For(agentID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[agentID]; ok {
		return b
	}
	b := New(agentID, r.cfg, r.logger)
	if r.hook != nil {
		b.SetStateChangeHook(r.hook)
	}
	r.breakers[agentID] = b
	return b
}

// Snapshot — статистика всех предохранителей (консоль, дашборд).
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.breakers))
	for id, b := range r.breakers {
		out[id] = b.Stats()
	}
	return out
}
