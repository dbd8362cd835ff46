package engine

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agentflow-prototype/internal/infra"
	"go.uber.org/zap"
)

// SandboxProvider отдает список «песочных» агентов из источника истины (БД).
type SandboxProvider interface {
	ListSandboxed(ctx context.Context) ([]string, error)
}

// SandboxManager — режим «песочницы» для агента: шаг не зовет реальную
// реализацию, оркестратор подставляет имитированный результат, эффекты
// действия при этом применяются. Состояние ведется так же, как у
// kill-switch: локальный кэш плюс Redis-набор и сигналы.
type SandboxManager struct {
	mu     sync.RWMutex
	agents map[string]bool
	repo   SandboxProvider
	rdb    *redis.Client
	logger *zap.Logger
}

func NewSandboxManager(rdb *redis.Client, repo SandboxProvider, logger *zap.Logger) *SandboxManager {
	return &SandboxManager{
		agents: make(map[string]bool),
		repo:   repo,
		rdb:    rdb,
		logger: logger.With(zap.String("mod", "sandbox")),
	}
}

// Init загружает множество «песочных» агентов при старте.
// Источник истины — БД; без репозитория читаем то, что уже есть в Redis.
func (sm *SandboxManager) Init(ctx context.Context) error {
	var ids []string
	var err error
	if sm.repo != nil {
		ids, err = sm.repo.ListSandboxed(ctx)
	} else {
		ids, err = sm.rdb.SMembers(ctx, infra.RedisKeySandboxAgents).Result()
	}
	if err != nil {
		return err
	}

	return WarmupState(ctx, sm.rdb, sm.logger, ids,
		infra.RedisKeySandboxAgents, infra.RedisKeyLockWarmupSandbox,
		func(items []string) {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			for _, id := range items {
				sm.agents[id] = true
			}
		})
}

// StartListener подписывается на переключения режима в реальном времени.
func (sm *SandboxManager) StartListener(ctx context.Context) {
	ListenStateResilient(ctx, sm.rdb, sm.logger, infra.RedisChanSandbox,
		func() error { return sm.Init(ctx) },
		func(id string, on bool) {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if on {
				sm.agents[id] = true
			} else {
				delete(sm.agents, id)
			}
		},
	)
}

// MarkSandbox — локальное переключение (для процессов без Redis и тестов).
func (sm *SandboxManager) MarkSandbox(agentID string, on bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if on {
		sm.agents[agentID] = true
	} else {
		delete(sm.agents, agentID)
	}
}

// IsSandbox — быстрая проверка в Hot Path.
func (sm *SandboxManager) IsSandbox(agentID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.agents[agentID]
}
