package engine

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agentflow-prototype/internal/infra"
	"go.uber.org/zap"
)

// SuspendProvider отдает список заблокированных агентов из источника истины (БД).
type SuspendProvider interface {
	ListByStatus(ctx context.Context, status string) ([]string, error)
}

// SuspendManager — kill-switch уровня агента: оператор мгновенно выводит
// AgentID из исполнения. Проверка в Hot Path идет по локальной мапе,
// Redis выступает шиной сигналов между процессами.
type SuspendManager struct {
	mu        sync.RWMutex
	suspended map[string]struct{}
	repo      SuspendProvider
	rdb       *redis.Client
	logger    *zap.Logger
}

func NewSuspendManager(rdb *redis.Client, repo SuspendProvider, logger *zap.Logger) *SuspendManager {
	return &SuspendManager{
		suspended: make(map[string]struct{}),
		repo:      repo,
		rdb:       rdb,
		logger:    logger.With(zap.String("mod", "suspend")),
	}
}

// Init загружает текущее множество заблокированных агентов при старте
// и при необходимости прогревает Redis.
// Источник истины — БД; без репозитория читаем то, что уже есть в Redis.
func (m *SuspendManager) Init(ctx context.Context) error {
	var ids []string
	var err error
	if m.repo != nil {
		ids, err = m.repo.ListByStatus(ctx, "suspended")
	} else {
		ids, err = m.rdb.SMembers(ctx, infra.RedisKeySuspendedAgents).Result()
	}
	if err != nil {
		return err
	}

	return WarmupState(ctx, m.rdb, m.logger, ids,
		infra.RedisKeySuspendedAgents, infra.RedisKeyLockWarmupSuspend,
		func(items []string) {
			m.mu.Lock()
			defer m.mu.Unlock()
			for _, id := range items {
				m.suspended[id] = struct{}{}
			}
		})
}

// StartListener подписывается на сигналы kill-switch в реальном времени.
func (m *SuspendManager) StartListener(ctx context.Context) {
	ListenStateResilient(ctx, m.rdb, m.logger, infra.RedisChanSuspend,
		func() error { return m.Init(ctx) }, // синхронизация при переподключении
		func(id string, on bool) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if on {
				m.suspended[id] = struct{}{}
				m.logger.Warn("agent suspended by operator", zap.String("agent_id", id))
			} else {
				delete(m.suspended, id)
				m.logger.Info("agent resumed by operator", zap.String("agent_id", id))
			}
		},
	)
}

// MarkSuspended — локальное обновление (для процессов без Redis и тестов).
func (m *SuspendManager) MarkSuspended(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended[agentID] = struct{}{}
}

// IsSuspended — максимально быстрая проверка в Hot Path.
func (m *SuspendManager) IsSuspended(agentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.suspended[agentID]
	return ok
}
