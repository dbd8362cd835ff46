package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agentflow-prototype/internal/infra"
	"github.com/xela07ax/agentflow-prototype/internal/infra/auth"
	"go.uber.org/zap"
)

// AgentRepository описывает требования к хранилищу данных об агентах
type AgentRepository interface {
	UpdateStatus(ctx context.Context, agentID string, status string) error
	UpdateSandboxStatus(ctx context.Context, agentID string, enabled bool) error
}

type AgentService struct {
	*auth.BaseValidator
	repo   AgentRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewAgentService(rdb *redis.Client, repo AgentRepository, validator *auth.BaseValidator, logger *zap.Logger) *AgentService {
	return &AgentService{
		BaseValidator: validator,
		repo:          repo,
		rdb:           rdb,
		logger:        logger.Named("agent-service"),
	}
}

// updateAgentState — унифицированный механизм переключения состояний.
// Обновляет БД и транслирует сигнал в Redis.
func (s *AgentService) updateAgentState(
	ctx context.Context,
	agentID string,
	status string,
	redisChan string,
	signalValue string,
	actionName string,
) error {
	// 1. Persistence Layer
	if err := s.repo.UpdateStatus(ctx, agentID, status); err != nil {
		s.logger.Error("failed to update agent status in DB",
			zap.String("agent_id", agentID),
			zap.String("action", actionName),
			zap.Error(err))
		return fmt.Errorf("%s database error: %w", actionName, err)
	}

	// 2. Real-time Signaling
	payload := fmt.Sprintf("%s:%s", agentID, signalValue)
	if err := s.rdb.Publish(ctx, redisChan, payload).Err(); err != nil {
		s.logger.Warn("runtime signal delivery failed",
			zap.String("action", actionName),
			zap.String("channel", redisChan),
			zap.Error(err))
	} else {
		s.logger.Info("agent state updated successfully",
			zap.String("agent_id", agentID),
			zap.String("action", actionName),
			zap.String("new_status", status))
	}

	return nil
}

// SuspendAgent мгновенно выводит агента из исполнения (Kill-Switch)
func (s *AgentService) SuspendAgent(ctx context.Context, id string) error {
	return s.updateAgentState(ctx, id, "suspended", infra.RedisChanSuspend, "on", "suspend")
}

// ResumeAgent возвращает агента в работу
func (s *AgentService) ResumeAgent(ctx context.Context, id string) error {
	return s.updateAgentState(ctx, id, "active", infra.RedisChanSuspend, "off", "resume")
}

// SetSandboxMode переключает режим песочницы для агента
func (s *AgentService) SetSandboxMode(ctx context.Context, agentID string, enabled bool) error {
	// 1. Обновляем ТОЛЬКО поле is_sandbox в базе
	if err := s.repo.UpdateSandboxStatus(ctx, agentID, enabled); err != nil {
		s.logger.Error("failed to update sandbox in DB", zap.Error(err))
		return err
	}

	// 2. Шлем сигнал в Redis
	val := "off"
	if enabled {
		val = "on"
	}

	payload := fmt.Sprintf("%s:%s", agentID, val)
	if err := s.rdb.Publish(ctx, infra.RedisChanSandbox, payload).Err(); err != nil {
		s.logger.Warn("sandbox signal failed", zap.Error(err))
	}

	s.logger.Info("sandbox mode toggled",
		zap.String("agent_id", agentID),
		zap.Bool("enabled", enabled))

	return nil
}
