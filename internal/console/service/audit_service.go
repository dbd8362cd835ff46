package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/agentflow-prototype/internal/audit"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

// AuditLogProvider описывает контракт для чтения данных аудита.
// Мы используем структуру audit.Event, чтобы сохранить единую модель данных.
type AuditLogProvider interface {
	FetchLogs(ctx context.Context, agentID, eventType string, limit int) ([]audit.Event, error)
	GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error)
}

type AuditService struct {
	repo   AuditLogProvider
	hasher audit.Hasher
}

func NewAuditService(repo AuditLogProvider, hasher audit.Hasher) *AuditService {
	return &AuditService{
		repo:   repo,
		hasher: hasher,
	}
}

// FetchLogs запрашивает логи с фильтрацией.
// Логика фильтрации (пустые строки или конкретные ID) инкапсулирована в репозитории.
func (s *AuditService) FetchLogs(ctx context.Context, agentID, eventType string, limit int) ([]audit.Event, error) {
	logs, err := s.repo.FetchLogs(ctx, agentID, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch logs: %w", err)
	}
	return logs, nil
}

// VerifyIntegrity пересчитывает hash-цепочку по выборке из базы.
// Фильтры здесь не применяются: проверять можно только полную цепочку.
func (s *AuditService) VerifyIntegrity(ctx context.Context, limit int) (audit.Report, error) {
	logs, err := s.repo.FetchLogs(ctx, "", "", limit)
	if err != nil {
		return audit.Report{}, fmt.Errorf("audit_service: failed to fetch chain: %w", err)
	}
	return audit.VerifyEvents(logs, s.hasher), nil
}

// GetGlobalStats отдает агрегаты для дашборда.
// Здесь можно добавить кэширование в Redis на 1 минуту,
// чтобы не нагружать Postgres тяжелыми аналитическими запросами.
func (s *AuditService) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	return s.repo.GetGlobalStats(ctx)
}
