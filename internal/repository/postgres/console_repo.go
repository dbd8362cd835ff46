package postgres

import (
	"context"

	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

// GetGlobalStats собирает агрегаты по журналу аудита для дашборда консоли.
func (r *AuditRepo) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	s := &domain.GlobalStats{TopAgents: make(map[string]int64)}

	// 1. Суммарные показатели за последние 24 часа
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE type = 'action_failed'),
			COUNT(*) FILTER (WHERE type = 'action_skipped')
		FROM audit_events
		WHERE timestamp > NOW() - INTERVAL '24 hours'`).Scan(
		&s.TotalEvents, &s.FailedEvents, &s.SkippedEvents)
	if err != nil {
		return nil, err
	}
	if s.TotalEvents > 0 {
		s.FailureRatio = float64(s.FailedEvents) / float64(s.TotalEvents)
	}

	// 2. Самые активные агенты: разворачиваем agent_trace из jsonb
	rows, err := r.db.QueryContext(ctx, `
		SELECT agent, COUNT(*) AS cnt
		FROM audit_events, jsonb_array_elements_text(agent_trace) AS agent
		WHERE timestamp > NOW() - INTERVAL '24 hours'
		GROUP BY agent ORDER BY cnt DESC LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var agent string
		var cnt int64
		if err := rows.Scan(&agent, &cnt); err != nil {
			return nil, err
		}
		s.TopAgents[agent] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 3. Почасовая активность для графика
	hours, err := r.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('hour', timestamp), 'HH24:00') AS hour, COUNT(*)
		FROM audit_events
		WHERE timestamp > NOW() - INTERVAL '24 hours'
		GROUP BY hour ORDER BY hour`)
	if err != nil {
		return nil, err
	}
	defer hours.Close()
	for hours.Next() {
		var p domain.ActivityPoint
		if err := hours.Scan(&p.Hour, &p.Count); err != nil {
			return nil, err
		}
		s.HourlyActivity = append(s.HourlyActivity, p)
	}
	return s, hours.Err()
}
