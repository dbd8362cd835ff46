package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xela07ax/agentflow-prototype/internal/audit"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(connString string) *AuditRepo {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		// В main мы проверим соединение через Ping
		log.Fatal(err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}
}

// Ping проверяет доступность базы при старте
func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WriteBatch реализует audit.Storage: пакетная вставка звеньев цепочки.
func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице audit_events
	numFields := 8
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8)

		data, _ := json.Marshal(e.Data)
		trace, _ := json.Marshal(e.AgentTrace)

		vals = append(vals,
			e.ID, e.Timestamp, e.Type, data,
			e.Hash, e.PreviousHash, trace, e.SafetyLevel,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO audit_events (id, timestamp, type, data, hash, previous_hash, agent_trace, safety_level) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// WriteCheckpoint сохраняет якорь восстановления цепочки.
func (r *AuditRepo) WriteCheckpoint(ctx context.Context, cp audit.Checkpoint) error {
	query := `INSERT INTO audit_checkpoints (at_event, event_id, hash, timestamp) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, cp.AtEvent, cp.EventID, cp.Hash, cp.Timestamp)
	return err
}

// FetchLogs читает события с фильтрацией по агенту и типу.
// Пустой фильтр означает «все». Результат в порядке записи цепочки.
func (r *AuditRepo) FetchLogs(ctx context.Context, agentID, eventType string, limit int) ([]audit.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, timestamp, type, data, hash, previous_hash, agent_trace, safety_level
		FROM audit_events
		WHERE ($1 = '' OR agent_trace @> to_jsonb($1::text))
		  AND ($2 = '' OR type = $2)
		ORDER BY timestamp ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, agentID, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var data, trace []byte
		var safety sql.NullString

		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &data, &e.Hash, &e.PreviousHash, &trace, &safety); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan audit event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("postgres: corrupt data payload for event %s: %w", e.ID, err)
			}
		}
		if len(trace) > 0 {
			_ = json.Unmarshal(trace, &e.AgentTrace)
		}
		e.SafetyLevel = safety.String
		events = append(events, e)
	}
	return events, rows.Err()
}
