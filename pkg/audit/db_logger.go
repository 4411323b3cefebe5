package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBLogger implements audit logging to the audit_events table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger. The table is
// created by the storage migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, occurred_at, event_type, status,
			actor_id, actor_role, resource_type, resource_id,
			operation, reason, request_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.Timestamp, string(event.EventType), string(event.Status),
		event.ActorID, event.ActorRole, event.ResourceType, event.ResourceID,
		event.Operation, event.Reason, event.RequestID, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Search returns events matching filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	query := `
		SELECT id, occurred_at, event_type, status,
			actor_id, actor_role, resource_type, resource_id,
			operation, reason, request_id, metadata
		FROM audit_events
		WHERE 1=1`

	args := []interface{}{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}

	if filter.StartTime != nil {
		add("occurred_at >=", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("occurred_at <=", *filter.EndTime)
	}
	if filter.ActorID != "" {
		add("actor_id =", filter.ActorID)
	}
	if filter.ResourceType != "" {
		add("resource_type =", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id =", filter.ResourceID)
	}
	if filter.Status != "" {
		add("status =", string(filter.Status))
	}

	args = append(args, filter.limit(), max(filter.Offset, 0))
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*AuditEvent, 0)
	for rows.Next() {
		var (
			event     AuditEvent
			eventType string
			status    string
			metadata  sql.NullString
		)
		if err := rows.Scan(
			&event.ID, &event.Timestamp, &eventType, &status,
			&event.ActorID, &event.ActorRole, &event.ResourceType, &event.ResourceID,
			&event.Operation, &event.Reason, &event.RequestID, &metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.EventType = EventType(eventType)
		event.Status = EventStatus(status)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Cleanup removes events older than the retention period and returns how
// many were deleted
func (l *DBLogger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := time.Now().UTC().Add(-retention)
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit events: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database logger. The connection is shared and stays open.
func (l *DBLogger) Close() error {
	return nil
}
