package repository

import (
	"context"
	"fmt"

	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Create creates a new server event entry
func (r *EventRepository) Create(ctx context.Context, event *models.ServerEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO panel.server_events (id, server_id, action, status, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.ServerID, event.Action, event.Status, event.Message, event.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert server event: %w", err)
	}

	return nil
}

// GetByServerID retrieves events for a server
func (r *EventRepository) GetByServerID(ctx context.Context, serverID string, limit int) ([]*models.ServerEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, server_id, action, status, message, metadata, created_at
		FROM panel.server_events
		WHERE server_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, serverID, limit)
	if err != nil {
		return nil, fmt.Errorf("query server events: %w", err)
	}
	defer rows.Close()

	var events []*models.ServerEvent
	for rows.Next() {
		event := &models.ServerEvent{}
		err := rows.Scan(
			&event.ID, &event.ServerID, &event.Action, &event.Status,
			&event.Message, &event.Metadata, &event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan server event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// LogAction is a helper to record an action
func (r *EventRepository) LogAction(ctx context.Context, serverID, action, status, message string) error {
	event := &models.ServerEvent{
		ServerID: serverID,
		Action:   action,
		Status:   status,
		Message:  message,
	}
	return r.Create(ctx, event)
}
