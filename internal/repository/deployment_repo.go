package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DeploymentRepository struct {
	pool *pgxpool.Pool
}

func NewDeploymentRepository(pool *pgxpool.Pool) *DeploymentRepository {
	return &DeploymentRepository{pool: pool}
}

// Create records a queued deployment
func (r *DeploymentRepository) Create(ctx context.Context, d *models.Deployment) error {
	query := `
		INSERT INTO panel.deployments (id, server_id, user_id, git_url, status, output)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query, d.ID, d.ServerID, d.UserID, d.GitURL, d.Status, d.Output)
	if err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}

	return nil
}

// GetByID retrieves a deployment by ID
func (r *DeploymentRepository) GetByID(ctx context.Context, id string) (*models.Deployment, error) {
	query := `
		SELECT id, server_id, user_id, git_url, status, output, created_at, updated_at
		FROM panel.deployments
		WHERE id = $1
	`

	d := &models.Deployment{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.ServerID, &d.UserID, &d.GitURL, &d.Status, &d.Output, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan deployment: %w", err)
	}
	return d, nil
}

// ListByServer returns a server's deployment history, newest first
func (r *DeploymentRepository) ListByServer(ctx context.Context, serverID string) ([]*models.Deployment, error) {
	query := `
		SELECT id, server_id, user_id, git_url, status, output, created_at, updated_at
		FROM panel.deployments
		WHERE server_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*models.Deployment
	for rows.Next() {
		d := &models.Deployment{}
		err := rows.Scan(&d.ID, &d.ServerID, &d.UserID, &d.GitURL, &d.Status, &d.Output, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan deployment row: %w", err)
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// UpdateResult sets a deployment's final status and captured output
func (r *DeploymentRepository) UpdateResult(ctx context.Context, id, status, output string) error {
	query := `UPDATE panel.deployments SET status = $1, output = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, status, output, id)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	return nil
}
