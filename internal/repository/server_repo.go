package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

const serverColumns = `id, user_id, plan, status, payment_interval, site_limit,
	   droplet_id, droplet_name, region, ip_address, ssh_username, ssh_password,
	   ssl_status, trial_warning_sent, error_message, created_at, updated_at`

type ServerRepository struct {
	pool *pgxpool.Pool
}

func NewServerRepository(pool *pgxpool.Pool) *ServerRepository {
	return &ServerRepository{pool: pool}
}

// Create creates a new server record
func (r *ServerRepository) Create(ctx context.Context, s *models.Server) error {
	query := `
		INSERT INTO panel.servers (
			id, user_id, plan, status, payment_interval, site_limit,
			droplet_id, droplet_name, region, ip_address, ssh_username,
			ssh_password, ssl_status, trial_warning_sent, error_message
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.Plan, s.Status, s.PaymentInterval, s.SiteLimit,
		s.DropletID, s.DropletName, s.Region, s.IPAddress, s.SSHUsername,
		s.SSHPassword, s.SSLStatus, s.TrialWarningSent, s.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert server: %w", err)
	}

	return nil
}

// GetByID retrieves a server by ID
func (r *ServerRepository) GetByID(ctx context.Context, id string) (*models.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM panel.servers WHERE id = $1`
	return r.scanServer(r.pool.QueryRow(ctx, query, id))
}

// GetActiveByUser retrieves the user's current server, excluding deleted and
// failed ones. Creation paths assume at most one such row per user.
func (r *ServerRepository) GetActiveByUser(ctx context.Context, userID string) (*models.Server, error) {
	query := `
		SELECT ` + serverColumns + `
		FROM panel.servers
		WHERE user_id = $1
		  AND status NOT IN ('deleted', 'failed')
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanServer(r.pool.QueryRow(ctx, query, userID))
}

// GetLatestByUser retrieves the latest server for a user, including failed
func (r *ServerRepository) GetLatestByUser(ctx context.Context, userID string) (*models.Server, error) {
	query := `
		SELECT ` + serverColumns + `
		FROM panel.servers
		WHERE user_id = $1 AND status != 'deleted'
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanServer(r.pool.QueryRow(ctx, query, userID))
}

// Update updates a server's mutable fields
func (r *ServerRepository) Update(ctx context.Context, s *models.Server) error {
	query := `
		UPDATE panel.servers SET
			droplet_id = $1,
			droplet_name = $2,
			region = $3,
			ip_address = $4,
			ssh_username = $5,
			ssh_password = $6,
			status = $7,
			ssl_status = $8,
			trial_warning_sent = $9,
			error_message = $10,
			updated_at = NOW()
		WHERE id = $11
	`

	_, err := r.pool.Exec(ctx, query,
		s.DropletID, s.DropletName, s.Region, s.IPAddress,
		s.SSHUsername, s.SSHPassword, s.Status, s.SSLStatus,
		s.TrialWarningSent, s.ErrorMessage, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update server: %w", err)
	}

	return nil
}

// UpdateStatus updates only the status and bumps updated_at. The lifecycle
// monitor's grace-period check keys off updated_at, so every status change
// must refresh it.
func (r *ServerRepository) UpdateStatus(ctx context.Context, id, status string, errorMsg *string) error {
	query := `UPDATE panel.servers SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, status, errorMsg, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// MarkTrialWarningSent flags a server as having received its trial warning
func (r *ServerRepository) MarkTrialWarningSent(ctx context.Context, id string) error {
	query := `UPDATE panel.servers SET trial_warning_sent = true WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark trial warning sent: %w", err)
	}
	return nil
}

// Delete removes a server row entirely
func (r *ServerRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM panel.servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	return nil
}

// ==================== Lifecycle monitor selections ====================

// ListExpiredTrials selects running, provisioned servers created before
// trialCutoff whose owner has no succeeded payment at all.
func (r *ServerRepository) ListExpiredTrials(ctx context.Context, trialCutoff time.Time) ([]*models.ServerWithOwner, error) {
	query := `
		SELECT ` + ownerColumns() + `
		FROM panel.servers s
		JOIN panel.users u ON s.user_id = u.id
		LEFT JOIN panel.payments p ON s.user_id = p.user_id AND p.status = 'succeeded'
		WHERE s.status = 'running'
		  AND s.created_at < $1
		  AND p.id IS NULL
		  AND s.droplet_id IS NOT NULL
	`

	rows, err := r.pool.Query(ctx, query, trialCutoff)
	if err != nil {
		return nil, fmt.Errorf("query expired trials: %w", err)
	}
	defer rows.Close()

	return r.scanServersWithOwner(rows)
}

// ListLapsedPayments selects running, provisioned servers past the trial
// window whose owner has no succeeded payment after paymentCutoff. Servers
// with no payment ever also match, but those are already handled by the
// trial-expiry check that runs first.
func (r *ServerRepository) ListLapsedPayments(ctx context.Context, trialCutoff, paymentCutoff time.Time) ([]*models.ServerWithOwner, error) {
	query := `
		SELECT ` + ownerColumns() + `
		FROM panel.servers s
		JOIN panel.users u ON s.user_id = u.id
		LEFT JOIN panel.payments p ON s.user_id = p.user_id
			AND p.status = 'succeeded'
			AND p.created_at > $2
		WHERE s.status = 'running'
		  AND s.droplet_id IS NOT NULL
		  AND s.created_at < $1
		  AND p.id IS NULL
	`

	rows, err := r.pool.Query(ctx, query, trialCutoff, paymentCutoff)
	if err != nil {
		return nil, fmt.Errorf("query lapsed payments: %w", err)
	}
	defer rows.Close()

	return r.scanServersWithOwner(rows)
}

// ListStoppedSince selects stopped, provisioned servers whose last update is
// older than graceCutoff. These are due for destruction.
func (r *ServerRepository) ListStoppedSince(ctx context.Context, graceCutoff time.Time) ([]*models.ServerWithOwner, error) {
	query := `
		SELECT ` + ownerColumns() + `
		FROM panel.servers s
		JOIN panel.users u ON s.user_id = u.id
		WHERE s.status = 'stopped'
		  AND s.updated_at < $1
		  AND s.droplet_id IS NOT NULL
	`

	rows, err := r.pool.Query(ctx, query, graceCutoff)
	if err != nil {
		return nil, fmt.Errorf("query stopped servers: %w", err)
	}
	defer rows.Close()

	return r.scanServersWithOwner(rows)
}

// ListTrialWarningCandidates selects running, unpaid, provisioned servers
// created inside the warning band [bandStart, bandEnd) that have not been
// warned yet. The band sits strictly before the trial-expiry cutoff so a
// server is always warned before it is acted on.
func (r *ServerRepository) ListTrialWarningCandidates(ctx context.Context, bandStart, bandEnd time.Time) ([]*models.ServerWithOwner, error) {
	query := `
		SELECT ` + ownerColumns() + `
		FROM panel.servers s
		JOIN panel.users u ON s.user_id = u.id
		LEFT JOIN panel.payments p ON s.user_id = p.user_id AND p.status = 'succeeded'
		WHERE s.status = 'running'
		  AND p.id IS NULL
		  AND s.droplet_id IS NOT NULL
		  AND s.trial_warning_sent = false
		  AND s.created_at >= $1
		  AND s.created_at < $2
	`

	rows, err := r.pool.Query(ctx, query, bandStart, bandEnd)
	if err != nil {
		return nil, fmt.Errorf("query trial warning candidates: %w", err)
	}
	defer rows.Close()

	return r.scanServersWithOwner(rows)
}

func ownerColumns() string {
	return `s.id, s.user_id, s.plan, s.status, s.payment_interval, s.site_limit,
	   s.droplet_id, s.droplet_name, s.region, s.ip_address, s.ssh_username, s.ssh_password,
	   s.ssl_status, s.trial_warning_sent, s.error_message, s.created_at, s.updated_at,
	   u.email`
}

func (r *ServerRepository) scanServer(row pgx.Row) (*models.Server, error) {
	s := &models.Server{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.Plan, &s.Status, &s.PaymentInterval, &s.SiteLimit,
		&s.DropletID, &s.DropletName, &s.Region, &s.IPAddress, &s.SSHUsername, &s.SSHPassword,
		&s.SSLStatus, &s.TrialWarningSent, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan server: %w", err)
	}
	return s, nil
}

func (r *ServerRepository) scanServersWithOwner(rows pgx.Rows) ([]*models.ServerWithOwner, error) {
	var servers []*models.ServerWithOwner
	for rows.Next() {
		s := &models.ServerWithOwner{}
		err := rows.Scan(
			&s.ID, &s.UserID, &s.Plan, &s.Status, &s.PaymentInterval, &s.SiteLimit,
			&s.DropletID, &s.DropletName, &s.Region, &s.IPAddress, &s.SSHUsername, &s.SSHPassword,
			&s.SSLStatus, &s.TrialWarningSent, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt,
			&s.OwnerEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan server row: %w", err)
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}
