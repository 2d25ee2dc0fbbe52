package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateDomain is returned when a domain name is already registered
var ErrDuplicateDomain = errors.New("domain already exists")

type DomainRepository struct {
	pool *pgxpool.Pool
}

func NewDomainRepository(pool *pgxpool.Pool) *DomainRepository {
	return &DomainRepository{pool: pool}
}

// Create inserts a domain. Name uniqueness is enforced by the database.
func (r *DomainRepository) Create(ctx context.Context, d *models.Domain) error {
	query := `
		INSERT INTO panel.domains (id, server_id, user_id, name, ssl_status)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, d.ID, d.ServerID, d.UserID, d.Name, d.SSLStatus)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateDomain
		}
		return fmt.Errorf("insert domain: %w", err)
	}

	return nil
}

// GetByID retrieves a domain by ID
func (r *DomainRepository) GetByID(ctx context.Context, id string) (*models.Domain, error) {
	query := `
		SELECT id, server_id, user_id, name, ssl_status, created_at, updated_at
		FROM panel.domains
		WHERE id = $1
	`

	return r.scanDomain(r.pool.QueryRow(ctx, query, id))
}

// GetByName retrieves a domain by its (unique) name
func (r *DomainRepository) GetByName(ctx context.Context, name string) (*models.Domain, error) {
	query := `
		SELECT id, server_id, user_id, name, ssl_status, created_at, updated_at
		FROM panel.domains
		WHERE name = $1
	`

	return r.scanDomain(r.pool.QueryRow(ctx, query, name))
}

// ListByUser returns a user's domains, newest first
func (r *DomainRepository) ListByUser(ctx context.Context, userID string) ([]*models.Domain, error) {
	query := `
		SELECT id, server_id, user_id, name, ssl_status, created_at, updated_at
		FROM panel.domains
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	return r.scanDomains(rows)
}

// CountByServer counts domains bound to a server, for site-limit checks
func (r *DomainRepository) CountByServer(ctx context.Context, serverID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM panel.domains WHERE server_id = $1`, serverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count domains: %w", err)
	}
	return count, nil
}

// UpdateSSLStatus sets a domain's SSL status
func (r *DomainRepository) UpdateSSLStatus(ctx context.Context, id, sslStatus string) error {
	query := `UPDATE panel.domains SET ssl_status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, sslStatus, id)
	if err != nil {
		return fmt.Errorf("update ssl status: %w", err)
	}
	return nil
}

// Delete removes a domain
func (r *DomainRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM panel.domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	return nil
}

// sslCandidatesQuery scans the joined connection columns into non-pointer
// fields, so every one of them must carry a NOT NULL filter.
const sslCandidatesQuery = `
	SELECT d.id, d.server_id, d.user_id, d.name, d.ssl_status, d.created_at, d.updated_at,
	       s.ip_address, s.ssh_username, s.ssh_password
	FROM panel.domains d
	JOIN panel.servers s ON d.server_id = s.id
	WHERE d.ssl_status != 'active'
	  AND s.status = 'running'
	  AND s.ip_address IS NOT NULL
	  AND s.ssh_username IS NOT NULL
	  AND s.ssh_password IS NOT NULL
`

// ListSSLCandidates selects domains without an active certificate whose
// server is running with full connection info. Failed domains stay selectable
// so transient gateway errors self-heal on a later pass.
func (r *DomainRepository) ListSSLCandidates(ctx context.Context) ([]*models.SSLCandidate, error) {
	rows, err := r.pool.Query(ctx, sslCandidatesQuery)
	if err != nil {
		return nil, fmt.Errorf("query ssl candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*models.SSLCandidate
	for rows.Next() {
		c := &models.SSLCandidate{}
		err := rows.Scan(
			&c.ID, &c.ServerID, &c.UserID, &c.Name, &c.SSLStatus, &c.CreatedAt, &c.UpdatedAt,
			&c.ServerIP, &c.SSHUsername, &c.SSHPassword,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ssl candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *DomainRepository) scanDomain(row pgx.Row) (*models.Domain, error) {
	d := &models.Domain{}
	err := row.Scan(&d.ID, &d.ServerID, &d.UserID, &d.Name, &d.SSLStatus, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan domain: %w", err)
	}
	return d, nil
}

func (r *DomainRepository) scanDomains(rows pgx.Rows) ([]*models.Domain, error) {
	var domains []*models.Domain
	for rows.Next() {
		d := &models.Domain{}
		err := rows.Scan(&d.ID, &d.ServerID, &d.UserID, &d.Name, &d.SSLStatus, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan domain row: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
