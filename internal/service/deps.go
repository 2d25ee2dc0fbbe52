package service

import (
	"context"
	"time"

	"github.com/cloudedbasement/control-panel/internal/client"
	"github.com/cloudedbasement/control-panel/internal/models"
)

// Collaborator capability surfaces. Services depend on these rather than on
// the concrete repository and client types so the periodic jobs can be
// exercised against in-memory fakes.

// ComputeGateway is the cloud provider API surface used by the services
type ComputeGateway interface {
	CreateDroplet(ctx context.Context, req *client.CreateDropletRequest) (*client.Droplet, error)
	PowerOff(ctx context.Context, dropletID string) error
	PowerOn(ctx context.Context, dropletID string) error
	Reboot(ctx context.Context, dropletID string) error
	Destroy(ctx context.Context, dropletID string) error
	WaitForDropletActive(ctx context.Context, dropletID string, maxWait time.Duration) (*client.Droplet, error)
}

// RemoteExecutor runs commands on a provisioned server
type RemoteExecutor interface {
	Execute(ctx context.Context, host, username, password, command string, timeout time.Duration) (*client.ExecResult, error)
}

// AddrResolver resolves a hostname's IPv4 records
type AddrResolver interface {
	LookupA(ctx context.Context, name string) ([]string, error)
}

// Notifier sends transactional email
type Notifier interface {
	Send(to, subject, body string) error
}

// ServerStore is the persistence surface for servers
type ServerStore interface {
	Create(ctx context.Context, s *models.Server) error
	GetByID(ctx context.Context, id string) (*models.Server, error)
	GetActiveByUser(ctx context.Context, userID string) (*models.Server, error)
	GetLatestByUser(ctx context.Context, userID string) (*models.Server, error)
	Update(ctx context.Context, s *models.Server) error
	UpdateStatus(ctx context.Context, id, status string, errorMsg *string) error
	MarkTrialWarningSent(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListExpiredTrials(ctx context.Context, trialCutoff time.Time) ([]*models.ServerWithOwner, error)
	ListLapsedPayments(ctx context.Context, trialCutoff, paymentCutoff time.Time) ([]*models.ServerWithOwner, error)
	ListStoppedSince(ctx context.Context, graceCutoff time.Time) ([]*models.ServerWithOwner, error)
	ListTrialWarningCandidates(ctx context.Context, bandStart, bandEnd time.Time) ([]*models.ServerWithOwner, error)
}

// DomainStore is the persistence surface for domains
type DomainStore interface {
	Create(ctx context.Context, d *models.Domain) error
	GetByID(ctx context.Context, id string) (*models.Domain, error)
	GetByName(ctx context.Context, name string) (*models.Domain, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Domain, error)
	CountByServer(ctx context.Context, serverID string) (int, error)
	UpdateSSLStatus(ctx context.Context, id, sslStatus string) error
	Delete(ctx context.Context, id string) error
	ListSSLCandidates(ctx context.Context) ([]*models.SSLCandidate, error)
}

// PaymentStore is the persistence surface for payments
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetLatestSucceededByUser(ctx context.Context, userID string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Payment, error)
}

// UserStore looks up account holders
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// DeploymentStore is the persistence surface for deployments
type DeploymentStore interface {
	Create(ctx context.Context, d *models.Deployment) error
	GetByID(ctx context.Context, id string) (*models.Deployment, error)
	ListByServer(ctx context.Context, serverID string) ([]*models.Deployment, error)
	UpdateResult(ctx context.Context, id, status, output string) error
}

// EventLog records provisioning and lifecycle actions
type EventLog interface {
	LogAction(ctx context.Context, serverID, action, status, message string) error
	GetByServerID(ctx context.Context, serverID string, limit int) ([]*models.ServerEvent, error)
}
