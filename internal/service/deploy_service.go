package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cloudedbasement/control-panel/internal/config"
	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/cloudedbasement/control-panel/internal/repository"
)

// deployments keep at most this much command output
const maxDeployOutput = 8192

// DeployService runs git deployments on a user's server over SSH
type DeployService struct {
	cfg         *config.Config
	deployments DeploymentStore
	servers     ServerStore
	events      EventLog
	executor    RemoteExecutor
}

// NewDeployService creates a new deploy service
func NewDeployService(
	cfg *config.Config,
	deployments DeploymentStore,
	servers ServerStore,
	events EventLog,
	executor RemoteExecutor,
) *DeployService {
	return &DeployService{
		cfg:         cfg,
		deployments: deployments,
		servers:     servers,
		events:      events,
		executor:    executor,
	}
}

// Deploy queues a deployment of gitURL on the caller's server. The clone and
// restart run in the background; the caller polls the deployment record.
func (s *DeployService) Deploy(ctx context.Context, userID, gitURL string) (*models.DeploymentInfo, error) {
	if !models.ValidGitURL(gitURL) {
		return nil, fmt.Errorf("git URL must be https on github.com, gitlab.com or bitbucket.org")
	}

	server, err := s.servers.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("no server found")
		}
		return nil, fmt.Errorf("get server: %w", err)
	}
	if server.Status != models.ServerStatusRunning {
		return nil, fmt.Errorf("server is %s, deployments need a running server", server.Status)
	}
	if server.IPAddress == nil || server.SSHUsername == nil || server.SSHPassword == nil {
		return nil, fmt.Errorf("server has no connection info yet")
	}

	deployment := &models.Deployment{
		ID:       uuid.New().String(),
		ServerID: server.ID,
		UserID:   userID,
		GitURL:   gitURL,
		Status:   models.DeploymentStatusPending,
	}

	if err := s.deployments.Create(ctx, deployment); err != nil {
		return nil, fmt.Errorf("create deployment record: %w", err)
	}

	s.events.LogAction(ctx, server.ID, "deploy_queued", deployment.Status,
		fmt.Sprintf("Deployment %s queued for %s", deployment.ID, gitURL))

	go s.runDeployment(deployment, *server.IPAddress, *server.SSHUsername, *server.SSHPassword)

	return deploymentToInfo(deployment), nil
}

// runDeployment executes the clone and restart on the server
func (s *DeployService) runDeployment(deployment *models.Deployment, host, username, password string) {
	ctx := context.Background()

	if err := s.deployments.UpdateResult(ctx, deployment.ID, models.DeploymentStatusRunning, ""); err != nil {
		log.Printf("[Deploy] Mark deployment %s running: %v", deployment.ID, err)
	}

	// GitURL passed validation above: https scheme, known host, and a path
	// restricted to [A-Za-z0-9._/-], so nothing the shell interprets can
	// appear in the interpolated string.
	command := fmt.Sprintf(
		"set -e; rm -rf /var/www/app.new; git clone --depth 1 %q /var/www/app.new; "+
			"if [ -f /var/www/app.new/package.json ]; then cd /var/www/app.new && npm install --omit=dev; fi; "+
			"rm -rf /var/www/app.old; [ -d /var/www/app ] && mv /var/www/app /var/www/app.old; "+
			"mv /var/www/app.new /var/www/app; systemctl restart basement-app || true",
		deployment.GitURL)

	result, err := s.executor.Execute(ctx, host, username, password, command, s.cfg.Monitor.CommandTimeout)
	if err != nil {
		s.finishDeployment(ctx, deployment, models.DeploymentStatusFailed, fmt.Sprintf("ssh: %v", err))
		return
	}

	output := truncate(result.Combined(), maxDeployOutput)
	if result.ExitCode != 0 {
		s.finishDeployment(ctx, deployment, models.DeploymentStatusFailed,
			fmt.Sprintf("exit %d\n%s", result.ExitCode, output))
		return
	}

	s.finishDeployment(ctx, deployment, models.DeploymentStatusSucceeded, output)
}

func (s *DeployService) finishDeployment(ctx context.Context, deployment *models.Deployment, status, output string) {
	if err := s.deployments.UpdateResult(ctx, deployment.ID, status, output); err != nil {
		log.Printf("[Deploy] Store result for deployment %s: %v", deployment.ID, err)
		return
	}

	s.events.LogAction(ctx, deployment.ServerID, "deploy_finished", status,
		fmt.Sprintf("Deployment %s %s", deployment.ID, status))
	log.Printf("[Deploy] Deployment %s %s", deployment.ID, status)
}

// ListDeployments returns the deployments on the caller's server, newest first
func (s *DeployService) ListDeployments(ctx context.Context, userID string) ([]*models.DeploymentInfo, error) {
	server, err := s.servers.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []*models.DeploymentInfo{}, nil
		}
		return nil, fmt.Errorf("get server: %w", err)
	}

	deployments, err := s.deployments.ListByServer(ctx, server.ID)
	if err != nil {
		return nil, err
	}

	infos := make([]*models.DeploymentInfo, 0, len(deployments))
	for _, deployment := range deployments {
		infos = append(infos, deploymentToInfo(deployment))
	}
	return infos, nil
}

func deploymentToInfo(deployment *models.Deployment) *models.DeploymentInfo {
	return &models.DeploymentInfo{
		DeploymentID: deployment.ID,
		GitURL:       deployment.GitURL,
		Status:       deployment.Status,
		Output:       deployment.Output,
		CreatedAt:    deployment.CreatedAt.Format(time.RFC3339),
	}
}
