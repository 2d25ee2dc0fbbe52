package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloudedbasement/control-panel/internal/client"
	"github.com/cloudedbasement/control-panel/internal/config"
	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/cloudedbasement/control-panel/internal/repository"
)

// ProvisionService handles server provisioning and lifecycle actions
type ProvisionService struct {
	cfg      *config.Config
	servers  ServerStore
	users    UserStore
	payments PaymentStore
	events   EventLog
	compute  ComputeGateway
	mailer   Notifier
}

// NewProvisionService creates a new provision service
func NewProvisionService(
	cfg *config.Config,
	servers ServerStore,
	users UserStore,
	payments PaymentStore,
	events EventLog,
	compute ComputeGateway,
	mailer Notifier,
) *ProvisionService {
	return &ProvisionService{
		cfg:      cfg,
		servers:  servers,
		users:    users,
		payments: payments,
		events:   events,
		compute:  compute,
		mailer:   mailer,
	}
}

// Provision starts provisioning a new server for a user. The droplet creation
// itself runs in the background; the caller gets the server ID immediately.
func (s *ProvisionService) Provision(ctx context.Context, req *models.ProvisionRequest) (*models.ProvisionResponse, error) {
	log.Printf("[Provision] Starting provisioning for user=%s plan=%s", req.UserID, req.Plan)

	if !models.ValidPlan(req.Plan) {
		return nil, fmt.Errorf("unknown plan %q", req.Plan)
	}

	interval := req.Interval
	if interval == "" {
		interval = models.IntervalMonthly
	}

	region := req.Region
	if region == "" {
		region = s.cfg.Compute.DefaultRegion
	}

	// One server per user
	existing, err := s.servers.GetActiveByUser(ctx, req.UserID)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("user already has a server (status %s)", existing.Status)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check existing server: %w", err)
	}

	serverID := uuid.New().String()
	server := &models.Server{
		ID:              serverID,
		UserID:          req.UserID,
		Plan:            req.Plan,
		Status:          models.ServerStatusProvisioning,
		PaymentInterval: interval,
		SiteLimit:       models.SiteLimitForPlan(req.Plan),
		Region:          region,
		SSLStatus:       models.SSLStatusNone,
	}

	if err := s.servers.Create(ctx, server); err != nil {
		return nil, fmt.Errorf("create server record: %w", err)
	}

	s.events.LogAction(ctx, serverID, "provision_started", models.ServerStatusProvisioning,
		fmt.Sprintf("Provisioning started for plan %s in region %s", req.Plan, region))

	go s.provisionAsync(serverID, req.UserID, req.Plan, region)

	return &models.ProvisionResponse{
		ServerID:              serverID,
		Status:                models.ServerStatusProvisioning,
		EstimatedReadySeconds: 300,
		Message:               "Provisioning started",
	}, nil
}

// provisionAsync creates the droplet and waits for it to come up
func (s *ProvisionService) provisionAsync(serverID, userID, plan, region string) {
	ctx := context.Background()

	dropletName := fmt.Sprintf("basement-%s", serverID[:8])
	createReq := &client.CreateDropletRequest{
		Name:   dropletName,
		Region: region,
		Size:   models.DropletSizeForPlan(plan),
		Image:  s.cfg.Compute.Image,
		Tags:   []string{s.cfg.Compute.Tag},
	}

	droplet, err := s.compute.CreateDroplet(ctx, createReq)
	if err != nil {
		s.handleProvisionError(ctx, serverID, fmt.Sprintf("create droplet: %v", err))
		return
	}

	dropletID := fmt.Sprintf("%d", droplet.ID)
	server, _ := s.servers.GetByID(ctx, serverID)
	if server != nil {
		server.DropletID = &dropletID
		server.DropletName = &dropletName
		s.servers.Update(ctx, server)
	}

	s.events.LogAction(ctx, serverID, "droplet_creating", models.ServerStatusProvisioning,
		fmt.Sprintf("Droplet %s created, waiting for active state", dropletID))

	active, err := s.compute.WaitForDropletActive(ctx, dropletID, 10*time.Minute)
	if err != nil {
		s.handleProvisionError(ctx, serverID, fmt.Sprintf("wait for droplet active: %v", err))
		return
	}

	ip := active.PublicIP()
	if ip == "" {
		s.handleProvisionError(ctx, serverID, "droplet active but has no public IP")
		return
	}

	username := "root"
	password := strings.ReplaceAll(uuid.New().String(), "-", "")

	server, _ = s.servers.GetByID(ctx, serverID)
	if server != nil {
		server.IPAddress = &ip
		server.SSHUsername = &username
		server.SSHPassword = &password
		server.Status = models.ServerStatusRunning
		if err := s.servers.Update(ctx, server); err != nil {
			s.handleProvisionError(ctx, serverID, fmt.Sprintf("store droplet info: %v", err))
			return
		}
	}

	s.events.LogAction(ctx, serverID, "droplet_ready", models.ServerStatusRunning,
		fmt.Sprintf("Droplet active at %s", ip))

	s.sendCredentialsEmail(ctx, userID, ip, username, password)

	log.Printf("[Provision] Server %s provisioning complete, droplet active at %s", serverID, ip)
}

// sendCredentialsEmail mails the connection details to the owner. Best effort:
// the credentials are also readable from the panel.
func (s *ProvisionService) sendCredentialsEmail(ctx context.Context, userID, ip, username, password string) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[Provision] Cannot look up user %s for credentials email: %v", userID, err)
		return
	}

	body := fmt.Sprintf(
		"Your server is ready!\n\nIP address: %s\nSSH username: %s\nSSH password: %s\n\n"+
			"Your 3-day trial has started. Add a payment method before it ends to keep the server running.\n",
		ip, username, password)

	if err := s.mailer.Send(user.Email, "Your Clouded Basement server is ready", body); err != nil {
		log.Printf("[Provision] Failed to send credentials email to %s: %v", user.Email, err)
	}
}

// ServerAction starts, stops or restarts the caller's server
func (s *ProvisionService) ServerAction(ctx context.Context, userID, action string) (*models.ActionResponse, error) {
	server, err := s.servers.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("no server found")
		}
		return nil, fmt.Errorf("get server: %w", err)
	}

	if server.DropletID == nil {
		return nil, fmt.Errorf("server has no droplet attached")
	}
	if server.Status == models.ServerStatusProvisioning {
		return nil, fmt.Errorf("server is still being provisioned")
	}

	var actionErr error
	newStatus := server.Status

	switch action {
	case "start":
		actionErr = s.compute.PowerOn(ctx, *server.DropletID)
		newStatus = models.ServerStatusRunning
	case "stop":
		actionErr = s.compute.PowerOff(ctx, *server.DropletID)
		newStatus = models.ServerStatusStopped
	case "restart":
		actionErr = s.compute.Reboot(ctx, *server.DropletID)
		newStatus = models.ServerStatusRunning
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	if actionErr != nil {
		s.events.LogAction(ctx, server.ID, action, server.Status, fmt.Sprintf("Action failed: %v", actionErr))
		return nil, fmt.Errorf("%s server: %w", action, actionErr)
	}

	// The status write happens only after the provider accepted the action
	if err := s.servers.UpdateStatus(ctx, server.ID, newStatus, nil); err != nil {
		log.Printf("[Action] Droplet %s %s succeeded but status update failed: %v", *server.DropletID, action, err)
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.events.LogAction(ctx, server.ID, action, newStatus, fmt.Sprintf("Server %s requested by owner", action))

	return &models.ActionResponse{
		Success: true,
		Message: fmt.Sprintf("Server %s initiated", action),
	}, nil
}

// DeleteServer destroys the caller's droplet and removes the server record
func (s *ProvisionService) DeleteServer(ctx context.Context, userID string) (*models.ActionResponse, error) {
	server, err := s.servers.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("no server found")
		}
		return nil, fmt.Errorf("get server: %w", err)
	}

	if server.Status == models.ServerStatusProvisioning {
		return nil, fmt.Errorf("cannot delete a server while it is being provisioned")
	}

	if server.DropletID != nil && *server.DropletID != "" {
		if err := s.compute.Destroy(ctx, *server.DropletID); err != nil {
			log.Printf("[Delete] Warning: failed to destroy droplet %s: %v", *server.DropletID, err)
		}
	}

	if err := s.servers.Delete(ctx, server.ID); err != nil {
		return nil, fmt.Errorf("delete server record: %w", err)
	}

	s.events.LogAction(ctx, server.ID, "deleted", models.ServerStatusDeleted, "Server deleted by owner")
	log.Printf("[Delete] Server %s deleted for user %s", server.ID, userID)

	return &models.ActionResponse{
		Success: true,
		Message: "Server deleted",
	}, nil
}

// GetUserServer returns the API view of the caller's server, including
// whether it is still on trial.
func (s *ProvisionService) GetUserServer(ctx context.Context, userID string) (*models.ServerInfo, error) {
	server, err := s.servers.GetLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := serverToInfo(server)

	_, err = s.payments.GetLatestSucceededByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		info.OnTrial = true
		trialEnd := server.CreatedAt.Add(s.cfg.Monitor.TrialWindow).Format(time.RFC3339)
		info.TrialEndsAt = &trialEnd
	} else if err != nil {
		log.Printf("[Provision] Trial lookup for user %s: %v", userID, err)
	}

	return info, nil
}

// GetServerEvents returns recent lifecycle events for the caller's server
func (s *ProvisionService) GetServerEvents(ctx context.Context, userID string, limit int) ([]*models.ServerEventInfo, error) {
	server, err := s.servers.GetLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	events, err := s.events.GetByServerID(ctx, server.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	infos := make([]*models.ServerEventInfo, 0, len(events))
	for _, event := range events {
		infos = append(infos, &models.ServerEventInfo{
			Action:    event.Action,
			Status:    event.Status,
			Message:   event.Message,
			CreatedAt: event.CreatedAt.Format(time.RFC3339),
		})
	}
	return infos, nil
}

func (s *ProvisionService) handleProvisionError(ctx context.Context, serverID, errorMsg string) {
	log.Printf("[Provision] Provisioning failed for %s: %s", serverID, errorMsg)

	if err := s.servers.UpdateStatus(ctx, serverID, models.ServerStatusFailed, &errorMsg); err != nil {
		log.Printf("[Provision] Failed to mark server %s failed: %v", serverID, err)
	}
	s.events.LogAction(ctx, serverID, "provision_failed", models.ServerStatusFailed, errorMsg)

	if err := s.mailer.Send(s.cfg.AdminEmail, "Provisioning failed",
		fmt.Sprintf("Server %s failed to provision: %s", serverID, errorMsg)); err != nil {
		log.Printf("[Provision] Failed to notify admin: %v", err)
	}
}

func serverToInfo(server *models.Server) *models.ServerInfo {
	return &models.ServerInfo{
		ServerID:    server.ID,
		Plan:        server.Plan,
		Status:      server.Status,
		IPAddress:   server.IPAddress,
		SSLStatus:   server.SSLStatus,
		SiteLimit:   server.SiteLimit,
		Interval:    server.PaymentInterval,
		Region:      server.Region,
		CreatedAt:   server.CreatedAt.Format(time.RFC3339),
		ErrorDetail: server.ErrorMessage,
	}
}
