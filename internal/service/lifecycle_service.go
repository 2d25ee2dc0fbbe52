package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudedbasement/control-panel/internal/config"
	"github.com/cloudedbasement/control-panel/internal/models"
)

// LifecycleService enforces the trial and payment windows. Each run walks the
// checks in a fixed order: warn expiring trials, stop expired trials, stop
// servers with lapsed payments, destroy servers stopped past the grace period.
// A failure on one server never blocks the rest of the sweep.
type LifecycleService struct {
	cfg     *config.Config
	servers ServerStore
	events  EventLog
	compute ComputeGateway
	mailer  Notifier

	now func() time.Time
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(
	cfg *config.Config,
	servers ServerStore,
	events EventLog,
	compute ComputeGateway,
	mailer Notifier,
) *LifecycleService {
	return &LifecycleService{
		cfg:     cfg,
		servers: servers,
		events:  events,
		compute: compute,
		mailer:  mailer,
		now:     time.Now,
	}
}

// RunOnce executes one full lifecycle sweep
func (s *LifecycleService) RunOnce(ctx context.Context) {
	now := s.now()

	s.checkTrialWarnings(ctx, now)
	s.checkExpiredTrials(ctx, now)
	s.checkLapsedPayments(ctx, now)
	s.destroyStoppedServers(ctx, now)
}

// checkTrialWarnings emails owners whose trial ends within the next two days.
// The warning fires once per server; the flag is only set after the email
// went out, so a failed send retries on the next sweep.
func (s *LifecycleService) checkTrialWarnings(ctx context.Context, now time.Time) {
	bandStart := now.Add(-(s.cfg.Monitor.TrialWindow - time.Hour))
	bandEnd := now.Add(-24 * time.Hour)

	servers, err := s.servers.ListTrialWarningCandidates(ctx, bandStart, bandEnd)
	if err != nil {
		log.Printf("[Lifecycle] List trial warning candidates: %v", err)
		return
	}

	for _, server := range servers {
		remaining := s.cfg.Monitor.TrialWindow - now.Sub(server.CreatedAt)
		daysLeft := int((remaining + 24*time.Hour - time.Nanosecond) / (24 * time.Hour))
		if daysLeft < 1 {
			daysLeft = 1
		}

		body := fmt.Sprintf(
			"Your Clouded Basement trial ends in %d day(s).\n\n"+
				"Add a payment method to keep your server running. Once the trial "+
				"expires the server is powered off, and after %d days without payment it is destroyed.\n",
			daysLeft, int(s.cfg.Monitor.GracePeriod/(24*time.Hour)))

		if err := s.mailer.Send(server.OwnerEmail, "Your trial is ending soon", body); err != nil {
			log.Printf("[Lifecycle] Trial warning email for server %s failed: %v", server.ID, err)
			continue
		}

		if err := s.servers.MarkTrialWarningSent(ctx, server.ID); err != nil {
			log.Printf("[Lifecycle] Mark trial warning sent for server %s: %v", server.ID, err)
		}
		log.Printf("[Lifecycle] Trial warning sent for server %s (%d day(s) left)", server.ID, daysLeft)
	}
}

// checkExpiredTrials powers off running servers whose trial ended without a
// successful payment.
func (s *LifecycleService) checkExpiredTrials(ctx context.Context, now time.Time) {
	trialCutoff := now.Add(-s.cfg.Monitor.TrialWindow)

	servers, err := s.servers.ListExpiredTrials(ctx, trialCutoff)
	if err != nil {
		log.Printf("[Lifecycle] List expired trials: %v", err)
		return
	}
	if len(servers) > 0 {
		log.Printf("[Lifecycle] Found %d expired trial server(s)", len(servers))
	}

	for _, server := range servers {
		s.stopServer(ctx, server, "trial_expired",
			fmt.Sprintf("Trial expired for server %s (owner %s)", server.ID, server.OwnerEmail))
	}
}

// checkLapsedPayments powers off running servers whose most recent successful
// payment is older than the payment window.
func (s *LifecycleService) checkLapsedPayments(ctx context.Context, now time.Time) {
	trialCutoff := now.Add(-s.cfg.Monitor.TrialWindow)
	paymentCutoff := now.Add(-s.cfg.Monitor.PaymentWindow)

	servers, err := s.servers.ListLapsedPayments(ctx, trialCutoff, paymentCutoff)
	if err != nil {
		log.Printf("[Lifecycle] List lapsed payments: %v", err)
		return
	}
	if len(servers) > 0 {
		log.Printf("[Lifecycle] Found %d server(s) with lapsed payments", len(servers))
	}

	for _, server := range servers {
		s.stopServer(ctx, server, "payment_lapsed",
			fmt.Sprintf("Payment lapsed for server %s (owner %s)", server.ID, server.OwnerEmail))
	}
}

// stopServer powers off one server. The status write happens only after the
// provider accepted the power-off; otherwise the record stays running and the
// next sweep retries.
func (s *LifecycleService) stopServer(ctx context.Context, server *models.ServerWithOwner, action, adminMsg string) {
	if server.DropletID == nil || *server.DropletID == "" {
		log.Printf("[Lifecycle] Server %s has no droplet, skipping", server.ID)
		return
	}

	if err := s.compute.PowerOff(ctx, *server.DropletID); err != nil {
		log.Printf("[Lifecycle] Power off droplet %s (server %s): %v", *server.DropletID, server.ID, err)
		return
	}

	if err := s.servers.UpdateStatus(ctx, server.ID, models.ServerStatusStopped, nil); err != nil {
		// Droplet is off but the row still says running. The next sweep will
		// select it again and the power-off is idempotent.
		log.Printf("[Lifecycle] Droplet %s powered off but status update failed for server %s: %v",
			*server.DropletID, server.ID, err)
		return
	}

	s.events.LogAction(ctx, server.ID, action, models.ServerStatusStopped, adminMsg)
	log.Printf("[Lifecycle] Server %s stopped (%s)", server.ID, action)

	if err := s.mailer.Send(s.cfg.AdminEmail, "Server stopped: "+action, adminMsg); err != nil {
		log.Printf("[Lifecycle] Admin notification failed for server %s: %v", server.ID, err)
	}
}

// destroyStoppedServers destroys servers that have been stopped longer than
// the grace period and removes their records.
func (s *LifecycleService) destroyStoppedServers(ctx context.Context, now time.Time) {
	graceCutoff := now.Add(-s.cfg.Monitor.GracePeriod)

	servers, err := s.servers.ListStoppedSince(ctx, graceCutoff)
	if err != nil {
		log.Printf("[Lifecycle] List stopped servers: %v", err)
		return
	}
	if len(servers) > 0 {
		log.Printf("[Lifecycle] Found %d server(s) past the grace period", len(servers))
	}

	for _, server := range servers {
		if server.DropletID != nil && *server.DropletID != "" {
			if err := s.compute.Destroy(ctx, *server.DropletID); err != nil {
				log.Printf("[Lifecycle] Destroy droplet %s (server %s): %v", *server.DropletID, server.ID, err)
				continue
			}
		}

		if err := s.servers.Delete(ctx, server.ID); err != nil {
			log.Printf("[Lifecycle] Delete server record %s: %v", server.ID, err)
			continue
		}

		msg := fmt.Sprintf("Server %s destroyed after grace period (owner %s)", server.ID, server.OwnerEmail)
		log.Printf("[Lifecycle] %s", msg)

		if err := s.mailer.Send(s.cfg.AdminEmail, "Server destroyed", msg); err != nil {
			log.Printf("[Lifecycle] Admin notification failed for server %s: %v", server.ID, err)
		}
	}
}
