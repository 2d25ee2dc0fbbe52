package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudedbasement/control-panel/internal/config"
	"github.com/cloudedbasement/control-panel/internal/models"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Monitor.TrialWindow = 72 * time.Hour
	cfg.Monitor.PaymentWindow = 35 * 24 * time.Hour
	cfg.Monitor.GracePeriod = 7 * 24 * time.Hour
	cfg.Monitor.CommandTimeout = 2 * time.Minute
	cfg.Compute.DefaultRegion = "tor1"
	cfg.Compute.Image = "ubuntu-22-04-x64"
	cfg.Compute.Tag = "basement-server"
	cfg.AdminEmail = "admin@example.com"
	return cfg
}

func newLifecycleFixture() (*LifecycleService, *fakeServerStore, *fakeComputeGateway, *fakeMailer, *fakeEventLog) {
	servers := newFakeServerStore()
	compute := &fakeComputeGateway{}
	mailer := &fakeMailer{}
	events := &fakeEventLog{}
	svc := NewLifecycleService(testConfig(), servers, events, compute, mailer)
	return svc, servers, compute, mailer, events
}

func TestLifecycleExpiredTrial(t *testing.T) {
	svc, servers, compute, mailer, _ := newLifecycleFixture()

	t.Run("powers off and stops", func(t *testing.T) {
		servers.expiredTrials = []*models.ServerWithOwner{serverWithOwner("srv-1", "101", "owner@example.com")}
		servers.statusWrites = nil
		compute.poweredOff = nil

		svc.RunOnce(context.Background())

		if len(compute.poweredOff) != 1 || compute.poweredOff[0] != "101" {
			t.Fatalf("expected droplet 101 powered off, got %v", compute.poweredOff)
		}
		if len(servers.statusWrites) != 1 || servers.statusWrites[0].status != models.ServerStatusStopped {
			t.Fatalf("expected one stopped write, got %v", servers.statusWrites)
		}
		if mailer.sentTo("admin@example.com") == 0 {
			t.Error("expected admin notification")
		}
	})

	t.Run("power off failure leaves status unchanged", func(t *testing.T) {
		servers.expiredTrials = []*models.ServerWithOwner{serverWithOwner("srv-2", "102", "owner@example.com")}
		servers.statusWrites = nil
		compute.powerOffErr = errors.New("api down")
		defer func() { compute.powerOffErr = nil }()

		svc.RunOnce(context.Background())

		if len(servers.statusWrites) != 0 {
			t.Fatalf("expected no status writes, got %v", servers.statusWrites)
		}
	})

	t.Run("server without droplet is skipped", func(t *testing.T) {
		servers.expiredTrials = []*models.ServerWithOwner{serverWithOwner("srv-3", "", "owner@example.com")}
		servers.statusWrites = nil
		compute.poweredOff = nil

		svc.RunOnce(context.Background())

		if len(compute.poweredOff) != 0 {
			t.Fatalf("expected no power off calls, got %v", compute.poweredOff)
		}
	})
}

func TestLifecycleTrialWarning(t *testing.T) {
	svc, servers, _, mailer, _ := newLifecycleFixture()

	t.Run("warns once and marks the flag", func(t *testing.T) {
		s := serverWithOwner("srv-1", "101", "owner@example.com")
		s.CreatedAt = time.Now().Add(-40 * time.Hour)
		servers.warnCandidates = []*models.ServerWithOwner{s}
		servers.warningsSent = nil

		svc.checkTrialWarnings(context.Background(), time.Now())

		if mailer.sentTo("owner@example.com") != 1 {
			t.Fatalf("expected one warning email, got %d", mailer.sentTo("owner@example.com"))
		}
		if len(servers.warningsSent) != 1 || servers.warningsSent[0] != "srv-1" {
			t.Fatalf("expected warning flag on srv-1, got %v", servers.warningsSent)
		}
	})

	t.Run("failed send leaves the flag unset for retry", func(t *testing.T) {
		s := serverWithOwner("srv-2", "102", "other@example.com")
		servers.warnCandidates = []*models.ServerWithOwner{s}
		servers.warningsSent = nil
		mailer.sendErr = errors.New("smtp down")
		defer func() { mailer.sendErr = nil }()

		svc.checkTrialWarnings(context.Background(), time.Now())

		if len(servers.warningsSent) != 0 {
			t.Fatalf("expected no warning flags, got %v", servers.warningsSent)
		}
	})

	t.Run("days left never reports zero", func(t *testing.T) {
		s := serverWithOwner("srv-3", "103", "edge@example.com")
		// 71h into a 72h trial: less than a day left
		s.CreatedAt = time.Now().Add(-71 * time.Hour)
		servers.warnCandidates = []*models.ServerWithOwner{s}
		mailer.sent = nil

		svc.checkTrialWarnings(context.Background(), time.Now())

		if len(mailer.sent) != 1 {
			t.Fatalf("expected one email, got %d", len(mailer.sent))
		}
		if got := mailer.sent[0].body; !strings.Contains(got, "1 day(s)") {
			t.Errorf("expected body to mention 1 day(s), got %q", got)
		}
	})
}

func TestLifecycleGracePeriodDestroy(t *testing.T) {
	svc, servers, compute, mailer, _ := newLifecycleFixture()

	t.Run("destroys droplet and removes record", func(t *testing.T) {
		servers.stopped = []*models.ServerWithOwner{serverWithOwner("srv-1", "201", "owner@example.com")}
		servers.deleted = nil
		compute.destroyed = nil

		svc.destroyStoppedServers(context.Background(), time.Now())

		if len(compute.destroyed) != 1 || compute.destroyed[0] != "201" {
			t.Fatalf("expected droplet 201 destroyed, got %v", compute.destroyed)
		}
		if len(servers.deleted) != 1 || servers.deleted[0] != "srv-1" {
			t.Fatalf("expected srv-1 deleted, got %v", servers.deleted)
		}
		if mailer.sentTo("admin@example.com") == 0 {
			t.Error("expected admin notification")
		}
	})

	t.Run("destroy failure keeps the record", func(t *testing.T) {
		servers.stopped = []*models.ServerWithOwner{serverWithOwner("srv-2", "202", "owner@example.com")}
		servers.deleted = nil
		compute.destroyErr = errors.New("api down")
		defer func() { compute.destroyErr = nil }()

		svc.destroyStoppedServers(context.Background(), time.Now())

		if len(servers.deleted) != 0 {
			t.Fatalf("expected no deletions, got %v", servers.deleted)
		}
	})
}

func TestLifecycleLapsedPayment(t *testing.T) {
	svc, servers, compute, _, events := newLifecycleFixture()

	servers.lapsed = []*models.ServerWithOwner{serverWithOwner("srv-1", "301", "owner@example.com")}

	svc.checkLapsedPayments(context.Background(), time.Now())

	if len(compute.poweredOff) != 1 || compute.poweredOff[0] != "301" {
		t.Fatalf("expected droplet 301 powered off, got %v", compute.poweredOff)
	}
	found := false
	for _, a := range events.actions {
		if a == "payment_lapsed" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected payment_lapsed event, got %v", events.actions)
	}
}

// One failing server must not block the rest of the batch.
func TestLifecycleErrorContainment(t *testing.T) {
	svc, servers, compute, _, _ := newLifecycleFixture()

	bad := serverWithOwner("srv-bad", "", "bad@example.com") // no droplet
	good := serverWithOwner("srv-good", "401", "good@example.com")
	servers.expiredTrials = []*models.ServerWithOwner{bad, good}

	svc.checkExpiredTrials(context.Background(), time.Now())

	if len(compute.poweredOff) != 1 || compute.poweredOff[0] != "401" {
		t.Fatalf("expected the healthy server to still be processed, got %v", compute.poweredOff)
	}
}
