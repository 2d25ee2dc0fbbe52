package service

import (
	"context"
	"testing"

	"github.com/cloudedbasement/control-panel/internal/models"
)

func newDomainFixture(t *testing.T) (*DomainService, *fakeDomainStore, *fakeServerStore) {
	t.Helper()
	domains := newFakeDomainStore()
	servers := newFakeServerStore()
	servers.Create(context.Background(), &models.Server{
		ID:        "srv-1",
		UserID:    "user-1",
		Plan:      models.PlanBasic,
		Status:    models.ServerStatusRunning,
		SiteLimit: 2,
	})
	return NewDomainService(domains, servers), domains, servers
}

func TestAddDomain(t *testing.T) {
	t.Run("adds a valid domain", func(t *testing.T) {
		svc, _, _ := newDomainFixture(t)

		info, err := svc.AddDomain(context.Background(), "user-1", "Example.COM ")
		if err != nil {
			t.Fatalf("AddDomain: %v", err)
		}
		if info.Name != "example.com" {
			t.Errorf("expected normalized name, got %q", info.Name)
		}
		if info.SSLStatus != models.SSLStatusNone {
			t.Errorf("expected ssl none, got %q", info.SSLStatus)
		}
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		svc, _, _ := newDomainFixture(t)

		for _, name := range []string{"", "nolabel", "-bad.com", "bad-.com", "exa mple.com", "foo.123", "a..b.com"} {
			if _, err := svc.AddDomain(context.Background(), "user-1", name); err == nil {
				t.Errorf("expected error for %q", name)
			}
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		svc, _, _ := newDomainFixture(t)

		if _, err := svc.AddDomain(context.Background(), "user-1", "example.com"); err != nil {
			t.Fatalf("first add: %v", err)
		}
		if _, err := svc.AddDomain(context.Background(), "user-1", "example.com"); err == nil {
			t.Fatal("expected duplicate error")
		}
	})

	t.Run("enforces the plan's site limit", func(t *testing.T) {
		svc, _, _ := newDomainFixture(t)

		if _, err := svc.AddDomain(context.Background(), "user-1", "one.example.com"); err != nil {
			t.Fatalf("add one: %v", err)
		}
		if _, err := svc.AddDomain(context.Background(), "user-1", "two.example.com"); err != nil {
			t.Fatalf("add two: %v", err)
		}
		if _, err := svc.AddDomain(context.Background(), "user-1", "three.example.com"); err == nil {
			t.Fatal("expected site limit error")
		}
	})

	t.Run("requires a server", func(t *testing.T) {
		svc, _, _ := newDomainFixture(t)

		if _, err := svc.AddDomain(context.Background(), "user-2", "example.com"); err == nil {
			t.Fatal("expected error for user without server")
		}
	})
}

func TestDeleteDomain(t *testing.T) {
	svc, domains, _ := newDomainFixture(t)

	info, err := svc.AddDomain(context.Background(), "user-1", "example.com")
	if err != nil {
		t.Fatalf("AddDomain: %v", err)
	}

	t.Run("other users cannot delete it", func(t *testing.T) {
		if err := svc.DeleteDomain(context.Background(), "user-2", info.DomainID); err == nil {
			t.Fatal("expected ownership error")
		}
	})

	t.Run("owner can delete it", func(t *testing.T) {
		if err := svc.DeleteDomain(context.Background(), "user-1", info.DomainID); err != nil {
			t.Fatalf("DeleteDomain: %v", err)
		}
		if _, err := domains.GetByID(context.Background(), info.DomainID); err == nil {
			t.Fatal("expected domain gone")
		}
	})
}

func TestRequestSSL(t *testing.T) {
	svc, domains, _ := newDomainFixture(t)

	info, err := svc.AddDomain(context.Background(), "user-1", "example.com")
	if err != nil {
		t.Fatalf("AddDomain: %v", err)
	}

	t.Run("moves the domain to pending", func(t *testing.T) {
		updated, err := svc.RequestSSL(context.Background(), "user-1", info.DomainID)
		if err != nil {
			t.Fatalf("RequestSSL: %v", err)
		}
		if updated.SSLStatus != models.SSLStatusPending {
			t.Errorf("expected pending, got %q", updated.SSLStatus)
		}
	})

	t.Run("active domains stay active", func(t *testing.T) {
		domains.UpdateSSLStatus(context.Background(), info.DomainID, models.SSLStatusActive)

		updated, err := svc.RequestSSL(context.Background(), "user-1", info.DomainID)
		if err != nil {
			t.Fatalf("RequestSSL: %v", err)
		}
		if updated.SSLStatus != models.SSLStatusActive {
			t.Errorf("expected active, got %q", updated.SSLStatus)
		}
	})

	t.Run("other users cannot request it", func(t *testing.T) {
		if _, err := svc.RequestSSL(context.Background(), "user-2", info.DomainID); err == nil {
			t.Fatal("expected ownership error")
		}
	})
}
