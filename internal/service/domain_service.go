package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/cloudedbasement/control-panel/internal/repository"
)

// DomainService handles custom domains bound to a user's server
type DomainService struct {
	domains DomainStore
	servers ServerStore
}

// NewDomainService creates a new domain service
func NewDomainService(domains DomainStore, servers ServerStore) *DomainService {
	return &DomainService{
		domains: domains,
		servers: servers,
	}
}

// AddDomain binds a hostname to the caller's server. The domain starts
// without SSL; the certificate sweep picks it up once DNS points at the
// server.
func (s *DomainService) AddDomain(ctx context.Context, userID, name string) (*models.DomainInfo, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !models.ValidDomainName(name) {
		return nil, fmt.Errorf("invalid domain name %q", name)
	}

	server, err := s.servers.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("no server found; provision a server before adding domains")
		}
		return nil, fmt.Errorf("get server: %w", err)
	}

	// Friendly duplicate check first; the unique index is the real guard
	if _, err := s.domains.GetByName(ctx, name); err == nil {
		return nil, fmt.Errorf("domain %s is already registered", name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check domain: %w", err)
	}

	count, err := s.domains.CountByServer(ctx, server.ID)
	if err != nil {
		return nil, fmt.Errorf("count domains: %w", err)
	}
	if count >= server.SiteLimit {
		return nil, fmt.Errorf("site limit reached (%d/%d for plan %s)", count, server.SiteLimit, server.Plan)
	}

	domain := &models.Domain{
		ID:        uuid.New().String(),
		ServerID:  server.ID,
		UserID:    userID,
		Name:      name,
		SSLStatus: models.SSLStatusNone,
	}

	if err := s.domains.Create(ctx, domain); err != nil {
		if errors.Is(err, repository.ErrDuplicateDomain) {
			return nil, fmt.Errorf("domain %s is already registered", name)
		}
		return nil, fmt.Errorf("create domain: %w", err)
	}

	log.Printf("[Domain] Added %s for user %s (server %s)", name, userID, server.ID)
	return domainToInfo(domain), nil
}

// ListDomains returns the caller's domains
func (s *DomainService) ListDomains(ctx context.Context, userID string) ([]*models.DomainInfo, error) {
	domains, err := s.domains.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]*models.DomainInfo, 0, len(domains))
	for _, domain := range domains {
		infos = append(infos, domainToInfo(domain))
	}
	return infos, nil
}

// DeleteDomain removes one of the caller's domains
func (s *DomainService) DeleteDomain(ctx context.Context, userID, domainID string) error {
	domain, err := s.domains.GetByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("domain not found")
		}
		return fmt.Errorf("get domain: %w", err)
	}
	if domain.UserID != userID {
		return fmt.Errorf("domain not found")
	}

	if err := s.domains.Delete(ctx, domainID); err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}

	log.Printf("[Domain] Deleted %s for user %s", domain.Name, userID)
	return nil
}

// RequestSSL flags one of the caller's domains for certificate provisioning.
// The sweep itself decides when DNS is ready; this only moves the domain out
// of the none state.
func (s *DomainService) RequestSSL(ctx context.Context, userID, domainID string) (*models.DomainInfo, error) {
	domain, err := s.domains.GetByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("domain not found")
		}
		return nil, fmt.Errorf("get domain: %w", err)
	}
	if domain.UserID != userID {
		return nil, fmt.Errorf("domain not found")
	}
	if domain.SSLStatus == models.SSLStatusActive {
		return domainToInfo(domain), nil
	}

	if err := s.domains.UpdateSSLStatus(ctx, domainID, models.SSLStatusPending); err != nil {
		return nil, fmt.Errorf("update ssl status: %w", err)
	}
	domain.SSLStatus = models.SSLStatusPending

	log.Printf("[Domain] SSL requested for %s by user %s", domain.Name, userID)
	return domainToInfo(domain), nil
}

func domainToInfo(domain *models.Domain) *models.DomainInfo {
	return &models.DomainInfo{
		DomainID:  domain.ID,
		Name:      domain.Name,
		ServerID:  domain.ServerID,
		SSLStatus: domain.SSLStatus,
		CreatedAt: domain.CreatedAt.Format(time.RFC3339),
	}
}
