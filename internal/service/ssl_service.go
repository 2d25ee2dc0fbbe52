package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudedbasement/control-panel/internal/client"
	"github.com/cloudedbasement/control-panel/internal/config"
	"github.com/cloudedbasement/control-panel/internal/models"
)

// certbot reports success in its output even when the process exit code is
// unreliable over a remote shell, so both are checked.
var certbotSuccessMarkers = []string{
	"Congratulations",
	"Successfully received certificate",
	"Certificate not yet due for renewal",
}

// SSLService provisions certificates for domains that point at their server.
// Each run selects every domain without an active certificate whose server is
// running, checks DNS, and runs certbot on the server when the records match.
type SSLService struct {
	cfg      *config.Config
	domains  DomainStore
	resolver AddrResolver
	executor RemoteExecutor
}

// NewSSLService creates a new SSL service
func NewSSLService(cfg *config.Config, domains DomainStore, resolver AddrResolver, executor RemoteExecutor) *SSLService {
	return &SSLService{
		cfg:      cfg,
		domains:  domains,
		resolver: resolver,
		executor: executor,
	}
}

// RunOnce executes one certificate sweep
func (s *SSLService) RunOnce(ctx context.Context) {
	candidates, err := s.domains.ListSSLCandidates(ctx)
	if err != nil {
		log.Printf("[AutoSSL] List candidates: %v", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	log.Printf("[AutoSSL] Checking %d domain(s)", len(candidates))
	for _, candidate := range candidates {
		s.checkAndProvision(ctx, candidate)
	}
}

// checkAndProvision handles one domain end to end. DNS not pointing at the
// server yet is the normal waiting state and is skipped quietly; only a
// certbot run that completes unsuccessfully marks the domain failed.
func (s *SSLService) checkAndProvision(ctx context.Context, candidate *models.SSLCandidate) {
	addrs, err := s.resolver.LookupA(ctx, candidate.Name)
	if err != nil {
		if client.IsNotFound(err) {
			log.Printf("[AutoSSL] %s does not resolve yet, skipping", candidate.Name)
		} else {
			log.Printf("[AutoSSL] DNS lookup for %s: %v", candidate.Name, err)
		}
		return
	}

	if !containsAddr(addrs, candidate.ServerIP) {
		log.Printf("[AutoSSL] %s resolves to %v, not %s, skipping", candidate.Name, addrs, candidate.ServerIP)
		return
	}

	// The name is interpolated into a remote shell command below. Anything
	// that is not a strict hostname stops here.
	if !models.ValidDomainName(candidate.Name) {
		log.Printf("[AutoSSL] Refusing to provision invalid hostname %q", candidate.Name)
		return
	}

	if candidate.SSLStatus != models.SSLStatusPending {
		if err := s.domains.UpdateSSLStatus(ctx, candidate.ID, models.SSLStatusPending); err != nil {
			log.Printf("[AutoSSL] Mark %s pending: %v", candidate.Name, err)
			return
		}
	}

	log.Printf("[AutoSSL] DNS verified for %s, requesting certificate", candidate.Name)

	certbotCmd := fmt.Sprintf(
		"certbot --nginx -d %s --non-interactive --agree-tos --register-unsafely-without-email --redirect",
		candidate.Name)

	result, err := s.executor.Execute(ctx, candidate.ServerIP, candidate.SSHUsername, candidate.SSHPassword,
		certbotCmd, s.cfg.Monitor.CommandTimeout)
	if err != nil {
		// Transport failure, not a certbot verdict. Leave the domain pending
		// and retry on the next sweep.
		log.Printf("[AutoSSL] SSH to %s for %s: %v", candidate.ServerIP, candidate.Name, err)
		return
	}

	if !certbotSucceeded(result) {
		log.Printf("[AutoSSL] certbot failed for %s (exit %d): %s",
			candidate.Name, result.ExitCode, truncate(result.Stderr, 300))
		if err := s.domains.UpdateSSLStatus(ctx, candidate.ID, models.SSLStatusFailed); err != nil {
			log.Printf("[AutoSSL] Mark %s failed: %v", candidate.Name, err)
		}
		return
	}

	if err := s.configureProxy(ctx, candidate); err != nil {
		log.Printf("[AutoSSL] Proxy config for %s: %v", candidate.Name, err)
		return
	}

	if err := s.domains.UpdateSSLStatus(ctx, candidate.ID, models.SSLStatusActive); err != nil {
		// Certificate exists on the server but the row disagrees. The next
		// sweep reselects the domain; certbot treats the installed
		// certificate as not due for renewal and succeeds again.
		log.Printf("[AutoSSL] Certificate issued for %s but status update failed: %v", candidate.Name, err)
		return
	}

	log.Printf("[AutoSSL] Certificate active for %s", candidate.Name)
}

// configureProxy writes the nginx site config routing the domain to the app
// and reloads nginx.
func (s *SSLService) configureProxy(ctx context.Context, candidate *models.SSLCandidate) error {
	proxyCmd := fmt.Sprintf(
		`cat > /etc/nginx/sites-available/%[1]s <<'EOF'
server {
    server_name %[1]s;
    location / {
        proxy_pass http://127.0.0.1:3000;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
    listen 443 ssl;
    ssl_certificate /etc/letsencrypt/live/%[1]s/fullchain.pem;
    ssl_certificate_key /etc/letsencrypt/live/%[1]s/privkey.pem;
}
EOF
ln -sf /etc/nginx/sites-available/%[1]s /etc/nginx/sites-enabled/%[1]s && nginx -t && systemctl reload nginx`,
		candidate.Name)

	result, err := s.executor.Execute(ctx, candidate.ServerIP, candidate.SSHUsername, candidate.SSHPassword,
		proxyCmd, 30*time.Second)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("proxy config exited %d: %s", result.ExitCode, truncate(result.Stderr, 300))
	}
	return nil
}

func certbotSucceeded(result *client.ExecResult) bool {
	if result.ExitCode == 0 {
		return true
	}
	combined := result.Combined()
	for _, marker := range certbotSuccessMarkers {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}

func containsAddr(addrs []string, ip string) bool {
	for _, addr := range addrs {
		if addr == ip {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
