package models

import (
	"regexp"
	"strings"
	"time"
)

// SSL status constants. One enumeration for both the user-initiated path and
// the auto-provisioning loop; the loop is the only writer of active/failed.
const (
	SSLStatusNone    = "none"
	SSLStatusPending = "pending"
	SSLStatusActive  = "active"
	SSLStatusFailed  = "failed"
)

// Domain is a custom hostname bound to a server
type Domain struct {
	ID        string
	ServerID  string
	UserID    string
	Name      string
	SSLStatus string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SSLCandidate is a domain joined with its server's connection info, selected
// by the auto-SSL loop.
type SSLCandidate struct {
	Domain
	ServerIP    string
	SSHUsername string
	SSHPassword string
}

var domainLabelRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidDomainName reports whether name is a strict RFC 1123 hostname with at
// least two labels. Domains are interpolated into remote shell commands, so
// anything that fails this check must never reach the remote execution step.
func ValidDomainName(name string) bool {
	name = strings.ToLower(name)
	if name == "" || len(name) > 253 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !domainLabelRe.MatchString(label) {
			return false
		}
	}
	// TLD must be alphabetic
	tld := labels[len(labels)-1]
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return len(tld) >= 2
}
