package models

import (
	"net/url"
	"regexp"
	"time"
)

// Deployment status constants
const (
	DeploymentStatusPending   = "pending"
	DeploymentStatusRunning   = "running"
	DeploymentStatusSucceeded = "succeeded"
	DeploymentStatusFailed    = "failed"
)

// Deployment is one git deployment queued against a server
type Deployment struct {
	ID        string
	ServerID  string
	UserID    string
	GitURL    string
	Status    string
	Output    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// allowed git hosting providers for deployments
var allowedGitHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
}

var gitPathRe = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// ValidGitURL reports whether rawURL is an https URL on a known git host with
// a plain repository path. Like domain names, the URL is interpolated into a
// remote shell command, so userinfo, query strings, fragments and any path
// character outside the safe set are refused.
func ValidGitURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "https" {
		return false
	}
	if !allowedGitHosts[u.Hostname()] {
		return false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return false
	}
	return u.Path != "" && gitPathRe.MatchString(u.Path)
}
