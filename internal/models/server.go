package models

import "time"

// Server status constants
const (
	ServerStatusProvisioning = "provisioning"
	ServerStatusRunning      = "running"
	ServerStatusStopped      = "stopped"
	ServerStatusDeleted      = "deleted"
	ServerStatusFailed       = "failed"
)

// Plan constants
const (
	PlanBasic   = "basic"
	PlanPro     = "pro"
	PlanPremium = "premium"
	PlanFounder = "founder"
)

// Payment interval constants
const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// Server represents one provisioned compute instance leased to a user
type Server struct {
	ID     string
	UserID string

	Plan            string
	Status          string
	PaymentInterval string
	SiteLimit       int

	// Cloud provider reference
	DropletID   *string
	DropletName *string
	Region      string

	// Connection info, set once the droplet is active
	IPAddress   *string
	SSHUsername *string
	SSHPassword *string

	SSLStatus        string
	TrialWarningSent bool
	ErrorMessage     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServerWithOwner is a server row joined with the owning user's email,
// used by the lifecycle monitor selection queries.
type ServerWithOwner struct {
	Server
	OwnerEmail string
}

// SiteLimitForPlan returns the number of sites a plan allows
func SiteLimitForPlan(plan string) int {
	switch plan {
	case PlanBasic:
		return 2
	case PlanPro:
		return 5
	case PlanPremium, PlanFounder:
		return 10
	default:
		return 2
	}
}

// DropletSizeForPlan maps a plan to a provider droplet size slug
func DropletSizeForPlan(plan string) string {
	switch plan {
	case PlanPremium:
		return "s-2vcpu-4gb"
	case PlanPro:
		return "s-1vcpu-2gb"
	case PlanBasic, PlanFounder:
		return "s-1vcpu-1gb"
	default:
		return "s-1vcpu-1gb"
	}
}

// ValidPlan reports whether plan is one of the sellable tiers
func ValidPlan(plan string) bool {
	switch plan {
	case PlanBasic, PlanPro, PlanPremium, PlanFounder:
		return true
	}
	return false
}
