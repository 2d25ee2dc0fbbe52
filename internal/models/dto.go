package models

// ==================== Provisioning DTOs ====================

// ProvisionRequest asks for a new server for a paying user
type ProvisionRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Plan     string `json:"plan" binding:"required"`
	Interval string `json:"interval"`
	Region   string `json:"region"`
}

// ProvisionResponse is returned when provisioning has been started
type ProvisionResponse struct {
	ServerID              string `json:"server_id"`
	Status                string `json:"status"`
	EstimatedReadySeconds int    `json:"estimated_ready_seconds"`
	Message               string `json:"message"`
}

// ServerInfo is the API view of a server
type ServerInfo struct {
	ServerID    string  `json:"server_id"`
	Plan        string  `json:"plan"`
	Status      string  `json:"status"`
	IPAddress   *string `json:"ip_address"`
	SSLStatus   string  `json:"ssl_status"`
	SiteLimit   int     `json:"site_limit"`
	Interval    string  `json:"interval"`
	Region      string  `json:"region"`
	OnTrial     bool    `json:"on_trial"`
	TrialEndsAt *string `json:"trial_ends_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ErrorDetail *string `json:"error,omitempty"`
}

// ServerEventInfo is the API view of a lifecycle event
type ServerEventInfo struct {
	Action    string `json:"action"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// ServerActionRequest requests start/stop/restart of the caller's server
type ServerActionRequest struct {
	Action string `json:"action" binding:"required"`
}

// ActionResponse is a generic success/message pair
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ==================== Domain DTOs ====================

// AddDomainRequest binds a custom hostname to the caller's server
type AddDomainRequest struct {
	Name string `json:"name" binding:"required"`
}

// DomainInfo is the API view of a domain
type DomainInfo struct {
	DomainID  string `json:"domain_id"`
	Name      string `json:"name"`
	ServerID  string `json:"server_id"`
	SSLStatus string `json:"ssl_status"`
	CreatedAt string `json:"created_at"`
}

// ==================== Deployment DTOs ====================

// DeployRequest queues a git deployment on the caller's server
type DeployRequest struct {
	GitURL string `json:"git_url" binding:"required"`
}

// DeploymentInfo is the API view of a deployment
type DeploymentInfo struct {
	DeploymentID string `json:"deployment_id"`
	GitURL       string `json:"git_url"`
	Status       string `json:"status"`
	Output       string `json:"output"`
	CreatedAt    string `json:"created_at"`
}

// ==================== Payment DTOs ====================

// RecordPaymentRequest is posted by the billing edge once the payment
// processor has settled a charge. Processor webhook parsing happens upstream.
type RecordPaymentRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Status      string `json:"status" binding:"required"`
	AmountCents int64  `json:"amount_cents"`
	Plan        string `json:"plan" binding:"required"`
	Interval    string `json:"interval"`
}

// PaymentInfo is the API view of a payment
type PaymentInfo struct {
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Plan        string `json:"plan"`
	Interval    string `json:"interval"`
	CreatedAt   string `json:"created_at"`
}

// RecordPaymentResponse reports the recorded payment and whether
// provisioning was started as a result.
type RecordPaymentResponse struct {
	PaymentID           string `json:"payment_id"`
	ProvisioningStarted bool   `json:"provisioning_started"`
	ServerID            string `json:"server_id,omitempty"`
	Message             string `json:"message"`
}
