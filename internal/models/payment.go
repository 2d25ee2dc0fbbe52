package models

import "time"

// Payment status constants
const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusPending   = "pending"
)

// Payment is a record of a charge tied to a user and a plan selection
type Payment struct {
	ID          string
	UserID      string
	Status      string
	AmountCents int64
	Plan        string
	Interval    string
	CreatedAt   time.Time
}

// User exists for ownership checks and notification addresses; the
// authentication layer itself lives in a separate service.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}
