package models

import "time"

// ServerEvent is an audit record of a provisioning or lifecycle action
type ServerEvent struct {
	ID        string
	ServerID  string
	Action    string
	Status    string
	Message   string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}
