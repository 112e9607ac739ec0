package models

import (
	"fmt"
	"time"
)

// Role is what an authenticated caller is allowed to act as.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleAuthority Role = "authority"
	RoleSystem    Role = "system"
)

// ParseRole validates a role claim.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleAuthority, RoleSystem:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is the caller of a lifecycle operation.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Department string `json:"department,omitempty"`
	AnonID     string `json:"anonId,omitempty"`
}

// SystemActor is used by background jobs.
var SystemActor = Actor{ID: "system", Name: "system", Role: RoleSystem}

// PipelineActor is recorded on entries written by the analysis pipeline.
var PipelineActor = Actor{ID: "ai_system", Name: "ai_system", Role: RoleSystem}

// HistoryLabel is what gets written to the updatedBy column. Submitters are
// recorded as "user" so history never reveals who they are.
func (a Actor) HistoryLabel() string {
	switch a.Role {
	case RoleUser:
		return "user"
	case RoleSystem:
		if a.Name != "" {
			return a.Name
		}
		return "system"
	default:
		if a.Name != "" {
			return a.Name
		}
		return string(a.Role)
	}
}

// StatusEvent is broadcast to live subscribers after a history entry commits.
type StatusEvent struct {
	ComplaintID string    `json:"complaintId"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	Actor       string    `json:"updatedBy"`
	Timestamp   time.Time `json:"timestamp"`
}
