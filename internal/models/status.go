package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a complaint. The set of values is closed:
// the only way to obtain a non-zero Status is one of the exported variables
// below or ParseStatus.
type Status struct {
	name string
}

var (
	StatusSubmitted       = Status{"submitted"}
	StatusAIReview        = Status{"ai_review"}
	StatusAIRejected      = Status{"ai_rejected"}
	StatusVerified        = Status{"verified"}
	StatusSentToAdmin     = Status{"sent_to_admin"}
	StatusAdminApproved   = Status{"admin_approved"}
	StatusAdminRejected   = Status{"admin_rejected"}
	StatusSentToAuthority = Status{"sent_to_authority"}
	StatusReplied         = Status{"replied"}
	StatusUserResolved    = Status{"user_resolved"}
	StatusUserNotResolved = Status{"user_not_resolved"}
	StatusEscalated       = Status{"escalated"}
	StatusLawsuitFiled    = Status{"lawsuit_filed"}
	StatusResolved        = Status{"resolved"}
)

var allStatuses = []Status{
	StatusSubmitted, StatusAIReview, StatusAIRejected, StatusVerified,
	StatusSentToAdmin, StatusAdminApproved, StatusAdminRejected,
	StatusSentToAuthority, StatusReplied, StatusUserResolved,
	StatusUserNotResolved, StatusEscalated, StatusLawsuitFiled, StatusResolved,
}

// Statuses returns every known status in declaration order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a wire/database string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if st.name == s {
			return st, nil
		}
	}
	return Status{}, fmt.Errorf("unknown complaint status %q", s)
}

func (s Status) String() string { return s.name }

// IsZero reports whether s was never assigned.
func (s Status) IsZero() bool { return s.name == "" }

// IsTerminal reports whether no further transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAIRejected, StatusAdminRejected, StatusUserResolved, StatusLawsuitFiled, StatusResolved:
		return true
	}
	return false
}

// In reports whether s is one of the given statuses.
func (s Status) In(set ...Status) bool {
	for _, st := range set {
		if s == st {
			return true
		}
	}
	return false
}

// Names converts statuses into their string form, e.g. for SQL IN clauses.
func Names(set []Status) []string {
	out := make([]string, len(set))
	for i, st := range set {
		out[i] = st.name
	}
	return out
}

func (s Status) GormDataType() string { return "string" }

func (s Status) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, fmt.Errorf("refusing to persist empty complaint status")
	}
	return s.name, nil
}

func (s *Status) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*s = Status{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.name)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Severity grades how urgent a complaint is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity returns the severity for s, defaulting to medium for unknown input.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), true
	}
	return SeverityMedium, false
}
