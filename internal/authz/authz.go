// Package authz evaluates the role and ownership policy for lifecycle
// operations with an embedded rego module.
package authz

import (
	"context"
	_ "embed"
	"fmt"

	"civicshield/backend/internal/models"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed policy.rego
var policy string

const query = "data.civicshield.authz.allow"

// Action names an operation checked by the policy.
type Action string

const (
	ActionSubmit          Action = "submit"
	ActionView            Action = "view"
	ActionListMine        Action = "list_mine"
	ActionListAdmin       Action = "list_admin"
	ActionListAuthority   Action = "list_authority"
	ActionAdminAction     Action = "admin_action"
	ActionRequestUserData Action = "request_user_data"
	ActionUpdateConsent   Action = "update_consent"
	ActionAuthorityAction Action = "authority_action"
	ActionUserResolve     Action = "user_resolve"
	ActionEscalate        Action = "escalate"
)

// Request is one policy question. OwnerID and Department describe the
// targeted complaint and are empty for operations that do not target one.
type Request struct {
	Actor      models.Actor
	Action     Action
	OwnerID    string
	Department string
}

// Authorizer answers Requests against the prepared policy.
type Authorizer struct {
	query rego.PreparedEvalQuery
}

func New(ctx context.Context) (*Authorizer, error) {
	r := rego.New(
		rego.Query(query),
		rego.Module("policy.rego", policy),
		rego.StrictBuiltinErrors(true),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare authz policy: %w", err)
	}
	return &Authorizer{query: prepared}, nil
}

// Allow reports whether req is permitted.
func (a *Authorizer) Allow(ctx context.Context, req Request) (bool, error) {
	input := map[string]interface{}{
		"action": string(req.Action),
		"actor": map[string]interface{}{
			"id":         req.Actor.ID,
			"role":       string(req.Actor.Role),
			"department": req.Actor.Department,
		},
		"resource": map[string]interface{}{
			"owner_id":   req.OwnerID,
			"department": req.Department,
		},
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate authz policy: %w", err)
	}
	return rs.Allowed(), nil
}
