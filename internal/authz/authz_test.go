package authz

import (
	"context"
	"testing"

	"civicshield/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizer_Allow(t *testing.T) {
	az, err := New(context.Background())
	require.NoError(t, err)

	owner := models.Actor{ID: "u-1", Role: models.RoleUser}
	stranger := models.Actor{ID: "u-2", Role: models.RoleUser}
	admin := models.Actor{ID: "a-1", Role: models.RoleAdmin, Department: "water"}
	authority := models.Actor{ID: "o-1", Role: models.RoleAuthority}

	cases := []struct {
		name    string
		req     Request
		allowed bool
	}{
		{"user submits", Request{Actor: owner, Action: ActionSubmit}, true},
		{"user lists own", Request{Actor: owner, Action: ActionListMine}, true},
		{"owner views", Request{Actor: owner, Action: ActionView, OwnerID: "u-1"}, true},
		{"owner resolves", Request{Actor: owner, Action: ActionUserResolve, OwnerID: "u-1"}, true},
		{"owner escalates", Request{Actor: owner, Action: ActionEscalate, OwnerID: "u-1"}, true},
		{"owner consents", Request{Actor: owner, Action: ActionUpdateConsent, OwnerID: "u-1"}, true},
		{"stranger views", Request{Actor: stranger, Action: ActionView, OwnerID: "u-1"}, false},
		{"stranger escalates", Request{Actor: stranger, Action: ActionEscalate, OwnerID: "u-1"}, false},
		{"user with empty owner", Request{Actor: models.Actor{Role: models.RoleUser}, Action: ActionView}, false},
		{"user acts as admin", Request{Actor: owner, Action: ActionAdminAction, OwnerID: "u-1"}, false},
		{"admin approves", Request{Actor: admin, Action: ActionAdminAction, OwnerID: "u-1"}, true},
		{"admin requests data", Request{Actor: admin, Action: ActionRequestUserData, OwnerID: "u-1"}, true},
		{"admin lists", Request{Actor: admin, Action: ActionListAdmin}, true},
		{"admin responds", Request{Actor: admin, Action: ActionAuthorityAction, OwnerID: "u-1"}, false},
		{"admin submits", Request{Actor: admin, Action: ActionSubmit}, false},
		{"admin of same department", Request{Actor: admin, Action: ActionAdminAction, OwnerID: "u-1", Department: "Water"}, true},
		{"admin of other department", Request{Actor: admin, Action: ActionAdminAction, OwnerID: "u-1", Department: "roads"}, false},
		{"admin without department", Request{Actor: models.Actor{ID: "a-2", Role: models.RoleAdmin}, Action: ActionView, Department: "roads"}, true},
		{"authority responds", Request{Actor: authority, Action: ActionAuthorityAction, OwnerID: "u-1"}, true},
		{"authority lists", Request{Actor: authority, Action: ActionListAuthority}, true},
		{"authority escalates", Request{Actor: authority, Action: ActionEscalate, OwnerID: "u-1"}, false},
		{"system escalates", Request{Actor: models.SystemActor, Action: ActionEscalate, OwnerID: "u-1"}, true},
		{"unknown role", Request{Actor: models.Actor{ID: "x", Role: "guest"}, Action: ActionView}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := az.Allow(context.Background(), tc.req)

			require.NoError(t, err)
			assert.Equal(t, tc.allowed, ok)
		})
	}
}
