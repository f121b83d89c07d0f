// Package rbac evaluates declarative role permissions. A permission names an
// action on a subject and may carry attribute conditions; the condition value
// "$user" binds to the calling user's id.
package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// Role is a caller access tier carried in the token's roles claim.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// Actions and subjects used across the API.
const (
	ActionManage = "manage"
	ActionRead   = "read"
	ActionCreate = "create"

	SubjectAll      = "all"
	SubjectProduct  = "product"
	SubjectDiscount = "discount"
	SubjectOrder    = "order"
	SubjectCheckout = "checkout"
)

// UserBinding is replaced by the caller's id when conditions are evaluated.
const UserBinding = "$user"

// Permission grants Action on Subject when every condition holds.
type Permission struct {
	Action     string
	Subject    string
	Conditions map[string]any
}

// Policy maps roles to the permissions they hold.
type Policy map[Role][]Permission

// DefaultPolicy is the storefront's role table.
func DefaultPolicy() Policy {
	return Policy{
		RoleAdmin: {
			{Action: ActionManage, Subject: SubjectAll},
		},
		RoleStaff: {
			{Action: ActionManage, Subject: SubjectProduct},
			{Action: ActionManage, Subject: SubjectDiscount},
			{Action: ActionRead, Subject: SubjectOrder},
		},
		RoleCustomer: {
			{Action: ActionCreate, Subject: SubjectCheckout},
			{Action: ActionRead, Subject: SubjectOrder, Conditions: map[string]any{"userId": UserBinding}},
		},
	}
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Roles  []Role
}

// NormaliseRoles converts raw claim values into canonical roles, dropping
// blanks and duplicates.
func NormaliseRoles(raw []string) []Role {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(raw))
	roles := make([]Role, 0, len(raw))
	for _, val := range raw {
		role := Role(strings.ToLower(strings.TrimSpace(val)))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// PrincipalFromContext reads the caller placed on ctx by the auth middleware.
// Authenticated callers without roles are treated as customers.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	userID, ok := common.UserID(ctx)
	if !ok {
		return Principal{}, false
	}
	roles := NormaliseRoles(common.Roles(ctx))
	if len(roles) == 0 {
		roles = []Role{RoleCustomer}
	}
	return Principal{UserID: userID, Roles: roles}, true
}

// Can reports whether any of the principal's roles holds a permission for
// action on subject whose conditions all match attrs.
func (p Policy) Can(principal Principal, action, subject string, attrs map[string]any) bool {
	for _, role := range principal.Roles {
		for _, perm := range p[role] {
			if !matches(perm.Action, action, ActionManage) || !matches(perm.Subject, subject, SubjectAll) {
				continue
			}
			if conditionsHold(perm.Conditions, principal, attrs) {
				return true
			}
		}
	}
	return false
}

// CanContext is Can for the caller on ctx. Anonymous callers hold nothing.
func (p Policy) CanContext(ctx context.Context, action, subject string, attrs map[string]any) bool {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return p.Can(principal, action, subject, attrs)
}

func matches(granted, requested, wildcard string) bool {
	return granted == requested || granted == wildcard
}

func conditionsHold(conditions map[string]any, principal Principal, attrs map[string]any) bool {
	for key, want := range conditions {
		if s, ok := want.(string); ok && s == UserBinding {
			want = principal.UserID
		}
		got, ok := attrs[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
