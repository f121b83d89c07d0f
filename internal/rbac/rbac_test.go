package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

func TestNormaliseRoles(t *testing.T) {
	require.Nil(t, NormaliseRoles(nil))
	require.Equal(t, []Role{RoleAdmin, RoleStaff}, NormaliseRoles([]string{" Admin ", "staff", "ADMIN", ""}))
}

func TestAdminManagesAll(t *testing.T) {
	policy := DefaultPolicy()
	admin := Principal{UserID: "u-1", Roles: []Role{RoleAdmin}}

	require.True(t, policy.Can(admin, ActionManage, SubjectDiscount, nil))
	require.True(t, policy.Can(admin, ActionRead, SubjectOrder, map[string]any{"userId": "someone"}))
	require.True(t, policy.Can(admin, ActionCreate, SubjectCheckout, nil))
}

func TestCustomerReadsOnlyOwnOrders(t *testing.T) {
	policy := DefaultPolicy()
	customer := Principal{UserID: "u-7", Roles: []Role{RoleCustomer}}

	require.True(t, policy.Can(customer, ActionRead, SubjectOrder, map[string]any{"userId": "u-7"}))
	require.False(t, policy.Can(customer, ActionRead, SubjectOrder, map[string]any{"userId": "u-8"}))
	require.False(t, policy.Can(customer, ActionRead, SubjectOrder, nil))
	require.False(t, policy.Can(customer, ActionManage, SubjectProduct, nil))
}

func TestStaffGrants(t *testing.T) {
	policy := DefaultPolicy()
	staff := Principal{UserID: "s-1", Roles: []Role{RoleStaff}}

	require.True(t, policy.Can(staff, ActionManage, SubjectProduct, nil))
	require.True(t, policy.Can(staff, ActionRead, SubjectOrder, nil))
	require.False(t, policy.Can(staff, ActionCreate, SubjectCheckout, nil))
}

func TestUnknownRoleHoldsNothing(t *testing.T) {
	policy := DefaultPolicy()
	require.False(t, policy.Can(Principal{UserID: "x", Roles: []Role{"guest"}}, ActionRead, SubjectOrder, map[string]any{"userId": "x"}))
}

func TestPrincipalFromContextDefaultsToCustomer(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	require.False(t, ok)

	ctx := common.WithUserID(context.Background(), "u-1")
	principal, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, []Role{RoleCustomer}, principal.Roles)

	ctx = common.WithRoles(ctx, []string{"Staff"})
	principal, _ = PrincipalFromContext(ctx)
	require.Equal(t, []Role{RoleStaff}, principal.Roles)
}

func TestRequirePermission(t *testing.T) {
	policy := DefaultPolicy()
	handler := policy.RequirePermission(ActionManage, SubjectDiscount)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		ctx    func(context.Context) context.Context
		status int
	}{
		{name: "anonymous", ctx: func(ctx context.Context) context.Context { return ctx }, status: http.StatusUnauthorized},
		{name: "customer", ctx: func(ctx context.Context) context.Context { return common.WithUserID(ctx, "u-1") }, status: http.StatusForbidden},
		{name: "staff", ctx: func(ctx context.Context) context.Context {
			return common.WithRoles(common.WithUserID(ctx, "s-1"), []string{"staff"})
		}, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/discounts/preview", nil)
			req = req.WithContext(tc.ctx(req.Context()))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}
