package access_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/identity/identitytest"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/members/memberstest"
	_ "github.com/memberhub/portal/testing"
)

func TestResolveRoleFallbackOrder(t *testing.T) {
	member := &members.Profile{Role: members.RoleHonourable}
	cases := []struct {
		name    string
		profile *members.Profile
		meta    identity.Metadata
		want    members.Role
		ok      bool
	}{
		{"member table wins", member, identity.Metadata{IsSuperAdmin: true}, members.RoleHonourable, true},
		{"super admin flag", nil, identity.Metadata{IsSuperAdmin: true, Roles: []string{"admin"}}, members.RoleSuperAdmin, true},
		{"roles super admin", nil, identity.Metadata{Roles: []string{"admin", "super_admin"}}, members.RoleSuperAdmin, true},
		{"roles admin", nil, identity.Metadata{Roles: []string{"editor", "admin"}}, members.RoleAdmin, true},
		{"nothing", nil, identity.Metadata{Roles: []string{"editor"}}, "", false},
		{"unknown member role falls through", &members.Profile{Role: "owner"}, identity.Metadata{Roles: []string{"admin"}}, members.RoleAdmin, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := access.ResolveRole(tc.profile, tc.meta)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	fx := identitytest.NewProvider(t)
	repo := memberstest.New()
	authz := access.NewAuthorizer(fx.Provider, repo, nil)
	ctx := context.Background()

	adminSess := fx.SignUp(t, "admin@example.org", identity.Metadata{})
	repo.AddLinked("admin@example.org", members.RoleAdmin, adminSess.User.ID)
	hintSess := fx.SignUp(t, "hint@example.org", identity.Metadata{IsSuperAdmin: true})
	bareSess := fx.SignUp(t, "bare@example.org", identity.Metadata{})

	caller, err := authz.Authenticate(ctx, adminSess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, members.RoleAdmin, caller.Role)
	require.NotNil(t, caller.Profile)

	caller, err = authz.Authenticate(ctx, hintSess.AccessToken)
	require.NoError(t, err)
	assert.True(t, caller.IsSuperAdmin())
	assert.Nil(t, caller.Profile)

	_, err = authz.Authenticate(ctx, bareSess.AccessToken)
	require.ErrorIs(t, err, access.ErrNoRole)

	_, err = authz.Authenticate(ctx, "garbled")
	require.ErrorIs(t, err, access.ErrUnauthenticated)
	_, err = authz.Authenticate(ctx, "")
	require.ErrorIs(t, err, access.ErrUnauthenticated)
}

func TestAuthenticateSurfacesStoreErrors(t *testing.T) {
	fx := identitytest.NewProvider(t)
	repo := memberstest.New()
	repo.Err = errors.New("connection reset")
	sess := fx.SignUp(t, "ada@example.org", identity.Metadata{})

	_, err := access.NewAuthorizer(fx.Provider, repo, nil).Authenticate(context.Background(), sess.AccessToken)
	require.Error(t, err)
	assert.False(t, errors.Is(err, access.ErrUnauthenticated))
	assert.False(t, errors.Is(err, access.ErrNoRole))
}

func TestMiddleware(t *testing.T) {
	fx := identitytest.NewProvider(t)
	repo := memberstest.New()
	mw := access.Middleware{Authorizer: access.NewAuthorizer(fx.Provider, repo, nil)}

	memberSess := fx.SignUp(t, "member@example.org", identity.Metadata{})
	repo.AddLinked("member@example.org", members.RoleMember, memberSess.User.ID)
	adminSess := fx.SignUp(t, "admin@example.org", identity.Metadata{Roles: []string{"admin"}})

	var seen *access.Caller
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = access.CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.Identify(mw.RequireAdmin()(final))

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("garbled"))
	assert.Equal(t, http.StatusForbidden, do(memberSess.AccessToken))
	assert.Equal(t, http.StatusNoContent, do(adminSess.AccessToken))
	require.NotNil(t, seen)
	assert.Equal(t, members.RoleAdmin, seen.Role)
	assert.NotEqual(t, uuid.Nil, seen.User.ID)
}
