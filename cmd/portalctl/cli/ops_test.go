package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/identity/identitytest"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/members/memberstest"
	"github.com/memberhub/portal/internal/permissions"
	"github.com/memberhub/portal/internal/permissions/permissionstest"
	"github.com/memberhub/portal/internal/settings"
	"github.com/memberhub/portal/internal/settings/settingstest"
	"github.com/memberhub/portal/jobs"
)

type opsFixture struct {
	ops      *Ops
	ids      *identitytest.Fixture
	members  *memberstest.Repo
	settings *settingstest.Repo
	perms    *permissionstest.Store
	audit    *permissionstest.Recorder
}

func newOpsFixture(t *testing.T) *opsFixture {
	t.Helper()
	f := &opsFixture{
		ids:      identitytest.NewProvider(t),
		members:  memberstest.New(),
		settings: settingstest.New(settings.AppSettings{}),
		perms:    permissionstest.New(),
		audit:    &permissionstest.Recorder{},
	}
	f.ops = &Ops{
		Settings:    f.settings,
		Users:       f.ids.Users,
		Members:     f.members,
		Permissions: f.perms,
		Recorder:    f.audit,
	}
	return f
}

func TestParseSwitch(t *testing.T) {
	for _, in := range []string{"on", "ON", "true", "1"} {
		v, err := ParseSwitch(in)
		require.NoError(t, err)
		assert.True(t, v, in)
	}
	v, err := ParseSwitch("off")
	require.NoError(t, err)
	assert.False(t, v)
	_, err = ParseSwitch("maybe")
	assert.Error(t, err)
}

func TestSetSignup(t *testing.T) {
	f := newOpsFixture(t)
	var out bytes.Buffer
	require.NoError(t, f.ops.SetSignup(context.Background(), &out, true))
	assert.Equal(t, "allow_signup=true allow_results_view=false\n", out.String())
	assert.Equal(t, 1, f.settings.Writes)

	f.settings.Err = errors.New("down")
	assert.Error(t, f.ops.SetSignup(context.Background(), &out, false))
}

func TestGrantAndRevokeByEmail(t *testing.T) {
	f := newOpsFixture(t)
	sess := f.ids.SignUp(t, "admin@example.org", identity.Metadata{})
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, f.ops.Grant(ctx, &out, "Admin@Example.org", "Finance"))
	assert.Contains(t, out.String(), "granted finance for admin@example.org")
	granted, err := f.perms.ActiveGrants(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, granted)

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, uuid.Nil, entries[0].ActorID)
	assert.Equal(t, permissions.ActionGrant, entries[0].Action)

	require.NoError(t, f.ops.Revoke(ctx, &out, "admin@example.org", "finance"))
	granted, err = f.perms.ActiveGrants(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Empty(t, granted)

	assert.ErrorIs(t, f.ops.Revoke(ctx, &out, "admin@example.org", "finance"), permissions.ErrGrantNotFound)
	assert.ErrorIs(t, f.ops.Grant(ctx, &out, "admin@example.org", "payroll"), permissions.ErrUnknownKey)
	assert.ErrorIs(t, f.ops.Grant(ctx, &out, "ghost@example.org", "finance"), identity.ErrUserNotFound)
}

func TestWhoamiReportsResolvedState(t *testing.T) {
	f := newOpsFixture(t)
	ctx := context.Background()
	sess := f.ids.SignUp(t, "admin@example.org", identity.Metadata{})
	f.members.AddLinked("admin@example.org", members.RoleAdmin, sess.User.ID)
	_, err := f.perms.SetEnabled(ctx, permissions.KeyQuiz, true)
	require.NoError(t, err)
	require.NoError(t, f.perms.UpsertGrant(ctx, sess.User.ID, permissions.KeyGallery, uuid.Nil))

	var out bytes.Buffer
	require.NoError(t, f.ops.Whoami(ctx, &out, f.ids.Provider, "admin@example.org", "password123"))
	text := out.String()
	assert.Contains(t, text, "phase:   AUTHENTICATED_WITH_PROFILE")
	assert.Contains(t, text, "role:    admin admin=true super_admin=false")
	assert.Contains(t, text, "quiz      catalog=true granted=false")
	assert.Contains(t, text, "gallery   catalog=false granted=true")
}

func TestWhoamiWithoutProfile(t *testing.T) {
	f := newOpsFixture(t)
	f.ids.SignUp(t, "new@example.org", identity.Metadata{})

	var out bytes.Buffer
	require.NoError(t, f.ops.Whoami(context.Background(), &out, f.ids.Provider, "new@example.org", "password123"))
	assert.Contains(t, out.String(), "phase:   AUTHENTICATED_NO_PROFILE")
	assert.Contains(t, out.String(), "role:    - admin=false")
}

func TestWhoamiBadPassword(t *testing.T) {
	f := newOpsFixture(t)
	f.ids.SignUp(t, "new@example.org", identity.Metadata{})
	err := f.ops.Whoami(context.Background(), &bytes.Buffer{}, f.ids.Provider, "new@example.org", "nope")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestSeedMemberValidate(t *testing.T) {
	m := SeedMember{FullName: " Ada ", Email: " ADA@Example.org "}
	require.NoError(t, m.Validate())
	assert.Equal(t, "ada@example.org", m.Email)
	assert.Equal(t, "Ada", m.FullName)
	assert.Equal(t, members.RoleMember, m.Role)

	bad := SeedMember{FullName: "X", Email: "x@example.org", Role: "owner"}
	assert.Error(t, bad.Validate())
	assert.Error(t, (&SeedMember{Email: "x@example.org"}).Validate())
}

func TestBuildTask(t *testing.T) {
	task, err := BuildTask("prune", 0)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskFeedbackPrune, task.Type())
	assert.JSONEq(t, `{"retention_days":90}`, string(task.Payload()))

	_, err = BuildTask("reindex", 0)
	assert.Error(t, err)
}
