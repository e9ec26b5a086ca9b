package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/identity/identitytest"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/members/memberstest"
	"github.com/memberhub/portal/internal/permissions"
	"github.com/memberhub/portal/internal/resolver"
	_ "github.com/memberhub/portal/testing"
)

type harness struct {
	fx     *identitytest.Fixture
	repo   *memberstest.Repo
	client *identity.Client
	res    *resolver.Resolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fx := identitytest.NewProvider(t)
	repo := memberstest.New()
	client := identity.NewClient(fx.Provider)
	res := resolver.New(client, repo, nil)
	t.Cleanup(res.Close)
	return &harness{fx: fx, repo: repo, client: client, res: res}
}

func (h *harness) signUp(t *testing.T, email string, role members.Role) {
	t.Helper()
	sess := h.fx.SignUp(t, email, identity.Metadata{})
	require.NoError(t, h.fx.Provider.SignOut(context.Background(), sess.AccessToken))
	if role != "" {
		h.repo.AddLinked(email, role, sess.User.ID)
	}
}

func TestStartWithoutSessionIsAnonymous(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, resolver.PhaseInitializing, h.res.State().Phase)

	h.res.Start(context.Background())
	state := h.res.State()
	assert.Equal(t, resolver.PhaseAnonymous, state.Phase)
	assert.False(t, state.IsAdmin())
	assert.Nil(t, state.Session)
}

func TestSignInResolvesProfileAndRole(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "chair@example.org", members.RoleSuperAdmin)
	h.res.Start(context.Background())

	result := h.res.SignIn(context.Background(), "chair@example.org", "password123")
	require.True(t, result.OK(), "%v", result.Err)
	h.res.Wait()

	state := h.res.State()
	assert.Equal(t, resolver.PhaseAuthenticated, state.Phase)
	assert.Equal(t, members.RoleSuperAdmin, state.Role)
	assert.True(t, state.IsAdmin())
	assert.True(t, state.IsSuperAdmin())
	assert.False(t, state.NeedsProfileSetup)
	require.NotNil(t, state.Profile)
	assert.Equal(t, "chair@example.org", state.Profile.Email)
}

func TestSessionWithoutProfileNeedsSetup(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "new@example.org", "")
	h.res.Start(context.Background())

	require.True(t, h.res.SignIn(context.Background(), "new@example.org", "password123").OK())
	h.res.Wait()

	state := h.res.State()
	assert.Equal(t, resolver.PhaseNeedsProfile, state.Phase)
	assert.True(t, state.NeedsProfileSetup)
	assert.NotNil(t, state.Session)
	assert.Nil(t, state.Profile)
	assert.NoError(t, state.Err)
}

func TestSignInFailureIsReturnedNotThrown(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ada@example.org", members.RoleMember)
	h.res.Start(context.Background())

	result := h.res.SignIn(context.Background(), "ada@example.org", "wrong")
	assert.False(t, result.OK())
	assert.ErrorIs(t, result.Err, identity.ErrInvalidCredentials)
	h.res.Wait()
	assert.Equal(t, resolver.PhaseAnonymous, h.res.State().Phase)
}

func TestSignOutClearsSynchronously(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "admin@example.org", members.RoleAdmin)
	h.res.Start(context.Background())
	require.True(t, h.res.SignIn(context.Background(), "admin@example.org", "password123").OK())
	h.res.Wait()
	require.True(t, h.res.State().IsAdmin())

	require.NoError(t, h.res.SignOut(context.Background()))
	state := h.res.State()
	assert.Equal(t, resolver.PhaseAnonymous, state.Phase)
	assert.Empty(t, state.Role)
	assert.Nil(t, state.Profile)

	h.res.Wait()
	assert.Equal(t, resolver.PhaseAnonymous, h.res.State().Phase)
}

func TestProfileLookupFailureKeepsPreviousRole(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "admin@example.org", members.RoleAdmin)
	h.res.Start(context.Background())
	require.True(t, h.res.SignIn(context.Background(), "admin@example.org", "password123").OK())
	h.res.Wait()

	h.repo.Err = errors.New("connection reset")
	err := h.res.RefreshProfile(context.Background())
	require.Error(t, err)

	state := h.res.State()
	assert.Equal(t, resolver.PhaseAuthenticated, state.Phase)
	assert.Equal(t, members.RoleAdmin, state.Role)
	assert.NotNil(t, state.Profile)
	assert.Error(t, state.Err)
}

func TestRefreshProfileAfterSetup(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.res.RefreshProfile(context.Background()))

	sess := h.fx.SignUp(t, "late@example.org", identity.Metadata{})
	_, err := h.client.Restore(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	h.res.Start(context.Background())
	h.res.Wait()
	require.Equal(t, resolver.PhaseNeedsProfile, h.res.State().Phase)

	h.repo.AddLinked("late@example.org", members.RoleHonourable, sess.User.ID)
	require.NoError(t, h.res.RefreshProfile(context.Background()))
	state := h.res.State()
	assert.Equal(t, resolver.PhaseAuthenticated, state.Phase)
	assert.Equal(t, members.RoleHonourable, state.Role)
	assert.False(t, state.IsAdmin())
}

func TestConcurrentTriggersConverge(t *testing.T) {
	h := newHarness(t)
	sess := h.fx.SignUp(t, "admin@example.org", identity.Metadata{})
	h.repo.AddLinked("admin@example.org", members.RoleAdmin, sess.User.ID)
	_, err := h.client.Restore(context.Background(), sess.AccessToken)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.res.Start(context.Background())
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			_, _ = h.client.RefreshSession(context.Background())
		}
	}()
	wg.Wait()
	h.res.Wait()

	state := h.res.State()
	assert.Equal(t, resolver.PhaseAuthenticated, state.Phase)
	assert.Equal(t, members.RoleAdmin, state.Role)
}

func TestCloseStopsListening(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ada@example.org", members.RoleMember)
	h.res.Start(context.Background())
	h.res.Close()

	require.True(t, h.res.SignIn(context.Background(), "ada@example.org", "password123").OK())
	h.res.Wait()
	assert.Equal(t, resolver.PhaseAnonymous, h.res.State().Phase)
}

type subjectRecorder struct {
	mu       sync.Mutex
	subjects []permissions.Subject
}

func (s *subjectRecorder) SetSubject(ctx context.Context, subject permissions.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subject)
}

func TestBindFeedsPermissionModels(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "admin@example.org", members.RoleAdmin)
	rec := &subjectRecorder{}
	stop := h.res.Bind(context.Background(), rec)
	defer stop()

	h.res.Start(context.Background())
	require.True(t, h.res.SignIn(context.Background(), "admin@example.org", "password123").OK())
	h.res.Wait()
	require.NoError(t, h.res.SignOut(context.Background()))
	h.res.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.subjects, 3)
	assert.Equal(t, permissions.Subject{}, rec.subjects[0])
	assert.Equal(t, members.RoleAdmin, rec.subjects[1].Role)
	assert.Equal(t, permissions.Subject{}, rec.subjects[2])
}

func TestSubscribeReceivesStates(t *testing.T) {
	h := newHarness(t)
	var (
		mu     sync.Mutex
		phases []resolver.Phase
	)
	unsubscribe := h.res.Subscribe(func(s resolver.State) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})
	h.res.Start(context.Background())
	unsubscribe()
	require.NoError(t, h.res.SignOut(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []resolver.Phase{resolver.PhaseAnonymous}, phases)
}

func TestLookupFailureNeverCarriesAnotherUsersRole(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "chair@example.org", members.RoleSuperAdmin)
	h.signUp(t, "plain@example.org", members.RoleMember)
	rec := &subjectRecorder{}
	stop := h.res.Bind(context.Background(), rec)
	defer stop()

	h.res.Start(context.Background())
	require.True(t, h.res.SignIn(context.Background(), "chair@example.org", "password123").OK())
	h.res.Wait()
	require.True(t, h.res.State().IsSuperAdmin())

	h.repo.Err = errors.New("connection reset")
	require.True(t, h.res.SignIn(context.Background(), "plain@example.org", "password123").OK())
	h.res.Wait()

	state := h.res.State()
	assert.Equal(t, resolver.PhaseProfileUnavailable, state.Phase)
	require.NotNil(t, state.Session)
	assert.Equal(t, "plain@example.org", state.Session.User.Email)
	assert.Empty(t, state.Role)
	assert.Nil(t, state.Profile)
	assert.False(t, state.IsAdmin())
	assert.False(t, state.IsSuperAdmin())
	assert.Error(t, state.Err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	last := rec.subjects[len(rec.subjects)-1]
	assert.Equal(t, state.Session.User.ID, last.UserID)
	assert.Empty(t, last.Role)
}

func TestFirstResolutionFailureIsTerminalUntilRefresh(t *testing.T) {
	h := newHarness(t)
	sess := h.fx.SignUp(t, "admin@example.org", identity.Metadata{})
	h.repo.AddLinked("admin@example.org", members.RoleAdmin, sess.User.ID)
	_, err := h.client.Restore(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	rec := &subjectRecorder{}
	stop := h.res.Bind(context.Background(), rec)
	defer stop()

	h.repo.Err = errors.New("connection reset")
	h.res.Start(context.Background())
	h.res.Wait()

	state := h.res.State()
	assert.Equal(t, resolver.PhaseProfileUnavailable, state.Phase)
	assert.Empty(t, state.Role)
	assert.Error(t, state.Err)
	rec.mu.Lock()
	require.Len(t, rec.subjects, 1)
	assert.Equal(t, permissions.Subject{UserID: sess.User.ID}, rec.subjects[0])
	rec.mu.Unlock()

	h.repo.Err = nil
	require.NoError(t, h.res.RefreshProfile(context.Background()))
	state = h.res.State()
	assert.Equal(t, resolver.PhaseAuthenticated, state.Phase)
	assert.Equal(t, members.RoleAdmin, state.Role)
	assert.NoError(t, state.Err)
}
