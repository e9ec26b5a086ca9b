package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/identity/identitytest"
)

func TestClientPublishesSessionChanges(t *testing.T) {
	fx := identitytest.NewProvider(t)
	fx.SignUp(t, "ada@example.org", identity.Metadata{})
	client := identity.NewClient(fx.Provider)
	ctx := context.Background()

	var kinds []identity.EventKind
	unsubscribe := client.OnAuthStateChange(func(evt identity.AuthEvent) {
		kinds = append(kinds, evt.Kind)
	})

	sess, err := client.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = client.SignInWithPassword(ctx, "ada@example.org", "password123")
	require.NoError(t, err)
	_, err = client.RefreshSession(ctx)
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx))

	unsubscribe()
	_, err = client.SignInWithPassword(ctx, "ada@example.org", "password123")
	require.NoError(t, err)

	assert.Equal(t, []identity.EventKind{
		identity.EventSignedIn,
		identity.EventTokenRefreshed,
		identity.EventSignedOut,
	}, kinds)
}

func TestClientDropsRevokedSession(t *testing.T) {
	fx := identitytest.NewProvider(t)
	fx.SignUp(t, "ada@example.org", identity.Metadata{})
	client := identity.NewClient(fx.Provider)
	ctx := context.Background()

	sess, err := client.SignInWithPassword(ctx, "ada@example.org", "password123")
	require.NoError(t, err)
	require.NoError(t, fx.Provider.SignOut(ctx, sess.AccessToken))

	current, err := client.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClientRestore(t *testing.T) {
	fx := identitytest.NewProvider(t)
	issued := fx.SignUp(t, "ada@example.org", identity.Metadata{})
	client := identity.NewClient(fx.Provider)

	sess, err := client.Restore(context.Background(), issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, issued.User.ID, sess.User.ID)

	_, err = client.Restore(context.Background(), "garbage")
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}
