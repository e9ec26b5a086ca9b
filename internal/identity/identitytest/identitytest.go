// Package identitytest provides in-memory identity fixtures for tests.
package identitytest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/memberhub/portal/internal/identity"
)

// Issuer and Secret are the elevated credentials used by NewProvider.
const (
	Issuer = "http://portal.test"
	Secret = "service-role-test-key"
)

// Users is an in-memory identity.UserStore.
type Users struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]identity.User
	Inserts int
}

// NewUsers constructs an empty store.
func NewUsers() *Users {
	return &Users{byID: make(map[uuid.UUID]identity.User)}
}

func (u *Users) FindUserByEmail(_ context.Context, email string) (*identity.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byID {
		if user.Email == email {
			out := user
			return &out, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (u *Users) FindUserByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &user, nil
}

func (u *Users) InsertUser(_ context.Context, user identity.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.byID {
		if existing.Email == user.Email {
			return identity.ErrEmailTaken
		}
	}
	u.byID[user.ID] = user
	u.Inserts++
	return nil
}

// Fixture bundles a provider with its backing stores.
type Fixture struct {
	Provider *identity.Provider
	Users    *Users
	Sessions *identity.RedisSessions
	Redis    *miniredis.Miniredis
}

// NewProvider builds a provider over miniredis and an in-memory user store.
func NewProvider(t testing.TB) *Fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	users := NewUsers()
	sessions := identity.NewRedisSessions(client, time.Hour)
	provider, err := identity.NewProvider(identity.ProviderConfig{
		Issuer:       Issuer,
		Secret:       Secret,
		TokenTTL:     15 * time.Minute,
		Users:        users,
		Sessions:     sessions,
		PasswordCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return &Fixture{Provider: provider, Users: users, Sessions: sessions, Redis: mr}
}

// SignUp creates a confirmed account and returns a live session for it.
func (f *Fixture) SignUp(t testing.TB, email string, meta identity.Metadata) *identity.Session {
	t.Helper()
	ctx := context.Background()
	if _, err := f.Provider.CreateUser(ctx, identity.CreateUserParams{
		Email:        email,
		Password:     "password123",
		EmailConfirm: true,
		AppMetadata:  meta,
	}); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	sess, err := f.Provider.SignInWithPassword(ctx, email, "password123")
	if err != nil {
		t.Fatalf("sign in %s: %v", email, err)
	}
	return sess
}
