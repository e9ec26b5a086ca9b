package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/memberhub/portal/internal/events"
)

// Authenticator is the provider capability a Client drives.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*User, error)
	Refresh(ctx context.Context, accessToken string) (*Session, error)
}

// Client holds one caller's session in memory and announces changes to it.
// Subscribers are notified while the client's lock is held, so they must not
// call back into the Client synchronously.
type Client struct {
	mu      sync.Mutex
	auth    Authenticator
	session *Session
	changes *events.Registry[AuthEvent]
}

// NewClient constructs a Client with no session.
func NewClient(auth Authenticator) *Client {
	return &Client{auth: auth, changes: events.NewRegistry[AuthEvent]()}
}

// OnAuthStateChange registers fn for session changes and returns its
// unsubscribe function.
func (c *Client) OnAuthStateChange(fn func(AuthEvent)) func() {
	return c.changes.Subscribe(fn)
}

// GetSession returns the current session, or nil when signed out. A session
// the provider no longer honours is dropped.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	user, err := c.auth.GetUser(ctx, c.session.AccessToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			c.session = nil
			c.changes.Publish(AuthEvent{Kind: EventSignedOut})
			return nil, nil
		}
		return nil, err
	}
	c.session.User = *user
	out := *c.session
	return &out, nil
}

// SignInWithPassword authenticates and stores the new session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	sess, err := c.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
	out := *sess
	c.changes.Publish(AuthEvent{Kind: EventSignedIn, Session: &out})
	return &out, nil
}

// Restore adopts an existing access token, for callers that persisted it.
func (c *Client) Restore(ctx context.Context, accessToken string) (*Session, error) {
	user, err := c.auth.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &Session{AccessToken: accessToken, TokenType: "bearer", User: *user}
	out := *c.session
	c.changes.Publish(AuthEvent{Kind: EventSignedIn, Session: &out})
	return &out, nil
}

// RefreshSession exchanges the current token for a fresh one.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrSessionNotFound
	}
	sess, err := c.auth.Refresh(ctx, c.session.AccessToken)
	if err != nil {
		return nil, err
	}
	c.session = sess
	out := *sess
	c.changes.Publish(AuthEvent{Kind: EventTokenRefreshed, Session: &out})
	return &out, nil
}

// SignOut revokes the session remotely and forgets it locally. The local
// session is cleared even when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	token := c.session.AccessToken
	c.session = nil
	err := c.auth.SignOut(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		err = nil
	}
	c.changes.Publish(AuthEvent{Kind: EventSignedOut})
	return err
}
