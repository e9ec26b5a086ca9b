package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/memberhub/portal/internal/shared"
)

// DefaultTokenTTL is used when ProviderConfig.TokenTTL is zero.
const DefaultTokenTTL = time.Hour

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	// Issuer is the service base URL stamped into tokens.
	Issuer string
	// Secret is the service role key used to sign tokens.
	Secret   string
	TokenTTL time.Duration
	Users    UserStore
	Sessions SessionBackend
	// PasswordCost overrides bcrypt.DefaultCost.
	PasswordCost int
	Now          func() time.Time
}

// Provider authenticates password accounts and manages their sessions.
type Provider struct {
	issuer   string
	secret   []byte
	ttl      time.Duration
	users    UserStore
	sessions SessionBackend
	cost     int
	now      func() time.Time
}

// NewProvider validates cfg and constructs a Provider. A missing issuer or
// secret yields ErrMisconfigured.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrMisconfigured
	}
	if cfg.Users == nil || cfg.Sessions == nil {
		return nil, errors.New("identity: user store and session backend are required")
	}
	p := &Provider{
		issuer:   cfg.Issuer,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TokenTTL,
		users:    cfg.Users,
		sessions: cfg.Sessions,
		cost:     cfg.PasswordCost,
		now:      cfg.Now,
	}
	if p.ttl <= 0 {
		p.ttl = DefaultTokenTTL
	}
	if p.cost == 0 {
		p.cost = bcrypt.DefaultCost
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// SignInWithPassword verifies credentials and opens a new session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	user, err := p.users.FindUserByEmail(ctx, shared.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.EmailConfirmedAt == nil {
		return nil, ErrEmailNotConfirmed
	}
	sid, err := p.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return p.issue(*user, sid)
}

// GetUser resolves an access token to its account. The token's session must
// still be live.
func (p *Provider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	user, _, err := p.verify(ctx, accessToken)
	return user, err
}

// Refresh extends the token's session and issues a fresh access token.
func (p *Provider) Refresh(ctx context.Context, accessToken string) (*Session, error) {
	user, claims, err := p.verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if err := p.sessions.Touch(ctx, claims.SessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return p.issue(*user, claims.SessionID)
}

// SignOut revokes the session behind accessToken.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := ParseAccessToken(accessToken, p.secret, p.issuer)
	if err != nil {
		return err
	}
	return p.sessions.Revoke(ctx, claims.SessionID)
}

// CreateUser registers an account. Only callers holding the service role key
// construct a Provider, so this is the elevated path.
func (p *Provider) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	email := shared.NormalizeEmail(params.Email)
	if email == "" || params.Password == "" {
		return nil, errors.New("identity: email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("identity: user id: %w", err)
	}
	now := p.now().UTC()
	user := User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		AppMetadata:  params.AppMetadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if params.EmailConfirm {
		user.EmailConfirmedAt = &now
	}
	if err := p.users.InsertUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *Provider) verify(ctx context.Context, accessToken string) (*User, *Claims, error) {
	claims, err := ParseAccessToken(accessToken, p.secret, p.issuer)
	if err != nil {
		return nil, nil, err
	}
	owner, err := p.sessions.Lookup(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if owner.String() != claims.Subject {
		return nil, nil, fmt.Errorf("%w: session owner mismatch", ErrInvalidToken)
	}
	user, err := p.users.FindUserByID(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	return user, claims, nil
}

func (p *Provider) issue(user User, sid string) (*Session, error) {
	token, expiresAt, err := IssueAccessToken(p.secret, p.issuer, user, sid, p.now(), p.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:          sid,
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}
