package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/memberhub/portal/internal/events"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/permissions"
)

// AuthClient is the session capability the resolver drives.
type AuthClient interface {
	GetSession(ctx context.Context) (*identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn func(identity.AuthEvent)) func()
}

// Profiles looks up the member record for an identity.
type Profiles interface {
	FindByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*members.Profile, error)
}

// SubjectSetter is implemented by the permission read models.
type SubjectSetter interface {
	SetSubject(ctx context.Context, subject permissions.Subject)
}

// Resolver reconciles the initial session lookup with session-change
// notifications. Every trigger bumps a generation counter and results from
// older generations are dropped, so the final state does not depend on
// which trigger finished first.
type Resolver struct {
	client   AuthClient
	profiles Profiles
	logger   *slog.Logger
	group    singleflight.Group
	changes  *events.Registry[State]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	publishMu sync.Mutex

	mu          sync.Mutex
	state       State
	gen         uint64
	started     bool
	closed      bool
	unsubscribe func()
}

// New constructs a Resolver in the INITIALIZING phase.
func New(client AuthClient, profiles Profiles, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		client:   client,
		profiles: profiles,
		logger:   logger,
		changes:  events.NewRegistry[State](),
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Phase: PhaseInitializing},
	}
}

// Start subscribes to session changes and resolves the current session.
// Calling Start more than once has no effect.
func (r *Resolver) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	unsubscribe := r.client.OnAuthStateChange(r.onAuthEvent)
	r.mu.Lock()
	r.unsubscribe = unsubscribe
	gen := r.gen
	r.mu.Unlock()

	sess, err := r.client.GetSession(ctx)
	if err != nil {
		r.logger.Error("resolver get session", slog.Any("error", err))
		r.apply(gen, func(s State) State {
			s.Phase = PhaseAnonymous
			s.Err = err
			return s
		})
		return
	}
	_ = r.resolve(ctx, gen, sess)
}

// Close stops listening for session changes and waits for pending
// resolutions.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until deferred resolutions triggered so far have finished.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

// State returns the current snapshot.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers fn for state changes and returns its unsubscribe
// function. fn must not call SignOut, RefreshProfile or Start synchronously.
func (r *Resolver) Subscribe(fn func(State)) func() {
	return r.changes.Subscribe(fn)
}

// Bind keeps the permission models' subject in step with the resolver.
func (r *Resolver) Bind(ctx context.Context, models ...SubjectSetter) func() {
	var (
		mu   sync.Mutex
		last permissions.Subject
		set  bool
	)
	follow := func(s State) {
		if s.Phase == PhaseInitializing {
			return
		}
		subject := s.Subject()
		mu.Lock()
		defer mu.Unlock()
		if set && subject == last {
			return
		}
		last, set = subject, true
		for _, m := range models {
			m.SetSubject(ctx, subject)
		}
	}
	unsubscribe := r.Subscribe(follow)
	follow(r.State())
	return unsubscribe
}

// SignIn authenticates with a password. Resolution follows through the
// session-change notification.
func (r *Resolver) SignIn(ctx context.Context, email, password string) (result SignInResult) {
	defer func() {
		if p := recover(); p != nil {
			result = SignInResult{Err: fmt.Errorf("resolver: sign in: %v", p)}
		}
	}()
	sess, err := r.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return SignInResult{Err: err}
	}
	return SignInResult{Session: sess}
}

// SignOut clears the profile and role immediately, then revokes the session.
func (r *Resolver) SignOut(ctx context.Context) error {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()
	r.apply(gen, func(State) State { return State{Phase: PhaseAnonymous} })
	return r.client.SignOut(ctx)
}

// RefreshProfile re-runs resolution for the current session. It does
// nothing without a session.
func (r *Resolver) RefreshProfile(ctx context.Context) error {
	r.mu.Lock()
	sess := r.state.Session
	gen := r.gen
	r.mu.Unlock()
	if sess == nil {
		return nil
	}
	return r.resolve(ctx, gen, sess)
}

// onAuthEvent runs on the auth client's goroutine while the client holds its
// lock, so resolution moves to a new goroutine.
func (r *Resolver) onAuthEvent(evt identity.AuthEvent) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	r.wg.Add(1)
	r.mu.Unlock()

	sess := evt.Session
	if evt.Kind == identity.EventSignedOut {
		sess = nil
	}
	go func() {
		defer r.wg.Done()
		_ = r.resolve(r.ctx, gen, sess)
	}()
}

func (r *Resolver) resolve(ctx context.Context, gen uint64, sess *identity.Session) error {
	if sess == nil {
		r.apply(gen, func(State) State { return State{Phase: PhaseAnonymous} })
		return nil
	}
	userID := sess.User.ID
	v, err, _ := r.group.Do(userID.String(), func() (any, error) {
		return r.profiles.FindByAuthUserID(ctx, userID)
	})
	switch {
	case err == nil:
		profile := v.(*members.Profile)
		r.apply(gen, func(State) State {
			return State{Phase: PhaseAuthenticated, Session: sess, Profile: profile, Role: profile.Role}
		})
		return nil
	case errors.Is(err, members.ErrNotFound):
		r.apply(gen, func(State) State {
			return State{Phase: PhaseNeedsProfile, Session: sess, NeedsProfileSetup: true}
		})
		return nil
	default:
		r.logger.Error("resolver load profile", slog.String("user_id", userID.String()), slog.Any("error", err))
		r.apply(gen, func(s State) State {
			// Previous role and profile only carry over for the same user.
			if s.Session != nil && s.Session.User.ID == userID {
				s.Session = sess
				s.Err = err
				return s
			}
			return State{Phase: PhaseProfileUnavailable, Session: sess, Err: err}
		})
		return err
	}
}

// apply installs the state produced by update unless a newer trigger has
// started since gen was taken.
func (r *Resolver) apply(gen uint64, update func(State) State) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.state = update(r.state)
	r.mu.Unlock()

	// Observers always receive the newest state, even when two applies race.
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	r.changes.Publish(r.State())
}
