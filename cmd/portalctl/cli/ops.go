// Package cli implements the operator commands behind portalctl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/audit"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/permissions"
	"github.com/memberhub/portal/internal/resolver"
	"github.com/memberhub/portal/internal/settings"
	"github.com/memberhub/portal/internal/shared"
)

// Operator is the audit identity of commands run from the shell.
var Operator = permissions.Subject{UserID: uuid.Nil, Role: members.RoleSuperAdmin}

// Ops runs operator commands against the portal stores.
type Ops struct {
	Settings    settings.Repository
	Users       identity.UserStore
	Members     members.Repository
	Permissions permissions.Store
	Recorder    audit.Recorder
	Logger      *slog.Logger
}

func (o *Ops) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// ParseSwitch accepts on/off style arguments.
func ParseSwitch(arg string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", arg)
	}
}

// SetSignup opens or closes public signup.
func (o *Ops) SetSignup(ctx context.Context, out io.Writer, allow bool) error {
	updated, err := o.Settings.SetAllowSignup(ctx, allow)
	if errors.Is(err, settings.ErrNotFound) {
		return errors.New("settings row missing; run portalctl migrate first")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "allow_signup=%t allow_results_view=%t\n", updated.AllowSignup, updated.AllowResultsView)
	return nil
}

// ShowSettings prints both flags.
func (o *Ops) ShowSettings(ctx context.Context, out io.Writer) error {
	current, err := o.Settings.Get(ctx)
	if err != nil && !errors.Is(err, settings.ErrNotFound) {
		return err
	}
	fmt.Fprintf(out, "allow_signup=%t allow_results_view=%t\n", current.AllowSignup, current.AllowResultsView)
	return nil
}

// Grant gives the account with email an individual permission.
func (o *Ops) Grant(ctx context.Context, out io.Writer, email, key string) error {
	return o.changeGrant(ctx, out, email, key, true)
}

// Revoke withdraws an individual permission.
func (o *Ops) Revoke(ctx context.Context, out io.Writer, email, key string) error {
	return o.changeGrant(ctx, out, email, key, false)
}

func (o *Ops) changeGrant(ctx context.Context, out io.Writer, email, key string, grant bool) error {
	user, err := o.Users.FindUserByEmail(ctx, shared.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("lookup %s: %w", email, err)
	}
	admin := permissions.NewGrantAdmin(o.Permissions, o.Recorder, nil, o.logger())
	verb := "granted"
	if grant {
		err = admin.Grant(ctx, Operator, user.ID, key)
	} else {
		verb = "revoked"
		err = admin.Revoke(ctx, Operator, user.ID, key)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s for %s\n", verb, permissions.NormalizeKey(key), user.Email)
	return nil
}

// Whoami signs in as email and prints what the portal resolves for that
// account: phase, role and both permission signals per key.
func (o *Ops) Whoami(ctx context.Context, out io.Writer, auth identity.Authenticator, email, password string) error {
	client := identity.NewClient(auth)
	res := resolver.New(client, o.Members, o.logger())
	defer res.Close()

	catalog := permissions.NewCatalogModel(o.Permissions, o.Recorder, nil, o.logger())
	grants := permissions.NewGrantModel(o.Permissions, o.logger())

	res.Start(ctx)
	unbind := res.Bind(ctx, catalog, grants)
	defer unbind()

	result := res.SignIn(ctx, email, password)
	if !result.OK() {
		return fmt.Errorf("sign in: %w", result.Err)
	}
	res.Wait()
	defer func() {
		if err := res.SignOut(context.WithoutCancel(ctx)); err != nil {
			o.logger().Warn("whoami sign out", slog.Any("error", err))
		}
	}()

	state := res.State()
	if state.Err != nil {
		return fmt.Errorf("resolve profile: %w", state.Err)
	}
	fmt.Fprintf(out, "user:    %s (%s)\n", state.Session.User.Email, state.Session.User.ID)
	fmt.Fprintf(out, "phase:   %s\n", state.Phase)
	role := string(state.Role)
	if role == "" {
		role = "-"
	}
	fmt.Fprintf(out, "role:    %s admin=%t super_admin=%t\n", role, state.IsAdmin(), state.IsSuperAdmin())
	if state.Profile != nil {
		fmt.Fprintf(out, "member:  #%d %s\n", state.Profile.ID, state.Profile.FullName)
	}
	if err := catalog.Err(); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := grants.Err(); err != nil {
		return fmt.Errorf("load grants: %w", err)
	}

	keys := permissions.KnownKeys()
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "  %-9s catalog=%t granted=%t\n", key, catalog.HasPermission(key), grants.HasPermission(key))
	}
	return nil
}
