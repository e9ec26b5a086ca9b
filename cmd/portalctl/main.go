// Command portalctl runs operator tasks against the portal database and
// job queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/memberhub/portal/cmd/portalctl/cli"
	"github.com/memberhub/portal/internal/app"
	"github.com/memberhub/portal/internal/audit"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/permissions"
	"github.com/memberhub/portal/internal/platform/cache"
	"github.com/memberhub/portal/internal/platform/db"
	"github.com/memberhub/portal/internal/settings"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping portalctl")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operator tooling for the member portal",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		migrateCmd(),
		seedCmd(),
		settingsCmd(),
		grantCmd(true),
		grantCmd(false),
		whoamiCmd(),
		jobsCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

type env struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func (e *env) close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

func (e *env) ops() *cli.Ops {
	return &cli.Ops{
		Settings:    settings.NewRepository(e.pool),
		Users:       identity.NewUserStore(e.pool),
		Members:     members.NewRepository(e.pool),
		Permissions: permissions.NewStore(e.pool),
		Recorder:    audit.NewLogger(e.pool),
		Logger:      e.logger,
	}
}

func connect(ctx context.Context) (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2, ApplicationName: "portalctl"})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, pool: pool}, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the embedded schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			direction := cli.MigrateUp
			if len(args) == 1 {
				direction = cli.MigrateDirection(args[0])
			}
			version, err := cli.Migrate(cfg.PGDSN, direction)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var row cli.SeedMember
	var role string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or update a member row by email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			row.Role = members.Role(role)
			n, err := cli.Seed(cmd.Context(), e.pool, []cli.SeedMember{row})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d member(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&row.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&row.Email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", string(members.RoleMember), "member, honourable, admin or super_admin")
	cmd.Flags().IntVar(&row.Batch, "batch", 0, "batch year")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change application settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			return e.ops().ShowSettings(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "signup on|off",
		Short: "Open or close public signup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allow, err := cli.ParseSwitch(args[0])
			if err != nil {
				return err
			}
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			return e.ops().SetSignup(cmd.Context(), cmd.OutOrStdout(), allow)
		},
	})
	return cmd
}

func grantCmd(grant bool) *cobra.Command {
	use, short := "grant <email> <key>", "Grant an individual admin permission"
	if !grant {
		use, short = "revoke <email> <key>", "Revoke an individual admin permission"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			if grant {
				return e.ops().Grant(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
			}
			return e.ops().Revoke(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func whoamiCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Sign in as an account and print its resolved role and permissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("PORTALCTL_PASSWORD")
			if password == "" {
				return fmt.Errorf("set PORTALCTL_PASSWORD")
			}
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			redisClient, err := cache.New(cmd.Context(), cache.Options{Addr: e.cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer redisClient.Close()
			provider, err := identity.NewProvider(identity.ProviderConfig{
				Issuer:   e.cfg.ServiceURL,
				Secret:   e.cfg.ServiceRoleKey,
				TokenTTL: e.cfg.AccessTokenTTL,
				Users:    identity.NewUserStore(e.pool),
				Sessions: identity.NewRedisSessions(redisClient, e.cfg.SessionTTL),
			})
			if err != nil {
				return err
			}
			return e.ops().Whoami(cmd.Context(), cmd.OutOrStdout(), provider, email, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	withJobs := func(cmd *cobra.Command, fn func(*cli.JobsCLI) error) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		jc, err := cli.NewJobsCLI(cache.Options{Addr: cfg.RedisAddr}.Asynq())
		if err != nil {
			return err
		}
		defer jc.Close()
		return fn(jc)
	}

	var days int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Enqueue a feedback retention sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(cmd, func(jc *cli.JobsCLI) error {
				info, err := jc.Trigger(cmd.Context(), "prune", days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s\n", info.Type, info.ID)
				return nil
			})
		},
	}
	prune.Flags().IntVar(&days, "days", 0, "retention in days (default from the job)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(cmd, func(jc *cli.JobsCLI) error {
				s, err := jc.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
					s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
				return nil
			})
		},
	}
	cmd.AddCommand(prune, stats)
	return cmd
}
