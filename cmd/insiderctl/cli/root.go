// Package cli implements the insiderctl operational commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/insiderwatch/insiderwatch/internal/app"
	"github.com/insiderwatch/insiderwatch/internal/behavior"
	"github.com/insiderwatch/insiderwatch/internal/platform/db"
	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// Options wires the command tree to its environment.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// LoadConfig defaults to app.LoadConfig.
	LoadConfig func() (*app.Config, error)
	// NewJobs defaults to NewJobsCLI.
	NewJobs func(redisAddr string) *JobsCLI
}

// NewRootCommand builds the insiderctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = app.LoadConfig
	}
	if opts.NewJobs == nil {
		opts.NewJobs = NewJobsCLI
	}

	root := &cobra.Command{
		Use:           "insiderctl",
		Short:         "Operational commands for the insider threat detection service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	root.AddCommand(
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newPolicyCommand(opts),
		newJobsCommand(opts),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, opts Options, args []string) int {
	root := NewRootCommand(opts)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		_, _ = fmt.Fprintf(root.ErrOrStderr(), "insiderctl: %v\n", err)
		return ExitUsage
	}
	return ExitOK
}

func newMigrateCommand(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(db.MigrateUp), string(db.MigrateDown)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			return db.Migrate(cfg.PGDSN, db.MigrateDirection(args[0]), logger)
		},
	}
}

func newSeedCommand(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the reference roles, users, grants and baselines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pool, err := db.New(cmd.Context(), cfg.PGDSN, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			result, err := behavior.NewRepository(pool).Seed(cmd.Context(), behavior.ReferenceData())
			if err != nil {
				return err
			}
			if result.Skipped {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "roles already present, seed skipped")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d roles, %d users, %d grants\n", result.Roles, result.Users, result.Grants)
			return nil
		},
	}
}

func newPolicyCommand(opts Options) *cobra.Command {
	policy := &cobra.Command{
		Use:   "policy",
		Short: "Inspect risk scoring policies",
	}
	var jsonOutput bool
	validate := &cobra.Command{
		Use:   "validate <policy.yaml>",
		Short: "Check a policy file over the environment policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := risk.DefaultPolicy()
			if cfg, err := opts.LoadConfig(); err == nil {
				base = cfg.Policy()
			}
			code := ValidatePolicyCommand(PolicyValidateOptions{
				Path:       args[0],
				Base:       base,
				JSONOutput: jsonOutput,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			})
			if code != ExitOK {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	validate.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	policy.AddCommand(validate)
	return policy
}

func newJobsCommand(opts Options) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background jobs",
	}

	withJobs := func(fn func(cmd *cobra.Command, c *JobsCLI) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c := opts.NewJobs(cfg.RedisAddr)
			defer func() { _ = c.Close() }()
			return fn(cmd, c)
		}
	}

	var windowHours int
	trigger := &cobra.Command{
		Use:   "trigger <digest>",
		Short: "Enqueue a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(func(cmd *cobra.Command, c *JobsCLI) error {
				info, err := c.Trigger(cmd.Context(), args[0], windowHours)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})(cmd, args)
		},
	}
	trigger.Flags().IntVar(&windowHours, "window-hours", 24, "digest window in hours")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue statistics",
		Args:  cobra.NoArgs,
		RunE: withJobs(func(cmd *cobra.Command, c *JobsCLI) error {
			s, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}),
	}

	jobsCmd.AddCommand(trigger, stats)
	return jobsCmd
}
