package migrate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campuslink/campuslink-server/internal/config"
	"github.com/campuslink/campuslink-server/internal/database"
	"github.com/campuslink/campuslink-server/internal/tools/common"
	"github.com/campuslink/campuslink-server/internal/tools/ui"
	"gorm.io/gorm"
)

// migratedModels mirrors database.Migrate's AutoMigrate list. Keep the two
// in sync when adding a model.
var migratedModels = []string{
	"user",
	"student_profile",
	"credential",
	"verification_token",
	"announcement",
	"complaint",
	"complaint_status_change",
}

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newUpCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate up", func(ctx context.Context) ([]string, error) {
				cfg, db, cleanup, err := openDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer cleanup()

				if err := database.Migrate(db); err != nil {
					return nil, err
				}
				return []string{
					"schema migration applied",
					"models: " + strings.Join(migratedModels, ", "),
					"service: " + cfg.OTELServiceName,
				}, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check migration prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate status", func(ctx context.Context) ([]string, error) {
				cfg, db, cleanup, err := openDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer cleanup()

				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				if err := sqlDB.PingContext(ctx); err != nil {
					return nil, fmt.Errorf("db ping: %w", err)
				}
				return []string{"database reachable", "service: " + cfg.OTELServiceName, "migrations: ready"}, nil
			})
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show migration plan (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "migrate plan", func(ctx context.Context) ([]string, error) {
				_, db, cleanup, err := openDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer cleanup()

				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				if err := sqlDB.PingContext(ctx); err != nil {
					return nil, fmt.Errorf("db ping: %w", err)
				}
				return []string{
					"would apply AutoMigrate for domain models",
					strings.Join(migratedModels, ", "),
					"no mutation executed in plan mode",
				}, nil
			})
		},
	}
}

// execute runs the action through the TUI, or directly with CI output, and
// maps a failure to exit code 3 so pipelines can distinguish migration
// failures from flag errors.
func execute(opts *options, title string, fn func(context.Context) ([]string, error)) error {
	var details []string
	var err error
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		details, err = fn(ctx)
		common.PrintCIResult(err == nil, title, details, err)
	} else {
		_, err = ui.Run(title, fn)
	}
	if err != nil {
		os.Exit(3)
	}
	return nil
}

func openDB(envFile string) (*config.Config, *gorm.DB, func(), error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return cfg, db, cleanup, nil
}
