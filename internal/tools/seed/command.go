package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/campuslink/campuslink-server/internal/config"
	"github.com/campuslink/campuslink-server/internal/database"
	"github.com/campuslink/campuslink-server/internal/tools/common"
	"github.com/campuslink/campuslink-server/internal/tools/ui"
)

type options struct {
	envFile             string
	bootstrapAdminEmail string
	ci                  bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Database seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.bootstrapAdminEmail, "bootstrap-admin-email", "", "override bootstrap admin email")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts), newVerifyEmailCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Provision the bootstrap admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed apply", func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				email := cfg.BootstrapAdminEmail
				if opts.bootstrapAdminEmail != "" {
					email = opts.bootstrapAdminEmail
				}
				report, err := database.SeedSync(db, email, cfg.BootstrapAdminPassword)
				if err != nil {
					return nil, err
				}
				switch {
				case report.CreatedAdmin:
					return []string{"created bootstrap admin account: " + email}, nil
				case report.PromotedExisting:
					return []string{"promoted existing account to admin: " + email}, nil
				default:
					return []string{"nothing to do, bootstrap admin already in place"}, nil
				}
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed apply", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed dry-run", func(ctx context.Context) ([]string, error) {
				cfg, _, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				email := cfg.BootstrapAdminEmail
				if opts.bootstrapAdminEmail != "" {
					email = opts.bootstrapAdminEmail
				}
				if email == "" {
					return []string{"no bootstrap admin email configured, seeding would be a no-op"}, nil
				}
				return []string{
					fmt.Sprintf("would create admin account %s if absent", email),
					"would promote an existing account with that email to admin",
					"existing passwords would be left untouched",
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed dry-run", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newVerifyEmailCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Mark an account's email as verified",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed verify-email", func(ctx context.Context) ([]string, error) {
				if strings.TrimSpace(email) == "" {
					return nil, fmt.Errorf("email is required")
				}
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				if err := database.VerifyEmail(db, email); err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("marked email verified: %s", strings.TrimSpace(strings.ToLower(email)))}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed verify-email", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email to mark verified")
	return cmd
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		return fn(context.Background())
	}
	return ui.Run(title, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
