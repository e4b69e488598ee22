package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/questionnaire"
	"github.com/clinic/clinic/internal/domain/staff"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic questionnaire API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clinicCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(templatesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// connect loads the configuration and opens a pool for one-shot commands.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// migrationDir picks the --dir flag over MIGRATIONS_DIR. Empty means the
// embedded set.
func migrationDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.MigrationsDir
}

func newMigrator(pool *pgxpool.Pool, dir string) *db.Migrator {
	if dir != "" {
		return db.NewDirMigrator(pool, dir)
	}
	return db.NewMigrator(pool, migrations.FS)
}

func migrationFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func clinicFlag(cmd *cobra.Command, cfg *config.Config) (string, error) {
	clinic, _ := cmd.Flags().GetString("clinic")
	if clinic == "" {
		clinic = cfg.DefaultClinic
	}
	if !db.ValidClinicID(clinic) {
		return "", fmt.Errorf("invalid clinic identifier %q", clinic)
	}
	return clinic, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to a clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			clinic, err := clinicFlag(cmd, cfg)
			if err != nil {
				return err
			}
			schema := db.SchemaName(clinic)

			migrator := newMigrator(pool, migrationDir(cmd, cfg))
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status of a clinic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			clinic, err := clinicFlag(cmd, cfg)
			if err != nil {
				return err
			}
			schema := db.SchemaName(clinic)

			migrator := newMigrator(pool, migrationDir(cmd, cfg))
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic schema and apply all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				return fmt.Errorf("--id is required")
			}

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating clinic schema: %s\n", db.SchemaName(id))
			if err := db.CreateClinicSchema(ctx, pool, id, migrationFS(migrationDir(cmd, cfg))); err != nil {
				return err
			}
			fmt.Println("Clinic created. Add an administrator with: clinic-server staff create --clinic", id)
			return nil
		},
	}
	createCmd.Flags().String("id", "", "Clinic identifier (letters, digits, underscore)")
	createCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	cmd.AddCommand(createCmd)
	return cmd
}

// withClinic runs fn with a context scoped to the clinic named by --clinic.
func withClinic(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	ctx := context.Background()
	cfg, pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	clinic, err := clinicFlag(cmd, cfg)
	if err != nil {
		return err
	}
	ctx, release, err := db.WithClinic(ctx, pool, clinic)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, cfg, pool)
}

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := staff.NewAccount{}
			in.Email, _ = cmd.Flags().GetString("email")
			in.Name, _ = cmd.Flags().GetString("name")
			in.Role, _ = cmd.Flags().GetString("role")
			in.Password, _ = cmd.Flags().GetString("password")
			if in.Password == "" {
				in.Password = os.Getenv("STAFF_PASSWORD")
			}

			return withClinic(cmd, func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				svc := staff.NewService(staff.NewRepoPG(pool), nil, nil, newLogger(cfg.Env))
				a, err := svc.CreateAccount(ctx, in)
				if err != nil {
					return err
				}
				fmt.Printf("Created %s account %s (%s)\n", a.Role, a.Email, a.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("role", "employee", "admin or employee")
	createCmd.Flags().String("password", "", "Initial password (or set STAFF_PASSWORD)")
	cmd.AddCommand(createCmd)

	disableCmd := &cobra.Command{
		Use:   "disable",
		Short: "Block further logins for a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			return withClinic(cmd, func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				svc := staff.NewService(staff.NewRepoPG(pool), nil, nil, newLogger(cfg.Env))
				a, err := svc.Disable(ctx, email)
				if err != nil {
					return err
				}
				fmt.Printf("Disabled account %s\n", a.Email)
				return nil
			})
		},
	}
	disableCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	disableCmd.Flags().String("email", "", "Login email")
	cmd.AddCommand(disableCmd)

	return cmd
}

func templatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage questionnaire templates",
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the built-in questionnaires that are not yet present",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, _ := cmd.Flags().GetString("actor")
			return withClinic(cmd, func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				svc := questionnaire.NewTemplateService(questionnaire.NewTemplateRepoPG(pool))
				n, err := svc.SeedBuiltins(ctx, actor)
				if err != nil {
					return err
				}
				fmt.Printf("Installed %d built-in template(s).\n", n)
				return nil
			})
		},
	}
	seedCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	seedCmd.Flags().String("actor", "system", "Recorded as the templates' creator")
	cmd.AddCommand(seedCmd)

	return cmd
}
