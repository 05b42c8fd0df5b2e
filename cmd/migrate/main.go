package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/asahina/tobira/internal/infrastructure/config"
	"github.com/asahina/tobira/internal/infrastructure/database"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

// defaultMigrationsDir is where the repository keeps its SQL migrations,
// relative to the module root. --path overrides it for deployments that ship
// the migrations elsewhere.
const defaultMigrationsDir = "internal/infrastructure/database/migrations/postgres"

var (
	envFlag  string
	pathFlag string
	pg       *database.Postgres
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for Tobira",
	Long: `Database migration tool for Tobira.
Manages PostgreSQL schema migrations using golang-migrate.`,
	PersistentPreRunE: setupDatabase,
	SilenceUsage:      true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMigrate()
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Println("No migrations to apply")
				return nil
			}
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Println("Migration up completed")
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations (default: 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) > 0 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed < 1 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			steps = parsed
		}

		m, err := openMigrate()
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Println("No migrations to rollback")
				return nil
			}
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Printf("Rolled back %d migration(s)", steps)
		return nil
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}

		m, err := openMigrate()
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Migrate(uint(version)); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Printf("Already at version %d", version)
				return nil
			}
			return fmt.Errorf("migration goto failed: %w", err)
		}
		log.Printf("Migrated to version %d", version)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMigrate()
		if err != nil {
			return err
		}
		defer m.Close()

		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("Current version: no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}

		if dirty {
			log.Printf("Current version: %d (dirty, a migration may have failed)", version)
		} else {
			log.Printf("Current version: %d", version)
		}
		return nil
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}

		m, err := openMigrate()
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Force(version); err != nil {
			return fmt.Errorf("migration force failed: %w", err)
		}
		log.Printf("Migration version forced to %d", version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().StringVarP(&pathFlag, "path", "p", "", "Migrations directory (default: "+defaultMigrationsDir+" under the module root)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) error {
	log.Printf("Using environment: %s", envFlag)

	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pg, err = database.NewPostgres(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Printf("Connected to database: %s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database)
	return nil
}

// openMigrate builds a migrate instance on the shared connection, against
// either --path or the migrations directory inside the module.
func openMigrate() (*migrate.Migrate, error) {
	migrationsPath := pathFlag
	if migrationsPath == "" {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to locate migrations: %w", err)
		}
		migrationsPath = filepath.Join(moduleRoot, defaultMigrationsDir)
	}
	log.Printf("Using migrations path: %s", migrationsPath)

	driver, err := database.NewMigrateDriver(pg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// findModuleRoot walks up from the working directory until it finds go.mod.
func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory (pass --path)")
		}
		dir = parent
	}
}
