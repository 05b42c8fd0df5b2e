package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/asahina/tobira/internal/catalog"
	"github.com/asahina/tobira/internal/infrastructure/cache"
	"github.com/asahina/tobira/internal/infrastructure/config"
	"github.com/asahina/tobira/internal/infrastructure/database"
	"github.com/asahina/tobira/internal/repositories/postgres"
	"github.com/asahina/tobira/internal/services/reconciler"
)

var (
	envFlag string
	rec     *reconciler.Reconciler
	pg      *database.Postgres
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Permission catalog reconciliation tool for Tobira",
	Long: `Permission catalog reconciliation tool for Tobira.
Aligns the authorization store with the code-first permission catalog.`,
	PersistentPreRun: setup,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile the store with the catalog",
	Long: `Upsert catalog permissions, ensure built-in role grants, and prune
permissions no longer present in the catalog. Idempotent; a second run
against an unchanged catalog performs zero writes.`,
	Run: runReconcile,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report drift between the store and the catalog",
	Long:  `Compare the store against the catalog without writing anything.`,
	Run:   runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func setup(cmd *cobra.Command, args []string) {
	log.Printf("Using environment: %s", envFlag)

	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pg, err = database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Printf("Connected to database: %s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database)

	cat := catalog.Default()
	validator := catalog.NewValidator(cat)
	if err := validator.Validate(); err != nil {
		log.Fatalf("Refusing to reconcile: %v", err)
	}
	for _, warning := range validator.Warnings() {
		log.Printf("catalog warning: %s", warning)
	}

	permissionRepo := postgres.NewPostgresPermissionRepository(pg.DB)
	roleRepo := postgres.NewPostgresRoleRepository(pg.DB)

	// Notify-only invalidator: running servers hold the listeners, this tool
	// just has to tell them their resolved sets are stale.
	invalidator := cache.NewInvalidator(pg.DB, "")
	rec = reconciler.NewReconciler(cat, permissionRepo, roleRepo, invalidator)
}

func runReconcile(cmd *cobra.Command, args []string) {
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := rec.Run(ctx)
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}

	fmt.Printf("Permissions created: %d\n", report.PermissionsCreated)
	fmt.Printf("Permissions updated: %d\n", report.PermissionsUpdated)
	fmt.Printf("Grants created:      %d\n", report.GrantsCreated)
	fmt.Printf("Permissions pruned:  %d\n", len(report.Pruned))
	for _, name := range report.Pruned {
		fmt.Printf("  - %s\n", name)
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	missing, orphaned, err := rec.Drift(ctx)
	if err != nil {
		log.Fatalf("Drift check failed: %v", err)
	}

	if len(missing) == 0 && len(orphaned) == 0 {
		fmt.Println("Store is in sync with the catalog")
		return
	}

	if len(missing) > 0 {
		fmt.Printf("Missing from store (%d):\n", len(missing))
		for _, name := range missing {
			fmt.Printf("  - %s\n", name)
		}
	}
	if len(orphaned) > 0 {
		fmt.Printf("Orphaned in store (%d):\n", len(orphaned))
		for _, name := range orphaned {
			fmt.Printf("  - %s\n", name)
		}
	}
}
