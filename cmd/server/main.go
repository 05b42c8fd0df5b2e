package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/asahina/tobira/internal/catalog"
	"github.com/asahina/tobira/internal/handlers"
	invalidation "github.com/asahina/tobira/internal/infrastructure/cache"
	"github.com/asahina/tobira/internal/infrastructure/config"
	"github.com/asahina/tobira/internal/infrastructure/database"
	"github.com/asahina/tobira/internal/infrastructure/metrics"
	"github.com/asahina/tobira/internal/repositories/postgres"
	"github.com/asahina/tobira/internal/services/authorization"
	"github.com/asahina/tobira/internal/services/reconciler"
	"github.com/asahina/tobira/internal/services/session"
	"github.com/asahina/tobira/pkg/cache/memorycache"
)

const defaultEnv = "dev"

func main() {
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The catalog is fixed at build time; a malformed one must stop the boot.
	cat := catalog.Default()
	validator := catalog.NewValidator(cat)
	if err := validator.Validate(); err != nil {
		log.Fatalf("Invalid permission catalog: %v", err)
	}
	for _, warning := range validator.Warnings() {
		log.Printf("catalog warning: %s", warning)
	}

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	log.Printf("Connected to database: %s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database)

	// Initialize repositories
	permissionRepo := postgres.NewPostgresPermissionRepository(pg.DB)
	roleRepo := postgres.NewPostgresRoleRepository(pg.DB)
	principalRepo := postgres.NewPostgresPrincipalRepository(pg.DB)

	// Cross-process invalidation fan-out
	invalidator := invalidation.NewInvalidator(pg.DB, cfg.Database.ConnectionString())
	if err := invalidator.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start invalidation listener: %v", err)
	}
	defer invalidator.Stop()

	// Align the store with the catalog before serving any decision. A run
	// that changed anything fans out a full invalidation to the fleet.
	rec := reconciler.NewReconciler(cat, permissionRepo, roleRepo, invalidator)
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	report, err := rec.Run(bootCtx)
	bootCancel()
	if err != nil {
		log.Fatalf("Failed to reconcile permission catalog: %v", err)
	}
	log.Printf("Reconciled catalog: %d permissions created, %d updated, %d grants created, %d pruned",
		report.PermissionsCreated, report.PermissionsUpdated, report.GrantsCreated, len(report.Pruned))

	// Resolved-permission cache and session resolver
	sessionCache := memorycache.New(&memorycache.Config{MaxItems: cfg.Session.CacheMaxItems})
	resolver := session.NewResolver(principalRepo, principalRepo, roleRepo, sessionCache, invalidator, session.Config{
		TTL:             cfg.Session.CacheTTL,
		RefreshTimeout:  cfg.Session.RefreshTimeout,
		DefaultRoleName: cfg.Session.DefaultRoleName,
	})
	guard := authorization.NewGuard(resolver)

	// Metrics
	collector := metrics.NewCollector()
	collector.SetCache(sessionCache)
	exporter := metrics.NewPrometheusExporter(prometheus.DefaultRegisterer, collector)
	exporter.RecordReconcile(report.PermissionsCreated, report.PermissionsUpdated, report.GrantsCreated, len(report.Pruned))

	// Create gRPC server with the metrics and guard interceptor chain
	registry := handlers.DefaultPermissionRegistry()
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			metrics.UnaryServerInterceptor(collector, exporter),
			handlers.UnaryGuardInterceptor(guard, registry, collector, exporter),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Feed database health into the health service
	healthTicker := time.NewTicker(15 * time.Second)
	defer healthTicker.Stop()
	go func() {
		for range healthTicker.C {
			if err := pg.HealthCheck(); err != nil {
				log.Printf("Database health check failed: %v", err)
				healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
				continue
			}
			healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		}
	}()

	// Register reflection service (for grpcurl, etc.)
	reflection.Register(grpcServer)

	// Periodically refresh gauge metrics from the collector
	metricsTicker := time.NewTicker(10 * time.Second)
	defer metricsTicker.Stop()
	go func() {
		for range metricsTicker.C {
			exporter.Update()
		}
	}()

	// Expose Prometheus metrics over HTTP
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		log.Printf("Metrics server listening on :%d", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Start listening
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	log.Printf("gRPC server listening on %s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			serverErrors <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Initiating graceful shutdown...")

		healthTicker.Stop()
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Channel to notify when graceful stop completes
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		// Wait for graceful stop or timeout
		select {
		case <-stopped:
			log.Println("Server stopped gracefully")
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing stop")
			grpcServer.Stop()
		}

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down metrics server: %v", err)
		}

		if err := invalidator.Stop(); err != nil {
			log.Printf("Error stopping invalidation listener: %v", err)
		}

		// Close database connection
		if err := pg.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}

		log.Println("Shutdown complete")
	}
}
