package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/Sakenfor/pixsim7-sub004/internal/auth"
	"github.com/Sakenfor/pixsim7-sub004/internal/config"
	"github.com/Sakenfor/pixsim7-sub004/internal/handler"
	"github.com/Sakenfor/pixsim7-sub004/internal/kinds"
	"github.com/Sakenfor/pixsim7-sub004/internal/metrics"
	"github.com/Sakenfor/pixsim7-sub004/internal/middleware"
	"github.com/Sakenfor/pixsim7-sub004/internal/repository"
	serviceVersioning "github.com/Sakenfor/pixsim7-sub004/internal/service/versioning"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Tee logs to a file when LOG_DIR is set
	var logFile io.Writer
	if cfg.LogDir != "" {
		f, err := config.SetupLogFile(cfg.LogDir, "server", cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer f.Close()
		logFile = f
	}

	logger := config.NewLogger(cfg, logFile)
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"driver", cfg.DatabaseDriver,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// SQLite is the embedded/dev backend; create its schema on boot.
	// Postgres schema is managed with `lineage migrate`.
	if cfg.DatabaseDriver == config.DriverSQLite {
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate sqlite schema: %v", err)
		}
	}

	kindRegistry, err := kinds.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize kind registry: %v", err)
	}
	logger.Info("kind registry initialized", "kinds", len(kindRegistry.List()))

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	retryConfig := serviceVersioning.DefaultRetryConfig()
	retryConfig.MaxRetries = cfg.AllocationMaxRetries
	retryConfig.MaxElapsed = cfg.AllocationRetryMaxElapsed

	// Create services
	familyService := serviceVersioning.NewFamilyService(store.Families, store.Entities, store.TxManager, m, logger)
	entityService := serviceVersioning.NewEntityService(store.Entities, store.Families, familyService, store.TxManager, m, logger)
	allocator := serviceVersioning.NewVersionAllocator(store.Families, store.Entities, store.TxManager, kindRegistry, retryConfig, m, logger)

	// Create handlers
	familyHandler := handler.NewFamilyHandler(familyService, logger)
	entityHandler := handler.NewEntityHandler(entityService, allocator, logger)
	versionHandler := handler.NewVersionHandler(allocator, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Family routes
	mux.HandleFunc("POST /api/families", familyHandler.CreateFamily)
	mux.HandleFunc("GET /api/families", familyHandler.ListFamilies)
	mux.HandleFunc("GET /api/families/{id}", familyHandler.GetFamily)
	mux.HandleFunc("PATCH /api/families/{id}", familyHandler.UpdateFamily)
	mux.HandleFunc("DELETE /api/families/{id}", familyHandler.DeleteFamily)
	mux.HandleFunc("PUT /api/families/{id}/head", familyHandler.SetHead)
	mux.HandleFunc("GET /api/families/{id}/timeline", familyHandler.GetTimeline)

	// Version resolution
	mux.HandleFunc("POST /api/versions/resolve", versionHandler.ResolveIntent)

	// Entity routes
	mux.HandleFunc("POST /api/entities", entityHandler.CreateEntity)
	mux.HandleFunc("GET /api/entities/{id}", entityHandler.GetEntity)
	mux.HandleFunc("DELETE /api/entities/{id}", entityHandler.DeleteEntity)
	mux.HandleFunc("PUT /api/entities/{id}/parent", entityHandler.ReparentEntity)
	mux.HandleFunc("POST /api/entities/{id}/fork", entityHandler.Fork)
	mux.HandleFunc("GET /api/entities/{id}/ancestry", entityHandler.GetAncestry)
	mux.HandleFunc("GET /api/entities/{id}/descendants", entityHandler.GetDescendants)

	// Auth: JWKS when configured, otherwise the dev owner stub
	var authMiddleware func(http.Handler) http.Handler
	if cfg.JWKSURL != "" {
		jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
		authMiddleware = middleware.AuthMiddleware(jwtVerifier, logger)
	} else {
		if cfg.Environment == "prod" {
			log.Fatalf("JWKS_URL is required in production")
		}
		logger.Warn("DEV AUTH: trusting X-Owner-ID header (NEVER use in production!)",
			"default_owner_id", cfg.DevOwnerID,
		)
		authMiddleware = middleware.DevAuthMiddleware(cfg.DevOwnerID)
	}

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	var h http.Handler = mux
	h = authMiddleware(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.DevOwnerHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
