package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mwork/moderation-api/internal/config"
	"github.com/mwork/moderation-api/internal/domain/auth"
	"github.com/mwork/moderation-api/internal/domain/moderation"
	"github.com/mwork/moderation-api/internal/domain/post"
	"github.com/mwork/moderation-api/internal/domain/user"
	"github.com/mwork/moderation-api/internal/middleware"
	"github.com/mwork/moderation-api/internal/pkg/countstore"
	"github.com/mwork/moderation-api/internal/pkg/database"
	"github.com/mwork/moderation-api/internal/pkg/jwt"
	"github.com/mwork/moderation-api/internal/pkg/logger"
	pkgresponse "github.com/mwork/moderation-api/internal/pkg/response"
	"github.com/mwork/moderation-api/internal/pkg/storage"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "moderation-api",
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Bool("legacy_enforcement", cfg.LegacyEnforcement).
		Msg("Starting moderation API")

	ctx := context.Background()

	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.NewPostgres(ctx, database.PostgresConfig{
			URL:          cfg.DatabaseURL,
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres(db)

		if cfg.MigrateOnStartup {
			if err := database.Migrate(ctx, db, cfg.MigrationsDir); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set, running with in-memory stores")
	}

	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	archive, err := storage.New(ctx, cfg.Storage())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create evidence archive")
	}

	app := newApp(cfg, db, rdb, archive)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.router(cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

type app struct {
	authHandler       *auth.Handler
	postHandler       *post.Handler
	moderationHandler *moderation.Handler

	userJWT      *jwt.Service
	operatorAuth *middleware.OperatorAuth
}

// newApp wires stores and services. A nil db selects the in-memory stores
// and a nil redis client keeps counters in process.
func newApp(cfg *config.Config, db *sqlx.DB, rdb *redis.Client, archive moderation.EvidenceArchive) *app {
	modCfg := cfg.Moderation()

	var (
		userRepo user.Repository
		postRepo post.Repository
		modStore moderation.Store
		counts   countstore.CountStore
	)
	if db != nil {
		userRepo = user.NewRepository(db)
		postRepo = post.NewRepository(db)
		modStore = moderation.NewPostgresStore(db, modCfg.EventCap)
	} else {
		memUsers := user.NewMemoryRepository()
		userRepo = memUsers
		postRepo = post.NewMemoryRepository()
		modStore = moderation.NewMemoryStore(modCfg.EventCap, user.CreatedAt(memUsers))
	}
	if rdb != nil {
		counts = countstore.NewRedisCountStore(rdb)
	} else {
		counts = countstore.NewMemCountStore()
	}

	userJWT := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	operatorJWT := jwt.NewOperatorService(cfg.AdminJWTSecret, cfg.AdminJWTTTL)

	modService := moderation.NewService(modStore, counts, archive, modCfg)

	return &app{
		authHandler:       auth.NewHandler(auth.NewService(userRepo, userJWT)),
		postHandler:       post.NewHandler(post.NewService(postRepo, modService)),
		moderationHandler: moderation.NewHandler(modService),
		userJWT:           userJWT,
		operatorAuth:      middleware.NewOperatorAuth(middleware.OperatorAuthConfig{JWT: operatorJWT}),
	}
}

func (a *app) router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	authMiddleware := middleware.Auth(a.userJWT)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/auth", a.authHandler.Routes(authMiddleware))
		r.Mount("/posts", a.postHandler.Routes(authMiddleware))
	})

	r.Mount("/api/admin/moderation", a.moderationHandler.AdminRoutes(a.operatorAuth.Authenticate))

	return r
}
