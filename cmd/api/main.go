package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rollbook/internal/attendance"
	"rollbook/internal/config"
	"rollbook/internal/handler"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/logging"
	"rollbook/internal/roster"
	"rollbook/internal/store"
	"rollbook/internal/teacher"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogPretty)

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
		direction := migrateCmd.String("direction", "up", "direction of migration (up/down)")
		_ = migrateCmd.Parse(os.Args[2:])
		runMigrations(cfg, log, *direction)
		return
	}

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		migrator, err := store.NewMigrator(db.Client, "")
		if err != nil {
			return err
		}
		if err := migrator.Up(); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	teachers := teacher.NewService(teacher.NewRepository(db.Client))
	students := roster.NewService(roster.NewRepository(db.Client))
	days := attendance.NewService(attendance.NewRepository(db.Client), students)

	ctx := context.Background()
	seeded, err := teachers.EnsureSeed(ctx, cfg.TeacherID, cfg.TeacherPassword)
	if err != nil {
		return err
	}
	if seeded {
		log.Info().Str("teacher_id", cfg.TeacherID).Msg("seeded teacher")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(log, "/healthz", "/metrics"))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.NewRateLimiter(redisClient.Client, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	h := handler.New(handler.Options{
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		SessionTTL:    cfg.SessionTTL,
		ShareBaseURL:  cfg.ShareBaseURL,
	}, teachers, students, days, log)
	h.Register(r)

	if _, err := os.Stat("web/index.html"); err == nil {
		r.StaticFile("/", "web/index.html")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}

	log.Info().Msg("server exited")
	return nil
}

func runMigrations(cfg config.App, log zerolog.Logger, direction string) {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	migrator, err := store.NewMigrator(db.Client, "")
	if err != nil {
		log.Fatal().Err(err).Msg("migrator init failed")
	}

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Msg("migrations applied")
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("failed to rollback migrations")
		}
		log.Info().Msg("migrations rolled back")
	default:
		log.Fatal().Msg("invalid migration direction, use 'up' or 'down'")
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
