package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campustrack/internal/attendance"
	"campustrack/internal/config"
	"campustrack/internal/httpmiddleware"
	"campustrack/internal/identity"
	"campustrack/internal/queue"
	"campustrack/internal/session"
	"campustrack/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	var (
		identities identity.Store
		ledger     attendance.Ledger
		devices    attendance.DeviceStore
	)
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable, falling back to in-memory stores: %v", err)
		db = nil
		identities = identity.NewMemoryStore()
		ledger = attendance.NewMemoryLedger()
		devices = attendance.NewMemoryDevices()
	} else {
		defer db.Close()
		if err := store.Migrate(ctx, db.Client); err != nil {
			return err
		}
		identities = identity.NewPostgresStore(db.Client)
		ledger = attendance.NewPostgresLedger(db.Client)
		devices = attendance.NewPostgresDevices(db.Client)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var tokens session.TokenSet
	if cfg.SessionBackend == "memory" {
		tokens = session.NewMemoryTokenSet()
	} else {
		tokens = session.NewRedisTokenSet(redisClient.Client, "")
	}
	registry := session.NewRegistry(identities, tokens, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	verifier := attendance.NewService(identities, ledger, devices)
	aggregator := attendance.NewAggregator(identities, ledger)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/health", "/metrics"},
	}))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewIPRateLimiter(cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a := &api{
		identities: identities,
		ledger:     ledger,
		verifier:   verifier,
		aggregator: aggregator,
		registry:   registry,
		queue:      q,
		redis:      redisClient,
		db:         db,
	}
	a.registerRoutes(r)

	r.StaticFile("/", "web/index.html")

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

// corsMiddleware allows browser requests from the configured origins.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && allowedSet[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// securityHeaders sets baseline response headers.
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
