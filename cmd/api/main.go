package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"tallybook.org/internal/audit"
	"tallybook.org/internal/auth"
	"tallybook.org/internal/books"
	"tallybook.org/internal/config"
	"tallybook.org/internal/httpapi"
	"tallybook.org/internal/obs"
	"tallybook.org/internal/ratelimit"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db *sql.DB
	if cfg.DB.DSN != "" {
		db, err = sql.Open("pgx", cfg.DB.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}
	if db == nil {
		log.Fatal("missing DB_DSN")
	}

	tokens, err := auth.NewTokens(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret,
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithIssuer(cfg.Auth.Issuer),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	authSvc, err := auth.NewService(auth.NewPGStore(db), tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	rootCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var limitStore ratelimit.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limitStore = ratelimit.NewRedisStore(rdb)
	} else {
		mem := ratelimit.NewMemoryStore()
		mem.StartJanitor(rootCtx, time.Minute)
		limitStore = mem
	}

	api := httpapi.New(
		httpapi.Config{
			Version:           version,
			SecureCookies:     cfg.Auth.SecureCookies,
			AllowedOrigins:    cfg.HTTP.AllowedOrigins,
			LoginLimit:        cfg.RateLimit.LoginLimit,
			LoginWindow:       cfg.RateLimit.LoginWindow,
			MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
			ThrottlePerSecond: cfg.RateLimit.ThrottlePerSecond,
			ThrottleBurst:     cfg.RateLimit.ThrottleBurst,
		},
		authSvc,
		books.NewPGStore(db),
		audit.NewRecorder(audit.NewPGStore(db)),
		ratelimit.New(limitStore),
		httpapi.ReadyProbe{DB: db},
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(rootCtx),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Printf("Starting tallybook-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("Shutting down...")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
