package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/actuallystonmai/streamfront/internal/config"
	"github.com/actuallystonmai/streamfront/internal/domain"
	"github.com/actuallystonmai/streamfront/internal/handler"
	"github.com/actuallystonmai/streamfront/internal/logging"
	"github.com/actuallystonmai/streamfront/internal/presence"
	"github.com/actuallystonmai/streamfront/internal/proxy"
	"github.com/actuallystonmai/streamfront/internal/router"
	"github.com/actuallystonmai/streamfront/internal/service"
	"github.com/actuallystonmai/streamfront/internal/storage"
	"github.com/actuallystonmai/streamfront/internal/upstream"
	"github.com/actuallystonmai/streamfront/seeds"
)

const redisKeyPrefix = "streamfront:"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config %v", err)
	}
	logFile := logging.Setup(cfg.LogFile)
	defer logFile.Close()

	ctx := context.Background()
	var checks []handler.Checker

	// ------------ Redis ---------------
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to parse redis url %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis %v", err)
		}
		log.Println("connected to Redis")
		checks = append(checks, handler.Checker{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	// ------------ List store backend ---------------
	var store storage.Backend
	switch cfg.StoreBackend {
	case storage.BackendPostgres:
		pool, err := openPostgres(ctx, cfg)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer pool.Close()

		// for migrate-down using CLI command
		if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
			if err := migrateDown(ctx, pool); err != nil {
				log.Fatalf("failed to migrate down %v", err)
			}
			log.Println("migrations dropped")
			return
		}
		if err := migrateUp(ctx, pool); err != nil {
			log.Fatalf("failed to migrate up %v", err)
		}
		store = storage.NewPostgres(pool)
	case storage.BackendRedis:
		store = storage.NewRedis(rdb, redisKeyPrefix)
	case storage.BackendFile:
		store, err = storage.NewFile(afero.NewOsFs(), cfg.StoreDir)
		if err != nil {
			log.Fatalf("failed to open store dir %v", err)
		}
	default:
		log.Println("using in-memory list store; lists are lost on restart")
		store = storage.NewMemory()
	}
	checks = append(checks, handler.Checker{Name: "store", Check: store.Ping})

	// ------------ Presence broker ---------------
	var broker presence.Broker
	if cfg.PresenceBackend == "redis" {
		broker = presence.NewRedisBroker(rdb)
	} else {
		broker = presence.NewHub()
	}

	svc := service.NewService(store)

	// ------------ Setup Seed Data ---------------
	if cfg.SeedDemo {
		if err := checkSeed(ctx, svc); err != nil {
			log.Fatalf("failed to check seed %v", err)
		}
	}

	// ---------------- Server --------------------
	h := handler.NewHandler(svc, broker, handler.Options{
		Features: domain.ClientConfig{
			AdsEnabled:      cfg.Features.AdsEnabled,
			PresenceEnabled: cfg.Features.PresenceEnabled,
		},
		OriginPatterns: originPatterns(cfg.AllowedOrigins),
		Checks:         checks,
	})
	p := proxy.New(proxy.Config{
		ShortenerURL:   cfg.Proxy.ShortenerURL,
		ShortenerToken: cfg.Proxy.ShortenerToken,
		VideoInfoURL:   cfg.Proxy.VideoInfoURL,
		RapidAPIKey:    cfg.Proxy.RapidAPIKey,
		RapidAPIHost:   cfg.Proxy.RapidAPIHost,
		AllowedHosts:   cfg.Proxy.AllowedHosts,
	}, upstream.NewClient(cfg.UpstreamTimeout), upstream.NewClientWith(&http.Client{}))

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.Setup(h, p, router.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server running on %s (store=%s, presence=%s)", cfg.Addr(), cfg.StoreBackend, cfg.PresenceBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-done
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = srv.Close()
	}
	log.Println("server stopped")
}

func openPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %w", err)
	}
	if err := waitForDB(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	log.Println("connected to PostgreSQL")
	return pool, nil
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		log.Printf("waiting for database... (%d/30)", i+1)
		time.Sleep(1 * time.Second)
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func migrateDown(ctx context.Context, pool *pgxpool.Pool) error {
	sql, err := os.ReadFile("migrations/create_tables.down.sql")
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	log.Println("migrations dropped successfully")
	return nil
}

func migrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	sql, err := os.ReadFile("migrations/create_tables.up.sql")
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	log.Println("migrations applied successfully")
	return nil
}

func checkSeed(ctx context.Context, svc *service.Service) error {
	need, err := seeds.NeedsSeed(ctx, svc)
	if err != nil {
		return fmt.Errorf("check demo session: %w", err)
	}
	if !need {
		log.Printf("demo session %q already seeded, skipping", seeds.DemoSession)
		return nil
	}
	return seeds.Setup(ctx, svc)
}

// originPatterns converts CORS origins to WebSocket host patterns.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
