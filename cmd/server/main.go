package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cargodesk/backend/internal/cache"
	"cargodesk/backend/internal/config"
	"cargodesk/backend/internal/httpapi"
	"cargodesk/backend/internal/invoice"
	"cargodesk/backend/internal/masterdata"
	"cargodesk/backend/internal/service"
	"cargodesk/backend/internal/store"
	"cargodesk/backend/internal/store/memory"
	mongostore "cargodesk/backend/internal/store/mongo"
	pgstore "cargodesk/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	switch cfg.StoreKind() {
	case "postgres":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.RunMigrations {
			if err := pg.Migrate(); err != nil {
				log.Fatalf("migrations failed: %v", err)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	case "mongo":
		mg, err := mongostore.New(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("mongo unavailable (%v) and MONGO_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := mg.EnsureIndexes(ctx); err != nil {
			log.Printf("mongo index setup failed: %v", err)
		}
		repo = mg
		closers = append(closers, mg.Close)
		log.Println("repository: mongo")
	default:
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	lookupCache := cache.LookupCache(cache.NewMemoryLookupCache())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisLookupCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-process cache", err)
		} else {
			lookupCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: in-process")
	}

	loader := masterdata.NewLoader(repo, lookupCache, time.Duration(cfg.LookupCacheTTLSeconds)*time.Second)
	svc := service.New(repo, loader, invoice.NewAllocator(repo), cfg.DefaultBranchID, cfg.DefaultVATPercentage)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("cargo backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.DefaultBranchID < 1 {
		return fmt.Errorf("DEFAULT_BRANCH_ID must be a positive branch id")
	}
	return nil
}
