package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"registrar/clearance/internal/auth"
	"registrar/clearance/internal/clearance"
	"registrar/clearance/internal/config"
	"registrar/clearance/internal/db"
	"registrar/clearance/internal/events"
	internalhttp "registrar/clearance/internal/http"
	"registrar/clearance/internal/jobs"
	"registrar/clearance/internal/notify"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	store := db.NewStore(pool)

	var publisher events.Publisher
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		publisher = events.NewRedisPublisher(redisClient, "")
	}

	var notifier notify.Notifier
	if cfg.SMSGatewayURL != "" {
		notifier = notify.NewSMSNotifier(cfg.SMSGatewayURL, cfg.SMSGatewayToken, cfg.SMSSenderID)
	}

	tokens := auth.NewPermitTokens(cfg.PermitTokenSecret, cfg.JWTIssuer)
	svc := clearance.NewService(store, publisher, tokens, notifier, cfg.FrontendBaseURL)

	jobs.StartPermitExpirySweep(ctx, cfg, store)
	jobs.StartRevocationSweep(ctx, cfg, svc)
	jobs.StartDeadlineSweep(ctx, cfg, store)

	server := internalhttp.NewServer(cfg, svc)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("clearance http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
