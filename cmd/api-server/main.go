package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bigbag/internal/api"
	"bigbag/internal/auth"
	"bigbag/internal/cache"
	"bigbag/internal/config"
	"bigbag/internal/credits"
	"bigbag/internal/media"
	"bigbag/internal/notify"
	"bigbag/internal/scheduler"
	"bigbag/internal/shares"
	"bigbag/internal/shops"
	"bigbag/internal/store/mongostore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	slog.Info("Starting BigBag API", "port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(closeCtx)
	}()
	if err := st.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	slog.Info("Connected to MongoDB", "db", cfg.MongoDB)

	redisClient, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	slog.Info("Connected to Redis", "addr", cfg.RedisAddr)

	notifier := notify.NewNotifier(st, notify.NewExpo(cfg.ExpoPushURL, cfg.PushEnabled))
	creditSvc := credits.NewService(st, notifier)
	shareSvc := shares.NewService(st, redisClient, cfg.LeaderboardCacheTTL)
	shopSvc := shops.NewService(st, creditSvc, notifier, cfg.WelcomeRolls)

	storage, err := media.NewStorage(cfg.UploadDir, cfg.MaxUploadMB<<20, cfg.PublicURL)
	if err != nil {
		return err
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	handler := api.NewHandler(api.Options{
		Store:          st,
		Cache:          redisClient,
		Tokens:         tokens,
		OTP:            auth.NewOTP(redisClient, auth.LogSender{}, cfg.OTPTTL),
		Credits:        creditSvc,
		Shares:         shareSvc,
		Shops:          shopSvc,
		Media:          storage,
		Notifier:       notifier,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AuthRateLimit:  cfg.AuthRateLimit,
	})

	sched, err := scheduler.New(st, shareSvc, cfg.ShareRetentionWeeks)
	if err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		slog.Error("Scheduler shutdown", "error", err)
	}
	notifier.Wait()
	return nil
}
