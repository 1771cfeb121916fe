package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/punchamoorthee/voucherdesk/internal/api"
	"github.com/punchamoorthee/voucherdesk/internal/config"
	"github.com/punchamoorthee/voucherdesk/internal/form"
	"github.com/punchamoorthee/voucherdesk/internal/gateway"
	"github.com/punchamoorthee/voucherdesk/internal/logger"
	"github.com/punchamoorthee/voucherdesk/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zlog := logger.New(cfg.LogLevel)
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := gateway.New(cfg.BackendBaseURL, cfg.BackendTimeout, zlog.Named("gateway"))
	if err != nil {
		zlog.Fatal("invalid backend configuration", zap.Error(err))
	}

	// Initialize Layers
	holder := session.NewHolder(backend, zlog.Named("session"))
	go holder.Poll(ctx, cfg.SessionPollInterval)

	controller := form.NewController(backend, holder, zlog.Named("form"))
	handler := api.NewHandler(holder, controller, form.NewRegistry(), zlog.Named("api"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zlog.Info("voucher desk starting",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("backend", cfg.BackendBaseURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Fatal("server failed", zap.Error(err))
	}
}
