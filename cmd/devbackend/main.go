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

	"github.com/punchamoorthee/voucherdesk/internal/config"
	"github.com/punchamoorthee/voucherdesk/internal/devbackend"
	"github.com/punchamoorthee/voucherdesk/internal/logger"
	"github.com/punchamoorthee/voucherdesk/internal/service"
	"github.com/punchamoorthee/voucherdesk/internal/store"
)

const sessionTTL = 8 * time.Hour

func main() {
	cfg, err := config.LoadBackend()
	if err != nil {
		log.Fatal(err)
	}
	zlog := logger.New(cfg.LogLevel)
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(cfg.DBSource)
	if err != nil {
		zlog.Fatal("unable to connect to database", zap.Error(err))
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}

	// Initialize Layers
	vouchers := service.NewVoucherService(st.Db)
	server := devbackend.NewServer(st, vouchers, devbackend.NewSessions(sessionTTL), zlog)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zlog.Info("development backend starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Fatal("server failed", zap.Error(err))
	}
}
