// Package main запускает HTTP-сервер портала фестиваля.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/festival-portal/internal/config"
	"github.com/mmeshcher/festival-portal/internal/handler"
	"github.com/mmeshcher/festival-portal/internal/middleware"
	"github.com/mmeshcher/festival-portal/internal/notify"
	"github.com/mmeshcher/festival-portal/internal/observability"
	"github.com/mmeshcher/festival-portal/internal/repository"
	"github.com/mmeshcher/festival-portal/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observability.Register(reg)

	mailer := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.Timeout)
	dispatcher := notify.NewDispatcher(repo, mailer, cfg.SiteURL, logger)

	svc := service.NewService(repo, service.Options{
		Gateway:    cfg.Gateway(),
		Fee:        cfg.RegistrationFee,
		Currency:   cfg.Currency,
		ReturnURL:  cfg.SiteURL + "/thepay/callback",
		CancelURL:  cfg.SiteURL + "/",
		InviteCode: cfg.StaffInviteCode,
		Notifier:   dispatcher,
		Logger:     logger,
	}, dispatcher)
	defer svc.Close()

	staffAuth := middleware.NewStaffAuth(cfg.StaffSecret)
	h := handler.NewHandler(svc, logger, staffAuth, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting festival portal", "addr", cfg.RunAddress, "gate", cfg.ThePay.GateURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
