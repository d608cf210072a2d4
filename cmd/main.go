package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mstgnz/mediapay/handler"
	"github.com/mstgnz/mediapay/infra/config"
	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/infra/middle"
	"github.com/mstgnz/mediapay/infra/opensearch"
	"github.com/mstgnz/mediapay/infra/storage/postgres"
	"github.com/mstgnz/mediapay/infra/storage/sqlite"
	"github.com/mstgnz/mediapay/order"
	"github.com/mstgnz/mediapay/payment"
	"github.com/mstgnz/mediapay/provider"
	"github.com/mstgnz/mediapay/router"
	v1 "github.com/mstgnz/mediapay/router/v1"

	_ "github.com/mstgnz/mediapay/provider/onepay"
	_ "github.com/mstgnz/mediapay/provider/stripe"
	_ "github.com/mstgnz/mediapay/provider/vnpay"
)

// store is what the payment subsystem needs from a storage backend
type store interface {
	order.Repository
	order.TransactionRepository
	handler.Pinger
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.GetAppConfig()

	var audit *opensearch.Logger
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opensearch disabled: %v\n", err)
		} else {
			audit = opensearch.NewLogger(osClient)
		}
	}
	if audit != nil {
		logger.InitGlobalLogger(audit)
	} else {
		logger.InitGlobalLogger(nil)
	}
	defer func() { _ = logger.GetGlobalLogger().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", err, logger.LogContext{
			Fields: map[string]any{"driver": cfg.DBDriver},
		})
	}
	defer closeDB()

	providerConfig := config.NewProviderConfig()
	if err := providerConfig.LoadFromEnv(); err != nil {
		logger.Fatal("Failed to load provider configuration", err)
	}
	gateways, err := provider.Build(providerConfig.All())
	if err != nil {
		logger.Fatal("Failed to build payment gateways", err)
	}
	logger.Info("Payment gateways ready", logger.LogContext{
		Fields: map[string]any{"providers": gateways.Providers()},
	})

	var auditSink payment.AuditSink = payment.NopAudit{}
	if audit != nil {
		auditSink = audit
	}
	reconciler := payment.NewReconciler(db, db, gateways,
		payment.WithAudit(auditSink),
		payment.WithNotifier(payment.LogNotifier{}),
		payment.WithRefundPolicy(cfg.OperatorID, cfg.RefundTimeout, cfg.RefundRetries),
	)
	service := payment.NewService(gateways, db, db, reconciler, auditSink)

	handlers := v1.Handlers{
		Payment: handler.NewPaymentHandler(service, config.App().Validator),
		Orders:  handler.NewOrderHandler(service),
	}
	if audit != nil {
		handlers.Audit = handler.NewAuditHandler(audit)
	}

	limiter := middle.NewRateLimiter(cfg.RateLimit, time.Minute)
	go limiter.Run(ctx)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Options{
			APIKey:          cfg.APIKey,
			AllowedOrigins:  cfg.AllowedOrigins,
			RateLimiter:     limiter,
			NotificationIPs: config.GetListEnv("IPN_ALLOWED_IPS", nil),
			Health:          handler.NewHealthHandler(db, cfg.DBDriver, gateways, cfg.Environment),
		}, handlers),
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server stopped", err)
		}
	}()
	logger.Info("API is running", logger.LogContext{
		Fields: map[string]any{"port": cfg.Port, "environment": cfg.Environment},
	})

	<-ctx.Done()
	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}

func openStore(ctx context.Context, cfg *config.AppConfig) (store, func(), error) {
	switch cfg.DBDriver {
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite", "":
		s, err := sqlite.Open(cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("Failed to close database", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
