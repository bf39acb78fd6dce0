package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/greenbasket/shop/internal/cart"
	"github.com/greenbasket/shop/internal/config"
	"github.com/greenbasket/shop/internal/httpserver"
	"github.com/greenbasket/shop/internal/models"
	"github.com/greenbasket/shop/internal/mykafka"
	"github.com/greenbasket/shop/internal/order"
	"github.com/greenbasket/shop/internal/payment"
	"github.com/greenbasket/shop/pkg/db"
	"github.com/greenbasket/shop/pkg/logging"
	loggingmw "github.com/greenbasket/shop/pkg/middleware/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	ctx := context.Background()
	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	prod := mykafka.NewProducer(cfg.KafkaBrokers)

	gateway := payment.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayKeyID, cfg.GatewaySecret)

	cartRepo := &cart.GormRepo{DB: gdb}
	orderRepo := &order.GormRepo{DB: gdb}

	paymentSvc := &payment.Service{
		DB:        gdb,
		Gateway:   gateway,
		Secret:    []byte(cfg.GatewaySecret),
		Currency:  cfg.Currency,
		Publisher: prod,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:        gdb,
		JWTSecret: cfg.JWTAccessSecret,
		CartHandler: &httpserver.CartHTTP{
			Svc: &cart.Service{Repo: cartRepo, Publisher: prod},
		},
		OrderHandler: &httpserver.OrderHTTP{
			Factory: &order.Factory{
				Repo:      orderRepo,
				Policy:    order.ZeroPricing{},
				Prefix:    cfg.OrderNumberPrefix,
				Publisher: prod,
			},
			Svc:      &order.Service{Repo: orderRepo},
			Payments: paymentSvc,
		},
		PaymentHandler: &httpserver.PaymentHTTP{Svc: paymentSvc},
		AdminHandler: &httpserver.AdminHTTP{
			Machine:  &order.StatusMachine{DB: gdb, Publisher: prod},
			Payments: paymentSvc,
		},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "port", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
