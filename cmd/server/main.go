package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/database"
	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/jobs"
	"github.com/iliyamo/event-ticket-booking/internal/lock"
	"github.com/iliyamo/event-ticket-booking/internal/logger"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/router"
	"github.com/iliyamo/event-ticket-booking/internal/service"
	"github.com/iliyamo/event-ticket-booking/internal/validation"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if _, err := logger.Init(cfg.Env, "logs"); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database open failed", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// The seat lock is load-bearing for hold admission; without Redis the
	// database would take the full brunt of seat contention.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Error("redis unavailable, refusing to start without the seat lock")
		os.Exit(1)
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepo(db)
	eventRepo := repository.NewEventRepo(db)
	eventSeatRepo := repository.NewEventSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)

	seatLock := lock.NewSeatLock(rdb, time.Duration(cfg.SeatLockTTLSeconds)*time.Second)
	gateway := payment.NewClient(cfg.PaymentKeyID, cfg.PaymentKeySecret)
	notifier := service.NewQueueNotifier(bookingRepo, userRepo)

	holdWindow := time.Duration(cfg.BookingHoldMinutes) * time.Minute
	coordinator := service.NewBookingCoordinator(seatLock, bookingRepo, uint64(cfg.SeatPriceCents), holdWindow)
	reconciler := service.NewPaymentReconciler(bookingRepo, paymentRepo, gateway, seatLock, notifier)

	sweeper := jobs.NewExpirySweeper(bookingRepo, seatLock, time.Duration(cfg.SweepIntervalSeconds)*time.Second)
	sweeper.Start()
	defer sweeper.Stop()

	go queue.StartTicketConsumer()

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	authHandler := handler.NewAuthHandler(cfg, userRepo)
	eventHandler := handler.NewEventHandler(eventRepo, eventSeatRepo)
	bookingHandler := handler.NewBookingHandler(coordinator, reconciler, bookingRepo, eventRepo)
	paymentHandler := handler.NewPaymentHandler(reconciler, cfg.PaymentWebhookSecret)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, eventHandler)
	router.RegisterBooking(e, bookingHandler, paymentHandler, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server start failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
