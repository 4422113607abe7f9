package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/config"
	"github.com/iliyamo/button-game/internal/database"
	"github.com/iliyamo/button-game/internal/handler"
	"github.com/iliyamo/button-game/internal/logger"
	"github.com/iliyamo/button-game/internal/middleware"
	"github.com/iliyamo/button-game/internal/payment"
	"github.com/iliyamo/button-game/internal/queue"
	"github.com/iliyamo/button-game/internal/repository"
	"github.com/iliyamo/button-game/internal/router"
	"github.com/iliyamo/button-game/internal/service"
	"github.com/iliyamo/button-game/internal/view"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	zl := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Development: cfg.Log.Development})
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		zl.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := database.Migrate(mctx, db)
		cancel()
		if err != nil {
			zl.Fatal("migration failed", zap.Error(err))
		}
		zl.Info("schema applied")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn("redis disabled or unreachable; rate limiting and caching are off")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	clicks := repository.NewClickRepo(db)
	profiles := repository.NewProfileRepo(db)
	webhooks := repository.NewWebhookEventRepo(db)

	// The publisher must stay a nil interface when the queue is off.
	var publisher service.EventPublisher
	if cfg.Queue.Enabled {
		publisher = queue.NewPublisher(cfg.Queue.URL, zl.Named("queue"))
		consumer := queue.NewConsumer(cfg.Queue.URL, "logs", zl)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("premium consumer stopped", zap.Error(err))
			}
		}()
	}

	gateway := payment.NewStripeGateway(cfg.Stripe, zl.Named("payment"))

	accounts := service.NewAccountService(users, cfg.BcryptCost, zl.Named("accounts"))
	sessions := service.NewSessionService(tokens, users, cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays, zl.Named("sessions"))
	clickSvc := service.NewClickService(clicks, zl.Named("clicks"))
	board := service.NewLeaderboardService(clicks)
	payments := service.NewPaymentService(profiles, users, webhooks, gateway, publisher, zl.Named("payments"))

	cookies := middleware.CookieOptions{Secure: cfg.CookieSecure}

	e := echo.New()
	e.HideBanner = true
	e.Renderer = view.MustNew()

	router.UseCommon(e, router.Common{
		Sessions:      sessions,
		Cookies:       cookies,
		SessionSecret: cfg.SessionSecret,
		Log:           zl.Named("http"),
	})
	router.RegisterRoutes(e, handler.Health(db))
	router.RegisterAuth(e, handler.NewAuthHandler(accounts, sessions, cookies, zl.Named("auth")))
	router.RegisterGame(e,
		handler.NewGameHandler(clickSvc, board, payments, zl.Named("game")),
		handler.NewLeaderboardHandler(board, zl.Named("leaderboard")),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl.Named("ratelimit")),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, zl.Named("cache")),
	)
	router.RegisterPayment(e, handler.NewPaymentHandler(payments, accounts, cfg.BaseURL, zl.Named("payment")))

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
	payments.Wait()
}
