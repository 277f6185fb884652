package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tradeking/tradeking-api/configs"
	"github.com/tradeking/tradeking-api/internal/account"
	"github.com/tradeking/tradeking-api/internal/agent"
	"github.com/tradeking/tradeking-api/internal/auth"
	"github.com/tradeking/tradeking-api/internal/database"
	"github.com/tradeking/tradeking-api/internal/decision"
	"github.com/tradeking/tradeking-api/internal/health"
	"github.com/tradeking/tradeking-api/internal/market"
	"github.com/tradeking/tradeking-api/internal/performance"
	"github.com/tradeking/tradeking-api/internal/portfolio"
	"github.com/tradeking/tradeking-api/internal/scheduler"
	"github.com/tradeking/tradeking-api/internal/storage"
	"github.com/tradeking/tradeking-api/pkg/middleware"
)

const version = "0.1.0"

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

type handlers struct {
	auth        *auth.GinHandlers
	decision    *decision.GinHandlers
	portfolio   *portfolio.GinHandlers
	performance *performance.GinHandlers
	health      *health.GinHandlers
}

// main wires the ledger, agent and storage together and serves the API
// until SIGINT or SIGTERM
func main() {
	cfg, err := configs.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}
	store := storage.NewDatabase(db)

	acct, err := account.Load(cfg.Account.File)
	if err != nil {
		zlog.Fatal().Err(err).Str("path", cfg.Account.File).Msg("Failed to load account")
	}

	var source market.Source
	if cfg.Longbridge.AccessToken != "" {
		client, err := market.NewLongbridgeClient(cfg.Longbridge)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to create market data client")
		}
		source = client
	} else {
		zlog.Warn().Msg("LONGBRIDGE_ACCESS_TOKEN not set, running without market data")
	}

	var loader *agent.ContextLoader
	if source != nil {
		loader = agent.NewContextLoader(source, acct, cfg.WatchList)
	}
	tradeAgent := agent.New(cfg.Agent, agent.NewModelDispatcher(cfg.Agent), loader)

	decisionService := decision.NewService(decision.Config{
		Agent:       tradeAgent,
		Account:     acct,
		AccountFile: cfg.Account.File,
		Prices:      source,
		Store:       store,
		Settings:    cfg.Agent,
	})

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(decisionService, cfg.Scheduler.Interval, cfg.Agent.Timeout+cfg.Longbridge.Timeout, decision.RunRequest{})
		if err := sched.Start(); err != nil {
			zlog.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	authService := auth.NewService(cfg.Auth.JWTSecret)
	if cfg.Auth.APIKey != "" && cfg.Auth.APISecret != "" {
		authService.RegisterAPICredentials(cfg.Auth.APIKey, cfg.Auth.APISecret)
	} else if !cfg.Server.Production() {
		zlog.Warn().Msg("API_KEY/API_SECRET not set, registering development credentials")
		authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)
	}

	var schedulerRunning func() bool
	if sched != nil {
		schedulerRunning = sched.Running
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RateLimit())

	setupRoutes(router, cfg.Auth.JWTSecret, handlers{
		auth:        auth.NewGinHandlers(authService),
		decision:    decision.NewGinHandlers(decisionService),
		portfolio:   portfolio.NewGinHandlers(portfolio.NewService(acct, source, store)),
		performance: performance.NewGinHandlers(store),
		health:      health.NewGinHandlers(version, store, schedulerRunning),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		zlog.Info().Str("addr", srv.Addr).Str("model", cfg.Agent.ModelChoice.String()).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := acct.Save(cfg.Account.File); err != nil {
		zlog.Error().Err(err).Msg("Failed to save account on shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// Decision execution and raw trade submission require a JWT; reads are public.
func setupRoutes(router *gin.Engine, jwtSecret string, h handlers) {
	api := router.Group("/api")

	api.GET("/health", h.health.HealthHandler())

	v1 := api.Group("/v1")
	{
		v1.POST("/auth/token", h.auth.GenerateTokenHandler())
	}

	decisions := api.Group("/decisions")
	{
		decisions.POST("/execute", middleware.JWTAuth(jwtSecret), h.decision.ExecuteHandler())
		decisions.POST("/trades", middleware.JWTAuth(jwtSecret), h.decision.SubmitTradesHandler())
		decisions.GET("/latest", h.decision.LatestHandler())
		decisions.GET("/:decision_id", h.decision.GetHandler())
		decisions.GET("", h.decision.ListHandler())
	}

	models := api.Group("/models")
	{
		models.GET("/performance", h.performance.ListHandler())
		models.GET("/performance/:model_choice", h.performance.GetHandler())
	}

	pf := api.Group("/portfolio")
	{
		pf.GET("/account", h.portfolio.AccountHandler())
		pf.GET("/positions", h.portfolio.PositionsHandler())
		pf.GET("/orders", h.portfolio.OrdersHandler())
		pf.GET("/assets", h.portfolio.AssetsHandler())
		pf.GET("/latest", h.portfolio.LatestSnapshotHandler())
		pf.GET("/equity-curve", h.portfolio.EquityCurveHandler())
	}
}
