package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pinokio-social/pinokio/credibility/cachestore"
	"github.com/pinokio-social/pinokio/credibility/countstore"
	"github.com/pinokio-social/pinokio/credibility/engine"
	"github.com/pinokio-social/pinokio/credibility/evaluation"
	"github.com/pinokio-social/pinokio/credibility/modestore"
	"github.com/pinokio-social/pinokio/credibility/monitor"
	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/util"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type Server struct {
	engine          *engine.Engine
	echo            *echo.Echo
	httpd           *http.Server
	logger          *slog.Logger
	adminToken      string
	monitorInterval time.Duration
}

type Config struct {
	Logger          *slog.Logger
	Bind            string
	RedisURL        string
	SlackWebhookURL string
	AdminToken      string
	Monitor         monitor.Config
	Policy          evaluation.Policy
	// when non-zero, review-bombing checks run on this interval instead of inline on ingestion
	MonitorInterval time.Duration
	// per-client requests per second on evaluation and report submission; zero disables
	SubmitRateLimit float64
	// defaults to prometheus.DefaultRegisterer
	MetricsRegisterer prometheus.Registerer
}

// Builds the credibility engine over the given database. With a redis URL
// configured, the moderation mode, counters and author cache live in redis so
// that several instances share them; otherwise the mode is kept in the
// database and counters and cache are process-local.
func NewEngine(db *gorm.DB, config Config) (*engine.Engine, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var modes modestore.ModeStore
	var counters countstore.CountStore
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		mds, err := modestore.NewRedisModeStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis modestore: %v", err)
		}
		modes = mds

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 10*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else {
		modes = modestore.NewGormModeStore(db)
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 10*time.Minute)
	}

	st := store.NewGormStore(db)
	cfg := engine.DefaultConfig()
	cfg.Logger = logger
	cfg.Monitor = config.Monitor
	if config.Policy != "" {
		cfg.Policy = config.Policy
	}
	cfg.BackgroundMonitor = config.MonitorInterval > 0
	cfg.Authors = store.NewCachedAuthors(st, cache, logger)
	if config.SlackWebhookURL != "" {
		logger.Info("configuring slack notifications")
		cfg.Notifier = &engine.SlackNotifier{
			SlackWebhookURL: config.SlackWebhookURL,
			Client:          util.RobustHTTPClient(logger),
		}
	}
	return engine.NewEngine(st, modes, counters, cfg), nil
}

func NewServer(eng *engine.Engine, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	reg := config.MetricsRegisterer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		engine:          eng,
		echo:            e,
		logger:          logger,
		adminToken:      config.AdminToken,
		monitorInterval: config.MonitorInterval,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "pinokio",
		Registerer: reg,
	}))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	var submitLimit []echo.MiddlewareFunc
	if config.SubmitRateLimit > 0 {
		limiter := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(config.SubmitRateLimit),
			Burst:     max(1, int(math.Ceil(config.SubmitRateLimit))),
			ExpiresIn: 5 * time.Minute,
		})
		submitLimit = append(submitLimit, middleware.RateLimiter(limiter))
	}

	e.GET("/_health", srv.HandleHealthCheck)

	api := e.Group("/api")
	api.POST("/posts", srv.HandleCreatePost)
	api.GET("/posts/:id", srv.HandleGetPost)
	api.PUT("/posts/:id/evaluate", srv.HandleReevaluatePost)
	api.GET("/status/:externalID", srv.HandlePostStatus)
	api.POST("/status", srv.HandleBatchStatus)
	api.POST("/evaluations", srv.HandleSubmitEvaluation, submitLimit...)
	api.POST("/reports", srv.HandleSubmitReport, submitLimit...)

	admin := e.Group("/admin", srv.adminAuth())
	admin.GET("/moderation-mode", srv.HandleGetModerationMode)
	admin.POST("/moderation-mode/reset", srv.HandleResetModerationMode)
	admin.POST("/moderation-mode/activate", srv.HandleActivateModerationMode)
	admin.POST("/monitor/check", srv.HandleMonitorCheck)
	admin.GET("/stats", srv.HandleStats)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if srv.monitorInterval > 0 {
		go func() {
			if err := srv.engine.Monitor.Run(ctx, srv.monitorInterval); err != nil && !errors.Is(err, context.Canceled) {
				srv.logger.Error("background monitor stopped", "err", err)
			}
		}()
	}

	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	srv.logger.Info("registering OS exit signal handler")
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)

		// stop the monitor before the HTTP server, so no check starts mid-shutdown
		cancel()

		// Shut down the HTTP server
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}

		// Trigger the return that causes an exit.
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
