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

	"live-auction/internal/api/handlers"
	apimw "live-auction/internal/api/middleware"
	"live-auction/internal/config"
	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/auth"
	"live-auction/internal/infrastructure/leader"
	"live-auction/internal/infrastructure/memory"
	"live-auction/internal/infrastructure/mysql"
	rediscache "live-auction/internal/infrastructure/redis"
	"live-auction/internal/infrastructure/websocket"
	"live-auction/internal/services"
	"live-auction/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}
	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting live auction service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	// Only the lease holder runs the engine; everyone else waits here.
	election := leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Instance.ID, cfg.Leader.TTL, log)
	campaignCtx, stopCampaign := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if err := election.Campaign(campaignCtx); err != nil {
		stopCampaign()
		log.Info("Stopped before acquiring leadership", "error", err)
		return
	}
	stopCampaign()
	log.Info("Became auction leader", "instance_id", cfg.Instance.ID)

	connections := websocket.NewConnectionManager(log)
	engine := services.NewAuctionEngine(store, rediscache.NewRedisBidCache(rdb), connections, services.EngineConfig{
		GracePeriod:         cfg.Engine.GracePeriod,
		CASMaxRetries:       cfg.Engine.CASMaxRetries,
		StartRetryDelay:     cfg.Engine.StartRetryDelay,
		BidStateTTL:         cfg.Engine.BidStateTTL,
		AllowSelfRaise:      cfg.Engine.AllowSelfRaise,
		ReconcileSpec:       cfg.Engine.ReconcileSpec,
		StoreRetryInterval:  cfg.StoreRetry.Interval,
		StoreRetryMaxWindow: cfg.StoreRetry.MaxWindow,
	}, log)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.Start(startCtx); err != nil {
		cancelStart()
		log.Fatal("Failed to start auction engine", "error", err)
	}
	cancelStart()

	authenticator := newAuthenticator(cfg, log)

	e := echo.New()
	e.HideBanner = true
	e.Validator = apimw.NewRequestValidator()

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-User-ID",
		},
		MaxAge: 86400,
	}))

	// API routes
	api := e.Group("/api/v1/auctions", apimw.Authenticate(authenticator, log))
	handlers.NewAuctionHandler(engine.Lifecycle, log).Register(api)

	wsOptions := websocket.Options{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}
	wsHandler := websocket.NewHandler(engine, authenticator, connections, wsOptions, log)
	handlers.NewWebSocketHandlers(wsHandler).Register(e)

	e.GET("/health", func(c echo.Context) error {
		status, body := health(engine, election, connections, cfg)
		return c.JSON(status, body)
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting auction server", "address", serverAddr)
	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal or a lost lease
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down live auction service", "signal", sig.String())
	case <-election.Lost():
		log.Error("Leadership lost, shutting down", "instance_id", cfg.Instance.ID)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	connections.CloseAll()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	engine.Stop(shutdownCtx)
	if err := election.Resign(shutdownCtx); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := rdb.Close(); err != nil {
		log.Error("Failed to close Redis client", "error", err)
	}

	log.Info("Live auction service stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.AuctionStore, func()) {
	if cfg.Store.Driver == "memory" {
		log.Warn("Using in-memory store, auctions are lost on restart")
		return memory.NewStore(), func() {}
	}

	db, err := mysql.Open(ctx, cfg.MySQL.DSN, mysql.PoolOptions{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("Failed to connect to MySQL", "error", err)
	}
	log.Info("Connected to MySQL")

	return mysql.NewStore(db), func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}
}

func newAuthenticator(cfg *config.Config, log logger.Logger) domain.Authenticator {
	if cfg.Auth.JWTSecret == "" {
		log.Warn("No JWT secret configured, trusting client supplied user ids")
		return auth.NewHeaderAuthenticator()
	}
	return auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
}

func health(engine *services.AuctionEngine, election domain.LeaderElection, connections *websocket.ConnectionManager, cfg *config.Config) (int, map[string]interface{}) {
	body := map[string]interface{}{
		"status":      "ok",
		"service":     "live-auction",
		"instance_id": cfg.Instance.ID,
		"timestamp":   time.Now().Format(time.RFC3339),
		"live_rooms":  engine.Rooms.Count(),
		"connections": connections.Count(),
		"pending":     engine.Writer.Pending(),
	}
	status := http.StatusOK
	if err := engine.Health(); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["error"] = err.Error()
	}
	if !election.IsLeader() {
		status = http.StatusServiceUnavailable
		body["status"] = "not_leader"
	}
	return status, body
}
