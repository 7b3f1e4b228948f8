package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/catcity/internal/api"
	"github.com/nidhogg/catcity/internal/command"
	"github.com/nidhogg/catcity/internal/config"
	"github.com/nidhogg/catcity/internal/game"
	"github.com/nidhogg/catcity/internal/gateway"
	msgrouter "github.com/nidhogg/catcity/internal/router"
	"github.com/nidhogg/catcity/internal/social"
	"github.com/nidhogg/catcity/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/catcity.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger = newLogger(cfg.Server.LogLevel, logger)
	defer logger.Sync()

	logger.Info("Starting Cat City...", zap.String("config", cfgPath))

	g, err := game.New(cfg.Simulation, logger)
	if err != nil {
		logger.Fatal("failed to build simulation", zap.Error(err))
	}
	ctx := context.Background()

	// Feed history: Postgres when configured, SQLite otherwise.
	var recorder store.Recorder
	var pgStore *store.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := store.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			recorder = ps
		}
	}
	if recorder == nil && cfg.Database.SQLite.Path != "" {
		ls, sqlErr := store.OpenSQLite(cfg.Database.SQLite.Path, logger)
		if sqlErr != nil {
			logger.Warn("SQLite unavailable, running without history", zap.Error(sqlErr))
		} else {
			recorder = ls
		}
	}
	if recorder != nil {
		g.Attach(recorder)
	}

	var journal *store.Journal
	if cfg.Database.Journal.Dir != "" {
		journal = store.NewJournal(cfg.Database.Journal.Dir, "feed")
		g.Attach(journal)
	}

	var relations *social.Graph
	if cfg.Database.Neo4j.URI != "" {
		driver, nErr := social.Connect(ctx, cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password)
		if nErr != nil {
			logger.Warn("Neo4j unavailable, running without relations", zap.Error(nErr))
		} else {
			relations = social.NewGraph(driver, social.DefaultConfig(), logger)
			relations.Schedule(g.Clock)
			g.Attach(relations)
		}
	}

	// Gateway
	gw := gateway.NewGateway(logger)

	reg := command.NewRegistry()
	command.RegisterBuiltins(reg, gw)
	command.RegisterPlayer(reg, g.Player)
	command.RegisterChat(reg, g.Chat, g.Presence)
	command.RegisterWorld(reg, g.Presence, g.Events)

	msgRouter := msgrouter.New(gw, g.Chat, reg, logger)
	gw.SetHandler(msgRouter.Handle)

	restAdapter := gateway.NewRESTAdapter(logger)
	gw.Register(restAdapter)

	var wsAdapter *gateway.WebSocketAdapter
	if cfg.Gateway.WebSocket.Enabled {
		wsAdapter = gateway.NewWebSocketAdapter(logger)
		gw.Register(wsAdapter)
		interval := config.Millis(cfg.Gateway.WebSocket.SnapshotIntervalMs)
		g.Clock.AddListener(gateway.NewSnapshotPublisher(wsAdapter, func() any { return g.Snapshot() }, interval, logger))
	}

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}

	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, cfg.Gateway.Discord.ChannelID, logger))
	}

	if cfg.Database.Redis.URL != "" {
		feed, rErr := gateway.NewRedisFeed(cfg.Database.Redis.URL, cfg.Database.Redis.Stream, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, running without feed stream", zap.Error(rErr))
		} else {
			gw.Register(feed)
			g.Attach(feed)
		}
	}

	broadcaster := gateway.NewBroadcaster(gw, logger)
	g.Attach(broadcaster)

	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	var sessionID string
	if pgStore != nil {
		if id, sErr := pgStore.OpenSession(ctx, g.Seed()); sErr != nil {
			logger.Warn("failed to record session", zap.Error(sErr))
		} else {
			sessionID = id
		}
	}

	g.Start()
	g.Clock.Start()
	logger.Info("Simulation started", zap.Uint64("seed", g.Seed()), zap.String("session", sessionID))

	handler := api.NewHandler(g, gw, restAdapter, wsAdapter, broadcaster, reg, logger)
	if recorder != nil {
		handler.SetRecorder(recorder)
	}
	if relations != nil {
		handler.SetRelations(relations)
	}

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Cat City listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Cat City...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	g.Stop()
	gw.Close()
	if relations != nil {
		relations.Close(shutdownCtx)
	}
	if journal != nil {
		journal.Close()
	}
	if pgStore != nil && sessionID != "" {
		if err := pgStore.CloseSession(shutdownCtx, sessionID); err != nil {
			logger.Warn("failed to close session", zap.Error(err))
		}
	}
	if recorder != nil {
		recorder.Close()
	}
}

// newLogger rebuilds the logger at the configured level. An empty or unknown
// level keeps the development logger.
func newLogger(level string, fallback *zap.Logger) *zap.Logger {
	if level == "" {
		return fallback
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		fallback.Warn("unknown log level", zap.String("level", level))
		return fallback
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return fallback
	}
	return logger
}
