// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/zhongsurehow/zhouyi/internal/auth"
	"github.com/zhongsurehow/zhouyi/internal/catalog"
	"github.com/zhongsurehow/zhouyi/internal/config"
	"github.com/zhongsurehow/zhouyi/internal/feed"
	"github.com/zhongsurehow/zhouyi/internal/handlers"
	"github.com/zhongsurehow/zhouyi/internal/mechanics"
	"github.com/zhongsurehow/zhouyi/internal/middleware"
	"github.com/zhongsurehow/zhouyi/internal/persist"
	"github.com/zhongsurehow/zhouyi/internal/room"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		if err := auth.InitFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath); err != nil {
			logger.Fatalf("failed to load signing keys: %v", err)
		}
	} else if err := auth.Init(); err != nil {
		logger.Fatalf("failed to initialize session signing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store persist.Store = persist.Noop{}
	if cfg.DatabaseURL != "" {
		pg, err := persist.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pg.Close()
		store = pg
		logger.Info("state persistence enabled")
	}

	var subscribers []feed.Subscriber
	if cfg.RedisAddr != "" {
		pub, err := feed.NewRedis(cfg.RedisAddr, 0, cfg.FeedQueue, logger)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer pub.Close()
		subscribers = append(subscribers, pub)
		logger.Infof("event feed enabled on queue %s", cfg.FeedQueue)
	}

	opts := room.Options{
		HeartbeatInterval:    cfg.HeartbeatInterval,
		HeartbeatTimeoutMult: cfg.HeartbeatTimeoutMult,
		DisconnectGrace:      cfg.DisconnectGrace,
		IdleTimeout:          cfg.RoomIdleTimeout,
		AutoSurrender:        cfg.AutoSurrenderOnTimeout,
	}
	reg := room.NewRegistry(ctx, catalog.Default(), mechanics.PolicyByName(cfg.LinePolicy), opts, cfg.MaxPlayers, store, subscribers, logger)

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	mux.Handle("/room/create", logged(handlers.CreateRoomHandler(logger, reg)))
	mux.Handle("/room/list", logged(handlers.ListRoomsHandler(reg)))
	mux.Handle("/room/state/", logged(handlers.RoomStateHandler(reg)))
	mux.Handle("/room/ws/", logged(handlers.RoomWSHandler(logger, reg)))

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("server shutdown: %v", err)
		}
	}()

	logger.Infof("listening on %s (line policy: %s)", cfg.Addr, mechanics.PolicyByName(cfg.LinePolicy).Name())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
