package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/allshop-fulfillment/internal/adapter/handler"
	"github.com/rl1809/allshop-fulfillment/internal/adapter/handler/pb"
	"github.com/rl1809/allshop-fulfillment/internal/adapter/identity"
	"github.com/rl1809/allshop-fulfillment/internal/adapter/messaging"
	"github.com/rl1809/allshop-fulfillment/internal/adapter/storage"
	"github.com/rl1809/allshop-fulfillment/internal/config"
	"github.com/rl1809/allshop-fulfillment/internal/core/service"
	"github.com/rl1809/allshop-fulfillment/internal/logger"
	"github.com/rl1809/allshop-fulfillment/internal/port"
	"github.com/rl1809/allshop-fulfillment/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	events, closeEvents, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closeEvents()

	var ids port.IdentityProvider = identity.NewHeaderProvider()
	if cfg.Auth.JWTSecret != "" {
		ids = identity.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	} else {
		log.Warn("no jwt secret configured, trusting X-Actor-Email")
	}

	fulfillment := service.NewFulfillmentService(store, events, log)
	inventory := service.NewInventoryService(store, log)

	// Sweep idle sessions
	go func() {
		ticker := time.NewTicker(cfg.Session.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				fulfillment.ExpireSessions(now.Add(-cfg.Session.TTL))
			}
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcHandler := handler.NewGRPCHandler(fulfillment, ids, log)
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(grpcHandler.UnaryInterceptor))
		pb.RegisterFulfillmentServer(grpcServer, grpcHandler)

		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		go func() {
			log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcServer.Serve(lis); err != nil {
				log.Error("gRPC server error", zap.Error(err))
			}
		}()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logger.Recovery(log), logger.GinMiddleware(log))
	handler.NewHTTPHandler(fulfillment, inventory, ids).Register(router)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (port.DocumentStore, func(), error) {
	switch cfg.Store.Driver {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		log.Info("connected to mysql")

		// m is not closed: closing it closes db as well
		m, err := storage.NewMigrator(db, migrations.FS, log)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := m.Up(); err != nil {
			db.Close()
			return nil, nil, err
		}

		return storage.NewMySQLAdapter(db, cfg.Store.MaxAttempts), func() { db.Close() }, nil

	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

		return storage.NewRedisAdapter(rdb, cfg.Store.MaxAttempts), func() { rdb.Close() }, nil
	}
}

func openPublisher(cfg *config.Config, log *zap.Logger) (port.EventPublisher, func(), error) {
	if !cfg.RabbitMQ.Enabled {
		return messaging.NewNoopPublisher(log), func() {}, nil
	}

	pub, err := messaging.NewRabbitMQPublisher(messaging.RabbitMQConfig{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("publishing fulfillment events", zap.String("exchange", cfg.RabbitMQ.Exchange))

	return pub, func() {
		if err := pub.Close(); err != nil {
			log.Warn("close rabbitmq", zap.Error(err))
		}
	}, nil
}
