package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/zariny/ecommerce/config"
	"github.com/zariny/ecommerce/internal/pkg/broker"
	"github.com/zariny/ecommerce/internal/pkg/cache"
	"github.com/zariny/ecommerce/internal/pkg/logger"
	"github.com/zariny/ecommerce/internal/pkg/middleware"
	"github.com/zariny/ecommerce/internal/pkg/postgres"
	"github.com/zariny/ecommerce/internal/pkg/search"
	"github.com/zariny/ecommerce/internal/product"

	attrH "github.com/zariny/ecommerce/internal/attribute/handler"
	attrRepoPkg "github.com/zariny/ecommerce/internal/attribute/repository"
	attrUCPkg "github.com/zariny/ecommerce/internal/attribute/usecase"

	classH "github.com/zariny/ecommerce/internal/productclass/handler"
	classRepoPkg "github.com/zariny/ecommerce/internal/productclass/repository"
	classUCPkg "github.com/zariny/ecommerce/internal/productclass/usecase"

	invH "github.com/zariny/ecommerce/internal/inventory/handler"
	invListenerPkg "github.com/zariny/ecommerce/internal/inventory/listener"
	invRepoPkg "github.com/zariny/ecommerce/internal/inventory/repository"
	invUCPkg "github.com/zariny/ecommerce/internal/inventory/usecase"

	prodH "github.com/zariny/ecommerce/internal/product/handler"
	prodRepoPkg "github.com/zariny/ecommerce/internal/product/repository"
	prodUCPkg "github.com/zariny/ecommerce/internal/product/usecase"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("connected to PostgreSQL", zap.String("db_name", cfg.Postgres.DBName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		appLogger.Fatal("could not apply migrations", zap.Error(err))
	}
	if len(applied) > 0 {
		appLogger.Info("applied migrations", zap.Strings("files", applied))
	}

	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	appLogger.Info("kafka consumer ready", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	var publisher product.Publisher
	if cfg.Kafka.PublishEvents {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.CatalogTopic,
		})
		defer producer.Close()
		publisher = producer
		appLogger.Info("publishing catalog events", zap.String("topic", cfg.Kafka.CatalogTopic))
	}

	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("could not connect to Elasticsearch, product search uses PostgreSQL", zap.Error(err))
		esClient = nil
	} else {
		appLogger.Info("connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	classRepo := classRepoPkg.NewPGRepository(db)
	attrRepo := attrRepoPkg.NewPGRepository(db)
	prodRepo := prodRepoPkg.NewPGRepository(db, cfg.Catalog.BulkBatchSize)
	invRepo := invRepoPkg.NewPGRepository(db)

	classUC := classUCPkg.NewProductClassUseCase(classRepo, redisClient, cfg.Catalog.CacheTTL, appLogger)
	attrUC := attrUCPkg.NewAttributeUseCase(attrRepo, redisClient, appLogger)
	prodUC := prodUCPkg.NewProductUseCase(prodRepo, classUC, redisClient, esClient, publisher, prodUCPkg.Settings{
		CacheTTL:    cfg.Catalog.CacheTTL,
		SearchIndex: cfg.Elastic.Index,
	}, appLogger)
	invUC := invUCPkg.NewInventoryUseCase(invRepo, redisClient, cfg.Catalog.StockLockTTL, appLogger)

	invListener := invListenerPkg.NewInventoryListener(kafkaConsumer, invUC, appLogger)
	go invListener.Start(ctx)

	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.RecoveryInterceptor(appLogger),
			middleware.LoggingInterceptor(appLogger),
		),
	)

	classH.NewProductClassHandler(classUC, appLogger).Service().Register(grpcServer)
	attrH.NewAttributeHandler(attrUC, appLogger).Service().Register(grpcServer)
	prodH.NewProductHandler(prodUC, appLogger).Service().Register(grpcServer)
	invH.NewInventoryHandler(invUC, appLogger).Service().Register(grpcServer)

	reflection.Register(grpcServer)

	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server failed", zap.Error(err))
		}
	}()

	appLogger.Info("starting gRPC server", zap.String("port", port), zap.String("metrics", cfg.Server.MetricsPort))

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	cancel()
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("metrics server shutdown", zap.Error(err))
	}
	appLogger.Info("server stopped")
}
