package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/order-ledger/internal/adapter/handler"
	"github.com/rl1809/order-ledger/internal/adapter/messaging"
	"github.com/rl1809/order-ledger/internal/adapter/storage"
	"github.com/rl1809/order-ledger/internal/config"
	"github.com/rl1809/order-ledger/internal/core/service"
	"github.com/rl1809/order-ledger/internal/obs"
)

// setupTracing is replaced in tests.
var setupTracing = obs.SetupTracing

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		Long: `Serve the order item API over HTTP and gRPC until SIGINT or SIGTERM.

Redis idempotency, Kafka change events and OTLP trace export are enabled
when REDIS_ADDR, KAFKA_BROKER and OTEL_ENDPOINT are set respectively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := obs.NewLogger(cfg.LogLevel, config.ServiceName)
	defer logger.Sync()

	tp, shutdownTracing, err := setupTracing(ctx, obs.TracingConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Endpoint:       cfg.OtelEndpoint,
		Insecure:       cfg.OtelInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracer shutdown", zap.Error(err))
		}
	}()

	store, closeStore, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("ledger store ready", zap.String("driver", cfg.DBDriver))

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithTracer(tp.Tracer("github.com/rl1809/order-ledger")),
		service.WithTxTimeout(cfg.TxTimeout),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		opts = append(opts, service.WithCache(storage.NewRedisAdapter(rdb)))
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.KafkaBroker != "" {
		producer, err := messaging.NewTracedProducer(cfg.KafkaBroker, cfg.KafkaTopic, config.ServiceName, tp)
		if err != nil {
			return err
		}
		publisher := messaging.NewKafkaPublisher(producer)
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
		logger.Info("publishing order item events", zap.String("broker", cfg.KafkaBroker), zap.String("topic", cfg.KafkaTopic))
	}

	orderItems := service.NewOrderItemService(store, opts...)

	grpcServer := grpc.NewServer()
	handler.RegisterOrderItemServer(grpcServer, handler.NewGRPCHandler(orderItems, logger))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewHTTPHandler(orderItems, logger).Routes(),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
	}

	logger.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")
	return serveErr
}
