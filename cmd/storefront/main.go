package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_store/internal/auth"
	"github.com/fjod/go_store/internal/cart"
	"github.com/fjod/go_store/internal/catalog"
	"github.com/fjod/go_store/internal/checkout"
	"github.com/fjod/go_store/internal/config"
	"github.com/fjod/go_store/internal/consumer"
	"github.com/fjod/go_store/internal/download"
	"github.com/fjod/go_store/internal/fulfillment"
	h "github.com/fjod/go_store/internal/http"
	"github.com/fjod/go_store/internal/orders"
	"github.com/fjod/go_store/internal/payment"
	"github.com/fjod/go_store/internal/payment/stripepay"
	"github.com/fjod/go_store/internal/publisher"
	"github.com/fjod/go_store/internal/repository"
	"github.com/fjod/go_store/pkg/circuitbreaker"
	"github.com/fjod/go_store/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "storefront"

func main() {
	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service: serviceName,
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
		Pretty:  cfg.AppEnv == "development",
	})
	loader.Watch(func(next *config.Config) {
		logger.SetLevel(next.LogLevel)
		log.Info().Str("level", next.LogLevel).Msg("log level reloaded")
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("storefront stopped with error")
	}
	log.Info().Msg("storefront stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database migrations completed")

	storage, closeStorage, err := openCartStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()
	carts := cart.NewService(storage)

	tokens := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTTTL)
	processor := payment.NewBreakerProcessor(
		stripepay.NewProcessor(cfg.StripeSecretKey),
		circuitbreaker.DefaultSettings("stripe-checkout"),
	)
	if cfg.StripeSecretKey == "" {
		log.Warn().Msg("STRIPE_SECRET_KEY is empty, checkout sessions will fail")
	}

	router := h.NewRouter(h.Deps{
		Logger:             log,
		Tokens:             tokens,
		Accounts:           auth.NewService(repo, tokens, cfg.AdminEmailList()),
		Catalog:            catalog.NewService(repo),
		Carts:              carts,
		Checkout:           checkout.NewService(repo, processor, cfg.PublicBaseURL),
		Webhooks:           fulfillment.NewService(fulfillment.NewRepositoryStore(repo), stripepay.NewVerifier(cfg.StripeWebhookSecret)),
		Orders:             orders.NewService(repo),
		Gate:               download.NewGate(repo, os.DirFS(cfg.FilesRoot), cfg.DownloadTokenTTL),
		BaseURL:            cfg.PublicBaseURL,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		AccessLog:          true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.GRPCPort).Msg("ops gRPC server starting")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		poller := publisher.NewOutboxPoller(repo, publisher.NewKafkaWriter(cfg.KafkaTopic, brokers...), cfg.OutboxPollInterval)
		purchases := consumer.NewPurchaseConsumer(consumer.NewKafkaReader(cfg.KafkaTopic, cfg.KafkaGroupID, brokers...), carts)

		g.Go(func() error {
			defer poller.Close()
			poller.Run(gctx)
			return nil
		})
		g.Go(func() error {
			defer purchases.Close()
			purchases.Run(gctx)
			return nil
		})
	} else {
		log.Warn().Msg("KAFKA_BROKERS is empty, purchase events stay in the outbox")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down storefront...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openRepository(cfg *config.Config) (*repository.Repository, error) {
	switch cfg.DBDriver {
	case "postgres":
		return repository.NewRepository(&repository.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.MigrationsPath,
		})
	default:
		return repository.NewSQLiteRepository(cfg.SQLitePath)
	}
}

func openCartStorage(ctx context.Context, cfg *config.Config) (cart.Storage, func(), error) {
	switch cfg.CartStorage {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return cart.NewRedisStorage(client), func() { _ = client.Close() }, nil
	case "mongo":
		db, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		return cart.NewMongoStorage(db), func() { _ = db.Client().Disconnect(context.Background()) }, nil
	default:
		return cart.NewMemoryStorage(), func() {}, nil
	}
}
