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

	"github.com/fjod/go_cart/canteen/internal/cache"
	"github.com/fjod/go_cart/canteen/internal/catalog"
	"github.com/fjod/go_cart/canteen/internal/config"
	"github.com/fjod/go_cart/canteen/internal/consumer"
	cgrpc "github.com/fjod/go_cart/canteen/internal/grpc"
	h "github.com/fjod/go_cart/canteen/internal/http"
	"github.com/fjod/go_cart/canteen/internal/logger"
	"github.com/fjod/go_cart/canteen/internal/policy"
	"github.com/fjod/go_cart/canteen/internal/publisher"
	"github.com/fjod/go_cart/canteen/internal/repository"
	s "github.com/fjod/go_cart/canteen/internal/service"
	"github.com/fjod/go_cart/canteen/internal/timeline"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "canteen",
		Usage: "campus canteen ordering backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "optional config file; environment variables override it",
				EnvVars: []string{"CANTEEN_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API and gRPC health endpoint", Action: serve},
			{Name: "migrate", Usage: "apply Postgres and catalog migrations", Action: migrate},
			{Name: "relay", Usage: "publish outbox events to Kafka", Action: relay},
			{Name: "timeline", Usage: "project order events into the MongoDB timeline", Action: projectTimeline},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context, component string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "canteen"})
	return cfg, logger.WithComponent(log, component), nil
}

func credentials(cfg *config.Config) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		SSLMode:           cfg.PostgresSSLMode,
		MigrationsDirPath: cfg.PostgresMigrations,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func migrate(c *cli.Context) error {
	cfg, log, err := setup(c, "migrate")
	if err != nil {
		return err
	}

	cred := credentials(cfg)
	db, err := repository.NewDB(cred)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.RunMigrations(cred); err != nil {
		return err
	}
	log.Info().Str("path", cred.MigrationsDirPath).Msg("postgres migrations applied")

	cat, err := catalog.NewRepository(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()
	if err := cat.RunMigrations(cfg.CatalogMigrations); err != nil {
		return err
	}
	log.Info().Str("path", cfg.CatalogMigrations).Msg("catalog migrations applied")
	return nil
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c, "api")
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	db, err := repository.NewDB(credentials(cfg))
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info().Str("host", cfg.PostgresHost).Msg("connected to postgres")

	cat, err := catalog.NewRepository(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// the breaker keeps carts working from Postgres until Redis comes back
		log.Warn().Err(err).Msg("redis ping failed")
	}
	cartCache := cache.NewBreakerCache(cache.NewRedisCache(redisClient, cfg.CartCacheTTL), cfg.BreakerOpen, log)

	var timelineReader h.TimelineReader
	mongoDB, err := timeline.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Warn().Err(err).Msg("order timeline disabled")
	} else {
		defer mongoDB.Client().Disconnect(context.Background())
		timelineReader = timeline.NewRepository(mongoDB)
	}

	opts := []s.Option{s.WithLocation(cfg.Location())}
	checker := policy.NewChecker(cat)
	carts := repository.NewCartRepository()
	orders := repository.NewOrderRepository()
	promos := repository.NewPromotionRepository()
	outbox := repository.NewOutboxRepository(db)
	complaints := repository.NewComplaintRepository()

	cartService := s.NewCartService(db, carts, cat, cartCache, opts...)
	orderService := s.NewOrderService(db, carts, orders, promos, outbox, cat, checker, cartCache, opts...)
	promoService := s.NewPromotionService(db, promos, cat, checker, opts...)
	statsService := s.NewStatsService(db, orders, cat, checker, opts...)
	complaintService := s.NewComplaintService(db, complaints, orders, cat, checker, opts...)

	router := h.NewRouter(h.Handlers{
		Cart:       h.NewCartHandler(cartService, cfg.RequestTimeout),
		Orders:     h.NewOrdersHandler(orderService, timelineReader, cfg.RequestTimeout),
		Canteen:    h.NewCanteenHandler(orderService, statsService, promoService, cat, cfg.Location(), cfg.RequestTimeout),
		Complaints: h.NewComplaintsHandler(complaintService, cfg.RequestTimeout),
	}, log, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthServer := cgrpc.NewHealthServer(log, cfg.HealthTimeout,
		cgrpc.Dependency{Name: "postgres", Check: db.Ping},
		cgrpc.Dependency{Name: "catalog", Check: cat.Ping},
	)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info().Int("port", cfg.GRPCPort).Msg("grpc health server starting")
		if err := healthServer.Server().Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		log.Error().Err(err).Msg("server failed")
	}

	log.Info().Msg("shutting down")
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("server forced to shutdown: %w", errShutdown)
	}
	log.Info().Msg("server exited")
	return err
}

func relay(c *cli.Context) error {
	cfg, log, err := setup(c, "relay")
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	db, err := repository.NewDB(credentials(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	poller := publisher.NewOutboxPoller(
		repository.NewOutboxRepository(db),
		publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...),
		publisher.Config{
			Interval:  cfg.OutboxInterval,
			BatchSize: cfg.OutboxBatch,
			Retention: cfg.OutboxRetain,
		},
		log,
	)
	defer poller.Close()

	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("outbox relay started")
	poller.Run(ctx)
	log.Info().Msg("outbox relay stopped")
	return nil
}

func projectTimeline(c *cli.Context) error {
	cfg, log, err := setup(c, "timeline")
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	mongoDB, err := timeline.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())

	repo := timeline.NewRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		return err
	}

	cons := consumer.NewConsumer(
		consumer.NewKafkaReader(cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...),
		repo,
		log,
	)
	defer cons.Close()

	log.Info().Str("group", cfg.KafkaGroupID).Msg("timeline consumer started")
	cons.Run(ctx)
	log.Info().Msg("timeline consumer stopped")
	return nil
}
