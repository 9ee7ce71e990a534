package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"golang.org/x/sync/errgroup"

	"ms-booking/internal/admins"
	"ms-booking/internal/analytics"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/txn"
	"ms-booking/internal/voucher"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(logger.Options{
		Service: "booking-service",
		Dir:     cfg.Log.Dir,
		Level:   logger.ParseLevel(cfg.Log.Level),
		Color:   cfg.Log.Color,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB := verifyDatabase(ctx, cfg.Database, log)
	defer bunDB.Close()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		os.Exit(runMigrate(bunDB, cfg.Database, os.Args[2:], log))
	}
	if cfg.Database.AutoMigrate {
		// Not closed: closing the runner closes the pool too.
		runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Database.MigrationsDir}, log)
		if err := runner.Up(); err != nil {
			log.Fatal("MIGRATION", err.Error())
		}
	}

	if err := run(ctx, cfg, bunDB, log); err != nil {
		log.Error("APP", err.Error())
		log.Close()
		os.Exit(1)
	}
	log.Info("APP", "✅ Booking service shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, bunDB *bun.DB, log *logger.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	coordinator := txn.New(bunDB, txn.Options{
		Isolation:      sql.LevelSerializable,
		Timeout:        cfg.Tx.Timeout,
		MaxRetries:     cfg.Tx.MaxRetries,
		InitialBackoff: cfg.Tx.InitialBackoff,
		MaxBackoff:     cfg.Tx.MaxBackoff,
	}, log, m)

	resolver, redisClient, err := buildResolver(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	svc := booking.NewService(
		&bookingdb.DB{Bun: bunDB},
		coordinator,
		resolver,
		booking.Options{AllowUnassignedAdmin: cfg.Booking.AllowUnassigned},
		log,
		m,
	)

	secret := cfg.Voucher.Secret
	if secret == "" {
		secret = randomSecret()
		log.Warn("CONFIG", "VOUCHER_SECRET not set, vouchers will not survive a restart")
	}
	vouchers, err := voucher.NewGenerator(secret)
	if err != nil {
		return fmt.Errorf("init voucher generator: %w", err)
	}

	analyticsDB := &analytics.DB{Bun: bunDB}
	handler := booking_api.NewHandler(svc, analytics.NewService(analyticsDB), vouchers, log)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Router(prometheus.DefaultGatherer),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP", fmt.Sprintf("🚀 Booking service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, []string{cfg.Kafka.AnalyticsTopic}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AnalyticsTopic, log)
		defer producer.Close()

		relay := analytics.NewRelay(coordinator, analyticsDB, producer, cfg.Kafka.RelayBatchSize, cfg.Kafka.RelayInterval, log, m)
		g.Go(func() error { return relay.Run(gctx) })
	} else {
		log.Warn("KAFKA", "Kafka disabled, analytics events stay in the database")
	}

	return g.Wait()
}

func buildResolver(ctx context.Context, cfg *config.Config, log *logger.Logger) (admins.Resolver, *redis.Client, error) {
	switch cfg.Booking.AdminResolver {
	case "static":
		log.Info("BOOKING", fmt.Sprintf("Routing approvals to static admin %d", cfg.Booking.StaticAdminID))
		return admins.StaticResolver{AdminID: cfg.Booking.StaticAdminID}, nil, nil
	case "queue":
		client, err := admins.NewRedisClient(ctx, cfg.Redis.Addr, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("BOOKING", fmt.Sprintf("Routing approvals round-robin over %s", cfg.Redis.AdminQueueKey))
		return admins.NewQueueResolver(client, cfg.Redis.AdminQueueKey, log), client, nil
	default:
		log.Info("BOOKING", "Routing approvals to the lowest-id admin")
		return admins.RoleResolver{}, nil, nil
	}
}

func verifyDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = sqldb.PingContext(pingCtx)
			cancel()
			if err == nil {
				break
			}
			sqldb.Close()
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 && !waitRetry(ctx, 2*time.Second) {
			log.Fatal("DATABASE", "Shutdown requested while connecting to PostgreSQL")
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// waitRetry sleeps for d and reports false if ctx ends first.
func waitRetry(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// runMigrate handles `booking-service migrate up|down [--force]`.
func runMigrate(bunDB *bun.DB, cfg config.DatabaseConfig, args []string, log *logger.Logger) int {
	if len(args) == 0 {
		log.Error("MIGRATION", "usage: booking-service migrate up|down [--force]")
		return 2
	}
	opts := migrations.Options{Dir: cfg.MigrationsDir}
	for _, a := range args[1:] {
		if a == "--force" {
			opts.ForceDirty = true
		}
	}

	runner := migrations.NewRunner(bunDB, opts, log)
	var err error
	switch args[0] {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	default:
		err = fmt.Errorf("unknown migrate command %q", args[0])
	}
	if err != nil {
		log.Error("MIGRATION", err.Error())
		return 1
	}
	return 0
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
