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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/fichamed/fichamed/internal/config"
	"github.com/fichamed/fichamed/internal/domain/emergency"
	"github.com/fichamed/fichamed/internal/domain/searchhistory"
	"github.com/fichamed/fichamed/internal/platform/blobstore"
	"github.com/fichamed/fichamed/internal/platform/db"
	"github.com/fichamed/fichamed/internal/platform/logging"
	"github.com/fichamed/fichamed/internal/platform/metrics"
	"github.com/fichamed/fichamed/internal/platform/middleware"
	"github.com/fichamed/fichamed/pkg/rut"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fichamed-server",
		Short:        "Patient record and emergency QR access API",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rutCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					state, at := "pending", ""
					if s.Applied {
						state = "applied"
						if s.AppliedAt != nil {
							at = s.AppliedAt.Format(time.RFC3339)
						}
					}
					fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
				}
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, db.PoolOptions{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, db.Migrations()))
}

func rutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rut",
		Short: "RUT utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <rut>",
		Short: "Validate a RUT and print its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rut.Validate(args[0]) {
				body, _ := rut.Split(args[0])
				if want, err := rut.CheckDigit(body); err == nil {
					return fmt.Errorf("%s: invalid check digit, expected %s", args[0], want)
				}
				return fmt.Errorf("%s: malformed rut", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s valid\n", rut.Format(args[0]))
			return nil
		},
	})
	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDev(),
		File:        cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
	})
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	comp := components{
		querier:   pool,
		metrics:   metrics.New(),
		health:    map[string]db.Pinger{"postgres": db.PingFunc(pool.Ping)},
		poolStats: func() *db.PoolStats { return db.GetPoolStats(pool) },
	}

	extract, err := middleware.IPExtractor(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	comp.ipExtractor = extract

	searches := searchhistory.NewRepoPG(pool)
	comp.searches = searches
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		defer client.Close()
		cache := searchhistory.NewRedisRepository(client, cfg.SearchHistoryRetain)
		comp.searches = searchhistory.NewCachedRepository(searches, cache, logger)
		comp.health["redis"] = db.PingFunc(cache.Ping)
		logger.Info().Int("retain", cfg.SearchHistoryRetain).Msg("search history cached in redis")
	}

	if cfg.MinioEnabled() {
		store, err := blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to object storage")
			return err
		}
		comp.blobs = store
		comp.health["blobstore"] = db.PingFunc(store.Ping)
	} else {
		logger.Warn().Msg("MINIO_ENDPOINT not set, document content is kept in memory")
		comp.blobs = blobstore.NewMemoryStore()
	}

	accessLog := emergency.NewAccessLogPG(pool)
	comp.accessReader = accessLog
	var mirrors []emergency.Sink
	if cfg.AMQPURL != "" {
		pub, err := emergency.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to message broker")
			return err
		}
		defer pub.Close()
		mirrors = append(mirrors, emergency.Sink{Name: "amqp", Log: pub})
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("emergency accesses mirrored to amqp")
	}
	comp.accessLog = emergency.NewFanout(logger, comp.metrics, emergency.Sink{Name: "postgres", Log: accessLog}, mirrors...)

	e := newServer(cfg, logger, comp)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
