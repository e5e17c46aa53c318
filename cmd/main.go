package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/chaisthra/vibetrack/internal/api/http/router"
	httpserver "github.com/chaisthra/vibetrack/internal/api/http/server"
	"github.com/chaisthra/vibetrack/internal/archive"
	"github.com/chaisthra/vibetrack/internal/clock"
	"github.com/chaisthra/vibetrack/internal/config"
	"github.com/chaisthra/vibetrack/internal/guard"
	"github.com/chaisthra/vibetrack/internal/janitor"
	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/model"
	"github.com/chaisthra/vibetrack/internal/repository/filestore"
	"github.com/chaisthra/vibetrack/internal/revocation"
	"github.com/chaisthra/vibetrack/internal/server"
	"github.com/chaisthra/vibetrack/internal/service"
	"github.com/chaisthra/vibetrack/internal/storage/local"
	"github.com/chaisthra/vibetrack/internal/storage/minio"
	"github.com/chaisthra/vibetrack/internal/token"
	"github.com/chaisthra/vibetrack/internal/upstream"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	envFile := pflag.String("env-file", "", "path to a .env file loaded before reading the environment")
	pflag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("failed to load env file: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)

	logAppVersion()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", "error", err)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logger.Logger) error {
	clk := clock.Real()

	db, err := filestore.NewConnection(cfg.Storage.Root, filestore.Options{
		Backups: cfg.Storage.BackupGenerations,
		Retries: cfg.Storage.WriteRetries,
		Backoff: cfg.Storage.RetryBackoff,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	credentials, err := service.NewCredentials(filestore.NewUserRepository(db), clk, logger, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to initialize credentials: %w", err)
	}

	revoked, closeRevoked, err := newRevocationStore(ctx, cfg, clk)
	if err != nil {
		return err
	}
	defer closeRevoked()

	tokenService := service.NewTokenService(token.NewJWT(cfg.Token.Secret, cfg.Token.TTL, clk), revoked, clk, logger)

	policy, err := service.NewCategoryPolicy(service.CategoryMode(cfg.Category.Mode), cfg.Category.Known, cfg.Category.Fallback)
	if err != nil {
		return fmt.Errorf("failed to build category policy: %w", err)
	}
	partitions := service.NewPartitions(filestore.NewPartitionRepository(db), policy, clk, logger)

	completer, transcriber := newCollaborators(cfg, logger)
	logbook := service.NewLogbook(partitions, completer, transcriber, logger)

	userLimiter := guard.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, clk)
	publicLimiter := guard.NewRateLimiter(cfg.RateLimit.PublicRPS, cfg.RateLimit.PublicBurst, clk)

	gin.SetMode(gin.ReleaseMode)
	engine := router.New(
		router.Services{
			Credentials: credentials,
			Tokens:      tokenService,
			Logbook:     logbook,
			Partitions:  partitions,
			Storage:     db,
		},
		router.Guards{
			Public:      publicLimiter,
			User:        userLimiter,
			Concurrency: guard.NewConcurrencyGuard(cfg.RateLimit.Concurrency, cfg.RateLimit.QueueTimeout),
		},
		cfg.HTTP.MaxAudioBytes,
		logger,
	).Register()

	httpServer := httpserver.NewHTTPServer(engine, cfg.HTTP.Address, httpserver.Timeouts{
		ReadHeader: cfg.HTTP.ReadHeaderTimeout,
		Read:       cfg.HTTP.ReadTimeout,
		Write:      cfg.HTTP.WriteTimeout,
		Idle:       cfg.HTTP.IdleTimeout,
	})

	jan := janitor.New(logger)
	if err := jan.Every("token-sweep", cfg.Token.SweepInterval, func(ctx context.Context) error {
		_, err := tokenService.Sweep(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := jan.Every("limiter-cleanup", cfg.RateLimit.IdleTTL, func(context.Context) error {
		removed := userLimiter.Cleanup(cfg.RateLimit.IdleTTL) + publicLimiter.Cleanup(cfg.RateLimit.IdleTTL)
		logger.Debug("Janitor: idle limiters evicted", "removed", removed)
		return nil
	}); err != nil {
		return err
	}
	if cfg.Backup.Enabled {
		if err := scheduleBackup(ctx, jan, cfg, clk, logger); err != nil {
			return err
		}
	}

	sl := server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server on", "address", httpServer.Address(), "tls", cfg.HTTP.EnableHTTPS)
		if err := httpServer.Start(sl); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return jan.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received interruption signal, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
			return err
		}
		return nil
	})

	return g.Wait()
}

func newRevocationStore(ctx context.Context, cfg *config.Config, clk clock.Clock) (model.RevocationStore, func(), error) {
	if cfg.Token.Revocation != "redis" {
		return revocation.NewMemory(), func() {}, nil
	}

	client, err := revocation.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return revocation.NewRedis(client, clk), func() { _ = client.Close() }, nil
}

func newCollaborators(cfg *config.Config, logger *logger.Logger) (model.Completer, model.Transcriber) {
	var completer model.Completer = upstream.Disabled{Provider: "nlp"}
	if cfg.NLP.BaseURL != "" {
		completer = upstream.NewChatClient(upstreamConfig(cfg.NLP))
	} else {
		logger.Warn("NLP provider not configured, activities will use the fallback category")
	}

	var transcriber model.Transcriber = upstream.Disabled{Provider: "speech"}
	if cfg.Speech.BaseURL != "" {
		transcriber = upstream.NewSpeechClient(upstreamConfig(cfg.Speech))
	} else {
		logger.Warn("speech provider not configured, voice notes require fallback_text")
	}

	return completer, transcriber
}

func upstreamConfig(u config.Upstream) upstream.Config {
	return upstream.Config{
		BaseURL: u.BaseURL,
		APIKey:  u.APIKey,
		Model:   u.Model,
		Timeout: u.Timeout,
	}
}

func scheduleBackup(ctx context.Context, jan *janitor.Janitor, cfg *config.Config, clk clock.Clock, logger *logger.Logger) error {
	var sink model.BackupSink
	if cfg.MinIO.Enabled {
		client, err := minio.NewClient(ctx, minio.Options{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize backup bucket: %w", err)
		}
		sink = client
	} else {
		dir, err := local.NewDir(cfg.Backup.Dir)
		if err != nil {
			return fmt.Errorf("failed to initialize backup directory: %w", err)
		}
		sink = dir
	}

	snapshot, err := archive.NewSnapshot(cfg.Storage.Root, sink, clk, logger)
	if err != nil {
		return err
	}
	return jan.Add("backup", cfg.Backup.Schedule, func(ctx context.Context) error {
		_, err := snapshot.Run(ctx)
		return err
	})
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
