package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/httpx"
	"github.com/invoicevault/invoicevault/internal/imaging"
	"github.com/invoicevault/invoicevault/internal/llm/openai"
	"github.com/invoicevault/invoicevault/internal/pdf"
	"github.com/invoicevault/invoicevault/internal/pipeline"
	"github.com/invoicevault/invoicevault/internal/repository"
	"github.com/invoicevault/invoicevault/internal/server"
	"github.com/invoicevault/invoicevault/internal/session"
	"github.com/invoicevault/invoicevault/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using process environment")
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	}, logger)
	if err != nil {
		logger.Error("archive store setup failed", "error", err)
		os.Exit(1)
	}

	// Session store: redis when configured, otherwise an in-process map with
	// a background expiry sweep.
	var sessions session.Store
	if cfg.Session.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("redis connection failed", "addr", cfg.Session.RedisAddr, "error", err)
			os.Exit(1)
		}
		sessions = session.NewRedisStore(rdb, logger)
		logger.Info("using redis session store", "addr", cfg.Session.RedisAddr)
	} else {
		mem := session.NewMemoryStore(logger)
		mem.StartSweeper(ctx, cfg.Session.SweepInterval)
		sessions = mem
		logger.Info("using in-memory session store", "sweep_interval", cfg.Session.SweepInterval)
	}

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxAttempts: cfg.LLM.MaxAttempts,
		Lenient:     true,
	}, logger)

	coord := pipeline.NewCoordinator(pipeline.Deps{
		Rasterizer: pdf.NewRasterizer(logger),
		Compressor: imaging.NewCompressor(logger),
		Store:      store,
		Extractor:  extractor,
		Transient:  extractor,
		Files:      repository.NewInvoiceFileRepository(pool, logger),
		Sessions:   sessions,
		Transport:  httpx.NewClient(cfg.Storage.UploadTimeout, httpx.DefaultMaxAttempts, logger),
	}, pipeline.Config{
		MaxPDFPages:      cfg.Pipeline.MaxPDFPages,
		TargetImageBytes: cfg.Pipeline.TargetImageBytes,
		MaxImageWidth:    cfg.Pipeline.MaxImageWidth,
		MaxImageHeight:   cfg.Pipeline.MaxImageHeight,
		UploadURLTTL:     cfg.Storage.UploadURLTTL,
		DownloadURLTTL:   cfg.Storage.DownloadURLTTL,
		SessionTTL:       cfg.Session.TTL,
		UploadTimeout:    cfg.Storage.UploadTimeout,
		BatchConcurrency: cfg.Pipeline.BatchConcurrency,
	}, logger)

	e := server.SetupRouter(server.NewHandler(coord))
	go func() {
		logger.Info("starting server", "addr", cfg.Server.HTTPAddr)
		if err := e.Start(cfg.Server.HTTPAddr); err != nil {
			logger.Info("server stopped", "reason", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
