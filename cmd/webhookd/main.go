package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	webhooks "github.com/goliatone/go-webhooks"
	"github.com/goliatone/go-webhooks/adapters/gologger"
	"github.com/goliatone/go-webhooks/adapters/goredis"
	"github.com/goliatone/go-webhooks/adapters/yamlconfig"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/httpapi"
	"github.com/goliatone/go-webhooks/metrics"
	"github.com/goliatone/go-webhooks/security"
	sqlstore "github.com/goliatone/go-webhooks/store/sql"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "webhooks.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "webhookd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := core.NewCfgxConfigProvider(yamlconfig.NewFileLoader(configPath, true)).
		Load(ctx, webhooks.DefaultConfig())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	root := newLogger(cfg.Database.Debug)
	logger := gologger.ResolveComponent("daemon", root, nil)

	client, err := sqlstore.OpenClient(ctx, sqlstore.ClientConfig{
		Database:    cfg.Database,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	factory := sqlstore.NewRepositoryFactory()
	if webhookCacheEnabled(cfg) {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = time.Duration(cfg.Cache.TTLSeconds) * time.Second
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return fmt.Errorf("webhook cache: %w", err)
		}
		factory = factory.WithWebhookCache(cacheService)
	} else if cfg.Cache.TTLSeconds > 0 {
		logger.Info("webhook cache disabled, redis shared across processes", "redis_addr", cfg.Redis.Addr)
	}
	if key := strings.TrimSpace(cfg.Security.AppKey); key != "" {
		cipher, err := security.NewCredentialCipherFromString(key, security.WithKeyID(cfg.Security.KeyID))
		if err != nil {
			return err
		}
		factory = factory.WithSecretCipher(cipher)
		logger.Info("webhook password encryption enabled", "key_id", cipher.KeyID())
	}
	if _, err := factory.BuildStores(client); err != nil {
		return err
	}

	opts := []webhooks.Option{
		webhooks.WithStoreProvider(factory),
		webhooks.WithLoggerProvider(root),
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := goredis.NewClient(cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		locker, err := goredis.NewLocker(redisClient)
		if err != nil {
			return err
		}
		opts = append(opts, webhooks.WithDeliveryLocker(locker))
		logger.Info("redis delivery locker enabled", "addr", cfg.Redis.Addr)
	}

	var recorder *metrics.PrometheusRecorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(metrics.WithRuntimeCollectors())
		opts = append(opts, webhooks.WithMetricsRecorder(recorder))
	}

	svc, err := webhooks.NewService(cfg, opts...)
	if err != nil {
		return fmt.Errorf("webhook service: %w", err)
	}
	facade, err := webhooks.NewFacade(svc)
	if err != nil {
		return err
	}
	handler, err := httpapi.NewHandler(facade,
		httpapi.WithLogger(gologger.ResolveComponent("httpapi", root, nil)),
		httpapi.WithEventVerifier(eventVerifier(cfg.HTTP)),
	)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.ServiceName,
		ErrorHandler: httpapi.ErrorHandler,
	})
	app.Use(recover.New())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	if recorder != nil {
		app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))
	}
	handler.Register(app)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhookd listening", "addr", cfg.HTTP.Addr)
		errCh <- app.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("webhookd shutting down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// webhookCacheEnabled reports whether the in-process ListEnabled cache can
// be used. Writes only invalidate the local cache, so it is skipped when
// Redis is configured for a multi-process deployment.
func webhookCacheEnabled(cfg core.Config) bool {
	return cfg.Cache.TTLSeconds > 0 && strings.TrimSpace(cfg.Redis.Addr) == ""
}

func eventVerifier(cfg core.HTTPConfig) httpapi.EventVerifier {
	var verifiers httpapi.Verifiers
	if token := strings.TrimSpace(cfg.EventToken); token != "" {
		verifiers = append(verifiers, httpapi.TokenVerifier{Token: token})
	}
	if secret := strings.TrimSpace(cfg.EventSecret); secret != "" {
		header := strings.TrimSpace(cfg.EventSignatureHeader)
		if header == "" {
			header = "X-Signature-256"
		}
		verifiers = append(verifiers, httpapi.HMACVerifier{Header: header, Prefix: "sha256=", Secret: secret})
	}
	if len(verifiers) == 0 {
		return nil
	}
	return verifiers
}
