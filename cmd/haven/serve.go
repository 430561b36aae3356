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

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/haven/pkg/accounts"
	"github.com/platinummonkey/haven/pkg/api"
	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/config"
	"github.com/platinummonkey/haven/pkg/middleware"
	"github.com/platinummonkey/haven/pkg/observability"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, nil)
		},
	}
}

// listener pairs an HTTP server with its bound socket
type listener struct {
	name string
	srv  *http.Server
	ln   net.Listener
}

// serve runs the API until ctx is cancelled. onListen, when set, is told the
// bound address of each listener once it accepts connections.
func serve(ctx context.Context, cfg *config.Config, onListen func(name string, addr net.Addr)) error {
	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer func() {
		if err := shutdown.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("shutdown completed with errors")
		}
	}()

	otelCfg := cfg.Observability.OTel()
	otelCfg.ServiceVersion = version
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.Register("otel", providers.Shutdown)

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
		if cfg.Observability.OTelEnabled {
			otelMetrics, err := observability.NewOTelMetrics()
			if err != nil {
				return fmt.Errorf("failed to create OpenTelemetry instruments: %w", err)
			}
			metrics.WithOTel(otelMetrics)
		}
	}

	store, err := accounts.Open(ctx, accounts.Options{
		Type:        cfg.Storage.Type,
		DSN:         cfg.Storage.DSN,
		MaxConns:    cfg.Storage.MaxConns,
		MinConns:    cfg.Storage.MinConns,
		MaxLifetime: cfg.Storage.MaxLifetime,
		Timeout:     cfg.Storage.Timeout,
	})
	if err != nil {
		return err
	}
	shutdown.Register("account store", func(context.Context) error { return store.Close() })
	store = accounts.NewInstrumentedStore(store, metrics)
	logger.WithField("type", cfg.Storage.Type).Info("account store ready")

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:           cfg.Auth.JWTSecret,
		ExpiresIn:        cfg.Auth.JWTExpiresIn,
		Issuer:           cfg.Auth.JWTIssuer,
		CookieExpireDays: cfg.Auth.CookieExpireDays,
		Production:       cfg.Auth.IsProduction(),
	})
	if err != nil {
		return err
	}
	if !cfg.Auth.IsProduction() && cfg.Auth.JWTSecret == config.DevelopmentJWTSecret {
		logger.Warn("using the development JWT secret; set HAVEN_JWT_SECRET before deploying")
	}

	service := accounts.NewService(store, issuer, accounts.LockoutPolicy{
		MaxAttempts:  cfg.Auth.MaxLoginAttempts,
		LockDuration: cfg.Auth.LockDuration,
	}, logger)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = newRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	throttle, err := newLoginThrottle(cfg.RateLimit, redisClient, metrics)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Options{
		Store:    store,
		Service:  service,
		Issuer:   issuer,
		Throttle: throttle,
		APIKey: middleware.APIKeyConfig{
			Key:        cfg.Auth.APIKey,
			Production: cfg.Auth.IsProduction(),
		},
		Health:       observability.NewHealthChecker(store, redisClient, version),
		Metrics:      metrics,
		Registry:     registry,
		Logger:       logger,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		ServiceName:  cfg.Observability.OTelServiceName,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	servers := map[string]*http.Server{"api": apiServer}
	if cfg.Server.HealthPort != "" {
		servers["health"] = &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
			Handler:           server.HealthHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	var listeners []listener
	for name, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.ln.Close()
			}
			return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
		}
		listeners = append(listeners, listener{name: name, srv: srv, ln: ln})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l // per-iteration copy; go directive predates Go 1.22 loop semantics
		eg.Go(func() error {
			defer observability.RecoverPanic(logger, l.name+" server")
			logger.WithFields(map[string]interface{}{"server": l.name, "addr": l.ln.Addr().String()}).Info("listening")
			if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", l.name, err)
			}
			return nil
		})
		if onListen != nil {
			onListen(l.name, l.ln.Addr())
		}
	}
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		for _, l := range listeners {
			if err := l.srv.Shutdown(sctx); err != nil {
				logger.WithError(err).WithField("server", l.name).Warn("server shutdown failed")
			}
		}
		return nil
	})
	return eg.Wait()
}

// newRedisClient connects to the Redis instance backing the distributed throttle
func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// newLoginThrottle builds the per-client login throttle; it returns nil when disabled
func newLoginThrottle(cfg config.RateLimitConfig, client *redis.Client, metrics *observability.Metrics) (*middleware.LoginThrottle, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Attempts,
		WindowDuration:    cfg.Window,
		BurstSize:         cfg.Burst,
		MaxKeys:           cfg.MaxKeys,
	}
	switch cfg.Backend {
	case "", "memory":
		return middleware.NewLoginThrottle(middleware.NewRateLimiter(limits), "memory", metrics), nil
	case "redis":
		if client == nil {
			return nil, errors.New("redis rate limit backend requires HAVEN_REDIS_URL")
		}
		limiter := middleware.NewDistributedRateLimiter(client, limits, "", metrics)
		return middleware.NewLoginThrottle(limiter, "redis", metrics), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.Backend)
	}
}
