package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"devconnector/auth"
	"devconnector/cache"
	"devconnector/config"
	"devconnector/database"
	"devconnector/github"
	"devconnector/handlers"
	"devconnector/logutil"
	"devconnector/metrics"
	"devconnector/middleware"
	"devconnector/notify"
	"devconnector/routes"
	"devconnector/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	var envFile, port string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "env-file",
				Usage:       "dotenv file merged into the environment",
				Destination: &envFile,
			},
			&cli.StringFlag{
				Name:        "port",
				Usage:       "Port to listen on, overrides PORT",
				EnvVars:     []string{"DEVCONNECTOR_PORT"},
				Destination: &port,
			},
		},
		Action: func(appCtx *cli.Context) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return serve(appCtx.Context, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logutil.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx = logutil.WithLogger(ctx, log)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	privateKey, err := auth.LoadPrivateKey(cfg.PrivateKeyPEM, cfg.PrivateKeyFile)
	if err != nil {
		return err
	}
	publicKey, err := auth.LoadPublicKey(cfg.PublicKeyPEM, cfg.PublicKeyFile)
	if err != nil {
		return err
	}
	issuer := auth.NewIssuer(privateKey, cfg.TokenIssuer, cfg.TokenAudience)
	verifier := auth.NewVerifier(publicKey, cfg.TokenIssuer, cfg.TokenAudience)

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	db, err := database.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase, 3, log)
	if err == nil {
		err = db.EnsureIndexes(connectCtx)
	}
	cancelConnect()
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Disconnect(disconnectCtx); err != nil {
			log.Warn().Err(err).Msg("MongoDB disconnect failed")
		}
	}()

	repoCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repoCache.Close()
	gh := github.NewClient(github.Options{
		BaseURL:      cfg.GitHubAPIURL,
		Token:        cfg.GitHubToken,
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		CacheTTL:     cfg.GitHubCacheTTL,
	}, repoCache, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	notifiers := notify.Multi{hub}
	if cfg.PushEnabled() {
		notifiers = append(notifiers, notify.NewWebPush(db.Subscriptions(), notify.VAPID{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subscriber: cfg.VAPIDSubscriber,
		}, log))
	} else {
		log.Info().Msg("VAPID keys not set, web push disabled")
	}

	h := handlers.New(handlers.Deps{
		Users:          db.Users(),
		Profiles:       db.Profiles(),
		Posts:          db.Posts(),
		Subscriptions:  db.Subscriptions(),
		Hasher:         auth.NewHasher(auth.Cost),
		Issuer:         issuer,
		GitHub:         gh,
		Notifier:       notifiers,
		Metrics:        collector,
		DB:             db,
		VAPIDPublicKey: cfg.VAPIDPublicKey,
	})

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, 10*time.Minute, collector)
	defer limiter.Stop()
	authLimiter := middleware.NewIPRateLimiter(cfg.AuthRateLimit, 10*time.Minute, collector)
	defer authLimiter.Stop()

	router := routes.SetupRouter(routes.Options{
		Handler:        h,
		Gate:           middleware.NewAuthGate(verifier, collector),
		Limiter:        limiter,
		AuthLimiter:    authLimiter,
		Logger:         log,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		WebSocket:      websocket.Handler(hub, verifier),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return listen(ctx, ":"+cfg.Port, router)
}

func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Cache, error) {
	if cfg.RedisURL != "" {
		return cache.NewRedis(ctx, cfg.RedisURL, log)
	}
	window := cfg.GitHubCacheTTL
	if window <= 0 {
		window = 10 * time.Minute
	}
	return cache.NewMemory(ctx, window)
}

// listen serves handler until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func listen(ctx context.Context, addr string, handler http.Handler) error {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", addr).Logger()
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
		return err
	}
	log.Info().Msg("Shutdown completed")
	return nil
}
