package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/streambridge/streambridge/internal/auth"
	"github.com/streambridge/streambridge/internal/broker"
	"github.com/streambridge/streambridge/internal/config"
)

// mockValidator accepts any token; used only when SKIP_AUTH=true, for
// local development against a browser client with no Auth0 tenant.
type mockValidator struct{}

func (mockValidator) ValidateToken(tokenString string) (string, error) {
	return "dev-user", nil
}

func main() {
	envPaths := []string{".env", "../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("no .env file found in any expected location, relying on environment variables")
	}

	cfg := config.Load()

	var validator broker.TokenValidator
	if cfg.SkipAuth {
		slog.Warn("authentication disabled for development, do not use in production")
		validator = mockValidator{}
	} else {
		if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
			slog.Error("AUTH0_DOMAIN and AUTH0_AUDIENCE must be set in environment when SKIP_AUTH=false")
			return
		}
		v, err := auth.NewValidator(context.Background(), cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			slog.Error("failed to create auth validator", "error", err)
			return
		}
		slog.Info("auth validator initialized", "domain", cfg.Auth0Domain, "audience", cfg.Auth0Audience)
		validator = v
	}

	b := broker.New(validator, broker.ProcessSpawner{Binary: cfg.StreamerBinary}, cfg.DefaultStream.VideoCodec)
	negotiator := broker.NewNegotiator(cfg.ICEServers, cfg.NegotiationTimeout)
	srv := broker.NewServer(b, negotiator, cfg.AllowedOrigins)

	router := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	router.Use(cors.New(corsConfig))
	router.Use(gin.Recovery())

	router.GET(cfg.URLPathPrefix, srv.ServeWs)

	httpSrv := &http.Server{
		Addr:    cfg.BindAddress,
		Handler: router,
	}

	go func() {
		slog.Info("streambridge broker starting", "addr", cfg.BindAddress)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("broker server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down broker...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("broker forced to shutdown", "error", err)
	}

	slog.Info("broker exiting")
}
