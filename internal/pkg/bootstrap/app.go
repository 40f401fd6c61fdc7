// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fulfillment/internal/pkg/config"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/tracing"
)

type AppCtx struct {
	Mux    *http.ServeMux
	Config *config.Config
}

// AppInfo carries the service-specific pieces of a binary.
type AppInfo struct {
	ServiceName      string
	RegisterHandlers func(appCtx AppCtx)
	// Run starts long-lived background work (consumers, workers). It must
	// return promptly once ctx is cancelled.
	Run func(ctx context.Context, appCtx AppCtx) error
}

// StartService wraps the common startup and graceful-shutdown sequence shared
// by every binary: config, logging, tracing, HTTP server, signal handling.
func StartService(info AppInfo) {
	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(info.ServiceName, cfg.Service.LogLevel)

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	mux := http.NewServeMux()
	appCtx := AppCtx{Mux: mux, Config: cfg}
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(appCtx)
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.HTTP.Port), Handler: mux}
	go func() {
		logger.L().Info().Str("addr", server.Addr).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatal().Err(err).Msg("http server failed")
		}
	}()

	runCtx, cancelRun := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	if info.Run != nil {
		go func() { runErr <- info.Run(runCtx, appCtx) }()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.L().Info().Msgf("shutting down %s", info.ServiceName)
	case err := <-runErr:
		if err != nil {
			logger.L().Error().Err(err).Msg("background run loop exited")
		}
	}

	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tp.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("error shutting down tracer provider")
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("error shutting down http server")
	}

	logger.L().Info().Msgf("%s gracefully shut down", info.ServiceName)
}
