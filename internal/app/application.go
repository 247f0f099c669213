package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pollroom/internal/api"
	"pollroom/internal/config"
	"pollroom/internal/history"
	"pollroom/internal/session"
	"pollroom/internal/ws"
	"pollroom/pkg/logger"
)

// Application wires the session core, websocket transport and HTTP surface
// together and owns their lifecycle.
type Application struct {
	config     *config.Config
	registry   *ws.Registry
	core       *session.Core
	httpServer *http.Server
}

// New builds the application in dependency order:
// logger, history, registry, core, gateway, router, HTTP server.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logger.Init(cfg.Server.LogLevel); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	archive := history.NewLog()
	registry := ws.NewRegistry(logger.WithModule("ws"))
	core := session.NewCore(registry, archive, logger.WithModule("session"))

	gateway := ws.NewGateway(core, registry, ws.Options{
		WriteWait:       cfg.Websocket.WriteWait,
		PongWait:        cfg.Websocket.PongWait,
		SendBuffer:      cfg.Websocket.SendBuffer,
		MaxMessageBytes: cfg.Websocket.MaxMessageBytes,
		MessageLimit:    cfg.Websocket.MessageLimit,
		AllowedOrigins:  cfg.Websocket.AllowedOrigins,
	}, logger.WithModule("ws"))

	router := api.NewRouter(core, gateway, registry)

	httpServer := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: router,
	}

	return &Application{
		config:     cfg,
		registry:   registry,
		core:       core,
		httpServer: httpServer,
	}, nil
}

// Start launches the HTTP server and verifies it came up before returning.
func (app *Application) Start(ctx context.Context) error {
	logger.Info("starting pollroom", zap.String("addr", app.httpServer.Addr))

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		logger.Info("pollroom listening", zap.String("addr", app.httpServer.Addr))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse order: the HTTP listener stops
// accepting upgrades, then every live websocket connection is torn down.
func (app *Application) Stop(ctx context.Context) error {
	logger.Info("shutting down pollroom")

	var errs error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	app.registry.CloseAll()

	logger.Info("pollroom shutdown complete")
	return errs
}

// Addr returns the listen address of the HTTP server.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
