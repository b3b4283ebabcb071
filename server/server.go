// Package server exposes submit_turn and end_session over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Yuvaramesh/sales-agent/agent/agents/orchestrator"
)

const (
	DefaultPort     = 8000
	shutdownTimeout = 15 * time.Second
)

// TurnService is the conversation API served over HTTP.
type TurnService interface {
	SubmitTurn(ctx context.Context, sessionID, userEmail, text string) (orchestrator.TurnResult, error)
	EndSession(ctx context.Context, sessionID, userEmail string) (orchestrator.EndResult, error)
}

type Options struct {
	Service TurnService
	Port    int
	// Debug switches gin to debug mode with request logging.
	Debug bool
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(svc TurnService, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if debug {
		router.Use(gin.Logger())
	}
	registerRoutes(router, svc)
	return router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts Options) error {
	if opts.Service == nil {
		return errors.New("server: service is required")
	}
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           NewRouter(opts.Service, opts.Debug),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Int("port", opts.Port).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	log.Info().Msg("http server stopped")
	return nil
}
