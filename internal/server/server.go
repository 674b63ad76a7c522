// Package server exposes the emergency pipeline over HTTP: trigger and
// confirmation endpoints for the device front-end, contact management, and
// an SSE stream of the audit log.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mwillard/beacon/internal/alert"
	"github.com/mwillard/beacon/internal/contacts"
	"github.com/mwillard/beacon/internal/events"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Orchestrator *alert.Orchestrator
	Directory    *contacts.Directory
	Audit        *events.Logger // optional; /api/events sends heartbeats only when nil
	Port         int
	Out          io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	if opts.Port <= 0 {
		opts.Port = 8700
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all API routes registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("server: orchestrator is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("server: contact directory is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}
