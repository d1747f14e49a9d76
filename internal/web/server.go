// Package web exposes a read-only status API over the local dataset:
// registry contents, run history and the latest manifest. It never
// mutates pipeline state.
package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/storage"
)

// Registry is the read side of the asset registry.
type Registry interface {
	ListAssets(ctx context.Context) ([]*storage.RegisteredAsset, error)
	LastRun(ctx context.Context) (*domain.RunRecord, error)
}

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	registry   Registry
	datasetDir string
	logger     *zap.Logger
}

func NewServer(port int, registry Registry, datasetDir string, logger *zap.Logger) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		registry:   registry,
		datasetDir: datasetDir,
		logger:     logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Assets
	s.router.HandleFunc("GET /api/assets", s.handleAssets)

	// Manifest
	s.router.HandleFunc("GET /api/manifest", s.handleManifest)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting status server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
