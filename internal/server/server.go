// Package server provides the HTTP API for docent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/docent-ai/docent/internal/chat"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/extract"
	"github.com/docent-ai/docent/internal/models"
)

// Version is reported by GET /.
const Version = "0.1.0"

// ChatService answers questions and analyzes extracted text.
type ChatService interface {
	Answer(ctx context.Context, sessionID, question string) (*chat.Answer, error)
	AnswerStream(ctx context.Context, sessionID, question string, fn func(chunk string) error) error
	Analyze(ctx context.Context, text string) (*chat.Answer, error)
}

// Ingestor indexes uploaded artifacts.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (int, error)
	IngestExtracted(ctx context.Context, units []models.TextUnit, filename string, sizeBytes int64) (int, error)
}

// ReadinessChecker reports whether any content has been indexed yet.
type ReadinessChecker interface {
	Ready(ctx context.Context) bool
}

// SessionCounter reports the number of live chat sessions.
type SessionCounter interface {
	Len() int
}

// ArtifactLister lists ingestion bookkeeping records.
type ArtifactLister interface {
	ListArtifacts(ctx context.Context, offset, limit int) ([]*models.Artifact, error)
}

// Server is the HTTP server for the docent API.
type Server struct {
	chat      ChatService
	ingestor  Ingestor
	extractor *extract.Extractor
	readiness ReadinessChecker
	sessions  SessionCounter
	artifacts ArtifactLister
	uploadDir string
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. artifacts may be
// nil, in which case GET /api/v1/documents responds 501.
func NewServer(
	chatSvc ChatService,
	ingestor Ingestor,
	extractor *extract.Extractor,
	readiness ReadinessChecker,
	sessions SessionCounter,
	artifacts ArtifactLister,
	uploadDir string,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		chat:      chatSvc,
		ingestor:  ingestor,
		extractor: extractor,
		readiness: readiness,
		sessions:  sessions,
		artifacts: artifacts,
		uploadDir: uploadDir,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/upload-pdf", s.handleUploadDocument)
	r.Post("/upload-image", s.handleUploadImage)
	r.Post("/message", s.handleMessage)
	r.Get("/api/v1/documents", s.handleListDocuments)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
