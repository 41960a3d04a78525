package api

import (
	"context"
	"io"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/papercomputeco/drift/pkg/conversation"
	"github.com/papercomputeco/drift/pkg/drift"
)

// Tracker is the conversation the API drives. *tracker.Tracker implements it.
type Tracker interface {
	Generate(ctx context.Context, intent string, w io.Writer) (*drift.Record, error)
	Decide(action string) conversation.Decision
	Reset() conversation.Decision
	History() conversation.Snapshot
}

// Server is the API server for the drift tracker
type Server struct {
	config  Config
	tracker Tracker
	logger  *zap.Logger
	app     *fiber.App

	// ctx outlives individual requests so a streaming exchange is not tied to
	// the fasthttp request context, and ends on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new API server.
func NewServer(config Config, tracker Tracker, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:  config,
		tracker: tracker,
		logger:  logger,
		app:     app,
		ctx:     ctx,
		cancel:  cancel,
	}

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/ping", s.handlePing)
	app.Post("/generate", s.handleGenerate)
	app.Post("/decision", s.handleDecision)
	app.Post("/reset", s.handleReset)
	app.Get("/history", s.handleHistory)

	if config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.Metrics.Handler()))
	}
	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server. Exchanges still streaming
// are cancelled and commit nothing.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
