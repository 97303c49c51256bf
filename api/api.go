package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/memories-sh/memories-go/api/mcp"
	"github.com/memories-sh/memories-go/pkg/eventstream"
	"github.com/memories-sh/memories-go/pkg/memories"
)

// EventQueue accepts events for asynchronous publishing. Enqueue must not block.
type EventQueue interface {
	Enqueue(event *eventstream.MemoryAddedEvent) bool
}

// Server is the memories proxy HTTP server.
type Server struct {
	config Config
	client *memories.Client
	events EventQueue
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. events may be nil, in which case no
// events are emitted.
func NewServer(config Config, client *memories.Client, events EventQueue, logger *slog.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("memories client is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}

	s := &Server{
		config: config,
		client: client,
		events: events,
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	app.Use(s.accessLog)
	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: s.logPanic,
	}))
	app.Use(cors.New())
	app.Use(compress.New())

	app.Get("/health", s.handleHealth)
	app.Post("/memories/add", s.handleAddMemory)
	app.Get("/memories/search", s.handleSearchMemories)
	app.Get("/context", s.handleContext)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Client: client,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	s.app = app

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting memories proxy",
		"listen", s.config.ListenAddr,
		"base_url", s.client.Settings().BaseURL(),
		"mcp", !s.config.DisableMCP,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server, waiting for in-flight
// requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
