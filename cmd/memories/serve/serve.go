// Package servecmder provides the serve command that runs the memories proxy.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memories-sh/memories-go/api"
	"github.com/memories-sh/memories-go/pkg/config"
	"github.com/memories-sh/memories-go/pkg/eventstream"
	"github.com/memories-sh/memories-go/pkg/eventstream/kafka"
	"github.com/memories-sh/memories-go/pkg/eventstream/nop"
	"github.com/memories-sh/memories-go/pkg/eventstream/worker"
	"github.com/memories-sh/memories-go/pkg/logger"
	"github.com/memories-sh/memories-go/pkg/memories"
	"github.com/memories-sh/memories-go/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	listen         string
	baseURL        string
	disableMCP     bool
	logFile        string
	logLevel       string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string
	telemetry      bool

	debug    bool
	noColor  bool
	cfg      *config.Config
	settings *config.Resolver
	logger   *slog.Logger
}

const serveLongDesc string = `Run the memories proxy.

The proxy forwards memory add, search and context requests to the upstream
memories API using MEMORIES_API_KEY, and normalizes every response to
{"ok": true, ...} or {"ok": false, "error": {...}}.

Endpoints:
  GET  /health            Liveness, never calls upstream
  POST /memories/add      Store a memory
  GET  /memories/search   Search memories (?q=...)
  GET  /context           Rules and memories relevant to ?q=...
  *    /mcp               MCP streamable HTTP endpoint (unless --disable-mcp)

Settings come from flags, MEMORIES_* environment variables and config.toml,
in that order of precedence.`

const serveShortDesc string = "Run the memories proxy"

var serveFlags = []string{
	config.FlagListen,
	config.FlagBaseURL,
	config.FlagDisableMCP,
	config.FlagLogFile,
	config.FlagLogLevel,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
	config.FlagTelemetry,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.InitCommandViper(cmd, serveFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = config.FromViper(v)
			cmder.settings = config.NewResolver(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.noColor, _ = cmd.Flags().GetBool("no-color")

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddBoolFlag(cmd, config.Flags, config.FlagDisableMCP, &cmder.disableMCP)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.logFile)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogLevel, &cmder.logLevel)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	config.AddBoolFlag(cmd, config.Flags, config.FlagTelemetry, &cmder.telemetry)

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	if _, err := c.settings.APIKey(); err != nil {
		c.logger.Warn("upstream requests will fail until the API key is set", "error", err)
	}

	providers := telemetry.New(c.cfg.Telemetry.Enabled, api.DefaultServiceName, c.logger)
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			c.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	client, err := memories.NewClient(memories.Config{
		Settings:       c.settings,
		Logger:         c.logger,
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
	})
	if err != nil {
		return fmt.Errorf("creating memories client: %w", err)
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event pool: %w", err)
	}
	// Runs before publisher.Close so queued events are flushed first.
	defer pool.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.Server.Listen,
		DisableMCP: c.cfg.Server.DisableMCP,
	}, client, pool, c.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}

// newLogger builds the pretty terminal logger, teed to a JSON log file when
// server.log_file is set. The file sink uses server.log_level when given and
// follows --debug otherwise. The returned func closes the file.
func (c *serveCommander) newLogger() (func(), error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.noColor),
		logger.WithWriter(os.Stderr),
	)

	if c.cfg.Server.LogFile == "" {
		c.logger = console
		return func() {}, nil
	}

	fileOpts := []logger.Option{logger.WithDebug(c.debug), logger.WithJSON(true)}
	if c.cfg.Server.LogLevel != "" {
		level, err := logger.ParseLevel(c.cfg.Server.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", config.KeyServerLogLevel, err)
		}
		fileOpts = append(fileOpts, logger.WithLevel(level))
	}

	f, err := os.OpenFile(c.cfg.Server.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(append(fileOpts, logger.WithWriter(f))...)
	c.logger = logger.Multi(console, file)

	return func() { _ = f.Close() }, nil
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	switch c.cfg.Events.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: kafka.SplitBrokers(c.cfg.Events.Brokers),
			Topic:   c.cfg.Events.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing memory events to kafka",
			"brokers", c.cfg.Events.Brokers,
			"topic", c.cfg.Events.Topic,
		)
		return p, nil

	default:
		return nil, errors.New("unknown events provider: " + c.cfg.Events.Provider + " (expected nop or kafka)")
	}
}
