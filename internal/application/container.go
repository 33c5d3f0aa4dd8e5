// Package application provides application-level services and dependency injection.
package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/preludium/taskwatch/internal/adapters/api"
	"github.com/preludium/taskwatch/internal/adapters/cache"
	"github.com/preludium/taskwatch/internal/adapters/stream"
	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/application/tasks"
	"github.com/preludium/taskwatch/internal/infrastructure/config"
	"github.com/preludium/taskwatch/internal/infrastructure/logging"
	"github.com/preludium/taskwatch/internal/infrastructure/tracing"
)

// Container holds all application dependencies and provides a central
// point for dependency injection. It manages initialization order and
// teardown.
type Container struct {
	config  *config.Config
	verbose bool // Override log level to debug when true

	logger *logging.Logger
	tracer *tracing.Tracer

	taskCache ports.TaskCache
	taskAPI   ports.TaskAPI
	streamSrc ports.StreamSource

	service *tasks.Service
}

// NewContainer creates a dependency injection container with all
// services initialized from the provided configuration.
func NewContainer(cfg *config.Config, verbose bool) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	c := &Container{
		config:  cfg,
		verbose: verbose,
	}

	c.initLogging()

	if err := c.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := c.initCache(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	c.initClients()
	c.service = tasks.NewService(
		c.taskAPI,
		c.taskCache,
		c.streamSrc,
		c.config.Cache.DefaultTTL,
		c.logger,
		c.tracer,
	)

	return c, nil
}

// initLogging builds the logger from config, with --verbose forcing
// debug level.
func (c *Container) initLogging() {
	level := logging.Level(c.config.Logging.Level)
	if c.verbose {
		level = logging.LevelDebug
	}

	c.logger = logging.Init(logging.Config{
		Level:  level,
		Format: logging.Format(c.config.Logging.Format),
		Output: logging.DefaultConfig().Output,
	})
	if c.verbose {
		c.logger.SetLevel(logging.LevelDebug)
	}
}

// initTracing builds the tracer provider. Disabled tracing yields a
// noop tracer, never an error.
func (c *Container) initTracing() error {
	tcfg := c.config.Observability.Tracing

	tracer, err := tracing.New(context.Background(), tracing.Config{
		Enabled:      tcfg.Enabled,
		ExporterType: tracing.ExporterType(tcfg.ExporterType),
		OTLPEndpoint: tcfg.OTLPEndpoint,
		ServiceName:  tcfg.ServiceName,
		SampleRate:   tcfg.SampleRate,
	})
	if err != nil {
		return err
	}
	c.tracer = tracer
	return nil
}

// initCache builds the memory tier and, when a snapshot path is
// configured, layers the SQLite tier underneath it.
func (c *Container) initCache() error {
	memory := cache.NewMemoryStore(c.config.Cache.MaxMemorySize, c.config.Cache.CleanupPeriod)

	if c.config.Cache.SnapshotPath == "" {
		c.taskCache = memory
		return nil
	}

	snapshot, err := cache.OpenSnapshot(c.config.Cache.SnapshotPath)
	if err != nil {
		memory.Close()
		return fmt.Errorf("failed to open cache snapshot: %w", err)
	}
	c.taskCache = cache.NewCompositeStore(memory, snapshot, c.config.Cache.DefaultTTL)
	return nil
}

// initClients builds the REST client and the stream manager.
func (c *Container) initClients() {
	c.taskAPI = api.NewClient(api.Config{
		BaseURL: c.config.API.BaseURL,
		Timeout: c.config.API.Timeout,
	}, c.tracer)

	c.streamSrc = stream.NewManager(stream.Config{
		URL:            c.StreamURL(),
		StallTimeout:   c.config.Stream.StallTimeout,
		ReadBufferSize: c.config.Stream.ReadBufferSize,
	}, c.logger, c.tracer)
}

// StreamURL joins the API base URL and the stream endpoint path.
func (c *Container) StreamURL() string {
	base := strings.TrimSuffix(c.config.API.BaseURL, "/")
	endpoint := c.config.Stream.Endpoint
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the application logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Tracer returns the application tracer.
func (c *Container) Tracer() *tracing.Tracer {
	return c.tracer
}

// Cache returns the shared task cache store.
func (c *Container) Cache() ports.TaskCache {
	return c.taskCache
}

// API returns the task REST client.
func (c *Container) API() ports.TaskAPI {
	return c.taskAPI
}

// Stream returns the event stream source.
func (c *Container) Stream() ports.StreamSource {
	return c.streamSrc
}

// Tasks returns the application core.
func (c *Container) Tasks() *tasks.Service {
	return c.service
}

// Close releases container resources in reverse initialization order.
func (c *Container) Close() error {
	var firstErr error

	if c.streamSrc != nil {
		c.streamSrc.Unsubscribe()
	}
	if c.taskCache != nil {
		if err := c.taskCache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.tracer != nil {
		if err := c.tracer.Shutdown(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
