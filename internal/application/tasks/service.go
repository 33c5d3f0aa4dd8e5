package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/infrastructure/logging"
	"github.com/preludium/taskwatch/internal/infrastructure/tracing"
)

// Service is the task client's application core. It carries the active
// query, serves reads cache-first over the pull API, pushes mutations
// through the API with cache refresh on success, and bridges the event
// stream into the reconciler.
type Service struct {
	api        ports.TaskAPI
	cache      ports.TaskCache
	stream     ports.StreamSource
	reconciler *Reconciler
	logger     *logging.Logger
	tracer     *tracing.Tracer
	ttl        time.Duration

	mu          sync.Mutex
	query       task.Query
	unsubFrame  ports.Unsubscribe
	eventSubs   map[int]func(task.Event)
	nextEventID int
}

// NewService wires the application core over its ports.
func NewService(
	api ports.TaskAPI,
	cache ports.TaskCache,
	stream ports.StreamSource,
	ttl time.Duration,
	logger *logging.Logger,
	tracer *tracing.Tracer,
) *Service {
	return &Service{
		api:        api,
		cache:      cache,
		stream:     stream,
		reconciler: NewReconciler(cache, ttl, logger, tracer),
		logger:     logger,
		tracer:     tracer,
		ttl:        ttl,
		query:      task.Query{}.Normalize(),
		eventSubs:  make(map[int]func(task.Event)),
	}
}

// Query returns the active query.
func (s *Service) Query() task.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// SetQuery changes the active query, moving which cache key the
// reconciler targets. The caller decides whether to Refresh.
func (s *Service) SetQuery(query task.Query) {
	s.mu.Lock()
	s.query = query.Normalize()
	s.mu.Unlock()
}

// Subscribe opens the event stream and routes its frames through the
// classifier into the reconciler.
func (s *Service) Subscribe() {
	s.mu.Lock()
	if s.unsubFrame == nil {
		s.unsubFrame = s.stream.OnFrame(s.handleFrame)
	}
	s.mu.Unlock()

	s.stream.Subscribe()
}

// Unsubscribe closes the event stream. The stream drops every handler,
// so a later Subscribe re-registers the service's own.
func (s *Service) Unsubscribe() {
	s.mu.Lock()
	s.unsubFrame = nil
	s.mu.Unlock()

	s.stream.Unsubscribe()
}

// ForceReconnect resets the stream's retry budget and reconnects.
func (s *Service) ForceReconnect() {
	s.stream.ForceReconnect()
}

// ConnectionState returns the stream's current state.
func (s *Service) ConnectionState() ports.ConnectionState {
	return s.stream.State()
}

// OnStateChange registers an observer for stream state transitions.
func (s *Service) OnStateChange(handler ports.StateHandler) ports.Unsubscribe {
	return s.stream.OnStateChange(handler)
}

// OnEvent registers an observer for classified task events. Observers
// run after the cache has been reconciled.
func (s *Service) OnEvent(handler func(task.Event)) ports.Unsubscribe {
	s.mu.Lock()
	id := s.nextEventID
	s.nextEventID++
	s.eventSubs[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.eventSubs, id)
		s.mu.Unlock()
	}
}

// handleFrame classifies one dispatched frame and reconciles it against
// the view active at the moment the frame is processed.
func (s *Service) handleFrame(name string, data []byte) {
	event, ok := Classify(name, data)
	if !ok {
		return
	}

	ctx := logging.WithCorrelationID(context.Background())
	s.reconciler.Apply(ctx, s.Query(), event)

	s.mu.Lock()
	observers := make([]func(task.Event), 0, len(s.eventSubs))
	for _, fn := range s.eventSubs {
		observers = append(observers, fn)
	}
	s.mu.Unlock()
	for _, fn := range observers {
		fn(event)
	}
}

// Page returns the active view, cache-first. A miss pulls from the API
// and materializes the page.
func (s *Service) Page(ctx context.Context) (task.Page, error) {
	query := s.Query()
	if page, found := s.cache.GetPage(ctx, query.CacheKey()); found {
		return page, nil
	}
	return s.refreshPage(ctx, query)
}

// Refresh pulls the active view and its counts from the API,
// overwriting the cached entries wholesale.
func (s *Service) Refresh(ctx context.Context) (task.Page, error) {
	query := s.Query()
	page, err := s.refreshPage(ctx, query)
	if err != nil {
		return task.Page{}, err
	}
	if _, err := s.refreshCounts(ctx); err != nil {
		// The page pull succeeded; stale counts fix themselves on the
		// next pull.
		s.logger.WarnContext(ctx, "counts refresh failed", "error", err)
	}
	return page, nil
}

// Counts returns the status counts, cache-first.
func (s *Service) Counts(ctx context.Context) (task.StatusCounts, error) {
	if counts, found := s.cache.GetCounts(ctx); found {
		return counts, nil
	}
	return s.refreshCounts(ctx)
}

// Get fetches one task by ID straight from the API.
func (s *Service) Get(ctx context.Context, id int) (task.Task, error) {
	return s.api.Get(ctx, id)
}

// Create creates a task through the API and refreshes the cached view.
func (s *Service) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	created, err := s.api.Create(ctx, draft)
	if err != nil {
		return task.Task{}, err
	}
	s.invalidateAndRefresh(ctx)
	return created, nil
}

// Update patches a task through the API and refreshes the cached view.
func (s *Service) Update(ctx context.Context, id int, patch task.Patch) (task.Task, error) {
	updated, err := s.api.Update(ctx, id, patch)
	if err != nil {
		return task.Task{}, err
	}
	s.invalidateAndRefresh(ctx)
	return updated, nil
}

// Delete removes a task through the API and refreshes the cached view.
func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateAndRefresh(ctx)
	return nil
}

// Health reports the backend's health.
func (s *Service) Health(ctx context.Context) (ports.Health, error) {
	return s.api.Health(ctx)
}

func (s *Service) refreshPage(ctx context.Context, query task.Query) (task.Page, error) {
	page, err := s.api.List(ctx, query)
	if err != nil {
		return task.Page{}, err
	}
	if err := s.cache.SetPage(ctx, query.CacheKey(), page, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "page cache write failed", "error", err)
	}
	return page, nil
}

func (s *Service) refreshCounts(ctx context.Context) (task.StatusCounts, error) {
	counts, err := s.api.Counts(ctx)
	if err != nil {
		return task.StatusCounts{}, err
	}
	if err := s.cache.SetCounts(ctx, counts, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "counts cache write failed", "error", err)
	}
	return counts, nil
}

// invalidateAndRefresh drops every cached page after a successful
// mutation and re-pulls the active view. Pull failures leave the cache
// empty rather than stale.
func (s *Service) invalidateAndRefresh(ctx context.Context) {
	if err := s.cache.InvalidatePages(ctx); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "error", err)
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "view refresh after mutation failed", "error", err)
	}
}
