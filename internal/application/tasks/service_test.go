package tasks

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/preludium/taskwatch/internal/adapters/cache"
	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/infrastructure/logging"
	"github.com/preludium/taskwatch/internal/infrastructure/tracing"
)

// fakeAPI serves canned responses and counts calls.
type fakeAPI struct {
	mu        sync.Mutex
	page      task.Page
	counts    task.StatusCounts
	listCalls int
}

func (f *fakeAPI) List(ctx context.Context, query task.Query) (task.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.page, nil
}

func (f *fakeAPI) Counts(ctx context.Context) (task.StatusCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts, nil
}

func (f *fakeAPI) Get(ctx context.Context, id int) (task.Task, error) {
	return task.Task{ID: id}, nil
}

func (f *fakeAPI) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	return task.Task{ID: 100, Title: draft.Title, Status: draft.Status}, nil
}

func (f *fakeAPI) Update(ctx context.Context, id int, patch task.Patch) (task.Task, error) {
	return task.Task{ID: id}, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id int) error { return nil }

func (f *fakeAPI) Health(ctx context.Context) (ports.Health, error) {
	return ports.Health{Status: "healthy"}, nil
}

func (f *fakeAPI) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// fakeStream lets tests push frames straight at the service.
type fakeStream struct {
	mu       sync.Mutex
	handlers []ports.FrameHandler
	state    ports.ConnectionState
}

func (f *fakeStream) Subscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = ports.ConnectionState{Status: ports.StatusConnected}
}

func (f *fakeStream) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = nil
	f.state = ports.ConnectionState{Status: ports.StatusDisconnected}
}

func (f *fakeStream) ForceReconnect() {}

func (f *fakeStream) State() ports.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStream) OnFrame(handler ports.FrameHandler) ports.Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
	return func() {}
}

func (f *fakeStream) OnStateChange(handler ports.StateHandler) ports.Unsubscribe {
	return func() {}
}

func (f *fakeStream) emit(name string, data []byte) {
	f.mu.Lock()
	handlers := append([]ports.FrameHandler(nil), f.handlers...)
	f.mu.Unlock()
	for _, handler := range handlers {
		handler(name, data)
	}
}

func newTestService(t *testing.T, api *fakeAPI, stream *fakeStream) *Service {
	t.Helper()
	store := cache.NewMemoryStore(0, 0)
	t.Cleanup(func() { store.Close() })

	tracer, err := tracing.New(context.Background(), tracing.DefaultConfig())
	if err != nil {
		t.Fatalf("tracing.New() error = %v", err)
	}
	logger := logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})

	return NewService(api, store, stream, time.Hour, logger, tracer)
}

func TestService_PageIsCacheFirst(t *testing.T) {
	api := &fakeAPI{page: task.Page{
		Items: []task.Task{{ID: 1, Title: "one", Status: task.StatusOpen}},
		Total: 1, Page: 1, Size: 10,
	}}
	svc := newTestService(t, api, &fakeStream{})
	ctx := context.Background()

	first, err := svc.Page(ctx)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	second, err := svc.Page(ctx)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	if first.Total != 1 || second.Total != 1 {
		t.Errorf("pages = %+v / %+v", first, second)
	}
	if got := api.listCount(); got != 1 {
		t.Errorf("API list calls = %d, want 1 (second read from cache)", got)
	}
}

func TestService_StreamEventReconcilesActiveView(t *testing.T) {
	api := &fakeAPI{
		page:   task.Page{Items: nil, Total: 0, Page: 1, Size: 10},
		counts: task.StatusCounts{},
	}
	stream := &fakeStream{}
	svc := newTestService(t, api, stream)
	ctx := context.Background()

	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	svc.Subscribe()

	stream.emit(task.EventTaskCreated, []byte(`{"task": {"id": 9, "title": "pushed", "status": "OPEN"}}`))

	page, err := svc.Page(ctx)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != 9 {
		t.Errorf("page after push = %+v, want the pushed task", page.Items)
	}
	if page.Total != 1 {
		t.Errorf("total = %d, want 1", page.Total)
	}

	counts, err := svc.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if counts.Open != 1 || counts.Total != 1 {
		t.Errorf("counts after push = %+v", counts)
	}
}

func TestService_MalformedFrameLeavesCacheAlone(t *testing.T) {
	api := &fakeAPI{page: task.Page{Items: nil, Total: 0, Page: 1, Size: 10}}
	stream := &fakeStream{}
	svc := newTestService(t, api, stream)
	ctx := context.Background()

	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	svc.Subscribe()

	stream.emit(task.EventTaskCreated, []byte(`{"no_task_here": true}`))
	stream.emit("task_archived", []byte(`{"task": {"id": 1}}`))

	page, _ := svc.Page(ctx)
	if len(page.Items) != 0 || page.Total != 0 {
		t.Errorf("rejected frames changed the cache: %+v", page)
	}
}

func TestService_SetQueryMovesReconcileTarget(t *testing.T) {
	api := &fakeAPI{page: task.Page{Items: nil, Total: 0, Page: 1, Size: 10}}
	stream := &fakeStream{}
	svc := newTestService(t, api, stream)
	ctx := context.Background()

	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	firstKey := svc.Query().CacheKey()
	svc.Subscribe()

	// Move to a view whose page has not been pulled.
	svc.SetQuery(task.Query{Status: task.StatusDone, Page: 1, Size: 10})
	stream.emit(task.EventTaskCreated, []byte(`{"task": {"id": 4, "status": "DONE"}}`))

	// The event targeted the new, unmaterialized key: full no-op.
	page, err := svc.Page(ctx)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("unmaterialized view gained items: %+v", page.Items)
	}

	svc.SetQuery(task.Query{Page: 1, Size: 10})
	if svc.Query().CacheKey() != firstKey {
		t.Fatalf("query did not round-trip to the original key")
	}
}

func TestService_CreateRefreshesCache(t *testing.T) {
	api := &fakeAPI{page: task.Page{Items: nil, Total: 0, Page: 1, Size: 10}}
	svc := newTestService(t, api, &fakeStream{})
	ctx := context.Background()

	if _, err := svc.Page(ctx); err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	callsBefore := api.listCount()

	api.mu.Lock()
	api.page = task.Page{
		Items: []task.Task{{ID: 100, Title: "new task", Status: task.StatusOpen}},
		Total: 1, Page: 1, Size: 10,
	}
	api.mu.Unlock()

	created, err := svc.Create(ctx, task.Draft{Title: "new task"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != 100 {
		t.Errorf("Create() ID = %d, want 100", created.ID)
	}
	if api.listCount() <= callsBefore {
		t.Error("Create() did not re-pull the active view")
	}

	page, _ := svc.Page(ctx)
	if len(page.Items) != 1 || page.Items[0].ID != 100 {
		t.Errorf("cached view = %+v, want server's post-create page", page.Items)
	}
}

func TestService_ResubscribeRegistersOneHandler(t *testing.T) {
	api := &fakeAPI{}
	stream := &fakeStream{}
	svc := newTestService(t, api, stream)

	svc.Subscribe()
	svc.Subscribe()

	stream.mu.Lock()
	registered := len(stream.handlers)
	stream.mu.Unlock()
	if registered != 1 {
		t.Errorf("frame handlers registered = %d, want 1", registered)
	}

	svc.Unsubscribe()
	svc.Subscribe()

	stream.mu.Lock()
	registered = len(stream.handlers)
	stream.mu.Unlock()
	if registered != 1 {
		t.Errorf("frame handlers after resubscribe = %d, want 1", registered)
	}
}

func TestService_OnEventObservers(t *testing.T) {
	api := &fakeAPI{}
	stream := &fakeStream{}
	svc := newTestService(t, api, stream)
	svc.Subscribe()

	var got []task.Event
	unsub := svc.OnEvent(func(evt task.Event) {
		got = append(got, evt)
	})

	stream.emit(task.EventTaskCreated, []byte(`{"task": {"id": 3, "title": "observed", "status": "OPEN"}}`))
	stream.emit(task.EventHeartbeat, []byte(`{}`))

	if len(got) != 1 {
		t.Fatalf("observed %d events, want 1 (housekeeping frames excluded)", len(got))
	}
	if got[0].Kind != task.EventCreated || got[0].Task.ID != 3 {
		t.Errorf("observed event = %+v", got[0])
	}

	unsub()
	stream.emit(task.EventTaskDeleted, []byte(`{"task": {"id": 3}}`))
	if len(got) != 1 {
		t.Errorf("observer ran after unsubscribe, saw %d events", len(got))
	}
}
