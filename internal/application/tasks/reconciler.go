package tasks

import (
	"context"
	"time"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/infrastructure/logging"
	"github.com/preludium/taskwatch/internal/infrastructure/tracing"
)

// Reconciler applies classified task events onto already-cached pull
// results. It only ever corrects entries a pull has materialized, since
// a push event alone never creates a page, and every operation
// tolerates the target entry having been replaced or dropped by a
// concurrent pull. Last write wins; the next pull corrects any drift.
type Reconciler struct {
	cache  ports.TaskCache
	ttl    time.Duration
	logger *logging.Logger
	tracer *tracing.Tracer
}

// NewReconciler creates a reconciler over the shared cache store.
func NewReconciler(cache ports.TaskCache, ttl time.Duration, logger *logging.Logger, tracer *tracing.Tracer) *Reconciler {
	return &Reconciler{
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		tracer: tracer,
	}
}

// Apply routes one classified event to its handler. Returns whether
// the cache changed.
func (r *Reconciler) Apply(ctx context.Context, query task.Query, event task.Event) bool {
	switch event.Kind {
	case task.EventCreated:
		return r.OnCreated(ctx, query, event.Task)
	case task.EventUpdated:
		return r.OnUpdated(ctx, query, event.Task)
	case task.EventDeleted:
		return r.OnDeleted(ctx, query, event.Task)
	}
	return false
}

// OnCreated folds a created task into the current view. The task is
// prepended to the cached page when the view's filter admits it and the
// page does not already hold it; a redelivered event is a complete
// no-op, counts included.
func (r *Reconciler) OnCreated(ctx context.Context, query task.Query, t task.Task) bool {
	query = query.Normalize()
	key := query.CacheKey()
	ctx, span := r.tracer.StartReconcileSpan(ctx, task.EventTaskCreated, key)
	defer span.End()
	ctx = logging.WithCacheKey(logging.WithEventName(ctx, task.EventTaskCreated), key)

	if !query.Matches(t.Status) {
		// Not visible in this view; the counts still move.
		applied := r.bumpCounts(ctx, t.Status, +1)
		span.SetApplied(applied)
		return applied
	}

	duplicate := false
	applied := r.cache.UpdatePage(ctx, key, func(page *task.Page) bool {
		if page.IndexOf(t.ID) >= 0 {
			duplicate = true
			return false
		}
		page.Items = append([]task.Task{t}, page.Items...)
		if len(page.Items) > query.Size {
			page.Items = page.Items[:query.Size]
		}
		page.Total++
		return true
	})

	if duplicate {
		r.logger.DebugContext(ctx, "duplicate create event ignored", "task_id", t.ID)
		span.SetApplied(false)
		return false
	}
	if !applied {
		// Page never pulled; nothing to correct.
		span.SetApplied(false)
		return false
	}

	r.bumpCounts(ctx, t.Status, +1)
	r.logger.DebugContext(ctx, "task folded into cached page", "task_id", t.ID)
	span.SetApplied(true)
	return true
}

// OnUpdated field-merges an updated task over its cached copy. A task
// absent from the page is a no-op.
func (r *Reconciler) OnUpdated(ctx context.Context, query task.Query, t task.Task) bool {
	query = query.Normalize()
	key := query.CacheKey()
	ctx, span := r.tracer.StartReconcileSpan(ctx, task.EventTaskUpdated, key)
	defer span.End()
	ctx = logging.WithCacheKey(logging.WithEventName(ctx, task.EventTaskUpdated), key)

	applied := r.cache.UpdatePage(ctx, key, func(page *task.Page) bool {
		i := page.IndexOf(t.ID)
		if i < 0 {
			return false
		}
		page.Items[i].Merge(t)
		return true
	})

	if applied {
		r.logger.DebugContext(ctx, "cached task updated", "task_id", t.ID)
	}
	span.SetApplied(applied)
	return applied
}

// OnDeleted removes a deleted task from the cached page and walks the
// counts down, mirroring OnCreated: a filter mismatch still moves the
// counts, and a decrement against an absent entity clamps at zero
// under duplicate or out-of-order delivery.
func (r *Reconciler) OnDeleted(ctx context.Context, query task.Query, t task.Task) bool {
	query = query.Normalize()
	key := query.CacheKey()
	ctx, span := r.tracer.StartReconcileSpan(ctx, task.EventTaskDeleted, key)
	defer span.End()
	ctx = logging.WithCacheKey(logging.WithEventName(ctx, task.EventTaskDeleted), key)

	if !query.Matches(t.Status) {
		// Not visible in this view; the counts still walk back.
		applied := r.bumpCounts(ctx, t.Status, -1)
		span.SetApplied(applied)
		return applied
	}

	materialized := false
	removed := false
	r.cache.UpdatePage(ctx, key, func(page *task.Page) bool {
		materialized = true
		i := page.IndexOf(t.ID)
		if i < 0 {
			return false
		}
		page.Items = append(page.Items[:i], page.Items[i+1:]...)
		if page.Total > 0 {
			page.Total--
		}
		removed = true
		return true
	})

	if !materialized {
		// Page never pulled; nothing to correct.
		span.SetApplied(false)
		return false
	}

	counted := r.bumpCounts(ctx, t.Status, -1)
	if removed {
		r.logger.DebugContext(ctx, "task removed from cached page", "task_id", t.ID)
	}
	applied := removed || counted
	span.SetApplied(applied)
	return applied
}

// bumpCounts shifts one status bucket and the total by delta, clamped
// at zero. A no-op when no counts have been pulled yet.
func (r *Reconciler) bumpCounts(ctx context.Context, status task.Status, delta int) bool {
	return r.cache.UpdateCounts(ctx, func(counts *task.StatusCounts) {
		counts.Add(status, delta)
	})
}
