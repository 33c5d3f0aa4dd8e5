package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/preludium/taskwatch/internal/domain/task"
)

func newTestSnapshot(t *testing.T) *SnapshotStore {
	t.Helper()
	store, err := OpenSnapshot(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("OpenSnapshot() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSnapshotStore_PageRoundTrip(t *testing.T) {
	store := newTestSnapshot(t)
	ctx := context.Background()

	if err := store.SetPage(ctx, "k", samplePage(), time.Hour); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}

	page, found := store.GetPage(ctx, "k")
	if !found {
		t.Fatal("GetPage() returned not found")
	}
	if len(page.Items) != 2 || page.Items[0].Title != "first" {
		t.Errorf("GetPage() = %+v, want sample page", page)
	}
}

func TestSnapshotStore_TTLExpiration(t *testing.T) {
	store := newTestSnapshot(t)
	ctx := context.Background()

	if err := store.SetPage(ctx, "k", samplePage(), 10*time.Millisecond); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, found := store.GetPage(ctx, "k"); found {
		t.Error("GetPage() returned expired entry")
	}

	removed, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
}

func TestSnapshotStore_CountsRoundTrip(t *testing.T) {
	store := newTestSnapshot(t)
	ctx := context.Background()

	counts := task.StatusCounts{Open: 2, InProgress: 1, Done: 4, Total: 7}
	if err := store.SetCounts(ctx, counts, time.Hour); err != nil {
		t.Fatalf("SetCounts() error = %v", err)
	}

	got, found := store.GetCounts(ctx)
	if !found {
		t.Fatal("GetCounts() returned not found")
	}
	if got != counts {
		t.Errorf("GetCounts() = %+v, want %+v", got, counts)
	}
}

func TestSnapshotStore_UpdatePage(t *testing.T) {
	store := newTestSnapshot(t)
	ctx := context.Background()

	if store.UpdatePage(ctx, "missing", func(p *task.Page) bool { return true }) {
		t.Error("UpdatePage() = true for absent key")
	}

	_ = store.SetPage(ctx, "k", samplePage(), time.Hour)
	applied := store.UpdatePage(ctx, "k", func(p *task.Page) bool {
		p.Items = p.Items[:1]
		p.Total--
		return true
	})
	if !applied {
		t.Fatal("UpdatePage() = false, want true")
	}

	page, _ := store.GetPage(ctx, "k")
	if len(page.Items) != 1 || page.Total != 1 {
		t.Errorf("page after update = %+v, want 1 item total 1", page)
	}
}

func TestSnapshotStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.db")
	ctx := context.Background()

	first, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot() error = %v", err)
	}
	if err := first.SetPage(ctx, "k", samplePage(), time.Hour); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot() reopen error = %v", err)
	}
	defer second.Close()

	if _, found := second.GetPage(ctx, "k"); !found {
		t.Error("page did not survive reopen")
	}
}

func newTestComposite(t *testing.T) (*CompositeStore, *MemoryStore, *SnapshotStore) {
	t.Helper()
	memory := NewMemoryStore(0, 0)
	t.Cleanup(func() { memory.Close() })
	snapshot := newTestSnapshot(t)
	return NewCompositeStore(memory, snapshot, time.Hour), memory, snapshot
}

func TestCompositeStore_WritesThroughBothTiers(t *testing.T) {
	composite, memory, snapshot := newTestComposite(t)
	ctx := context.Background()

	if err := composite.SetPage(ctx, "k", samplePage(), time.Hour); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}

	if _, found := memory.GetPage(ctx, "k"); !found {
		t.Error("page missing from memory tier")
	}
	if _, found := snapshot.GetPage(ctx, "k"); !found {
		t.Error("page missing from snapshot tier")
	}
}

func TestCompositeStore_PromotesSnapshotHit(t *testing.T) {
	composite, memory, snapshot := newTestComposite(t)
	ctx := context.Background()

	// Seed only the snapshot tier, as after a restart.
	if err := snapshot.SetPage(ctx, "k", samplePage(), time.Hour); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}

	if _, found := composite.GetPage(ctx, "k"); !found {
		t.Fatal("GetPage() missed a snapshot-held page")
	}
	if _, found := memory.GetPage(ctx, "k"); !found {
		t.Error("snapshot hit was not promoted to memory")
	}
}

func TestCompositeStore_UpdatePage_PromotesThenApplies(t *testing.T) {
	composite, _, snapshot := newTestComposite(t)
	ctx := context.Background()

	_ = snapshot.SetPage(ctx, "k", samplePage(), time.Hour)

	calls := 0
	applied := composite.UpdatePage(ctx, "k", func(p *task.Page) bool {
		calls++
		p.Total = 42
		return true
	})
	if !applied {
		t.Fatal("UpdatePage() = false, want true")
	}
	if calls != 1 {
		t.Errorf("update fn ran %d times, want 1", calls)
	}

	// The result must land in both tiers.
	if page, _ := composite.GetPage(ctx, "k"); page.Total != 42 {
		t.Errorf("composite page Total = %d, want 42", page.Total)
	}
	if page, _ := snapshot.GetPage(ctx, "k"); page.Total != 42 {
		t.Errorf("snapshot page Total = %d, want 42", page.Total)
	}
}

func TestCompositeStore_UpdatePage_AbsentEverywhere(t *testing.T) {
	composite, _, _ := newTestComposite(t)

	if composite.UpdatePage(context.Background(), "missing", func(p *task.Page) bool { return true }) {
		t.Error("UpdatePage() = true with no tier holding the key")
	}
}

func TestCompositeStore_UpdateCounts(t *testing.T) {
	composite, _, snapshot := newTestComposite(t)
	ctx := context.Background()

	if composite.UpdateCounts(ctx, func(c *task.StatusCounts) { c.Open++ }) {
		t.Error("UpdateCounts() = true before any counts cached")
	}

	_ = snapshot.SetCounts(ctx, task.StatusCounts{Open: 1, Total: 1}, time.Hour)

	if !composite.UpdateCounts(ctx, func(c *task.StatusCounts) { c.Add(task.StatusOpen, 1) }) {
		t.Fatal("UpdateCounts() = false, want true")
	}

	counts, found := composite.GetCounts(ctx)
	if !found {
		t.Fatal("GetCounts() not found after update")
	}
	if counts.Open != 2 || counts.Total != 2 {
		t.Errorf("counts = %+v, want Open=2 Total=2", counts)
	}
}
