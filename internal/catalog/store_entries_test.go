package catalog_test

import (
	"context"
	"errors"
	"testing"

	"modelkeep/internal/catalog"
	"modelkeep/internal/testsupport"
)

func TestObserveIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	params := catalog.ObserveParams{
		Path:        "loras/cat.safetensors",
		BaseLabel:   "main",
		Name:        "cat.safetensors",
		ContentHash: "AAA111",
		ModifiedAt:  1000,
	}

	first, err := store.Observe(ctx, params)
	if err != nil {
		t.Fatalf("first observe: %v", err)
	}
	second, err := store.Observe(ctx, params)
	if err != nil {
		t.Fatalf("second observe: %v", err)
	}
	if first != second {
		t.Fatalf("expected one entry, got ids %d and %d", first, second)
	}

	entry, err := store.GetByID(ctx, first)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !entry.Live {
		t.Fatal("expected entry to be live")
	}
	if entry.ContentHash != "aaa111" {
		t.Fatalf("expected lowercased hash, got %q", entry.ContentHash)
	}

	_, total, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one live entry, got %d", total)
	}
}

func TestObserveOverwritesOnConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id := testsupport.Observe(t, store, catalog.ObserveParams{
		Path:        "checkpoints/base.safetensors",
		BaseLabel:   "main",
		Name:        "base.safetensors",
		ContentHash: "old",
		ModifiedAt:  1000,
	})

	if err := store.BeginScan(ctx); err != nil {
		t.Fatalf("BeginScan: %v", err)
	}

	again := testsupport.Observe(t, store, catalog.ObserveParams{
		Path:        "checkpoints/base.safetensors",
		BaseLabel:   "main",
		Name:        "base-v2.safetensors",
		ContentHash: "new",
		ModifiedAt:  2000,
	})
	if again != id {
		t.Fatalf("expected reactivated row %d, got %d", id, again)
	}

	entry, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !entry.Live {
		t.Fatal("expected re-observed entry to be live")
	}
	if entry.Name != "base-v2.safetensors" || entry.ContentHash != "new" || entry.UpdatedAt != 2000 {
		t.Fatalf("conflict update incomplete: %+v", entry)
	}
}

func TestMarkAndSweepRemovesUnobservedEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	kept := testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "loras/kept.safetensors", BaseLabel: "main", Name: "kept", ModifiedAt: 1000,
	})
	gone := testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "loras/gone.safetensors", BaseLabel: "main", Name: "gone", ModifiedAt: 1001,
	})

	if err := store.BeginScan(ctx); err != nil {
		t.Fatalf("BeginScan: %v", err)
	}
	testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "loras/kept.safetensors", BaseLabel: "main", Name: "kept", ModifiedAt: 1002,
	})

	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removed entry, got %d", removed)
	}

	entry, err := store.GetByID(ctx, kept)
	if err != nil {
		t.Fatalf("GetByID kept: %v", err)
	}
	if !entry.Live {
		t.Fatal("expected surviving entry to be live")
	}

	if _, err := store.GetByID(ctx, gone); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for swept entry, got %v", err)
	}
}

func TestSoftDeleteReturnsLocationAndSparesSiblings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id := testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "loras/dup-a.safetensors", BaseLabel: "main", Name: "dup-a", ContentHash: "feed", ModifiedAt: 1000,
	})
	sibling := testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "loras/dup-b.safetensors", BaseLabel: "main", Name: "dup-b", ContentHash: "feed", ModifiedAt: 1001,
	})

	path, label, err := store.SoftDelete(ctx, id)
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if path != "loras/dup-a.safetensors" || label != "main" {
		t.Fatalf("unexpected location: %q %q", path, label)
	}

	entry, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if entry.Live {
		t.Fatal("expected soft-deleted entry to be non-live")
	}

	other, err := store.GetByID(ctx, sibling)
	if err != nil {
		t.Fatalf("GetByID sibling: %v", err)
	}
	if !other.Live {
		t.Fatal("sibling sharing the hash must stay live")
	}

	if _, _, err := store.SoftDelete(ctx, 99999); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestGetByHashPrefersLiveEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id := testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "checkpoints/a.safetensors", BaseLabel: "main", Name: "a", ContentHash: "CAFE", ModifiedAt: 1000,
	})

	entry, err := store.GetByHash(ctx, "cafe")
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if entry.ID != id {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	if entry, err = store.GetByHash(ctx, "CAFE"); err != nil || entry.ID != id {
		t.Fatalf("expected case-insensitive hash lookup, got %v %v", entry, err)
	}

	if _, _, err := store.SoftDelete(ctx, id); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, err := store.GetByHash(ctx, "cafe"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after soft delete, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "a.safetensors", BaseLabel: "main", Name: "oldest", ModifiedAt: 1000,
	})
	testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "b.safetensors", BaseLabel: "main", Name: "newest", ModifiedAt: 3000,
	})
	testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "c.safetensors", BaseLabel: "main", Name: "middle", ModifiedAt: 2000,
	})

	entries, total, err := store.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(entries) != 2 {
		t.Fatalf("expected page of 2, got %d", len(entries))
	}
	if entries[0].Name != "newest" || entries[1].Name != "middle" {
		t.Fatalf("unexpected order: %q %q", entries[0].Name, entries[1].Name)
	}
}

func TestUpdateNoteAndModelName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id := testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "loras/x.safetensors", BaseLabel: "main", Name: "x", ModifiedAt: 1000,
	})

	if err := store.UpdateNote(ctx, id, "my favourite"); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if err := store.SetModelName(ctx, id, "Pastel Mix"); err != nil {
		t.Fatalf("SetModelName: %v", err)
	}

	entry, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if entry.Note != "my favourite" || entry.ModelName != "Pastel Mix" {
		t.Fatalf("updates not applied: %+v", entry)
	}

	if err := store.UpdateNote(ctx, 99999, "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetModelName(ctx, 99999, "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsCountsDuplicateGroups(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "a.safetensors", BaseLabel: "main", Name: "a", ContentHash: "aaa", ModifiedAt: 1000,
	})
	testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "b.safetensors", BaseLabel: "main", Name: "b", ContentHash: "aaa", ModifiedAt: 1001,
	})
	testsupport.Observe(t, store, catalog.ObserveParams{
		Path: "c.safetensors", BaseLabel: "main", Name: "c", ContentHash: "bbb", ModifiedAt: 1002,
	})
	if _, err := store.CreateJob(ctx, "Download something"); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEntries != 3 || stats.LiveEntries != 3 {
		t.Fatalf("unexpected entry counts: %+v", stats)
	}
	if stats.DuplicateGroups != 1 {
		t.Fatalf("expected one duplicate group, got %d", stats.DuplicateGroups)
	}
	if stats.RunningJobs != 1 {
		t.Fatalf("expected one running job, got %d", stats.RunningJobs)
	}
}
