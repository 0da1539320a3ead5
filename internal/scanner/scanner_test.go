package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"modelkeep/internal/catalog"
	"modelkeep/internal/contenthash"
	"modelkeep/internal/logging"
	"modelkeep/internal/scanner"
	"modelkeep/internal/testsupport"
)

func versionSidecar(hash string) map[string]any {
	return map[string]any{
		"id":        11,
		"modelId":   42,
		"baseModel": "SDXL 1.0",
		"files": []map[string]any{
			{
				"name":     "pastel.safetensors",
				"hashes":   map[string]string{"BLAKE3": hash},
				"metadata": map[string]string{"fp": "fp16", "format": "SafeTensor"},
			},
		},
	}
}

func TestScanAllObservesModelFilesWithSidecarMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.Root(t, cfg, "main")
	ctx := context.Background()

	model := filepath.Join(root, "checkpoints", "pastel.safetensors")
	testsupport.WriteFile(t, model, 64)
	testsupport.WriteJSON(t, filepath.Join(root, "checkpoints", "pastel.json"), versionSidecar("CAFEBABE"))
	testsupport.WriteJSON(t, filepath.Join(root, "checkpoints", "pastel.model.json"), map[string]any{
		"name": "Pastel Mix",
		"type": "Checkpoint",
		"tags": []string{"anime", "style"},
	})

	// Not a model extension: ignored.
	testsupport.WriteFile(t, filepath.Join(root, "checkpoints", "readme.txt"), 10)
	// Trash is never scanned.
	testsupport.WriteFile(t, filepath.Join(root, ".trash", "old.safetensors"), 10)

	s := scanner.New(cfg, store, logging.NewNop())
	observed, err := s.ScanAll(ctx)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if observed != 1 {
		t.Fatalf("expected 1 observed file, got %d", observed)
	}

	entry, err := store.GetByHash(ctx, "cafebabe")
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if entry.Path != filepath.Join("checkpoints", "pastel.safetensors") || entry.BaseLabel != "main" {
		t.Fatalf("unexpected entry location: %+v", entry)
	}
	if entry.Name != "pastel.safetensors" || entry.ModelName != "Pastel Mix" {
		t.Fatalf("unexpected entry names: %+v", entry)
	}
	if entry.UpdatedAt == 0 {
		t.Fatal("expected mtime to be recorded")
	}

	tags, err := store.EntryTags(ctx, entry.ID)
	if err != nil {
		t.Fatalf("EntryTags: %v", err)
	}
	want := map[string]bool{"sdxl 1.0": true, "checkpoint": true, "anime": true, "style": true, "fp16": true, "safetensor": true}
	if len(tags) != len(want) {
		t.Fatalf("unexpected tags: %v", tags)
	}
	for _, tag := range tags {
		if !want[tag] {
			t.Fatalf("unexpected tag %q in %v", tag, tags)
		}
	}
}

func TestScanHashesLocallyWithoutSidecar(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.Root(t, cfg, "main")
	ctx := context.Background()

	model := filepath.Join(root, "loras", "bare.safetensors")
	testsupport.WriteFile(t, model, 128)
	wantHash, err := contenthash.SumFile(model)
	if err != nil {
		t.Fatalf("hash model: %v", err)
	}

	s := scanner.New(cfg, store, logging.NewNop())
	if _, err := s.ScanAll(ctx); err != nil {
		t.Fatalf("ScanAll: %v", err)
	}

	entry, err := store.GetByHash(ctx, wantHash)
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if entry.ModelName != "" {
		t.Fatalf("expected no model name without sidecar, got %q", entry.ModelName)
	}
}

func TestRescanReactivatesInsteadOfDuplicating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.Root(t, cfg, "main")
	ctx := context.Background()

	testsupport.WriteFile(t, filepath.Join(root, "a.safetensors"), 32)
	s := scanner.New(cfg, store, logging.NewNop())

	if _, err := s.ScanAll(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if err := store.BeginScan(ctx); err != nil {
		t.Fatalf("BeginScan: %v", err)
	}
	if _, err := s.ScanAll(ctx); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("re-observed file must survive sweep, removed %d", removed)
	}

	_, total, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one entry after rescan, got %d", total)
	}
}

func TestIngestFileResolvesRootAndAppliesMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.Root(t, cfg, "main")
	ctx := context.Background()

	model := filepath.Join(root, "loras", "fresh.safetensors")
	testsupport.WriteFile(t, model, 32)
	testsupport.WriteJSON(t, filepath.Join(root, "loras", "fresh.json"), versionSidecar("feedf00d"))

	s := scanner.New(cfg, store, logging.NewNop())
	id, err := s.IngestFile(ctx, model)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	entry, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if entry.ContentHash != "feedf00d" {
		t.Fatalf("expected sidecar hash, got %q", entry.ContentHash)
	}

	if _, err := s.IngestFile(ctx, filepath.Join(t.TempDir(), "outside.safetensors")); err == nil {
		t.Fatal("expected error for path outside configured roots")
	}
}

func TestScanRootUnknownLabel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	s := scanner.New(cfg, store, logging.NewNop())
	if _, err := s.ScanRoot(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestScanSkipsUnreadableSidecarGracefully(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := testsupport.Root(t, cfg, "main")
	ctx := context.Background()

	model := filepath.Join(root, "broken.safetensors")
	testsupport.WriteFile(t, model, 16)
	if err := os.WriteFile(filepath.Join(root, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	s := scanner.New(cfg, store, logging.NewNop())
	observed, err := s.ScanAll(ctx)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if observed != 1 {
		t.Fatalf("malformed sidecar must not block observation, observed %d", observed)
	}

	entry := mustOnlyEntry(t, store)
	if entry.ContentHash == "" {
		t.Fatal("expected locally computed hash despite malformed sidecar")
	}
}

func mustOnlyEntry(t *testing.T, store *catalog.Store) catalog.Entry {
	t.Helper()

	entries, total, err := store.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", total)
	}
	return entries[0]
}
