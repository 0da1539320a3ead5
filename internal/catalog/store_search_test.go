package catalog_test

import (
	"context"
	"testing"

	"modelkeep/internal/catalog"
	"modelkeep/internal/testsupport"
)

func seedEntry(t *testing.T, store *catalog.Store, name, hash string, modified int64, tags ...string) int64 {
	t.Helper()
	id := testsupport.Observe(t, store, catalog.ObserveParams{
		Path:        name + ".safetensors",
		BaseLabel:   "main",
		Name:        name,
		ContentHash: hash,
		ModifiedAt:  modified,
	})
	if len(tags) > 0 {
		if err := store.ReplaceTags(context.Background(), id, tags); err != nil {
			t.Fatalf("ReplaceTags: %v", err)
		}
	}
	return id
}

func TestSearchMatchesNameAndModelName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	byName := seedEntry(t, store, "RedCat-v2", "h1", 100)
	byModel := seedEntry(t, store, "asset_0091", "h2", 200)
	if err := store.SetModelName(ctx, byModel, "Red Cat XL"); err != nil {
		t.Fatalf("SetModelName: %v", err)
	}
	seedEntry(t, store, "bluebird", "h3", 300)

	result, err := store.Search(ctx, catalog.SearchParams{Text: "red cat", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// "red cat" as a substring only matches the model name; the tag phase
	// finds nothing since no entry carries both tokens as tags.
	if len(result.Entries) != 1 || result.Entries[0].ID != byModel {
		t.Fatalf("entries = %v", result.Entries)
	}

	result, err = store.Search(ctx, catalog.SearchParams{Text: "redcat", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].ID != byName {
		t.Fatalf("case-insensitive name match failed: %v", result.Entries)
	}
}

func TestSearchTagPhaseRequiresEveryToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	both := seedEntry(t, store, "alpha", "h1", 100, "red", "cat", "anime")
	seedEntry(t, store, "beta", "h2", 200, "red")
	seedEntry(t, store, "gamma", "h3", 300, "cat")

	result, err := store.Search(ctx, catalog.SearchParams{Text: "red cat", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].ID != both {
		t.Fatalf("entries = %v", result.Entries)
	}
}

func TestSearchMergesPhasesWithoutDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Matches the name phase and carries the tag, so the tag phase must
	// exclude it and the merged list holds it once.
	nameAndTag := seedEntry(t, store, "anime style", "h1", 100, "anime")
	tagOnly := seedEntry(t, store, "plain", "h2", 200, "anime")

	result, err := store.Search(ctx, catalog.SearchParams{Text: "anime", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entries = %v", result.Entries)
	}
	// Name matches come first regardless of recency.
	if result.Entries[0].ID != nameAndTag || result.Entries[1].ID != tagOnly {
		t.Fatalf("merge order = [%d %d], want [%d %d]",
			result.Entries[0].ID, result.Entries[1].ID, nameAndTag, tagOnly)
	}
	// Each phase counted one match.
	if result.ApproxTotal != 2 {
		t.Fatalf("approx total = %d, want 2", result.ApproxTotal)
	}
}

func TestSearchTagOnlySkipsNamePhase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	seedEntry(t, store, "anime style", "h1", 100)
	tagged := seedEntry(t, store, "plain", "h2", 200, "anime")

	result, err := store.Search(ctx, catalog.SearchParams{Text: "anime", Limit: 10, TagOnly: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].ID != tagged {
		t.Fatalf("entries = %v", result.Entries)
	}
}

func TestSearchDuplicateOnlyFiltersBothPhases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dupA := seedEntry(t, store, "copy one", "same", 100, "shared")
	dupB := seedEntry(t, store, "copy two", "same", 200)
	seedEntry(t, store, "copy three", "unique", 300, "shared")

	result, err := store.Search(ctx, catalog.SearchParams{Text: "copy", Limit: 10, DuplicateOnly: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ids := map[int64]bool{}
	for _, entry := range result.Entries {
		ids[entry.ID] = true
	}
	if len(ids) != 2 || !ids[dupA] || !ids[dupB] {
		t.Fatalf("entries = %v", result.Entries)
	}
}

func TestSearchPaginatesEachPhase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedEntry(t, store, "model "+string(rune('a'+i)), "h"+string(rune('a'+i)), int64(100+i))
	}

	first, err := store.Search(ctx, catalog.SearchParams{Text: "model", Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("Search page 1: %v", err)
	}
	second, err := store.Search(ctx, catalog.SearchParams{Text: "model", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Search page 2: %v", err)
	}
	if len(first.Entries) != 2 || len(second.Entries) != 2 {
		t.Fatalf("page sizes = %d, %d", len(first.Entries), len(second.Entries))
	}
	if first.Entries[0].ID == second.Entries[0].ID {
		t.Fatal("pages overlap")
	}
	if first.ApproxTotal != 5 {
		t.Fatalf("approx total = %d, want 5", first.ApproxTotal)
	}
}

func TestSearchEmptyTextListsEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	seedEntry(t, store, "one", "h1", 100)
	seedEntry(t, store, "two", "h2", 200)

	result, err := store.Search(ctx, catalog.SearchParams{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entries = %v", result.Entries)
	}
	// Newest first.
	if result.Entries[0].Name != "two" {
		t.Fatalf("order = %v", result.Entries)
	}
}
