package catalog_test

import (
	"context"
	"testing"

	"modelkeep/internal/testsupport"
)

func TestReplaceTagsFoldsAndDeduplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id := seedEntry(t, store, "tagged", "h1", 100)
	if err := store.ReplaceTags(ctx, id, []string{"Anime", "anime", "  STYLE  ", ""}); err != nil {
		t.Fatalf("ReplaceTags: %v", err)
	}

	tags, err := store.EntryTags(ctx, id)
	if err != nil {
		t.Fatalf("EntryTags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "anime" || tags[1] != "style" {
		t.Fatalf("tags = %v", tags)
	}
}

func TestReplaceTagsIsWholesale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id := seedEntry(t, store, "tagged", "h1", 100, "old", "stale")
	if err := store.ReplaceTags(ctx, id, []string{"fresh"}); err != nil {
		t.Fatalf("ReplaceTags: %v", err)
	}

	tags, err := store.EntryTags(ctx, id)
	if err != nil {
		t.Fatalf("EntryTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "fresh" {
		t.Fatalf("tags = %v", tags)
	}

	// The orphaned tag rows survive with zero uses.
	all, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	counts := map[string]int64{}
	for _, tc := range all {
		counts[tc.Name] = tc.Count
	}
	if counts["old"] != 0 || counts["stale"] != 0 || counts["fresh"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestEnsureTagReturnsStableID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := store.EnsureTag(ctx, "SDXL 1.0")
	if err != nil {
		t.Fatalf("EnsureTag: %v", err)
	}
	second, err := store.EnsureTag(ctx, "sdxl 1.0")
	if err != nil {
		t.Fatalf("EnsureTag folded: %v", err)
	}
	if first != second {
		t.Fatalf("ids differ: %d vs %d", first, second)
	}

	if _, err := store.EnsureTag(ctx, "   "); err == nil {
		t.Fatal("blank tag should be rejected")
	}
}

func TestTagsForEntriesAggregatesAcrossGivenIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := seedEntry(t, store, "a", "h1", 100, "anime", "lora")
	b := seedEntry(t, store, "b", "h2", 200, "anime")
	seedEntry(t, store, "c", "h3", 300, "realism")

	counts, err := store.TagsForEntries(ctx, []int64{a, b})
	if err != nil {
		t.Fatalf("TagsForEntries: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("counts = %v", counts)
	}
	if counts[0].Name != "anime" || counts[0].Count != 2 {
		t.Fatalf("most used = %+v", counts[0])
	}
	if counts[1].Name != "lora" || counts[1].Count != 1 {
		t.Fatalf("second = %+v", counts[1])
	}

	empty, err := store.TagsForEntries(ctx, nil)
	if err != nil || empty != nil {
		t.Fatalf("empty ids: %v, %v", empty, err)
	}
}
