package archive

import (
	"testing"

	"festivo/api/internal/doc"
)

func testContent(title string) doc.Content {
	return doc.Content{
		ThemePresetID: "classic",
		Blocks: []doc.ContentBlock{
			{
				ID:          "blk_hero",
				SectionType: "hero",
				VariantID:   "center",
				Elements: []doc.ContentElement{
					{ID: "el_title", Slot: "title", Value: doc.LiteralString(title)},
				},
			},
		},
		Data:           map[string]any{},
		StyleOverrides: map[string]string{},
	}
}

func TestCommitAndReadBack(t *testing.T) {
	service := New(t.TempDir())

	initial := testContent("Our Celebration")
	if err := service.EnsureRepo("inv_1", initial, "own_a"); err != nil {
		t.Fatalf("EnsureRepo failed: %v", err)
	}
	// Idempotent.
	if err := service.EnsureRepo("inv_1", initial, "own_a"); err != nil {
		t.Fatalf("second EnsureRepo failed: %v", err)
	}

	hash, err := service.CommitSnapshot("inv_1", testContent("Nora & Finn"), 1, "manual", "own_a")
	if err != nil {
		t.Fatalf("CommitSnapshot failed: %v", err)
	}
	if len(hash) != 40 {
		t.Fatalf("expected full commit hash, got %q", hash)
	}

	content, err := service.GetContentByHash("inv_1", hash)
	if err != nil {
		t.Fatalf("GetContentByHash failed: %v", err)
	}
	title := content.Blocks[0].Elements[0].Value.StringValue(nil)
	if title != "Nora & Finn" {
		t.Errorf("read back wrong content: %q", title)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	service := New(t.TempDir())
	if err := service.EnsureRepo("inv_1", testContent("v0"), "own_a"); err != nil {
		t.Fatalf("EnsureRepo failed: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		if _, err := service.CommitSnapshot("inv_1", testContent("v"), i, "manual", "own_a"); err != nil {
			t.Fatalf("CommitSnapshot %d failed: %v", i, err)
		}
	}

	commits, err := service.History("inv_1", 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits with limit, got %d", len(commits))
	}
	if commits[0].Message != "Snapshot 3 (manual)" {
		t.Errorf("newest commit first, got %q", commits[0].Message)
	}
}

func TestDiffContents(t *testing.T) {
	from := testContent("Our Celebration")
	to := testContent("Nora & Finn")
	to.StyleOverrides["accentColor"] = "#ff0000"

	changes := DiffContents(from, to)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %v", len(changes), changes)
	}
	// Sorted by field name.
	if changes[0]["field"] != "blk_hero.title" {
		t.Errorf("unexpected first change: %v", changes[0])
	}
	if changes[0]["before"] != `"Our Celebration"` || changes[0]["after"] != `"Nora & Finn"` {
		t.Errorf("slot diff values wrong: %v", changes[0])
	}
	if changes[1]["field"] != "style.accentColor" {
		t.Errorf("unexpected second change: %v", changes[1])
	}

	if diff := DiffContents(from, from); len(diff) != 0 {
		t.Errorf("identical contents should produce no changes, got %v", diff)
	}
}

func TestDiffContentsLayoutChange(t *testing.T) {
	from := testContent("x")
	to := testContent("x")
	to.Blocks = append(to.Blocks, doc.ContentBlock{ID: "blk_rsvp", SectionType: "rsvp", VariantID: "simple"})

	changes := DiffContents(from, to)
	found := false
	for _, change := range changes {
		if change["field"] == "blocks" {
			found = true
		}
	}
	if !found {
		t.Errorf("layout change not reported: %v", changes)
	}
}
