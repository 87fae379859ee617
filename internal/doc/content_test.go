package doc

import (
	"strings"
	"testing"

	"festivo/api/internal/theme"
)

func TestContentRoundTrip(t *testing.T) {
	_, document := testDocument(t)
	heroID := document.Blocks[0].ID

	content := ContentOf(document)
	parsed, err := ParseContent(content.JSON())
	if err != nil {
		t.Fatalf("ParseContent failed: %v", err)
	}
	if parsed.ThemePresetID != "classic" {
		t.Errorf("theme lost: %q", parsed.ThemePresetID)
	}
	if len(parsed.Blocks) != 2 || parsed.Blocks[0].ID != heroID {
		t.Errorf("blocks lost in round trip")
	}

	blocks, data, overrides := parsed.Materialize()
	if len(blocks) != 2 || data == nil || overrides == nil {
		t.Errorf("materialize produced incomplete state")
	}
}

func TestUnboundPaths(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID
	document.Data = map[string]any{
		"couple": map[string]any{"names": "Nora & Finn"},
		"event":  map[string]any{"date": "2026-06-20", "city": "Lisbon"},
	}

	if _, err := engine.Apply(document, SourceHuman, []Operation{
		setOp(heroID, "title", Binding("couple.names")),
		setOp(heroID, "date", Binding("event.date")),
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	unbound := document.UnboundPaths()
	if len(unbound) != 1 || unbound[0] != "event.city" {
		t.Errorf("expected only event.city unbound, got %v", unbound)
	}
}

func TestUnboundPathsParentBindingCoversChildren(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID
	document.Data = map[string]any{
		"couple": map[string]any{"names": "Nora & Finn", "hashtag": "#norafinn"},
	}

	if _, err := engine.Apply(document, SourceHuman, []Operation{
		setOp(heroID, "title", Binding("couple")),
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if unbound := document.UnboundPaths(); len(unbound) != 0 {
		t.Errorf("paths under a bound parent should count as bound, got %v", unbound)
	}
}

func TestPlainTextResolvesBindings(t *testing.T) {
	catalog := theme.NewCatalog()
	hero, _ := catalog.Variant("hero", "center")
	block := NewBlock("hero", hero)
	title, _ := block.ElementBySlot("title")
	title.Value = Binding("couple.names")

	content := ContentOf(&Document{
		ThemePresetID:  "classic",
		Blocks:         []Block{block},
		Data:           map[string]any{"couple": map[string]any{"names": "Nora & Finn"}},
		StyleOverrides: map[string]string{},
	})

	text := content.PlainText()
	if !strings.Contains(text, "Nora & Finn") {
		t.Errorf("bound value missing from plain text: %q", text)
	}
}

func TestRestoreGoesThroughStructureChecks(t *testing.T) {
	engine, document := testDocument(t)

	snapshot := ContentOf(document)

	if _, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpSetStyleOverride, Token: "accentColor", TokenValue: "#ff0000"},
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	result, err := engine.Restore(document, snapshot)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.Version != 2 {
		t.Errorf("restore must be a new commit, got version %d", result.Version)
	}
	if _, ok := document.StyleOverrides["accentColor"]; ok {
		t.Errorf("restore did not rewind the override")
	}

	// A snapshot carrying an undeclared variant must fail loudly.
	bad := snapshot
	bad.Blocks = append([]ContentBlock{}, snapshot.Blocks...)
	bad.Blocks[0].VariantID = "diagonal"
	if _, err := engine.Restore(document, bad); err == nil {
		t.Errorf("corrupt snapshot content should be rejected")
	}
}
