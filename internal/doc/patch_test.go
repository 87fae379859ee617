package doc

import (
	"errors"
	"testing"

	"festivo/api/internal/theme"
)

func testDocument(t *testing.T) (*Engine, *Document) {
	t.Helper()
	catalog := theme.NewCatalog()
	hero, err := catalog.Variant("hero", "center")
	if err != nil {
		t.Fatalf("Variant failed: %v", err)
	}
	story, err := catalog.Variant("story", "single-column")
	if err != nil {
		t.Fatalf("Variant failed: %v", err)
	}
	document := &Document{
		ID:            "inv_test",
		OwnerID:       "own_test",
		Status:        StatusDraft,
		Version:       0,
		ThemePresetID: "classic",
		Blocks: []Block{
			NewBlock("hero", hero),
			NewBlock("story", story),
		},
		Data:           map[string]any{"couple": map[string]any{"names": "Nora & Finn"}},
		StyleOverrides: map[string]string{},
	}
	return NewEngine(catalog), document
}

func setOp(blockID, slot string, value Value) Operation {
	return Operation{Type: OpSetElementValue, BlockID: blockID, Slot: slot, Value: &value}
}

func at(position int) *int {
	return &position
}

func TestApplyCommitsAndBumpsVersion(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID

	result, err := engine.Apply(document, SourceHuman, []Operation{
		setOp(heroID, "title", Binding("couple.names")),
		setOp(heroID, "date", LiteralString("2026-06-20")),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if result.Version != 1 || document.Version != 1 {
		t.Errorf("expected version 1, got result=%d document=%d", result.Version, document.Version)
	}
	title, _ := document.Blocks[0].ElementBySlot("title")
	if got := title.Value.StringValue(document.Data); got != "Nora & Finn" {
		t.Errorf("binding did not resolve: %q", got)
	}
}

func TestApplyRejectsWholeBatchOnOneBadOp(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID

	_, err := engine.Apply(document, SourceAI, []Operation{
		setOp(heroID, "title", LiteralString("changed")),
		setOp(heroID, "no-such-slot", LiteralString("x")),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Code != CodeUnknownSlot {
		t.Errorf("expected %s, got %s", CodeUnknownSlot, verr.Code)
	}
	if verr.OpIndex != 1 {
		t.Errorf("error should name the failing op, got index %d", verr.OpIndex)
	}

	// Nothing from the batch may land, including the valid first op.
	if document.Version != 0 {
		t.Errorf("version bumped by a rejected batch: %d", document.Version)
	}
	title, _ := document.Blocks[0].ElementBySlot("title")
	if got := title.Value.StringValue(nil); got != "Our Celebration" {
		t.Errorf("rejected batch leaked a write: %q", got)
	}
}

func TestApplyUnknownBlock(t *testing.T) {
	engine, document := testDocument(t)

	_, err := engine.Apply(document, SourceAI, []Operation{
		setOp("blk_gone", "title", LiteralString("x")),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeUnknownBlock {
		t.Fatalf("expected %s, got %v", CodeUnknownBlock, err)
	}
}

func TestBatchCanEditBlockItInserted(t *testing.T) {
	engine, document := testDocument(t)

	// The insert lands at position 0, so the follow-up reorder can name it by
	// the ids present after the insert: this is what validating against an
	// op-by-op advanced scratch buys.
	result, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpInsertBlock, SectionType: "rsvp", VariantID: "simple", Position: at(0)},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if result.Version != 1 {
		t.Errorf("expected version 1, got %d", result.Version)
	}
	if document.Blocks[0].SectionType != "rsvp" {
		t.Errorf("insert position ignored: %s", document.Blocks[0].SectionType)
	}
	if len(document.Blocks) != 3 {
		t.Errorf("expected 3 blocks, got %d", len(document.Blocks))
	}
}

func TestInsertBlockAppendsWhenPositionOutOfRange(t *testing.T) {
	engine, document := testDocument(t)

	if _, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpInsertBlock, SectionType: "venue", VariantID: "card", Position: at(99)},
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	last := document.Blocks[len(document.Blocks)-1]
	if last.SectionType != "venue" {
		t.Errorf("out-of-range position should append, got %s at tail", last.SectionType)
	}
}

func TestInsertBlockWithoutPositionAppends(t *testing.T) {
	engine, document := testDocument(t)

	// A wire payload that omits position entirely must append, not prepend.
	ops, err := DecodeProposal([]byte(`[{"op":"insertBlock","sectionType":"venue","variantId":"card"}]`))
	if err != nil {
		t.Fatalf("DecodeProposal failed: %v", err)
	}
	if _, err := engine.Apply(document, SourceHuman, ops); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if document.Blocks[0].SectionType != "hero" {
		t.Errorf("omitted position displaced the first block: %s", document.Blocks[0].SectionType)
	}
	last := document.Blocks[len(document.Blocks)-1]
	if last.SectionType != "venue" {
		t.Errorf("omitted position should append, got %s at tail", last.SectionType)
	}
}

func TestReorderBlocksRequiresExactPermutation(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID
	storyID := document.Blocks[1].ID

	if _, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpReorderBlocks, Order: []string{storyID, heroID}},
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if document.Blocks[0].ID != storyID {
		t.Errorf("reorder not applied")
	}

	cases := [][]string{
		{heroID},                     // too short
		{heroID, heroID},             // duplicate
		{storyID, "blk_other"},       // unknown id
		{storyID, heroID, "blk_x"},   // too long
	}
	for _, order := range cases {
		_, err := engine.Apply(document, SourceHuman, []Operation{
			{Type: OpReorderBlocks, Order: order},
		})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Code != CodeBadOrder {
			t.Errorf("order %v: expected %s, got %v", order, CodeBadOrder, err)
		}
	}
}

func TestRemoveBlock(t *testing.T) {
	engine, document := testDocument(t)
	storyID := document.Blocks[1].ID

	if _, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpRemoveBlock, BlockID: storyID},
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(document.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(document.Blocks))
	}

	_, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpRemoveBlock, BlockID: storyID},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeUnknownBlock {
		t.Fatalf("removing a removed block: expected %s, got %v", CodeUnknownBlock, err)
	}
}

func TestSwapVariantOp(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID

	if _, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpSwapVariant, BlockID: heroID, VariantID: "left-aligned"},
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if document.Blocks[0].VariantID != "left-aligned" {
		t.Errorf("variant not swapped: %s", document.Blocks[0].VariantID)
	}
	if _, ok := document.Blocks[0].ElementBySlot("subtitle"); !ok {
		t.Errorf("swap did not seed the new slot")
	}

	_, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpSwapVariant, BlockID: heroID, VariantID: "grid"}, // gallery variant, wrong section
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeUnknownVariant {
		t.Fatalf("expected %s, got %v", CodeUnknownVariant, err)
	}
}

func TestSetStyleOverride(t *testing.T) {
	engine, document := testDocument(t)

	if _, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpSetStyleOverride, Token: "accentColor", TokenValue: "#ff0000"},
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if document.StyleOverrides["accentColor"] != "#ff0000" {
		t.Errorf("override not stored")
	}

	// Empty value clears the override.
	if _, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpSetStyleOverride, Token: "accentColor"},
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, ok := document.StyleOverrides["accentColor"]; ok {
		t.Errorf("override not cleared")
	}

	_, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpSetStyleOverride, Token: "borderColor", TokenValue: "#fff"},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeUnknownToken {
		t.Fatalf("expected %s, got %v", CodeUnknownToken, err)
	}
}

func TestMediaSlotEditReportsBindingChange(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID

	result, err := engine.Apply(document, SourceHuman, []Operation{
		setOp(heroID, "cover-photo", LiteralString("ast_111")),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(result.BindingChanges) != 1 {
		t.Fatalf("expected 1 binding change, got %d", len(result.BindingChanges))
	}
	change := result.BindingChanges[0]
	if change.OldAssetID != "" || change.NewAssetID != "ast_111" {
		t.Errorf("unexpected change: %+v", change)
	}

	result, err = engine.Apply(document, SourceHuman, []Operation{
		setOp(heroID, "cover-photo", LiteralString("ast_222")),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	change = result.BindingChanges[0]
	if change.OldAssetID != "ast_111" || change.NewAssetID != "ast_222" {
		t.Errorf("unexpected change: %+v", change)
	}

	// Text slots never report binding changes.
	result, err = engine.Apply(document, SourceHuman, []Operation{
		setOp(heroID, "title", LiteralString("Hello")),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(result.BindingChanges) != 0 {
		t.Errorf("text edit produced binding changes: %+v", result.BindingChanges)
	}
}

func TestValueLiteralMustBeScalar(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID

	bad := Value{Kind: ValueLiteral, Literal: []byte(`{"nested":"object"}`)}
	_, err := engine.Apply(document, SourceHuman, []Operation{
		{Type: OpSetElementValue, BlockID: heroID, Slot: "title", Value: &bad},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeBadValue {
		t.Fatalf("expected %s, got %v", CodeBadValue, err)
	}
}

func TestUnboundPathsAfterApply(t *testing.T) {
	engine, document := testDocument(t)
	heroID := document.Blocks[0].ID

	result, err := engine.Apply(document, SourceHuman, []Operation{
		setOp(heroID, "title", Binding("couple.names")),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for _, path := range result.UnboundPaths {
		if path == "couple.names" {
			t.Errorf("bound path reported as unbound")
		}
	}
}
