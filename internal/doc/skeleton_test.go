package doc

import (
	"testing"

	"festivo/api/internal/theme"
)

func TestNewBlockSeedsDefaults(t *testing.T) {
	catalog := theme.NewCatalog()
	variant, err := catalog.Variant("hero", "center")
	if err != nil {
		t.Fatalf("Variant failed: %v", err)
	}

	block := NewBlock("hero", variant)
	if block.SectionType != "hero" || block.VariantID != "center" {
		t.Fatalf("unexpected block identity: %s/%s", block.SectionType, block.VariantID)
	}
	if len(block.Elements) != len(variant.Slots) {
		t.Fatalf("expected %d elements, got %d", len(variant.Slots), len(block.Elements))
	}

	title, ok := block.ElementBySlot("title")
	if !ok {
		t.Fatalf("title slot missing")
	}
	if got := title.Value.StringValue(nil); got != "Our Celebration" {
		t.Errorf("title default: got %q", got)
	}
	date, _ := block.ElementBySlot("date")
	if got := date.Value.StringValue(nil); got != "" {
		t.Errorf("slot without default should be empty, got %q", got)
	}
}

func TestSwapVariantCarriesMatchingSlots(t *testing.T) {
	catalog := theme.NewCatalog()
	center, _ := catalog.Variant("hero", "center")
	left, _ := catalog.Variant("hero", "left-aligned")

	block := NewBlock("hero", center)
	title, _ := block.ElementBySlot("title")
	title.Value = LiteralString("Nora & Finn")
	photo, _ := block.ElementBySlot("cover-photo")
	photo.Value = LiteralString("ast_12345")

	swapped := SwapVariant(block, left)

	if swapped.ID != block.ID {
		t.Errorf("swap must keep the block id")
	}
	if swapped.VariantID != "left-aligned" {
		t.Errorf("variant id not updated: %s", swapped.VariantID)
	}
	carried, _ := swapped.ElementBySlot("title")
	if carried.Value.StringValue(nil) != "Nora & Finn" {
		t.Errorf("title content lost in swap")
	}
	carriedPhoto, _ := swapped.ElementBySlot("cover-photo")
	if carriedPhoto.Value.StringValue(nil) != "ast_12345" {
		t.Errorf("media content lost in swap")
	}
	subtitle, ok := swapped.ElementBySlot("subtitle")
	if !ok {
		t.Fatalf("new slot not created by swap")
	}
	if subtitle.Value.StringValue(nil) != "We would love to see you there" {
		t.Errorf("new slot should start from the variant default, got %q", subtitle.Value.StringValue(nil))
	}
}

func TestSwapVariantDropsUnwiredSlots(t *testing.T) {
	catalog := theme.NewCatalog()
	grid, _ := catalog.Variant("gallery", "grid")
	carousel, _ := catalog.Variant("gallery", "carousel")

	block := NewBlock("gallery", grid)
	fourth, _ := block.ElementBySlot("photo-4")
	fourth.Value = LiteralString("ast_keepme")

	swapped := SwapVariant(block, carousel)
	if _, ok := swapped.ElementBySlot("photo-4"); ok {
		t.Errorf("carousel declares no photo-4, element should be unwired")
	}

	// Swapping back re-seeds the slot from its default, not the old value.
	// The value itself lives in Data when bound; a literal is gone.
	restored := SwapVariant(swapped, grid)
	reseeded, ok := restored.ElementBySlot("photo-4")
	if !ok {
		t.Fatalf("photo-4 missing after swap back")
	}
	if reseeded.Value.StringValue(nil) != "" {
		t.Errorf("re-added slot should start from the default, got %q", reseeded.Value.StringValue(nil))
	}
}
