package doc

import (
	"festivo/api/internal/theme"
	"festivo/api/internal/util"
)

func newElementID() string {
	return util.NewID("el")
}

// SwapVariant rewires a block to a new skeleton variant of the same section
// type. Content survives the swap: elements whose slot exists in the new
// variant carry over untouched, slots the new variant lacks are unwired (their
// Data stays, flagged unbound), and newly declared slots start from the
// variant's default. This is what lets a user try five gallery layouts without
// re-entering photos.
func SwapVariant(block Block, variant theme.Variant) Block {
	next := Block{
		ID:          block.ID,
		SectionType: block.SectionType,
		VariantID:   variant.ID,
		Elements:    make([]Element, 0, len(variant.Slots)),
	}
	for _, slot := range variant.Slots {
		if existing, ok := block.ElementBySlot(slot.Name); ok {
			next.Elements = append(next.Elements, *existing)
			continue
		}
		next.Elements = append(next.Elements, Element{
			ID:    newElementID(),
			Slot:  slot.Name,
			Value: LiteralString(slot.Default),
		})
	}
	return next
}

// NewBlock creates a section instance with every declared slot seeded from
// the variant defaults.
func NewBlock(sectionType string, variant theme.Variant) Block {
	block := Block{
		ID:          util.NewID("blk"),
		SectionType: sectionType,
		VariantID:   variant.ID,
		Elements:    make([]Element, 0, len(variant.Slots)),
	}
	for _, slot := range variant.Slots {
		block.Elements = append(block.Elements, Element{
			ID:    newElementID(),
			Slot:  slot.Name,
			Value: LiteralString(slot.Default),
		})
	}
	return block
}
