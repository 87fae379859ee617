package doc

import (
	"festivo/api/internal/theme"
)

type Source string

const (
	SourceHuman Source = "human"
	SourceAI    Source = "ai"
)

type OpType string

const (
	OpSetElementValue  OpType = "setElementValue"
	OpInsertBlock      OpType = "insertBlock"
	OpRemoveBlock      OpType = "removeBlock"
	OpReorderBlocks    OpType = "reorderBlocks"
	OpSwapVariant      OpType = "swapVariant"
	OpSetStyleOverride OpType = "setStyleOverride"
)

// Operation is one edit instruction. The op tag selects which fields apply;
// everything outside this closed set is rejected at the codec boundary before
// the engine ever sees it.
type Operation struct {
	Type OpType `json:"op"`
	// setElementValue, removeBlock, swapVariant
	BlockID string `json:"blockId,omitempty"`
	// setElementValue
	Slot  string `json:"slot,omitempty"`
	Value *Value `json:"value,omitempty"`
	// insertBlock; nil position appends
	SectionType string `json:"sectionType,omitempty"`
	Position    *int   `json:"position,omitempty"`
	// insertBlock, swapVariant
	VariantID string `json:"variantId,omitempty"`
	// reorderBlocks
	Order []string `json:"order,omitempty"`
	// setStyleOverride; empty value clears the override
	Token      string `json:"token,omitempty"`
	TokenValue string `json:"tokenValue,omitempty"`
}

// BindingChange records a committed media-slot edit for the asset tracker.
type BindingChange struct {
	BlockID    string
	ElementID  string
	OldAssetID string
	NewAssetID string
}

type CommitResult struct {
	Version        int64
	BindingChanges []BindingChange
	UnboundPaths   []string
}

// Engine validates and applies patch batches. It is the only component
// allowed to mutate a document.
type Engine struct {
	catalog *theme.Catalog
}

func NewEngine(catalog *theme.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Apply runs the two-phase validate-then-commit protocol. Every operation is
// staged against a scratch copy advanced op-by-op (so a batch may insert a
// block and then fill its slots); the live document is only touched once the
// whole batch has validated. One bad op rejects all of them: committing four
// of an AI's five edits would silently desynchronize the document from what
// the AI thinks it edited.
//
// Validation is pure in-memory work; persistence happens after, in the
// caller's transaction.
func (e *Engine) Apply(document *Document, source Source, ops []Operation) (CommitResult, error) {
	scratch := document.Clone()
	changes := make([]BindingChange, 0)

	for i, op := range ops {
		change, err := e.applyOp(scratch, op)
		if err != nil {
			if verr, ok := err.(*ValidationError); ok {
				verr.OpIndex = i
				return CommitResult{}, verr
			}
			return CommitResult{}, err
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}

	if err := document.applyCommitted(e.catalog, scratch.Blocks, scratch.Data, scratch.StyleOverrides); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Version:        document.Version,
		BindingChanges: changes,
		UnboundPaths:   document.UnboundPaths(),
	}, nil
}

func (e *Engine) applyOp(scratch *Document, op Operation) (*BindingChange, error) {
	switch op.Type {
	case OpSetElementValue:
		return e.applySetElementValue(scratch, op)
	case OpInsertBlock:
		return nil, e.applyInsertBlock(scratch, op)
	case OpRemoveBlock:
		return nil, e.applyRemoveBlock(scratch, op)
	case OpReorderBlocks:
		return nil, e.applyReorderBlocks(scratch, op)
	case OpSwapVariant:
		return nil, e.applySwapVariant(scratch, op)
	case OpSetStyleOverride:
		return nil, e.applySetStyleOverride(scratch, op)
	default:
		return nil, validationErr(CodeBadOperation, "unsupported operation %q", op.Type)
	}
}

func (e *Engine) applySetElementValue(scratch *Document, op Operation) (*BindingChange, error) {
	block, ok := scratch.BlockByID(op.BlockID)
	if !ok {
		return nil, validationErr(CodeUnknownBlock, "block %s does not exist", op.BlockID)
	}
	variant, err := e.catalog.Variant(block.SectionType, block.VariantID)
	if err != nil {
		return nil, &InvariantViolation{Message: "block " + block.ID + " carries an undeclared variant"}
	}
	// AI proposals are generated from a possibly stale snapshot; the slot must
	// exist in the variant the block has NOW. Human clients get the same check
	// because they race the same way.
	slot, ok := variant.Slot(op.Slot)
	if !ok {
		return nil, validationErr(CodeUnknownSlot, "slot %q is not declared by variant %s/%s", op.Slot, block.SectionType, block.VariantID)
	}
	if op.Value == nil {
		return nil, validationErr(CodeBadValue, "setElementValue requires a value")
	}
	if err := op.Value.Validate(); err != nil {
		return nil, validationErr(CodeBadValue, "%v", err)
	}

	element, ok := block.ElementBySlot(op.Slot)
	if !ok {
		// Declared slot without an element can only come from seed data.
		block.Elements = append(block.Elements, Element{ID: newElementID(), Slot: op.Slot})
		element = &block.Elements[len(block.Elements)-1]
	}

	var change *BindingChange
	if slot.Kind == theme.SlotMedia {
		oldAsset := element.Value.StringValue(scratch.Data)
		newAsset := op.Value.StringValue(scratch.Data)
		if oldAsset != newAsset {
			change = &BindingChange{
				BlockID:    block.ID,
				ElementID:  element.ID,
				OldAssetID: oldAsset,
				NewAssetID: newAsset,
			}
		}
	}
	element.Value = *op.Value
	return change, nil
}

func (e *Engine) applyInsertBlock(scratch *Document, op Operation) error {
	variant, err := e.catalog.Variant(op.SectionType, op.VariantID)
	if err != nil {
		return validationErr(CodeUnknownVariant, "no variant %s for section %s", op.VariantID, op.SectionType)
	}
	// Absent, negative, or past-the-end positions all mean append.
	position := len(scratch.Blocks)
	if op.Position != nil && *op.Position >= 0 && *op.Position < len(scratch.Blocks) {
		position = *op.Position
	}
	block := NewBlock(op.SectionType, variant)
	scratch.Blocks = append(scratch.Blocks, Block{})
	copy(scratch.Blocks[position+1:], scratch.Blocks[position:])
	scratch.Blocks[position] = block
	return nil
}

func (e *Engine) applyRemoveBlock(scratch *Document, op Operation) error {
	for i := range scratch.Blocks {
		if scratch.Blocks[i].ID == op.BlockID {
			scratch.Blocks = append(scratch.Blocks[:i], scratch.Blocks[i+1:]...)
			return nil
		}
	}
	return validationErr(CodeUnknownBlock, "block %s does not exist", op.BlockID)
}

// applyReorderBlocks takes a full target ordering, not deltas. Anything that
// is not an exact permutation of the current block ids is corruption, not a
// recoverable case.
func (e *Engine) applyReorderBlocks(scratch *Document, op Operation) error {
	if len(op.Order) != len(scratch.Blocks) {
		return validationErr(CodeBadOrder, "order lists %d blocks, document has %d", len(op.Order), len(scratch.Blocks))
	}
	byID := make(map[string]Block, len(scratch.Blocks))
	for _, block := range scratch.Blocks {
		byID[block.ID] = block
	}
	reordered := make([]Block, 0, len(op.Order))
	for _, id := range op.Order {
		block, ok := byID[id]
		if !ok {
			return validationErr(CodeBadOrder, "order names unknown or duplicated block %s", id)
		}
		delete(byID, id)
		reordered = append(reordered, block)
	}
	scratch.Blocks = reordered
	return nil
}

func (e *Engine) applySwapVariant(scratch *Document, op Operation) error {
	block, ok := scratch.BlockByID(op.BlockID)
	if !ok {
		return validationErr(CodeUnknownBlock, "block %s does not exist", op.BlockID)
	}
	variant, err := e.catalog.Variant(block.SectionType, op.VariantID)
	if err != nil {
		return validationErr(CodeUnknownVariant, "no variant %s for section %s", op.VariantID, block.SectionType)
	}
	*block = SwapVariant(*block, variant)
	return nil
}

func (e *Engine) applySetStyleOverride(scratch *Document, op Operation) error {
	ok, err := e.catalog.HasToken(scratch.ThemePresetID, op.Token)
	if err != nil {
		return &InvariantViolation{Message: "document references unknown preset " + scratch.ThemePresetID}
	}
	if !ok {
		return validationErr(CodeUnknownToken, "preset %s declares no token %q", scratch.ThemePresetID, op.Token)
	}
	if op.TokenValue == "" {
		delete(scratch.StyleOverrides, op.Token)
		return nil
	}
	scratch.StyleOverrides[op.Token] = op.TokenValue
	return nil
}
