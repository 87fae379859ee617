package doc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadProposal marks a payload rejected at the deserialization boundary.
var ErrBadProposal = errors.New("bad proposal")

// DecodeProposal is the single deserialization boundary for edit proposals.
// AI output is untrusted wire data: it is decoded into the same tagged
// Operation set the engine uses internally, and anything outside the closed
// set fails here, before validation ever runs.
func DecodeProposal(raw []byte) ([]Operation, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	var ops []Operation
	if err := decoder.Decode(&ops); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProposal, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after operation list", ErrBadProposal)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: empty operation list", ErrBadProposal)
	}

	for i, op := range ops {
		if err := checkWireOp(op); err != nil {
			return nil, fmt.Errorf("%w: op %d: %v", ErrBadProposal, i, err)
		}
	}
	return ops, nil
}

func checkWireOp(op Operation) error {
	switch op.Type {
	case OpSetElementValue:
		if op.BlockID == "" || op.Slot == "" {
			return fmt.Errorf("setElementValue requires blockId and slot")
		}
		if op.Value == nil {
			return fmt.Errorf("setElementValue requires a value")
		}
		if err := op.Value.Validate(); err != nil {
			return err
		}
	case OpInsertBlock:
		if op.SectionType == "" || op.VariantID == "" {
			return fmt.Errorf("insertBlock requires sectionType and variantId")
		}
	case OpRemoveBlock:
		if op.BlockID == "" {
			return fmt.Errorf("removeBlock requires blockId")
		}
	case OpReorderBlocks:
		if len(op.Order) == 0 {
			return fmt.Errorf("reorderBlocks requires a full target order")
		}
	case OpSwapVariant:
		if op.BlockID == "" || op.VariantID == "" {
			return fmt.Errorf("swapVariant requires blockId and variantId")
		}
	case OpSetStyleOverride:
		if op.Token == "" {
			return fmt.Errorf("setStyleOverride requires a token")
		}
	default:
		return fmt.Errorf("unknown operation %q", op.Type)
	}
	return nil
}

// EncodeOperations serializes a batch for the AI edit log's patches column.
func EncodeOperations(ops []Operation) json.RawMessage {
	raw, err := json.Marshal(ops)
	if err != nil {
		return json.RawMessage(`[]`)
	}
	return raw
}
