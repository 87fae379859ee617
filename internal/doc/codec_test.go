package doc

import (
	"errors"
	"testing"
)

func TestDecodeProposal(t *testing.T) {
	ops, err := DecodeProposal([]byte(`[
		{"op":"setElementValue","blockId":"blk_1","slot":"title","value":{"kind":"literal","literal":"Hello"}},
		{"op":"setElementValue","blockId":"blk_1","slot":"date","value":{"kind":"binding","path":"event.date"}},
		{"op":"swapVariant","blockId":"blk_1","variantId":"left-aligned"},
		{"op":"setStyleOverride","token":"accentColor","tokenValue":"#ff0000"}
	]`))
	if err != nil {
		t.Fatalf("DecodeProposal failed: %v", err)
	}
	if len(ops) != 4 {
		t.Fatalf("expected 4 ops, got %d", len(ops))
	}
	if ops[0].Type != OpSetElementValue || ops[0].Value == nil {
		t.Errorf("first op decoded wrong: %+v", ops[0])
	}
	if ops[1].Value.Kind != ValueBinding || ops[1].Value.Path != "event.date" {
		t.Errorf("binding value decoded wrong: %+v", ops[1].Value)
	}
}

func TestDecodeProposalRejectsUnknownOp(t *testing.T) {
	_, err := DecodeProposal([]byte(`[{"op":"renameBlock","blockId":"blk_1"}]`))
	if !errors.Is(err, ErrBadProposal) {
		t.Fatalf("expected ErrBadProposal, got %v", err)
	}
}

func TestDecodeProposalRejectsUnknownFields(t *testing.T) {
	_, err := DecodeProposal([]byte(`[{"op":"removeBlock","blockId":"blk_1","force":true}]`))
	if !errors.Is(err, ErrBadProposal) {
		t.Fatalf("expected ErrBadProposal for extra field, got %v", err)
	}
}

func TestDecodeProposalRejectsEmptyBatch(t *testing.T) {
	for _, raw := range []string{`[]`, `null`, ``} {
		if _, err := DecodeProposal([]byte(raw)); !errors.Is(err, ErrBadProposal) {
			t.Errorf("%q: expected ErrBadProposal, got %v", raw, err)
		}
	}
}

func TestDecodeProposalRejectsTrailingData(t *testing.T) {
	_, err := DecodeProposal([]byte(`[{"op":"removeBlock","blockId":"blk_1"}] {"op":"x"}`))
	if !errors.Is(err, ErrBadProposal) {
		t.Fatalf("expected ErrBadProposal for trailing data, got %v", err)
	}
}

func TestDecodeProposalRequiredFields(t *testing.T) {
	cases := []string{
		`[{"op":"setElementValue","slot":"title","value":{"kind":"literal","literal":"x"}}]`, // no blockId
		`[{"op":"setElementValue","blockId":"blk_1","slot":"title"}]`,                        // no value
		`[{"op":"insertBlock","sectionType":"hero"}]`,                                        // no variantId
		`[{"op":"removeBlock"}]`,
		`[{"op":"reorderBlocks","order":[]}]`,
		`[{"op":"swapVariant","blockId":"blk_1"}]`,
		`[{"op":"setStyleOverride","tokenValue":"#fff"}]`,
	}
	for _, raw := range cases {
		if _, err := DecodeProposal([]byte(raw)); !errors.Is(err, ErrBadProposal) {
			t.Errorf("%s: expected ErrBadProposal, got %v", raw, err)
		}
	}
}

func TestDecodeProposalRejectsCompositeLiterals(t *testing.T) {
	_, err := DecodeProposal([]byte(`[{"op":"setElementValue","blockId":"blk_1","slot":"title","value":{"kind":"literal","literal":{"a":1}}}]`))
	if !errors.Is(err, ErrBadProposal) {
		t.Fatalf("expected ErrBadProposal for object literal, got %v", err)
	}
}

func TestEncodeOperationsRoundTrip(t *testing.T) {
	original := []Operation{
		{Type: OpRemoveBlock, BlockID: "blk_1"},
		{Type: OpSetStyleOverride, Token: "accentColor", TokenValue: "#ff0000"},
	}
	decoded, err := DecodeProposal(EncodeOperations(original))
	if err != nil {
		t.Fatalf("DecodeProposal failed: %v", err)
	}
	if len(decoded) != 2 || decoded[0].BlockID != "blk_1" || decoded[1].TokenValue != "#ff0000" {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}
