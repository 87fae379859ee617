// Package doc holds the invitation document model and the patch engine that
// is its only writer. The mutation entry point applyCommitted is unexported on
// purpose: nothing outside this package can touch a document's content.
package doc

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"festivo/api/internal/theme"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Document is the root aggregate: an ordered block tree, the user data the
// blocks bind to, and the sparse style overrides layered over a theme preset.
type Document struct {
	ID             string
	OwnerID        string
	Status         Status
	Version        int64
	ThemePresetID  string
	Blocks         []Block
	Data           map[string]any
	StyleOverrides map[string]string
}

// Block is one structural section instance. Its section type is fixed for
// life; only the variant id may change, via swapVariant.
type Block struct {
	ID          string
	SectionType string
	VariantID   string
	Elements    []Element
}

// Element wires one slot of the block's current variant to a value.
type Element struct {
	ID    string
	Slot  string
	Value Value
}

func (d *Document) BlockByID(id string) (*Block, bool) {
	for i := range d.Blocks {
		if d.Blocks[i].ID == id {
			return &d.Blocks[i], true
		}
	}
	return nil, false
}

func (b *Block) ElementBySlot(slot string) (*Element, bool) {
	for i := range b.Elements {
		if b.Elements[i].Slot == slot {
			return &b.Elements[i], true
		}
	}
	return nil, false
}

// Clone deep-copies the document so validation can stage changes without
// touching the live state.
func (d *Document) Clone() *Document {
	clone := &Document{
		ID:            d.ID,
		OwnerID:       d.OwnerID,
		Status:        d.Status,
		Version:       d.Version,
		ThemePresetID: d.ThemePresetID,
	}
	clone.Blocks = cloneBlocks(d.Blocks)
	clone.Data = cloneData(d.Data)
	clone.StyleOverrides = make(map[string]string, len(d.StyleOverrides))
	for token, value := range d.StyleOverrides {
		clone.StyleOverrides[token] = value
	}
	return clone
}

func cloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, block := range blocks {
		out[i] = block
		out[i].Elements = make([]Element, len(block.Elements))
		copy(out[i].Elements, block.Elements)
	}
	return out
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// UnboundPaths lists Data leaf paths no element binds, directly or through a
// parent path. Orphaned data is kept, never deleted: swapping a variant back
// must be able to find it again.
func (d *Document) UnboundPaths() []string {
	bound := make([]string, 0)
	for _, block := range d.Blocks {
		for _, element := range block.Elements {
			if element.Value.Kind == ValueBinding {
				bound = append(bound, element.Value.Path)
			}
		}
	}

	var unbound []string
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for key, value := range node {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			if child, ok := value.(map[string]any); ok {
				walk(path, child)
				continue
			}
			if !pathIsBound(bound, path) {
				unbound = append(unbound, path)
			}
		}
	}
	walk("", d.Data)
	sort.Strings(unbound)
	return unbound
}

func pathIsBound(bound []string, path string) bool {
	for _, b := range bound {
		if b == path || strings.HasPrefix(path, b+".") {
			return true
		}
	}
	return false
}

// applyCommitted is the single mutation entry point, reachable only from the
// patch engine in this package. It re-checks the structural invariants even
// though the engine validated the batch: a violation here is an engine bug and
// must fail loudly instead of corrupting the document.
func (d *Document) applyCommitted(catalog *theme.Catalog, blocks []Block, data map[string]any, overrides map[string]string) error {
	if err := checkStructure(catalog, d.Blocks, blocks); err != nil {
		return err
	}
	d.Blocks = blocks
	d.Data = data
	d.StyleOverrides = overrides
	d.Version++
	return nil
}

func checkStructure(catalog *theme.Catalog, oldBlocks, newBlocks []Block) error {
	oldTypes := make(map[string]string, len(oldBlocks))
	for _, block := range oldBlocks {
		oldTypes[block.ID] = block.SectionType
	}

	seen := make(map[string]struct{}, len(newBlocks))
	for _, block := range newBlocks {
		if _, dup := seen[block.ID]; dup {
			return &InvariantViolation{Message: fmt.Sprintf("duplicate block id %s", block.ID)}
		}
		seen[block.ID] = struct{}{}

		if sectionType, existed := oldTypes[block.ID]; existed && sectionType != block.SectionType {
			return &InvariantViolation{Message: fmt.Sprintf("block %s retyped from %s to %s", block.ID, sectionType, block.SectionType)}
		}

		variant, err := catalog.Variant(block.SectionType, block.VariantID)
		if err != nil {
			return &InvariantViolation{Message: fmt.Sprintf("block %s has undeclared variant %s/%s", block.ID, block.SectionType, block.VariantID)}
		}
		for _, element := range block.Elements {
			if _, ok := variant.Slot(element.Slot); !ok {
				return &InvariantViolation{Message: fmt.Sprintf("block %s element %s targets undeclared slot %q", block.ID, element.ID, element.Slot)}
			}
		}
	}
	return nil
}
