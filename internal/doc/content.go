package doc

import (
	"encoding/json"
	"strings"
)

// Content is the wire/persisted form of a document's full editable state.
// Snapshots store it verbatim; the archive commits it as content.json.
type Content struct {
	ThemePresetID  string            `json:"themePresetId"`
	Blocks         []ContentBlock    `json:"blocks"`
	Data           map[string]any    `json:"data"`
	StyleOverrides map[string]string `json:"styleOverrides"`
}

type ContentBlock struct {
	ID          string           `json:"id"`
	SectionType string           `json:"sectionType"`
	VariantID   string           `json:"variantId"`
	Elements    []ContentElement `json:"elements"`
}

type ContentElement struct {
	ID    string `json:"id"`
	Slot  string `json:"slot"`
	Value Value  `json:"value"`
}

func ContentOf(d *Document) Content {
	content := Content{
		ThemePresetID:  d.ThemePresetID,
		Blocks:         make([]ContentBlock, 0, len(d.Blocks)),
		Data:           cloneData(d.Data),
		StyleOverrides: make(map[string]string, len(d.StyleOverrides)),
	}
	for token, value := range d.StyleOverrides {
		content.StyleOverrides[token] = value
	}
	for _, block := range d.Blocks {
		wire := ContentBlock{
			ID:          block.ID,
			SectionType: block.SectionType,
			VariantID:   block.VariantID,
			Elements:    make([]ContentElement, 0, len(block.Elements)),
		}
		for _, element := range block.Elements {
			wire.Elements = append(wire.Elements, ContentElement{
				ID:    element.ID,
				Slot:  element.Slot,
				Value: element.Value,
			})
		}
		content.Blocks = append(content.Blocks, wire)
	}
	return content
}

func (c Content) Materialize() ([]Block, map[string]any, map[string]string) {
	blocks := make([]Block, 0, len(c.Blocks))
	for _, wire := range c.Blocks {
		block := Block{
			ID:          wire.ID,
			SectionType: wire.SectionType,
			VariantID:   wire.VariantID,
			Elements:    make([]Element, 0, len(wire.Elements)),
		}
		for _, element := range wire.Elements {
			block.Elements = append(block.Elements, Element{
				ID:    element.ID,
				Slot:  element.Slot,
				Value: element.Value,
			})
		}
		blocks = append(blocks, block)
	}
	data := cloneData(c.Data)
	overrides := make(map[string]string, len(c.StyleOverrides))
	for token, value := range c.StyleOverrides {
		overrides[token] = value
	}
	return blocks, data, overrides
}

func (c Content) JSON() json.RawMessage {
	raw, err := json.Marshal(c)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// PlainText flattens every text slot value into one search-friendly string,
// with bindings resolved against the data payload.
func (c Content) PlainText() string {
	parts := make([]string, 0)
	for _, block := range c.Blocks {
		for _, element := range block.Elements {
			text := element.Value.StringValue(c.Data)
			if strings.TrimSpace(text) == "" {
				continue
			}
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func ParseContent(raw []byte) (Content, error) {
	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, err
	}
	if content.Data == nil {
		content.Data = map[string]any{}
	}
	if content.StyleOverrides == nil {
		content.StyleOverrides = map[string]string{}
	}
	return content, nil
}

// Restore replays a snapshot's content as a NEW commit. History stays
// monotonic: later snapshots are never deleted, the rewind is just another
// version. Goes through the same mutation entry point as patches so the
// structural invariants are re-checked.
func (e *Engine) Restore(document *Document, content Content) (CommitResult, error) {
	blocks, data, overrides := content.Materialize()
	if err := document.applyCommitted(e.catalog, blocks, data, overrides); err != nil {
		return CommitResult{}, err
	}
	return CommitResult{
		Version:      document.Version,
		UnboundPaths: document.UnboundPaths(),
	}, nil
}
