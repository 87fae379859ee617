// Package theme holds the immutable catalog of style presets and section
// skeleton variants. The catalog is built once at startup and shared read-only
// across all requests.
package theme

import (
	"fmt"
	"sort"
)

type SlotKind string

const (
	SlotText  SlotKind = "text"
	SlotMedia SlotKind = "media"
)

// SlotDecl declares one content slot of a skeleton variant.
type SlotDecl struct {
	Name    string   `json:"name"`
	Kind    SlotKind `json:"kind"`
	Default string   `json:"default,omitempty"`
}

// Variant is one structural layout option for a section type.
type Variant struct {
	SectionType string     `json:"sectionType"`
	ID          string     `json:"id"`
	Slots       []SlotDecl `json:"slots"`
}

func (v Variant) Slot(name string) (SlotDecl, bool) {
	for _, slot := range v.Slots {
		if slot.Name == name {
			return slot, true
		}
	}
	return SlotDecl{}, false
}

// Preset is a named, complete style token set.
type Preset struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Tokens map[string]string `json:"tokens"`
}

type Catalog struct {
	presets  map[string]Preset
	variants map[string]map[string]Variant // sectionType -> variantID
	sections []string
}

func NewCatalog() *Catalog {
	c := &Catalog{
		presets:  make(map[string]Preset),
		variants: make(map[string]map[string]Variant),
	}
	for _, preset := range builtinPresets {
		c.presets[preset.ID] = preset
	}
	for _, variant := range builtinVariants {
		byID, ok := c.variants[variant.SectionType]
		if !ok {
			byID = make(map[string]Variant)
			c.variants[variant.SectionType] = byID
			c.sections = append(c.sections, variant.SectionType)
		}
		byID[variant.ID] = variant
	}
	sort.Strings(c.sections)
	return c
}

func (c *Catalog) Preset(id string) (Preset, error) {
	preset, ok := c.presets[id]
	if !ok {
		return Preset{}, &Error{Kind: UnknownPreset, Ref: id}
	}
	return preset, nil
}

// Variant resolves a skeleton variant for a section type. The section type is
// part of the key: a variant id is only meaningful within its section.
func (c *Catalog) Variant(sectionType, variantID string) (Variant, error) {
	byID, ok := c.variants[sectionType]
	if !ok {
		return Variant{}, &Error{Kind: UnknownVariant, Ref: sectionType + "/" + variantID}
	}
	variant, ok := byID[variantID]
	if !ok {
		return Variant{}, &Error{Kind: UnknownVariant, Ref: sectionType + "/" + variantID}
	}
	return variant, nil
}

// DefaultVariant returns the first declared variant of a section type,
// used when seeding a fresh document.
func (c *Catalog) DefaultVariant(sectionType string) (Variant, error) {
	for _, variant := range builtinVariants {
		if variant.SectionType == sectionType {
			return variant, nil
		}
	}
	return Variant{}, &Error{Kind: UnknownVariant, Ref: sectionType}
}

func (c *Catalog) Presets() []Preset {
	items := make([]Preset, 0, len(c.presets))
	for _, preset := range c.presets {
		items = append(items, preset)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (c *Catalog) SectionTypes() []string {
	return append([]string(nil), c.sections...)
}

func (c *Catalog) Variants(sectionType string) []Variant {
	byID, ok := c.variants[sectionType]
	if !ok {
		return nil
	}
	items := make([]Variant, 0, len(byID))
	for _, variant := range byID {
		items = append(items, variant)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// ErrorKind identifies a catalog lookup failure.
type ErrorKind string

const (
	UnknownPreset  ErrorKind = "UNKNOWN_PRESET"
	UnknownVariant ErrorKind = "UNKNOWN_VARIANT"
	UnknownToken   ErrorKind = "UNKNOWN_TOKEN"
)

// Error is a structural error: the caller referenced a preset, variant or
// style token the catalog does not declare. Usually a stale client.
type Error struct {
	Kind ErrorKind
	Ref  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Ref)
}
