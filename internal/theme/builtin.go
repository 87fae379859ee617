package theme

// Built-in presets and skeleton variants. The catalog is code, not data: a new
// layout ships with a release, never through user input.

var builtinPresets = []Preset{
	{
		ID:   "classic",
		Name: "Classic",
		Tokens: map[string]string{
			"titleColor":      "#000",
			"bodyColor":       "#333",
			"accentColor":     "#b08d57",
			"backgroundColor": "#fffdf8",
			"titleFont":       "Playfair Display",
			"bodyFont":        "Lora",
			"buttonShape":     "rounded",
		},
	},
	{
		ID:   "botanical",
		Name: "Botanical",
		Tokens: map[string]string{
			"titleColor":      "#2f4331",
			"bodyColor":       "#42594a",
			"accentColor":     "#7c9c6f",
			"backgroundColor": "#f4f7ef",
			"titleFont":       "Cormorant Garamond",
			"bodyFont":        "Karla",
			"buttonShape":     "pill",
		},
	},
	{
		ID:   "midnight",
		Name: "Midnight",
		Tokens: map[string]string{
			"titleColor":      "#f5f1e8",
			"bodyColor":       "#cfc8ba",
			"accentColor":     "#d4af37",
			"backgroundColor": "#14161f",
			"titleFont":       "Cinzel",
			"bodyFont":        "Raleway",
			"buttonShape":     "square",
		},
	},
}

var builtinVariants = []Variant{
	// hero
	{
		SectionType: "hero",
		ID:          "center",
		Slots: []SlotDecl{
			{Name: "title", Kind: SlotText, Default: "Our Celebration"},
			{Name: "date", Kind: SlotText},
			{Name: "cover-photo", Kind: SlotMedia},
		},
	},
	{
		SectionType: "hero",
		ID:          "left-aligned",
		Slots: []SlotDecl{
			{Name: "title", Kind: SlotText, Default: "Our Celebration"},
			{Name: "subtitle", Kind: SlotText, Default: "We would love to see you there"},
			{Name: "date", Kind: SlotText},
			{Name: "cover-photo", Kind: SlotMedia},
		},
	},
	{
		SectionType: "hero",
		ID:          "split",
		Slots: []SlotDecl{
			{Name: "title", Kind: SlotText, Default: "Our Celebration"},
			{Name: "date", Kind: SlotText},
			{Name: "cover-photo", Kind: SlotMedia},
			{Name: "side-photo", Kind: SlotMedia},
		},
	},
	// calendar
	{
		SectionType: "calendar",
		ID:          "countdown",
		Slots: []SlotDecl{
			{Name: "heading", Kind: SlotText, Default: "Save the date"},
			{Name: "date", Kind: SlotText},
		},
	},
	{
		SectionType: "calendar",
		ID:          "timeline",
		Slots: []SlotDecl{
			{Name: "heading", Kind: SlotText, Default: "The day"},
			{Name: "date", Kind: SlotText},
			{Name: "schedule", Kind: SlotText},
		},
	},
	// gallery
	{
		SectionType: "gallery",
		ID:          "grid",
		Slots: []SlotDecl{
			{Name: "heading", Kind: SlotText, Default: "Moments"},
			{Name: "photo-1", Kind: SlotMedia},
			{Name: "photo-2", Kind: SlotMedia},
			{Name: "photo-3", Kind: SlotMedia},
			{Name: "photo-4", Kind: SlotMedia},
		},
	},
	{
		SectionType: "gallery",
		ID:          "carousel",
		Slots: []SlotDecl{
			{Name: "heading", Kind: SlotText, Default: "Moments"},
			{Name: "photo-1", Kind: SlotMedia},
			{Name: "photo-2", Kind: SlotMedia},
			{Name: "photo-3", Kind: SlotMedia},
		},
	},
	// story
	{
		SectionType: "story",
		ID:          "single-column",
		Slots: []SlotDecl{
			{Name: "heading", Kind: SlotText, Default: "Our story"},
			{Name: "body", Kind: SlotText},
		},
	},
	{
		SectionType: "story",
		ID:          "with-portrait",
		Slots: []SlotDecl{
			{Name: "heading", Kind: SlotText, Default: "Our story"},
			{Name: "body", Kind: SlotText},
			{Name: "portrait", Kind: SlotMedia},
		},
	},
	// venue
	{
		SectionType: "venue",
		ID:          "card",
		Slots: []SlotDecl{
			{Name: "heading", Kind: SlotText, Default: "Where"},
			{Name: "address", Kind: SlotText},
			{Name: "directions", Kind: SlotText},
		},
	},
	// rsvp
	{
		SectionType: "rsvp",
		ID:          "simple",
		Slots: []SlotDecl{
			{Name: "heading", Kind: SlotText, Default: "Will you join us?"},
			{Name: "deadline", Kind: SlotText},
			{Name: "contact", Kind: SlotText},
		},
	},
}
