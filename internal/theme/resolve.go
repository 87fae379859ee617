package theme

// ResolvedStyle is the flat token map a renderer consumes.
type ResolvedStyle map[string]string

// Resolve layers a document's sparse overrides on top of a preset's full token
// set. Unknown override keys are rejected: an ignored token would render as
// "nothing changed" and mask edit bugs upstream. Pure and deterministic, so
// callers recompute it on every read instead of caching it on the document.
func (c *Catalog) Resolve(presetID string, overrides map[string]string) (ResolvedStyle, error) {
	preset, err := c.Preset(presetID)
	if err != nil {
		return nil, err
	}

	resolved := make(ResolvedStyle, len(preset.Tokens))
	for token, value := range preset.Tokens {
		resolved[token] = value
	}
	for token, value := range overrides {
		if _, ok := preset.Tokens[token]; !ok {
			return nil, &Error{Kind: UnknownToken, Ref: token}
		}
		resolved[token] = value
	}
	return resolved, nil
}

// HasToken reports whether a preset declares a style token. The patch engine
// uses it to validate setStyleOverride before anything is committed.
func (c *Catalog) HasToken(presetID, token string) (bool, error) {
	preset, err := c.Preset(presetID)
	if err != nil {
		return false, err
	}
	_, ok := preset.Tokens[token]
	return ok, nil
}
