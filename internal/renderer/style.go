package renderer

import (
	"strings"

	"storyboard-server/internal/models"
)

// StyleLookup resolves style identifiers to prompt fragments. *config.StyleCatalog implements it.
type StyleLookup interface {
	Lookup(id string) (string, bool)
	DefaultID() string
	PromptSuffix() string
}

// ResolveStyle picks the frame override over the project default, falling back to the catalog
// default. Identifiers missing from the catalog are used as literal prompt text. The project's
// style reference is appended when set.
func ResolveStyle(frameOverride, projectStyle, styleReference string, catalog StyleLookup) string {
	id := strings.TrimSpace(frameOverride)
	if id == "" {
		id = strings.TrimSpace(projectStyle)
	}
	if id == "" && catalog != nil {
		id = catalog.DefaultID()
	}

	prompt := id
	if catalog != nil {
		if p, ok := catalog.Lookup(id); ok {
			prompt = p
		}
	}
	if ref := strings.TrimSpace(styleReference); ref != "" {
		if prompt == "" {
			return ref
		}
		prompt += ", " + ref
	}
	return prompt
}

// ResolveCharacters returns one entry per name, nil where no definition matches. Names are
// compared case-insensitively; unknown names are allowed.
func ResolveCharacters(names []string, defs []models.CharacterDefinition) []*models.CharacterDefinition {
	out := make([]*models.CharacterDefinition, len(names))
	for i, name := range names {
		out[i] = models.FindCharacter(defs, name)
	}
	return out
}
