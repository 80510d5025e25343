package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// StyleCatalog maps visual style identifiers to image prompt fragments.
type StyleCatalog struct {
	Default string            `yaml:"default" json:"default" env:"STYLE_DEFAULT" env-default:"cinematic"`
	Suffix  string            `yaml:"suffix" json:"suffix" env:"STYLE_PROMPT_SUFFIX" env-default:"storyboard frame, clear composition, no text, no watermark"`
	Styles  map[string]string `yaml:"styles" json:"styles"`
}

// DefaultStyles is used when no catalog file is configured, and fills identifiers a file omits.
var DefaultStyles = map[string]string{
	"cinematic":  "cinematic film still, dramatic lighting, shallow depth of field, anamorphic lens",
	"sketch":     "rough pencil storyboard sketch, black and white, loose linework, hatching for shadows",
	"noir":       "film noir, high-contrast black and white, hard shadows, venetian blind light",
	"anime":      "anime key frame, clean cel shading, vibrant colors, expressive characters",
	"watercolor": "watercolor illustration, soft washes, muted palette, paper texture",
	"comic":      "comic book panel, bold inks, halftone shading, dynamic perspective",
}

// LoadStyleCatalog reads the catalog from path (YAML, JSON or TOML by extension) and environment.
// An empty path yields the built-in catalog.
func LoadStyleCatalog(path string) (*StyleCatalog, error) {
	var cat StyleCatalog
	if path == "" {
		if err := cleanenv.ReadEnv(&cat); err != nil {
			return nil, fmt.Errorf("error reading style catalog from environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cat); err != nil {
		return nil, fmt.Errorf("error reading style catalog %s: %w", path, err)
	}

	normalized := make(map[string]string, len(DefaultStyles)+len(cat.Styles))
	for id, prompt := range DefaultStyles {
		normalized[id] = prompt
	}
	for id, prompt := range cat.Styles {
		id = normalizeStyleID(id)
		if id == "" || strings.TrimSpace(prompt) == "" {
			return nil, fmt.Errorf("style catalog %s: empty style identifier or prompt", path)
		}
		normalized[id] = strings.TrimSpace(prompt)
	}
	cat.Styles = normalized
	cat.Default = normalizeStyleID(cat.Default)
	if _, ok := cat.Styles[cat.Default]; !ok {
		return nil, fmt.Errorf("style catalog: default style %q is not defined", cat.Default)
	}
	return &cat, nil
}

// Lookup returns the prompt fragment for a style identifier.
func (c *StyleCatalog) Lookup(id string) (string, bool) {
	prompt, ok := c.Styles[normalizeStyleID(id)]
	return prompt, ok
}

// DefaultID returns the identifier used when a project names no style.
func (c *StyleCatalog) DefaultID() string {
	return c.Default
}

// PromptSuffix is appended to every image prompt.
func (c *StyleCatalog) PromptSuffix() string {
	return c.Suffix
}

func normalizeStyleID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
