package playbook

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter is the YAML header of a playbook file (§6 Playbook file
// format). Unknown top-level keys are accepted without error but are not
// preserved: decoding into this typed struct drops them, and Template has
// no field that carries them.
type frontmatter struct {
	Code                 string   `yaml:"code"`
	Version              string   `yaml:"version"`
	Kind                 string   `yaml:"kind"`
	Scope                string   `yaml:"scope"`
	RequiredTools        []string `yaml:"required_tools"`
	RequiredCapabilities []string `yaml:"required_capabilities"`
	Locale               string   `yaml:"locale"`
	Icon                 string   `yaml:"icon"`
	Tags                 []string `yaml:"tags"`
}

// ParseFile decodes a playbook file: YAML frontmatter between `---`
// fences, a Markdown body, and an optional trailing JSON block declaring
// the executable step graph.
func ParseFile(raw string) (*Template, error) {
	fence := "---"
	if !strings.HasPrefix(strings.TrimSpace(raw), fence) {
		return nil, fmt.Errorf("playbook: missing frontmatter fence")
	}
	body := strings.TrimPrefix(strings.TrimSpace(raw), fence)
	idx := strings.Index(body, "\n"+fence)
	if idx < 0 {
		return nil, fmt.Errorf("playbook: unterminated frontmatter fence")
	}
	fmText, rest := body[:idx], strings.TrimPrefix(body[idx+len(fence)+1:], "\n")

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		return nil, fmt.Errorf("playbook: decode frontmatter: %w", err)
	}
	if fm.Code == "" || fm.Version == "" || fm.Kind == "" || fm.Scope == "" {
		return nil, fmt.Errorf("playbook: frontmatter missing required key (code/version/kind/scope)")
	}

	markdownBody, steps := splitStepGraph(rest)

	return &Template{
		Code:                 fm.Code,
		Version:              fm.Version,
		Kind:                 fm.Kind,
		Scope:                Scope(fm.Scope),
		RequiredTools:        fm.RequiredTools,
		RequiredCapabilities: fm.RequiredCapabilities,
		Locale:               fm.Locale,
		Icon:                 fm.Icon,
		Tags:                 fm.Tags,
		Body:                 markdownBody,
		Steps:                steps,
	}, nil
}

// stepGraphDoc is the optional trailing JSON block's shape.
type stepGraphDoc struct {
	Steps []Step `json:"steps"`
}

// splitStepGraph looks for a trailing fenced ```json block declaring the
// step graph; everything before it is the Markdown body.
func splitStepGraph(rest string) (string, []Step) {
	const openFence = "```json"
	const closeFence = "```"
	idx := strings.LastIndex(rest, openFence)
	if idx < 0 {
		return rest, nil
	}
	closeIdx := strings.Index(rest[idx+len(openFence):], closeFence)
	if closeIdx < 0 {
		return rest, nil
	}
	jsonBlock := rest[idx+len(openFence) : idx+len(openFence)+closeIdx]
	var doc stepGraphDoc
	if err := json.Unmarshal([]byte(jsonBlock), &doc); err != nil {
		return rest, nil
	}
	return strings.TrimSpace(rest[:idx]), doc.Steps
}
