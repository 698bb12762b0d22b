// Package persona holds the two fixed system prompts used by the chat duel.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultPrompts []byte

// Prompts are the system prompts for the authentic and the generic persona.
type Prompts struct {
	Authentic string `yaml:"authentic"`
	Generic   string `yaml:"generic"`
}

// Default returns the built-in prompts.
func Default() Prompts {
	p, err := parse(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("embedded persona prompts are invalid: %v", err))
	}
	return p
}

// Load reads prompts from a YAML file. Fields missing from the file keep
// their built-in value. An empty path returns the defaults.
func Load(path string) (Prompts, error) {
	base := Default()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read persona file: %w", err)
	}

	override, err := parse(data)
	if err != nil {
		return Prompts{}, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	if override.Authentic != "" {
		base.Authentic = override.Authentic
	}
	if override.Generic != "" {
		base.Generic = override.Generic
	}
	return base, nil
}

// For selects the system prompt for a chat request.
func (p Prompts) For(authentic bool) string {
	if authentic {
		return p.Authentic
	}
	return p.Generic
}

func parse(data []byte) (Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompts{}, err
	}
	p.Authentic = strings.TrimSpace(p.Authentic)
	p.Generic = strings.TrimSpace(p.Generic)
	return p, nil
}
