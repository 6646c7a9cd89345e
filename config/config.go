// Package config handles loading and parsing cm-textmate's YAML config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure of a cm-textmate config.yaml.
type Config struct {
	// Grammars lists the TextMate grammar files to register, in order.
	Grammars []Grammar `yaml:"grammars"`

	// Themes lists theme files to register by path.
	Themes []Theme `yaml:"themes"`

	// DefaultTheme names the theme editors start on; empty selects the
	// theme-less classifier.
	DefaultTheme string `yaml:"default_theme"`
}

// Grammar registers one grammar file under a scope name, optionally binding
// an editor language id and injecting the grammar into host scopes.
type Grammar struct {
	ScopeName string `yaml:"scope_name"`
	Path      string `yaml:"path"`

	// LanguageID, when set, activates the grammar as an editor mode.
	LanguageID string `yaml:"language_id"`

	// LoadPriority is one of now, asap, defer (the default).
	LoadPriority string `yaml:"load_priority"`

	// InjectInto lists host scope names this grammar is injected into.
	InjectInto []string `yaml:"inject_into"`
}

// Theme registers one theme file.
type Theme struct {
	Path string `yaml:"path"`
}

// Load reads path and returns the parsed, validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, g := range cfg.Grammars {
		if g.ScopeName == "" || g.Path == "" {
			return nil, fmt.Errorf("%s: grammars[%d]: scope_name and path are required", path, i)
		}
		switch g.LoadPriority {
		case "", "now", "asap", "defer":
		default:
			return nil, fmt.Errorf("%s: grammars[%d]: bad load_priority %q", path, i, g.LoadPriority)
		}
	}
	for i, t := range cfg.Themes {
		if t.Path == "" {
			return nil, fmt.Errorf("%s: themes[%d]: path is required", path, i)
		}
	}
	return &cfg, nil
}
