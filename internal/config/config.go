// Package config holds startup settings: built-in defaults, overlaid by an
// optional YAML or TOML file and then by per-repository git config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/op"
	"github.com/interpretive-systems/gitscope/internal/outline"
)

const defaultConfigRelPath = "gitscope/config.yaml"

// Config is read once at startup and treated as read-only afterwards.
type Config struct {
	ContextLines  int
	RecentCommits int
	ReadWorkers   int
	// Collapse overrides the default collapsed flag per section kind name.
	Collapse map[string]bool
	// Options lists default option names per popup, e.g. "push".
	Options       map[string][]string
	Theme         string
	Highlight     bool
	Watch         bool
	WatchDebounce time.Duration
	LogLevel      string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ContextLines:  diff.DefaultContextLines,
		RecentCommits: 10,
		ReadWorkers:   4,
		Theme:         "dark",
		Highlight:     true,
		WatchDebounce: 200 * time.Millisecond,
		LogLevel:      "info",
	}
}

type fileConfig struct {
	ContextLines  *int                `yaml:"context_lines" toml:"context_lines"`
	RecentCommits *int                `yaml:"recent_commits" toml:"recent_commits"`
	ReadWorkers   *int                `yaml:"read_workers" toml:"read_workers"`
	Collapse      map[string]bool     `yaml:"collapse" toml:"collapse"`
	Options       map[string][]string `yaml:"options" toml:"options"`
	Theme         *string             `yaml:"theme" toml:"theme"`
	Highlight     *bool               `yaml:"highlight" toml:"highlight"`
	Watch         *bool               `yaml:"watch" toml:"watch"`
	WatchDebounce *string             `yaml:"watch_debounce" toml:"watch_debounce"`
	LogLevel      *string             `yaml:"log_level" toml:"log_level"`
}

// Path is a resolved configuration file location.
type Path struct {
	Path     string
	Required bool
	Enabled  bool
}

// ResolvePath picks the file to load. An explicit path must exist; the
// default one under configHome may be missing.
func ResolvePath(configHome, explicit string, noConfig bool) Path {
	if noConfig {
		return Path{}
	}
	if explicit != "" {
		return Path{Path: explicit, Required: true, Enabled: true}
	}
	if configHome == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			configHome = dir
		}
	}
	if configHome == "" {
		return Path{}
	}
	return Path{Path: filepath.Join(configHome, defaultConfigRelPath), Enabled: true}
}

// Load returns the defaults overlaid with the file at p.
func Load(p Path) (Config, error) {
	cfg := Default()
	if !p.Enabled {
		return cfg, nil
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !p.Required {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %q: %w", p.Path, err)
	}
	fc, err := decode(p.Path, data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", p.Path, err)
	}
	if err := cfg.apply(fc); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", p.Path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", p.Path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte) (fileConfig, error) {
	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return fileConfig{}, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return fileConfig{}, err
		}
	}
	return fc, nil
}

func (c *Config) apply(fc fileConfig) error {
	if fc.ContextLines != nil {
		c.ContextLines = *fc.ContextLines
	}
	if fc.RecentCommits != nil {
		c.RecentCommits = *fc.RecentCommits
	}
	if fc.ReadWorkers != nil {
		c.ReadWorkers = *fc.ReadWorkers
	}
	if fc.Collapse != nil {
		c.Collapse = fc.Collapse
	}
	if fc.Options != nil {
		c.Options = fc.Options
	}
	if fc.Theme != nil {
		c.Theme = *fc.Theme
	}
	if fc.Highlight != nil {
		c.Highlight = *fc.Highlight
	}
	if fc.Watch != nil {
		c.Watch = *fc.Watch
	}
	if fc.WatchDebounce != nil {
		d, err := time.ParseDuration(*fc.WatchDebounce)
		if err != nil {
			return fmt.Errorf("invalid value for key %q: %w", "watch_debounce", err)
		}
		c.WatchDebounce = d
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	return nil
}

// Validate rejects values the rest of the program cannot use.
func (c Config) Validate() error {
	switch {
	case c.ContextLines < 0:
		return fmt.Errorf("invalid value for key %q: %d is negative", "context_lines", c.ContextLines)
	case c.RecentCommits < 0:
		return fmt.Errorf("invalid value for key %q: %d is negative", "recent_commits", c.RecentCommits)
	case c.ReadWorkers < 1:
		return fmt.Errorf("invalid value for key %q: need at least 1", "read_workers")
	case c.WatchDebounce < 0:
		return fmt.Errorf("invalid value for key %q: negative duration", "watch_debounce")
	case c.Theme != "dark" && c.Theme != "light":
		return fmt.Errorf("invalid value for key %q: %q (want dark or light)", "theme", c.Theme)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("invalid value for key %q: %w", "log_level", err)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("invalid value for key %q: %w", "collapse", err)
	}
	if _, err := c.OptionDefaults(); err != nil {
		return fmt.Errorf("invalid value for key %q: %w", "options", err)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// Policy is the default collapse policy with the configured overrides.
func (c Config) Policy() (outline.Policy, error) {
	p := outline.DefaultPolicy()
	for name, collapsed := range c.Collapse {
		k, err := outline.ParseKind(name)
		if err != nil {
			return nil, err
		}
		p[k] = collapsed
	}
	return p, nil
}

// popupKinds maps the option section names to the kind whose switches they
// set.
var popupKinds = map[string]op.Kind{
	"fetch":         op.Fetch,
	"pull":          op.Pull,
	"push":          op.Push,
	"commit":        op.Commit,
	"stash":         op.StashPush,
	"branch-delete": op.DeleteBranch,
}

// OptionDefaults resolves Options into option sets per operation kind.
func (c Config) OptionDefaults() (map[op.Kind]op.Options, error) {
	out := make(map[op.Kind]op.Options, len(c.Options))
	for name, flags := range c.Options {
		k, ok := popupKinds[name]
		if !ok {
			return nil, fmt.Errorf("unknown operation %q (want one of %s)", name, strings.Join(popupNames(), ", "))
		}
		var set op.Options
		for _, f := range flags {
			o, err := op.ParseOption(k, f)
			if err != nil {
				return nil, fmt.Errorf("%s: %q: %w", name, f, err)
			}
			set = set.With(o)
		}
		if err := set.Validate(k); err != nil {
			return nil, err
		}
		out[k] = set
	}
	return out, nil
}

func popupNames() []string {
	names := make([]string, 0, len(popupKinds))
	for n := range popupKinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
