package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	keyContextLines  = "gitscope.contextLines"
	keyRecentCommits = "gitscope.recentCommits"
	keyWatch         = "gitscope.watch"
	keyHighlight     = "gitscope.highlight"
)

// GitConfig reads a git config value; unset keys yield "".
type GitConfig interface {
	Config(ctx context.Context, key string) (string, error)
}

// ApplyGit overlays per-repository settings from git config.
func (c *Config) ApplyGit(ctx context.Context, g GitConfig) error {
	get := func(key string) (string, error) {
		s, err := g.Config(ctx, key)
		if err != nil {
			return "", fmt.Errorf("git config %s: %w", key, err)
		}
		return strings.TrimSpace(s), nil
	}
	for key, dst := range map[string]*int{keyContextLines: &c.ContextLines, keyRecentCommits: &c.RecentCommits} {
		s, err := get(key)
		if err != nil {
			return err
		}
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return fmt.Errorf("git config %s: invalid count %q", key, s)
		}
		*dst = n
	}
	for key, dst := range map[string]*bool{keyWatch: &c.Watch, keyHighlight: &c.Highlight} {
		s, err := get(key)
		if err != nil {
			return err
		}
		if s != "" {
			*dst = parseBool(s)
		}
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
