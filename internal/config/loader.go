package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if REGATTA_CONFIG is set
//  3. env (prefix REGATTA_)
func Load(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("REGATTA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: REGATTA_ADDR, REGATTA_QUEUE_SIZE, ...
	// Map env keys like REGATTA_QUEUE_SIZE -> queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("REGATTA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "regatta_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Leaderboards))
	for _, lb := range c.Leaderboards {
		if lb.Name == "" {
			return fmt.Errorf("%w: leaderboard name must not be empty", ErrInvalidConfig)
		}
		if _, dup := seen[lb.Name]; dup {
			return fmt.Errorf("%w: duplicate leaderboard %q", ErrInvalidConfig, lb.Name)
		}
		seen[lb.Name] = struct{}{}

		if err := validScheme(lb.Scheme); err != nil {
			return fmt.Errorf("%w: leaderboard %q: %w", ErrInvalidConfig, lb.Name, err)
		}
		for i := 1; i < len(lb.Discards); i++ {
			if lb.Discards[i] <= lb.Discards[i-1] {
				return fmt.Errorf("%w: leaderboard %q: discard thresholds must be strictly increasing", ErrInvalidConfig, lb.Name)
			}
		}
	}

	for _, g := range c.Groups {
		if g.Name == "" {
			return fmt.Errorf("%w: group name must not be empty", ErrInvalidConfig)
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("%w: group %q collides with a leaderboard name", ErrInvalidConfig, g.Name)
		}
		seen[g.Name] = struct{}{}

		if err := validScheme(g.Scheme); err != nil {
			return fmt.Errorf("%w: group %q: %w", ErrInvalidConfig, g.Name, err)
		}
		for _, m := range g.Members {
			found := false
			for _, lb := range c.Leaderboards {
				if lb.Name == m {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: group %q references unknown leaderboard %q", ErrInvalidConfig, g.Name, m)
			}
		}
	}
	return nil
}

func validScheme(s string) error {
	switch s {
	case "", "low_point", "high_point":
		return nil
	default:
		return fmt.Errorf("unknown scheme %q", s)
	}
}
