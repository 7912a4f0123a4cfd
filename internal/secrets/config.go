package secrets

import (
	"fmt"
	"regexp"
)

const (
	// DefaultReplacement replaces detected secrets.
	DefaultReplacement = "[REDACTED]"

	maxPatternLen = 512
)

// Config configures a Scrubber.
type Config struct {
	Enabled bool `koanf:"enabled"`

	Rules []Rule `koanf:"rules"`

	// Replacement is written in place of each secret.
	Replacement string `koanf:"replacement"`

	// AllowList holds patterns for matches that are never redacted.
	AllowList []string `koanf:"allow_list"`
}

// Rule detects one kind of secret.
type Rule struct {
	ID      string `koanf:"id"`
	Pattern string `koanf:"pattern"`

	// Keywords gate the rule: it only runs when one of them occurs in
	// the text (case-insensitive).
	Keywords []string `koanf:"keywords"`
}

// DefaultConfig returns an enabled config with DefaultRules.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Rules:       DefaultRules(),
		Replacement: DefaultReplacement,
	}
}

// Validate checks config for errors.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	seen := make(map[string]bool, len(c.Rules))
	for i, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule %d: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("rule %q: duplicate id", r.ID)
		}
		seen[r.ID] = true
		if r.Pattern == "" {
			return fmt.Errorf("rule %q: pattern is required", r.ID)
		}
		if len(r.Pattern) > maxPatternLen {
			return fmt.Errorf("rule %q: pattern too long (max %d chars)", r.ID, maxPatternLen)
		}
	}
	return nil
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid pattern: %w", r.ID, err)
		}
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kws = append(kws, toLower(kw))
		}
		out = append(out, compiledRule{id: r.ID, pattern: re, keywords: kws})
	}
	return out, nil
}

func compileAllowList(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("allow list pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
