package secrets

import (
	"regexp"
	"sort"
	"strings"
)

// Finding is one detected secret.
type Finding struct {
	RuleID string
	Start  int
	End    int
}

// Scrubber redacts secrets from text. It is safe for concurrent use.
type Scrubber struct {
	enabled     bool
	replacement string
	rules       []compiledRule
	allow       []*regexp.Regexp
}

// New compiles cfg into a Scrubber.
func New(cfg Config) (*Scrubber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scrubber{enabled: cfg.Enabled, replacement: cfg.Replacement}
	if !cfg.Enabled {
		return s, nil
	}
	if s.replacement == "" {
		s.replacement = DefaultReplacement
	}

	rules, err := compileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	s.rules = rules

	s.allow, err = compileAllowList(cfg.AllowList)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Enabled reports whether the scrubber redacts anything.
func (s *Scrubber) Enabled() bool {
	return s != nil && s.enabled
}

// Find returns the secrets in content ordered by position.
func (s *Scrubber) Find(content string) []Finding {
	if !s.Enabled() || content == "" {
		return nil
	}

	var lower string
	var findings []Finding
	for _, r := range s.rules {
		if len(r.keywords) > 0 {
			if lower == "" {
				lower = toLower(content)
			}
			if !containsAny(lower, r.keywords) {
				continue
			}
		}
		for _, loc := range r.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[loc[0]:loc[1]]) {
				continue
			}
			findings = append(findings, Finding{RuleID: r.id, Start: loc[0], End: loc[1]})
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		return findings[i].End > findings[j].End
	})
	return findings
}

// Contains reports whether content holds any secret.
func (s *Scrubber) Contains(content string) bool {
	return len(s.Find(content)) > 0
}

// Scrub replaces every secret in content and returns the result with
// the findings it replaced.
func (s *Scrubber) Scrub(content string) (string, []Finding) {
	findings := s.Find(content)
	if len(findings) == 0 {
		return content, nil
	}

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, span := range merge(findings) {
		b.WriteString(content[pos:span.Start])
		b.WriteString(s.replacement)
		pos = span.End
	}
	b.WriteString(content[pos:])
	return b.String(), findings
}

func (s *Scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// merge collapses overlapping or adjacent findings. findings must be
// sorted by Start.
func merge(findings []Finding) []Finding {
	out := []Finding{findings[0]}
	for _, f := range findings[1:] {
		last := &out[len(out)-1]
		if f.Start <= last.End {
			if f.End > last.End {
				last.End = f.End
			}
			continue
		}
		out = append(out, f)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func toLower(s string) string {
	return strings.ToLower(s)
}
