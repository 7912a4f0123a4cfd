package logging

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/logweave/internal/secrets"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a debug-level Logger whose entries are kept in memory for
// assertions. Entries skip format stages.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a TestLogger named "test".
func NewTestLogger() *TestLogger {
	core, observed := NewObservedSink()
	return &TestLogger{
		Logger:   newLogger("test", zap.New(core).Named("test"), DebugLevel, 1),
		observed: observed,
	}
}

// NewObservedSink returns a core that records every entry, for use as
// TransportSpec.Sink.
func NewObservedSink() (zapcore.Core, *observer.ObservedLogs) {
	return observer.New(DebugLevel.zapLevel())
}

func (t *TestLogger) All() []observer.LoggedEntry { return t.observed.All() }

func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset drops recorded entries.
func (t *TestLogger) Reset() { t.observed.TakeAll() }

func (t *TestLogger) matching(level Level, substr string) []observer.LoggedEntry {
	return t.observed.Filter(func(e observer.LoggedEntry) bool {
		return e.Level == level.zapLevel() && strings.Contains(e.Message, substr)
	}).All()
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level Level, substr string) {
	tb.Helper()
	if len(t.matching(level, substr)) == 0 {
		tb.Errorf("no %s entry containing %q; recorded: %v", level, substr, t.messages())
	}
}

// AssertNotLogged fails tb if an entry at level contains substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level Level, substr string) {
	tb.Helper()
	if n := len(t.matching(level, substr)); n > 0 {
		tb.Errorf("%d unexpected %s entries containing %q", n, level, substr)
	}
}

// AssertField fails tb unless an entry with message msg has field key
// equal to want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("entry %q has no field %s=%v", msg, key, want)
}

// AssertTraceCorrelation fails tb unless the entry with message msg
// carries a trace_id.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if _, ok := e.ContextMap()["trace_id"]; ok {
			return
		}
	}
	tb.Errorf("entry %q has no trace_id", msg)
}

// AssertNoSecrets fails tb for every string in a recorded message or field
// that looks like a credential: a default redaction pattern, a secret rule
// match, or an unredacted value under a sensitive key.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	d, err := newLeakDetector()
	if err != nil {
		tb.Fatalf("secret rules: %v", err)
	}
	for _, e := range t.observed.All() {
		for _, leak := range d.scan("", e.Message) {
			tb.Errorf("%s in message: %q", leak, e.Message)
		}
		for _, f := range e.Context {
			if f.Type != zapcore.StringType {
				continue
			}
			for _, leak := range d.scan(f.Key, f.String) {
				tb.Errorf("%s in field %q: %q", leak, f.Key, f.String)
			}
		}
	}
}

func (t *TestLogger) messages() []string {
	entries := t.observed.All()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = levelFromZap(e.Level).String() + ": " + e.Message
	}
	return out
}

type leakDetector struct {
	patterns []*regexp.Regexp
	keys     []string
	rules    *secrets.Scrubber
}

func newLeakDetector() (*leakDetector, error) {
	defaults := DefaultRedactionConfig()
	d := &leakDetector{keys: defaults.Fields}
	for _, p := range defaults.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		d.patterns = append(d.patterns, re)
	}
	rules, err := secrets.New(secrets.DefaultConfig())
	if err != nil {
		return nil, err
	}
	d.rules = rules
	return d, nil
}

// scan describes each reason s, logged under key, looks like a leak.
func (d *leakDetector) scan(key, s string) []string {
	var leaks []string
	if key != "" && s != "" && !strings.Contains(s, "[REDACTED") {
		lower := strings.ToLower(key)
		for _, k := range d.keys {
			if strings.Contains(lower, k) {
				leaks = append(leaks, "unredacted sensitive key")
				break
			}
		}
	}
	for _, re := range d.patterns {
		if re.MatchString(s) {
			leaks = append(leaks, fmt.Sprintf("pattern %s", re))
		}
	}
	for _, f := range d.rules.Find(s) {
		leaks = append(leaks, f.RuleID)
	}
	return leaks
}
