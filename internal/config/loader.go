// Package config loads the logweave configuration tree.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes environment variables that override the file.
	EnvPrefix = "LOGWEAVE_"

	// envNestSep separates nesting levels in environment variable names.
	envNestSep = "__"
)

// Tree is a loaded configuration tree.
type Tree struct {
	k *koanf.Koanf
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{k: koanf.New(".")}
}

// Load reads the config file at path, then overrides it with environment
// variables. Files ending in .toml are parsed as TOML, anything else as
// YAML. An empty path loads the environment only.
//
// # Environment Variable Mapping
//
// Variables must start with LOGWEAVE_. The prefix is dropped, the rest is
// lowercased and double underscores become nesting levels:
//
//	LOGWEAVE_LOGGER__DEFAULT          -> logger.default
//	LOGWEAVE_LOGGER__DISABLE_CONSOLE  -> logger.disable_console
//	LOGWEAVE_LOGGER__LOGGERS__APP__LEVEL -> logger.loggers.app.level
//
// # Security Considerations
//
// Files larger than 1MB and world-writable files are rejected.
func Load(path string) (*Tree, error) {
	t := New()

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := t.k.Load(rawbytes.Provider(content), parserFor(path)); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := t.k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return t, nil
}

// LoadBytes parses YAML content without consulting the environment.
func LoadBytes(content []byte) (*Tree, error) {
	t := New()
	if err := t.k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return t, nil
}

// FromMap builds a tree from a nested map.
func FromMap(m map[string]any) (*Tree, error) {
	t := New()
	for k, v := range m {
		if err := t.k.Set(k, v); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", k, err)
		}
	}
	return t, nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return tomlParser{}
	}
	return yaml.Parser()
}

// envKey maps LOGWEAVE_A__B_C to a.b_c.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, envNestSep, ".")
}

// readConfigFile opens path once and validates it through the open
// descriptor to avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("insecure config file permissions: %v (world-writable)", info.Mode().Perm())
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// Unmarshal decodes the subtree at key into out using koanf struct tags.
// Values implementing encoding.TextUnmarshaler are decoded from strings.
func (t *Tree) Unmarshal(key string, out any) error {
	return t.k.Unmarshal(key, out)
}

// Exists reports whether key is set.
func (t *Tree) Exists(key string) bool {
	return t.k.Exists(key)
}

// String returns the string at key, or "".
func (t *Tree) String(key string) string {
	return t.k.String(key)
}

// Bool returns the bool at key, or false.
func (t *Tree) Bool(key string) bool {
	return t.k.Bool(key)
}

// Set sets key to val.
func (t *Tree) Set(key string, val any) error {
	return t.k.Set(key, val)
}

// Keys returns the direct children of key in sorted order.
func (t *Tree) Keys(key string) []string {
	keys := t.k.MapKeys(key)
	sort.Strings(keys)
	return keys
}

// All returns the tree as a nested map.
func (t *Tree) All() map[string]any {
	return t.k.Raw()
}
