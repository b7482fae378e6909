// Package config resolves typed tunables from a flat key/value store.
//
// The store is read-only from this package's point of view. Values are
// strings; the Resolver turns them into typed values and falls back to a
// default whenever a key is absent or malformed. Nothing in this package
// returns an error for bad input, it degrades to the default instead.
//
// Sources are composable:
//
//	src := config.Chain{
//	    config.MapSource{"max-retransmit-count": "4"}, // flags
//	    config.NewEnvSource(config.DefaultEnvPrefix),   // environment
//	    fileSource,                                     // YAML file
//	}
//	r := config.NewResolver(config.ResolverConfig{Source: src})
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix is prepended to environment variable names.
const DefaultEnvPrefix = "TRAVERSE_"

// Source is a read-only key/value store.
type Source interface {
	// Lookup returns the raw value for key and whether it was present.
	Lookup(key string) (string, bool)
}

// MapSource is a fixed in-memory source.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvSource reads keys from the process environment.
// The key "first-retransmit-interval-ms" is read from
// "<Prefix>FIRST_RETRANSMIT_INTERVAL_MS".
type EnvSource struct {
	Prefix string

	// lookupEnv is os.LookupEnv unless replaced in tests.
	lookupEnv func(string) (string, bool)
}

// NewEnvSource creates an environment source with the given prefix.
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{Prefix: prefix, lookupEnv: os.LookupEnv}
}

// Lookup implements Source.
func (e *EnvSource) Lookup(key string) (string, bool) {
	lookup := e.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return lookup(EnvName(e.Prefix, key))
}

// EnvName returns the environment variable name for key.
func EnvName(prefix, key string) string {
	name := strings.ToUpper(key)
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return prefix + name
}

// FileSource holds keys loaded from a flat YAML document.
// Scalar values are stringified; sequences are joined with ",".
type FileSource struct {
	values map[string]string
}

// LoadFile reads a YAML file into a FileSource.
// A missing file yields an empty source and no error.
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileSource{values: map[string]string{}}, nil
		}
		return nil, err
	}
	return ParseYAML(data)
}

// ParseYAML parses a flat YAML mapping into a FileSource.
func ParseYAML(data []byte) (*FileSource, error) {
	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case nil:
			// Present but empty; String() treats it as absent.
			values[k] = ""
		case []any:
			parts := make([]string, 0, len(tv))
			for _, item := range tv {
				parts = append(parts, fmt.Sprint(item))
			}
			values[k] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("%w: key %q holds a mapping", ErrInvalidFile, k)
		default:
			values[k] = fmt.Sprint(tv)
		}
	}
	return &FileSource{values: values}, nil
}

// Lookup implements Source.
func (f *FileSource) Lookup(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f.values[key]
	return v, ok
}

// Chain consults sources in order; the first source holding the key wins.
type Chain []Source

// Lookup implements Source.
func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}
