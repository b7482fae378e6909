package config

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pion/logging"
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Source is the backing store. If nil, the process environment with
	// DefaultEnvPrefix is used.
	Source Source

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver is a typed accessor over a Source.
// It never mutates the source and is safe for concurrent use.
type Resolver struct {
	src Source
	log logging.LeveledLogger
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) *Resolver {
	r := &Resolver{src: config.Source}
	if r.src == nil {
		r.src = NewEnvSource(DefaultEnvPrefix)
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("config")
	}
	return r
}

// String returns the trimmed value of key. It returns false if the key is
// absent, empty or whitespace only.
func (r *Resolver) String(key Key) (string, bool) {
	v, ok := r.src.Lookup(string(key))
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// StringList splits the value of key on delimiterPattern (a regular
// expression), trims each fragment and drops blank ones. It returns false
// when nothing remains.
func (r *Resolver) StringList(key Key, delimiterPattern string) ([]string, bool) {
	v, ok := r.String(key)
	if !ok {
		return nil, false
	}

	re, err := regexp.Compile(delimiterPattern)
	if err != nil {
		if r.log != nil {
			r.log.Debugf("invalid delimiter %q for %s: %v", delimiterPattern, key, err)
		}
		return nil, false
	}

	var out []string
	for _, part := range re.Split(v, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// Int parses the value of key as a signed integer. Absent or malformed
// values yield def.
func (r *Resolver) Int(key Key, def int) int {
	v, ok := r.String(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if r.log != nil {
			r.log.Debugf("failed to parse %s=%q as int, using %d: %v", key, v, def, err)
		}
		return def
	}
	return n
}

// Bool returns true only when the value of key equals "true" ignoring
// case. An absent key yields def.
func (r *Resolver) Bool(key Key, def bool) bool {
	v, ok := r.String(key)
	if !ok {
		return def
	}
	return strings.EqualFold(v, "true")
}

// Millis reads key as an integer number of milliseconds.
// Values beyond the range of time.Duration saturate.
func (r *Resolver) Millis(key Key, def time.Duration) time.Duration {
	return millis(r.Int(key, int(def/time.Millisecond)))
}

// IntDefault resolves key using its registered default.
// Unregistered keys fall back to zero.
func (r *Resolver) IntDefault(key Key) int {
	d, _ := Lookup(key)
	def, _ := strconv.Atoi(d.Default)
	return r.Int(key, def)
}

// BoolDefault resolves key using its registered default.
func (r *Resolver) BoolDefault(key Key) bool {
	d, _ := Lookup(key)
	return r.Bool(key, strings.EqualFold(d.Default, "true"))
}

// MillisDefault resolves key as milliseconds using its registered default.
func (r *Resolver) MillisDefault(key Key) time.Duration {
	return millis(r.IntDefault(key))
}

func millis(n int) time.Duration {
	const limit = int64(math.MaxInt64 / int64(time.Millisecond))
	switch v := int64(n); {
	case v > limit:
		return math.MaxInt64
	case v < -limit:
		return math.MinInt64
	}
	return time.Duration(n) * time.Millisecond
}
