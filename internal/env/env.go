// Package env models the environment handed to the Android build.
//
// A BuildEnvironment has two layers: the variables inherited from the
// tree's lunch step and an overlay of orchestrator keys. Overlay keys always
// take precedence. The layers are only flattened into KEY=VALUE strings by
// Environ, right before a subprocess is started.
package env

import (
	"bufio"
	"sort"
	"strings"

	"v.io/x/lib/envvar"
)

type BuildEnvironment struct {
	inherited *envvar.Vars
	overlay   *envvar.Vars
}

// New returns an environment that inherits the given KEY=VALUE entries.
func New(inherited []string) *BuildEnvironment {
	return &BuildEnvironment{
		inherited: envvar.VarsFromSlice(inherited),
		overlay:   envvar.VarsFromMap(map[string]string{}),
	}
}

// Parse reads the output of `env` (one KEY=VALUE per line) into an
// environment. Blank lines and lines without '=' are ignored, values are
// trimmed of surrounding whitespace.
func Parse(output string) *BuildEnvironment {
	var entries []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		entries = append(entries, key+"="+strings.TrimSpace(value))
	}
	return New(entries)
}

// Get returns the effective value of key.
func (e *BuildEnvironment) Get(key string) (string, bool) {
	if e.overlay.Contains(key) {
		return e.overlay.Get(key), true
	}
	if e.inherited.Contains(key) {
		return e.inherited.Get(key), true
	}
	return "", false
}

// Has reports whether key is set in either layer.
func (e *BuildEnvironment) Has(key string) bool {
	_, ok := e.Get(key)
	return ok
}

// Set puts key into the overlay.
func (e *BuildEnvironment) Set(key, value string) {
	e.overlay.Set(key, value)
}

// SetDefault puts key into the overlay unless it is already set.
func (e *BuildEnvironment) SetDefault(key, value string) {
	if !e.Has(key) {
		e.Set(key, value)
	}
}

// Overlay returns a copy of the orchestrator keys.
func (e *BuildEnvironment) Overlay() map[string]string {
	return e.overlay.ToMap()
}

// Environ flattens both layers for exec.Cmd.Env, sorted by key.
func (e *BuildEnvironment) Environ() []string {
	merged := e.inherited.ToMap()
	for k, v := range e.overlay.ToMap() {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, k+"="+merged[k])
	}
	return result
}
