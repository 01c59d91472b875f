// Package filter decides which entries of a runtime source tarball are kept
// when laying out a dev directory, and where they land.
//
// Tarball entries carry a synthetic top-level directory named after the
// release (for example "node-v0.8.0/"). Trim removes it, and Valid matches
// the remainder against a fixed allow-list of glob patterns. Patterns are
// evaluated with doublestar, so "*" never crosses a path separator and "**"
// matches any number of directories, including none.
package filter

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule is a single allow-list entry. A path matches the rule when it matches
// Include and none of Exclude.
type Rule struct {
	Include string
	Exclude []string
}

// Rules is the allow-list used for every install.
var Rules = []Rule{
	// gyp configuration at the root (common.gypi, config.gypi)
	{Include: "*.gypi"},
	{Include: "tools/*.gypi"},
	{Include: "tools/gyp_addon"},
	{Include: "tools/gyp/**", Exclude: []string{"tools/gyp/test/**"}},
	// header files
	{Include: "src/*.h"},
	{Include: "deps/v8/include/**/*.h"},
	{Include: "deps/uv/include/**/*.h"},
}

// Match reports whether p satisfies the rule.
func (r Rule) Match(p string) bool {
	if !match(r.Include, p) {
		return false
	}
	for _, ex := range r.Exclude {
		if match(ex, p) {
			return false
		}
	}
	return true
}

func match(pattern, p string) bool {
	ok, err := doublestar.Match(pattern, p)
	return err == nil && ok
}

// Trim strips exactly the first path segment. A path without a separator is
// returned unchanged.
func Trim(entryPath string) string {
	i := strings.IndexByte(entryPath, '/')
	if i < 0 {
		return entryPath
	}
	return entryPath[i+1:]
}

// Valid reports whether an already-trimmed path is on the allow-list.
func Valid(trimmed string) bool {
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return false
	}
	for _, r := range Rules {
		if r.Match(trimmed) {
			return true
		}
	}
	return false
}

// ShouldKeep reports whether a raw archive entry path should be extracted.
func ShouldKeep(entryPath string) bool {
	return Valid(Trim(entryPath))
}

// Rewrite returns the destination of a raw archive entry path relative to
// the install directory.
func Rewrite(entryPath string) string {
	return Trim(entryPath)
}
