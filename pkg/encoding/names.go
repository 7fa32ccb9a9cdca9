// Package encoding provides text normalization helpers for asset names,
// manifest paths and geometry keywords.
package encoding

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var folder = cases.Fold()

// FoldName returns the case-folded form of an asset or map name.
// Two names are equal ignoring case iff their folded forms are equal.
func FoldName(name string) string {
	return folder.String(strings.TrimSpace(name))
}

// EqualFold reports whether a and b name the same asset ignoring case.
func EqualFold(a, b string) bool {
	return FoldName(a) == FoldName(b)
}

// NormalizePath normalizes a manifest directory path for alias lookup.
// Backslashes become slashes, duplicate separators collapse and the result
// is case-folded.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	return FoldName(p)
}

// BaseName returns the last path element of a manifest directory path.
func BaseName(p string) string {
	p = strings.TrimRight(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// Capitalize upper-cases the first letter and lower-cases the rest,
// so "circle" and "CIRCLE" both become "Circle".
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(s))
}
