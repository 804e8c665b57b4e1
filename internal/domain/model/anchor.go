package model

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Anchor is the (path, line, side) triple identifying a location inside a
// reviewed change. It is produced by the diff viewer and treated as opaque.
type Anchor struct {
	Path string
	Line int
	Side Side
}

// Validate rejects anchors that cannot be keyed.
func (a Anchor) Validate() error {
	if strings.TrimSpace(a.Path) == "" {
		return NewValidationError("path", "anchor path is required")
	}
	if a.Line <= 0 {
		return NewValidationError("line", "anchor line must be positive, got %d", a.Line)
	}
	if a.Side != SideLeft && a.Side != SideRight {
		return NewValidationError("side", "anchor side must be LEFT or RIGHT, got %q", a.Side)
	}
	return nil
}

// Key returns the location key of the anchor.
func (a Anchor) Key() string {
	return LocationKey(a.Path, a.Line, a.Side)
}

// LocationKey derives the thread grouping key "{path}:{line}:{side}" with the
// side lowercased. It depends only on the anchor, never on comment identity.
func LocationKey(path string, line int, side Side) string {
	return fmt.Sprintf("%s:%d:%s", path, line, strings.ToLower(string(side)))
}

// IdentityKey derives the deduplication key of a comment from the fields that
// never change across an edit: author, anchor, creation time and local id.
//
// The hash is a 32-bit rolling hash (h*31 + unit over UTF-16 code units)
// rendered in base-36. Collisions are not detected.
func IdentityKey(c Comment) string {
	raw := fmt.Sprintf("%s:%s:%d:%s:%d:%s",
		c.Author.Username, c.Path, c.Line, c.Side, c.CreatedAt.UnixMilli(), c.ID)
	return rollingHash36(raw)
}

func rollingHash36(s string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return strconv.FormatInt(abs, 36)
}
