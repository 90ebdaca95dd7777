package domain

import (
	"strings"
	"unicode"
)

// Tag limits enforced by request validation. The normalizer never truncates.
const (
	MaxTags      = 10
	MaxTagLength = 30
)

// SplitTags splits comma separated input into trimmed, non-empty entries.
func SplitTags(csv string) []string {
	out := []string{}
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeTagString normalizes comma separated tag input.
func NormalizeTagString(csv string) []string {
	return NormalizeTags(SplitTags(csv))
}

// NormalizeTags lowercases tags, replaces whitespace runs with a single
// dash and drops empties and duplicates, keeping first-occurrence order.
// The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tag = dashWhitespace(strings.ToLower(tag))
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func dashWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
