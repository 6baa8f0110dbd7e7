package generate

import (
	"regexp"
	"strings"
)

// Bullet is the marker responses are structured around.
const Bullet = "•"

const bulletRune = '•'

var (
	controlMarker  = regexp.MustCompile(`<\|[^|>]*\|>`)
	byteEscape     = regexp.MustCompile(`<0x[0-9A-Fa-f]{2}>`)
	numberedMarker = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)
	dashMarker     = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	spaceRuns      = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean strips chat-control markers and tokenizer artifacts from raw model
// output, normalizes list markers to the bullet marker, and collapses
// whitespace.
func Clean(raw string) string {
	s := controlMarker.ReplaceAllString(raw, "")
	s = byteEscape.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "▁", " ")
	s = numberedMarker.ReplaceAllString(s, Bullet+" ")
	s = dashMarker.ReplaceAllString(s, Bullet+" ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CountBullets counts structurally valid bullets: split on the marker, a
// non-empty segment counts when it contains a hyphen (ACTION - explanation
// shape).
func CountBullets(s string) int {
	n := 0
	for _, part := range strings.Split(s, Bullet)[1:] {
		part = strings.TrimSpace(part)
		if part != "" && strings.Contains(part, "-") {
			n++
		}
	}
	return n
}
