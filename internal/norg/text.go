package norg

import (
	"regexp"
	"strings"
)

var (
	linkWithDescRe = regexp.MustCompile(`\{[^}]*\}\[([^\]]*)\]`)
	anchorRe       = regexp.MustCompile(`\[([^\]]*)\]\{[^}]*\}`)
	bareLinkRe     = regexp.MustCompile(`\{[^}]*\}`)
	nullModRe      = regexp.MustCompile(`(^|[^\pL\pN])%\S(?:.*?\S)?%([^\pL\pN]|$)`)
	escapeRe       = regexp.MustCompile(`\\(.)`)
	spaceRe        = regexp.MustCompile(`\s+`)
	attachedModRes = compileAttachedModifiers(`*`, `/`, `_`, `-`, `!`, `^`, `,`, "`", `$`, `&`)
)

func compileAttachedModifiers(chars ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(chars))
	for _, c := range chars {
		q := regexp.QuoteMeta(c)
		out = append(out, regexp.MustCompile(`(^|[^\pL\pN])`+q+`(\S|\S.*?\S)`+q+`([^\pL\pN]|$)`))
	}
	return out
}

// PlainText renders inline Norg markup as plain text: links keep only their
// description, attached modifiers lose their delimiters and null modifiers
// (%comments%) are dropped.
func PlainText(s string) string {
	s = linkWithDescRe.ReplaceAllString(s, "$1")
	s = anchorRe.ReplaceAllString(s, "$1")
	s = bareLinkRe.ReplaceAllString(s, "")
	s = nullModRe.ReplaceAllString(s, "$1$2")

	// Delimiter boundaries are consumed by a match, so adjacent spans need
	// another pass.
	for range 3 {
		prev := s
		for _, re := range attachedModRes {
			s = re.ReplaceAllString(s, "${1}${2}${3}")
		}
		if s == prev {
			break
		}
	}

	s = escapeRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
