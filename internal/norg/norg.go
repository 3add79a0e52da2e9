// Package norg builds a generic node tree from Norg markup.
//
// Only the structure the index needs is materialised: headings (with their
// detached modifier extensions and nested content), the @document.meta block
// and other ranged tags. Paragraph content is skipped.
package norg

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnterminatedTag is returned when a metadata block has no matching @end.
var ErrUnterminatedTag = errors.New("norg: unterminated ranged tag")

// MetaTag is the ranged tag carrying document metadata.
const MetaTag = "document.meta"

// Kind classifies a Node.
type Kind int

const (
	KindOther Kind = iota
	KindMeta
	KindHeading
)

// Node is one element of the document tree.
type Node struct {
	Kind       Kind
	Line       int // 1-based
	Level      int
	Title      string // plain text, headings only
	Extensions []Extension
	Tag        string // ranged tag name
	Content    string // raw ranged tag body
	Children   []*Node
}

var (
	headingRe     = regexp.MustCompile(`^\s*(\*+)\s+(.*)$`)
	rangedOpenRe  = regexp.MustCompile(`^\s*@([A-Za-z][A-Za-z0-9_.\-]*)(?:\s.*)?$`)
	rangedEndRe   = regexp.MustCompile(`^\s*@end\s*$`)
	weakDelimRe   = regexp.MustCompile(`^\s*-{3,}\s*$`)
	strongDelimRe = regexp.MustCompile(`^\s*={3,}\s*$`)
)

// Parse returns the top-level nodes of data.
//
// Headings nest by level; "---" closes the innermost open heading and "==="
// closes all of them. Ranged tags are opaque. A @document.meta block without
// @end makes the whole document unparseable; any other tag without @end is
// treated as plain text.
func Parse(data []byte) ([]*Node, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	var roots []*Node
	var open []*Node

	add := func(n *Node) {
		if len(open) == 0 {
			roots = append(roots, n)
			return
		}
		parent := open[len(open)-1]
		parent.Children = append(parent.Children, n)
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := rangedOpenRe.FindStringSubmatch(line); m != nil && m[1] != "end" {
			end := findEnd(lines, i+1)
			if end < 0 {
				if m[1] == MetaTag {
					return nil, fmt.Errorf("%w: @%s at line %d", ErrUnterminatedTag, m[1], i+1)
				}
				continue
			}
			kind := KindOther
			if m[1] == MetaTag {
				kind = KindMeta
			}
			add(&Node{
				Kind:    kind,
				Line:    i + 1,
				Tag:     m[1],
				Content: strings.Join(lines[i+1:end], "\n"),
			})
			i = end
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			for len(open) > 0 && open[len(open)-1].Level >= level {
				open = open[:len(open)-1]
			}
			exts, title := SplitExtensions(m[2])
			n := &Node{
				Kind:       KindHeading,
				Line:       i + 1,
				Level:      level,
				Title:      PlainText(title),
				Extensions: exts,
			}
			add(n)
			open = append(open, n)
			continue
		}

		switch {
		case weakDelimRe.MatchString(line):
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		case strongDelimRe.MatchString(line):
			open = open[:0]
		}
	}

	return roots, nil
}

func findEnd(lines []string, from int) int {
	for j := from; j < len(lines); j++ {
		if rangedEndRe.MatchString(lines[j]) {
			return j
		}
	}
	return -1
}
