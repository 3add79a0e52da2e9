package norg

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedMeta is returned by ParseMeta for bodies it cannot interpret.
var ErrMalformedMeta = errors.New("norg: malformed metadata")

// ParseMeta parses the body of a @document.meta tag into a map whose values
// are string, []any, map[string]any, or nil for an empty value.
//
//	title: Weekly review
//	categories: [
//	  work
//	  planning
//	]
//	authors: [alice, bob]
func ParseMeta(raw string) (map[string]any, error) {
	p := &metaParser{lines: strings.Split(raw, "\n")}
	return p.object(false)
}

type metaParser struct {
	lines []string
	pos   int
}

func (p *metaParser) next() (string, bool) {
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		p.pos++
		if line != "" {
			return line, true
		}
	}
	return "", false
}

func (p *metaParser) object(nested bool) (map[string]any, error) {
	out := make(map[string]any)
	for {
		line, ok := p.next()
		if !ok {
			if nested {
				return nil, fmt.Errorf("%w: unterminated object", ErrMalformedMeta)
			}
			return out, nil
		}
		if nested && line == "}" {
			return out, nil
		}
		key, rest, found := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("%w: line %d: expected \"key: value\"", ErrMalformedMeta, p.pos)
		}
		v, err := p.value(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
}

func (p *metaParser) value(rest string) (any, error) {
	switch {
	case rest == "":
		return nil, nil
	case rest == "[":
		return p.array()
	case rest == "{":
		return p.object(true)
	case strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]"):
		return inlineArray(rest[1 : len(rest)-1]), nil
	case strings.HasPrefix(rest, "["):
		return nil, fmt.Errorf("%w: line %d: unterminated array", ErrMalformedMeta, p.pos)
	}
	return rest, nil
}

func (p *metaParser) array() ([]any, error) {
	out := []any{}
	for {
		line, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated array", ErrMalformedMeta)
		}
		switch line {
		case "]":
			return out, nil
		case "[":
			nested, err := p.array()
			if err != nil {
				return nil, err
			}
			out = append(out, nested)
		case "{":
			obj, err := p.object(true)
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
		default:
			out = append(out, strings.TrimSpace(strings.TrimSuffix(line, ",")))
		}
	}
}

// inlineArray splits "a, b" on commas, or "a b" on whitespace.
func inlineArray(body string) []any {
	out := []any{}
	var items []string
	if strings.Contains(body, ",") {
		items = strings.Split(body, ",")
	} else {
		items = strings.Fields(body)
	}
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
