package norg

import "strings"

// ExtensionKind identifies a detached modifier extension.
type ExtensionKind int

const (
	ExtTodo ExtensionKind = iota
	ExtPriority
	ExtTimestamp
	ExtDue
	ExtStart
)

// TodoState is the sigil of a todo status extension.
type TodoState byte

const (
	TodoUndone             TodoState = ' '
	TodoDone               TodoState = 'x'
	TodoNeedsClarification TodoState = '?'
	TodoPaused             TodoState = '='
	TodoUrgent             TodoState = '!'
	TodoRecurring          TodoState = '+'
	TodoPending            TodoState = '-'
	TodoCanceled           TodoState = '_'
)

// Extension is one "(...)" annotation attached to a heading.
// Value holds the priority label, the date phrase, or the recurrence phrase.
type Extension struct {
	Kind  ExtensionKind
	Todo  TodoState
	Value string
}

// SplitExtensions separates a leading "(ext|ext|...)" group from the heading
// text. If the group is malformed it is left in the text and no extensions
// are returned.
func SplitExtensions(rest string) ([]Extension, string) {
	if !strings.HasPrefix(rest, "(") {
		return nil, rest
	}
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return nil, rest
	}
	if end+1 < len(rest) && rest[end+1] != ' ' && rest[end+1] != '\t' {
		return nil, rest
	}

	var exts []Extension
	for _, part := range strings.Split(rest[1:end], "|") {
		ext, ok := parseExtension(part)
		if !ok {
			return nil, rest
		}
		exts = append(exts, ext)
	}
	return exts, strings.TrimSpace(rest[end+1:])
}

func parseExtension(part string) (Extension, bool) {
	if part == "" {
		return Extension{}, false
	}
	if strings.TrimSpace(part) == "" {
		return Extension{Kind: ExtTodo, Todo: TodoUndone}, true
	}
	part = strings.TrimSpace(part)

	sigil, value := part[0], ""
	if len(part) > 1 {
		if part[1] != ' ' {
			return Extension{}, false
		}
		value = strings.TrimSpace(part[2:])
	}

	switch sigil {
	case 'x', '?', '=', '!', '-', '_':
		if value != "" {
			return Extension{}, false
		}
		return Extension{Kind: ExtTodo, Todo: TodoState(sigil)}, true
	case '+':
		return Extension{Kind: ExtTodo, Todo: TodoRecurring, Value: value}, true
	case '#':
		return valued(ExtPriority, value)
	case '@':
		return valued(ExtTimestamp, value)
	case '<':
		return valued(ExtDue, value)
	case '>':
		return valued(ExtStart, value)
	}
	return Extension{}, false
}

func valued(kind ExtensionKind, value string) (Extension, bool) {
	if value == "" {
		return Extension{}, false
	}
	return Extension{Kind: kind, Value: value}, true
}
