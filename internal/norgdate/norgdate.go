// Package norgdate parses the loosely structured date phrases used by Norg
// task extensions, e.g. "Thu, 29th Oct 2020 16:20.10 GMT", into UTC instants.
//
// Recurrences are not resolved and timezone abbreviations are recognised but
// not applied: the resolved wall-clock time is always read in the local zone.
//
// A leading word that is a month rather than a weekday is read as the month,
// so "Jan 2025" parses to the first of January 2025.
package norgdate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoMatch is returned when the phrase does not have the date shape at all.
	ErrNoMatch = errors.New("norgdate: phrase does not match date format")
	// ErrIncompatibleField is returned when a present field has an impossible value.
	ErrIncompatibleField = errors.New("norgdate: incompatible field")
	// ErrWeekdayMismatch is returned when the named weekday disagrees with the date.
	ErrWeekdayMismatch = errors.New("norgdate: weekday does not match day of month")
	// ErrWeekdayWithoutDay is returned for a weekday with no day of month.
	ErrWeekdayWithoutDay = errors.New("norgdate: cannot infer day of month from weekday")
)

// `<weekday>?,? <day-of-month><suffix>? <month>? -?<year>? <hh:mm(.ss)?>? <TZ>?`
var phraseRe = regexp.MustCompile(`^(?:(?P<weekday>[[:alpha:]]+)\b)?,?\s?` +
	`(?:(?P<dom>\d{1,2})(?:st|nd|rd|th)?\b)?\s?` +
	`(?:(?P<month>[[:alpha:]]+)\b)?\s?` +
	`(?:(?P<year>-?\d{4,})\b)?\s?` +
	`(?:(?P<hour>\d{1,2}):(?P<minute>\d{2})(?:\.(?P<second>\d{1,2}))?\b)?\s?` +
	`(?P<tz>[A-Z]{3,4})?$`)

var months = [...]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var weekdays = [...]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// phrase holds the raw captures of one date phrase.
type phrase struct {
	weekday, dom, month, year string
	hour, minute, second      string
	tz                        string
}

func split(s string) (phrase, bool) {
	m := phraseRe.FindStringSubmatch(s)
	if m == nil {
		return phrase{}, false
	}
	get := func(name string) string { return m[phraseRe.SubexpIndex(name)] }
	return phrase{
		weekday: get("weekday"),
		dom:     get("dom"),
		month:   get("month"),
		year:    get("year"),
		hour:    get("hour"),
		minute:  get("minute"),
		second:  get("second"),
		tz:      get("tz"),
	}, true
}

// Parse resolves s against the current local time.
func Parse(s string) (time.Time, error) {
	return ParseAt(s, time.Now())
}

// ParseAt resolves s using now for the defaults. The year and month default
// to now's; a phrase without a time of day resolves to midnight. The wall
// clock is interpreted in now.Location() and the result is returned in UTC.
func ParseAt(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrNoMatch
	}
	p, ok := split(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNoMatch, s)
	}

	// A leading word that names no weekday but a month ("Jan 2025") is the month.
	if p.weekday != "" && p.month == "" && weekdayIndex(p.weekday) < 0 {
		if _, isMonth := monthByPrefix(p.weekday); isMonth {
			p.month, p.weekday = p.weekday, ""
		}
	}

	year, month := now.Year(), now.Month()
	var hour, minute, second int

	if p.year != "" {
		y, err := strconv.Atoi(p.year)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: year %q", ErrIncompatibleField, p.year)
		}
		year = y
	}
	if p.month != "" {
		mo, ok := monthByPrefix(p.month)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: month %q", ErrIncompatibleField, p.month)
		}
		month = mo
	}
	if p.hour != "" {
		var err error
		if hour, err = field("hour", p.hour, 23); err != nil {
			return time.Time{}, err
		}
		if minute, err = field("minute", p.minute, 59); err != nil {
			return time.Time{}, err
		}
		if p.second != "" {
			if second, err = field("second", p.second, 59); err != nil {
				return time.Time{}, err
			}
		}
	}

	var dom int
	switch {
	case p.dom != "":
		d, err := strconv.Atoi(p.dom)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: day %q", ErrIncompatibleField, p.dom)
		}
		dom = d
	case p.weekday != "":
		return time.Time{}, fmt.Errorf("%w: %q", ErrWeekdayWithoutDay, s)
	default:
		dom = 1
	}

	t := time.Date(year, month, dom, hour, minute, second, 0, now.Location())
	// time.Date normalises overflow (30 February becomes 1 March); reject it.
	if t.Year() != year || t.Month() != month || t.Day() != dom {
		return time.Time{}, fmt.Errorf("%w: day %d of %s %d", ErrIncompatibleField, dom, month, year)
	}

	if p.weekday != "" {
		actual := weekdays[t.Weekday()]
		if !strings.HasPrefix(actual, strings.ToLower(p.weekday)) {
			return time.Time{}, fmt.Errorf("%w: %s is a %s, not %q", ErrWeekdayMismatch,
				t.Format("2006-01-02"), actual, p.weekday)
		}
	}

	return t.UTC(), nil
}

// monthByPrefix returns the first canonical month whose name starts with tok.
// Ambiguous prefixes are not rejected.
func monthByPrefix(tok string) (time.Month, bool) {
	tok = strings.ToLower(tok)
	for i, name := range months {
		if strings.HasPrefix(name, tok) {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

func weekdayIndex(tok string) int {
	tok = strings.ToLower(tok)
	for i, name := range weekdays {
		if strings.HasPrefix(name, tok) {
			return i
		}
	}
	return -1
}

func field(name, raw string, max int) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > max {
		return 0, fmt.Errorf("%w: %s %q", ErrIncompatibleField, name, raw)
	}
	return v, nil
}
