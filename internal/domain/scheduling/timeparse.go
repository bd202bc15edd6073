package scheduling

import (
	"fmt"
	"strings"
	"time"
)

var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
	}
)

// TimeParser turns client timestamps into instants. The rules are applied in
// order and are a heuristic for unlabelled input, not a format detector:
//
//  1. a trailing "Z" is UTC;
//  2. a '+' or '-' after the date part is an explicit offset;
//  3. anything else is a wall-clock time in Location.
type TimeParser struct {
	Location *time.Location
}

func NewTimeParser(loc *time.Location) TimeParser {
	if loc == nil {
		loc = time.Local
	}
	return TimeParser{Location: loc}
}

// Parse returns ErrInvalidTimeFormat for anything it cannot read.
func (p TimeParser) Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTimeFormat)
	}

	if strings.HasSuffix(s, "Z") || hasOffset(s) {
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
}

// hasOffset reports whether s carries a sign past index 10, which skips the
// hyphens of a YYYY-MM-DD prefix.
func hasOffset(s string) bool {
	return strings.LastIndex(s, "+") > 10 || strings.LastIndex(s, "-") > 10
}
