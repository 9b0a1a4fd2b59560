package core

// codec.go converts the textual time, date, event and style encodings found in
// the vendor feeds into canonical values.
//
// Times are "MM:SS.CC" with source granularity of centiseconds. Anything that
// cannot be parsed degrades to zero instead of failing the caller, because a
// missing seed time must never block a swimmer's registration.

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// EntryDateLayout is the vendor's "%b-%d-%y" date format ("Jan-05-24").
const EntryDateLayout = "Jan-02-06"

// timeTokenLen is the length of a "MM:SS.CC" token without course suffix.
const timeTokenLen = 8

var errEmptyValue = errors.New("empty value")

// ParseTime converts a "MM:SS.CC" token to milliseconds.
// A trailing course suffix and surrounding whitespace are ignored. An empty
// token yields 0. A malformed segment is logged and counts as 0.
func ParseTime(token string) int {
	token = trimTimeToken(token)
	if token == "" {
		return 0
	}

	minutesPart, rest, found := strings.Cut(token, ":")
	if !found {
		// "SS.CC" without minutes
		rest = minutesPart
		minutesPart = "0"
	}
	secondsPart, centisPart, _ := strings.Cut(rest, ".")
	// the fraction is hundredths: ".4" is 40, ".456" is 45
	centisPart = strings.TrimSpace(centisPart)
	switch {
	case len(centisPart) == 1:
		centisPart += "0"
	case len(centisPart) > 2:
		centisPart = centisPart[:2]
	}

	minutes := timeSegment(token, "minutes", minutesPart)
	seconds := timeSegment(token, "seconds", secondsPart)
	centis := timeSegment(token, "centiseconds", centisPart)

	return minutes*60000 + seconds*1000 + centis*10
}

// trimTimeToken strips whitespace and a single trailing course-suffix letter.
func trimTimeToken(token string) string {
	token = strings.TrimSpace(token)
	if n := len(token); n > 0 && unicode.IsLetter(rune(token[n-1])) {
		token = strings.TrimSpace(token[:n-1])
	}
	return token
}

func timeSegment(token, name, part string) int {
	part = strings.TrimSpace(part)
	if part == "" {
		slog.Warn("malformed time segment", "token", token, "segment", name, "value", part)
		return 0
	}
	n, err := strconv.Atoi(part)
	if err != nil || n < 0 {
		slog.Warn("malformed time segment", "token", token, "segment", name, "value", part)
		return 0
	}
	return n
}

// styleAliases maps lowercased abbreviations to canonical styles.
var styleAliases = map[string]Style{
	"fr":           StyleFreestyle,
	"free":         StyleFreestyle,
	"freestyle":    StyleFreestyle,
	"bk":           StyleBackstroke,
	"back":         StyleBackstroke,
	"backstroke":   StyleBackstroke,
	"br":           StyleBreaststroke,
	"breast":       StyleBreaststroke,
	"breaststroke": StyleBreaststroke,
	"fl":           StyleButterfly,
	"fly":          StyleButterfly,
	"butterfly":    StyleButterfly,
	"im":           StyleMedley,
	"i.m":          StyleMedley,
	"medley":       StyleMedley,
}

// ClassifyStyle maps an event style token to a canonical Style.
// It is total: unrecognized input is logged and returns StyleUnknown.
func ClassifyStyle(token string) Style {
	key := strings.ToLower(strings.TrimSpace(token))
	key = strings.TrimRight(key, ".")
	if style, ok := styleAliases[key]; ok {
		return style
	}
	slog.Warn("unrecognized style", "token", token)
	return StyleUnknown
}

// ParseDate parses token with a Go time layout.
// For EntryDateLayout a single-digit day is also accepted.
func ParseDate(field, token, layout string) (time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, &RecordParseError{Field: field, Value: token, Err: errEmptyValue}
	}

	t, err := time.Parse(layout, token)
	if err == nil {
		return t, nil
	}
	if layout == EntryDateLayout {
		if t, loose := time.Parse("Jan-2-06", token); loose == nil {
			return t, nil
		}
	}
	return time.Time{}, &RecordParseError{Field: field, Value: token, Err: err}
}

// ParseEvent splits an event label "<distance> <style-token>".
func ParseEvent(label string) (int, Style, error) {
	fields := strings.Fields(label)
	if len(fields) < 2 {
		return 0, StyleUnknown, &RecordParseError{Field: "event", Value: label, Err: errors.New("expected \"<distance> <style>\"")}
	}
	distance, err := ParseDistance(fields[0])
	if err != nil {
		return 0, StyleUnknown, &RecordParseError{Field: "event", Value: label, Err: err}
	}
	return distance, ClassifyStyle(fields[1]), nil
}

// ParseDistance parses a positive distance in meters.
func ParseDistance(token string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("distance must be positive")
	}
	return n, nil
}

// ParseCourseSuffix maps the trailing character of a results time token.
// ok is false when the token carries no course suffix.
func ParseCourseSuffix(token string) (Course, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	switch token[len(token)-1] {
	case 'L', 'l':
		return CourseLong, true
	case 'S', 's':
		return CourseShort, true
	default:
		return "", false
	}
}

// firstN returns at most n bytes of s.
func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
