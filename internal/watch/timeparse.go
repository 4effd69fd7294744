package watch

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The resolver never guesses a date from "now": every parser returns the
// zero time plus false when the input has no recognizable timestamp.

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var (
	numericDatePattern = regexp.MustCompile(`(20\d{2})[-/.](\d{1,2})[-/.](\d{1,2})`)
	cjkDatePattern     = regexp.MustCompile(`(20\d{2})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	monthDayPattern    = regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(\d{1,2}),\s*(20\d{2})`)
	dayMonthPattern    = regexp.MustCompile(`(?i)(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*,?\s*(20\d{2})`)
	yearMonthPattern   = regexp.MustCompile(`(20\d{2})[-/.年]\s*(\d{1,2})`)

	metaContentPattern  = regexp.MustCompile(`(?i)content=["'](20\d{2}-\d{1,2}-\d{1,2})["']`)
	datePublishedRegexp = regexp.MustCompile(`(?i)"datePublished"\s*:\s*"([^"]+)"`)
	dateModifiedRegexp  = regexp.MustCompile(`(?i)"dateModified"\s*:\s*"([^"]+)"`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseISO parses an ISO-8601 style timestamp. Naive values are assumed
// UTC; the result is always in UTC.
func ParseISO(value string) (time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseDateFromText scans free text for the date shapes the watched sites
// use: numeric Y-M-D variants, the CJK 年月日 form, "Mon D, YYYY", and
// "D Mon YYYY".
func ParseDateFromText(text string) (time.Time, bool) {
	if m := numericDatePattern.FindStringSubmatch(text); m != nil {
		if ts, ok := dateFromParts(m[1], m[2], m[3]); ok {
			return ts, true
		}
	}
	if m := cjkDatePattern.FindStringSubmatch(text); m != nil {
		if ts, ok := dateFromParts(m[1], m[2], m[3]); ok {
			return ts, true
		}
	}
	if m := monthDayPattern.FindStringSubmatch(text); m != nil {
		if ts, ok := dateFromMonthName(m[1], m[2], m[3]); ok {
			return ts, true
		}
	}
	if m := dayMonthPattern.FindStringSubmatch(text); m != nil {
		if ts, ok := dateFromMonthName(m[2], m[1], m[3]); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseYearMonthText parses a year-month-only form, defaulting the day
// to 1.
func ParseYearMonthText(text string) (time.Time, bool) {
	m := yearMonthPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

// ParseDateFromHTML mines a page-level date from raw HTML: embedded date
// text first, then meta content attributes and JSON-LD published/modified
// hints.
func ParseDateFromHTML(html string) (time.Time, bool) {
	if ts, ok := ParseDateFromText(html); ok {
		return ts, true
	}
	for _, pattern := range []*regexp.Regexp{metaContentPattern, datePublishedRegexp, dateModifiedRegexp} {
		m := pattern.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		if ts, ok := ParseISO(m[1]); ok {
			return ts, true
		}
		if ts, ok := ParseDateFromText(m[1]); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// epochMillisThreshold separates second-resolution from millisecond
// epochs.
const epochMillisThreshold = 10_000_000_000

// ParseAnyTime resolves a timestamp from the loose value shapes adapters
// see in JSON payloads: numeric epochs (seconds or milliseconds), ISO
// strings, free-text dates, and year-month-only text.
func ParseAnyTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case float64:
		return timeFromEpoch(v)
	case int64:
		return timeFromEpoch(float64(v))
	case int:
		return timeFromEpoch(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return timeFromEpoch(f)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		if ts, ok := ParseISO(s); ok {
			return ts, true
		}
		if ts, ok := ParseDateFromText(s); ok {
			return ts, true
		}
		return ParseYearMonthText(s)
	default:
		return time.Time{}, false
	}
}

func timeFromEpoch(ts float64) (time.Time, bool) {
	if ts <= 0 {
		return time.Time{}, false
	}
	if ts > epochMillisThreshold {
		ts /= 1000.0
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC(), true
}

func dateFromParts(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if mo < 1 || mo > 12 || d < 1 {
		return time.Time{}, false
	}
	ts := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. Feb 30); treat that as invalid.
	if ts.Day() != d || ts.Month() != time.Month(mo) {
		return time.Time{}, false
	}
	return ts, true
}

func dateFromMonthName(monthName, day, year string) (time.Time, bool) {
	month, ok := monthsByPrefix[strings.ToLower(monthName)[:3]]
	if !ok {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(year)
	d, _ := strconv.Atoi(day)
	if d < 1 {
		return time.Time{}, false
	}
	ts := time.Date(y, month, d, 0, 0, 0, 0, time.UTC)
	if ts.Day() != d || ts.Month() != month {
		return time.Time{}, false
	}
	return ts, true
}
