package normalize

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// TimeLayout is the wire format of publish_time.
const TimeLayout = "2006-01-02 15:04:05"

// relative maps "N <unit> ago" forms to the unit they count.
var relative = []struct {
	re   *regexp.Regexp
	unit time.Duration
}{
	{regexp.MustCompile(`(\d+)\s*天前`), 24 * time.Hour},
	{regexp.MustCompile(`(?i)(\d+)\s*days?\s+ago`), 24 * time.Hour},
	{regexp.MustCompile(`(\d+)\s*小时前`), time.Hour},
	{regexp.MustCompile(`(?i)(\d+)\s*hours?\s+ago`), time.Hour},
	{regexp.MustCompile(`(\d+)\s*分钟前`), time.Minute},
	{regexp.MustCompile(`(?i)(\d+)\s*minutes?\s+ago`), time.Minute},
}

var (
	reYesterday = regexp.MustCompile(`昨天(?:\s*(\d{1,2}):(\d{1,2}))?`)

	// A leading date, optionally followed by a time of day, possibly with
	// free text (a region name) after it: "12-17 北京".
	reHasYear = regexp.MustCompile(`\d{4}`)

	reLeadingDate = regexp.MustCompile(`^(\d{2,4}-\d{1,2}-\d{1,2}(\s\d{1,2}:\d{1,2}(:\d{1,2})?)?|\d{1,2}-\d{1,2}(\s\d{1,2}:\d{1,2})?)`)
)

var (
	layoutsWithYear    = []string{"2006-1-2 15:4:5", "2006-1-2 15:4", "2006-1-2"}
	layoutsWithoutYear = []string{"1-2 15:4", "1-2"}
	textPrefixes       = []string{"发布时间", "发布于", "编辑于", "published at", "published on"}
)

// PublishTime parses the platforms' publish-time strings relative to now.
// The result carries now's location. Unrecognised input yields false and is
// logged as a warning.
//
// Precedence: relative "N天前" / "N小时前" / "N分钟前" (and the English
// "N days/hours/minutes ago"), "昨天 HH:MM"; a localized prefix is
// stripped ("发布时间：", "发布于", "published at:"); a leading date is cut
// out of trailing free text; absolute formats with a year; formats without a
// year, which are placed in now's year; finally any other absolute date that
// spells out a four-digit year ("2025年12月20日", "2025/12/20 10:30").
func PublishTime(text string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false
	}

	if t, ok := relativeTime(s, now); ok {
		return t, true
	}

	s = stripPrefix(s)

	if m := reLeadingDate.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	loc := now.Location()
	for _, layout := range layoutsWithYear {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range layoutsWithoutYear {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		withYear := time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
		if withYear.Day() != t.Day() {
			// 2-29 outside a leap year
			continue
		}
		return withYear, true
	}

	if reHasYear.MatchString(s) {
		if t, err := dateparse.ParseIn(s, loc); err == nil {
			return t, true
		}
	}

	slog.Warn("publish time not parseable", "text", text)
	return time.Time{}, false
}

// PublishTimeString parses text and formats it with TimeLayout. nil input or
// unparseable text yields nil.
func PublishTimeString(text *string, now time.Time) *string {
	if text == nil {
		return nil
	}
	t, ok := PublishTime(*text, now)
	if !ok {
		return nil
	}
	s := t.Format(TimeLayout)
	return &s
}

func relativeTime(s string, now time.Time) (time.Time, bool) {
	for _, r := range relative {
		m := r.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		if r.unit == 24*time.Hour {
			// calendar days, so DST shifts keep the wall clock
			return now.AddDate(0, 0, -n), true
		}
		return now.Add(-time.Duration(n) * r.unit), true
	}

	m := reYesterday.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day := now.AddDate(0, 0, -1)
	if m[1] == "" {
		return day, true
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()), true
}

func stripPrefix(s string) string {
	if _, after, ok := strings.Cut(s, "："); ok {
		return strings.TrimSpace(after)
	}
	lower := strings.ToLower(s)
	for _, p := range textPrefixes {
		if strings.HasPrefix(lower, p) {
			rest := strings.TrimSpace(s[len(p):])
			return strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		}
	}
	return s
}
