// Package normalize converts raw page text into typed envelope values.
// Every function is total: bad input maps to nil (or 0 where documented),
// never to an error.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	reDecimal = regexp.MustCompile(`[\d.]+`)
	reDigits  = regexp.MustCompile(`\d+`)
)

// multipliers maps the CJK magnitude characters used by the platforms.
var multipliers = []struct {
	char   string
	factor float64
}{
	{"千", 1e3},
	{"万", 1e4},
}

// Count parses engagement counters such as "1.2万", "3千" or "128".
//
// nil or blank input yields nil. Text that contains no digit at all
// ("赞", "分享") yields 0: the element exists but shows no number.
func Count(text *string) *int64 {
	if text == nil {
		return nil
	}
	// Full-width digits and dots ("１.２万") fold to ASCII first.
	s := strings.TrimSpace(width.Narrow.String(*text))
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	if !strings.ContainsFunc(s, isASCIIDigit) {
		zero := int64(0)
		return &zero
	}

	for _, m := range multipliers {
		if !strings.Contains(s, m.char) {
			continue
		}
		num := reDecimal.FindString(s)
		if num == "" {
			return nil
		}
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return nil
		}
		v := int64(math.Round(f * m.factor))
		return &v
	}

	num := reDigits.FindString(s)
	if num == "" {
		return nil
	}
	v, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
