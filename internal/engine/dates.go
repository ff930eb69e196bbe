// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"strings"
	"time"
)

// fallbackLayouts are tried after any configured date formats. Month-first
// slashed dates come before day-first ones.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
	"2006/01/02",
	"20060102",
	"02.01.2006",
	"01/02/2006",
	"02/01/2006",
	"01/02/2006 15:04:05",
	"02/01/2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
	time.RFC1123Z,
	time.RFC1123,
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'f': "000000",
	'p': "PM",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// goLayout converts a strftime pattern to a Go layout. Patterns without a
// directive are taken as Go layouts already. ok is false for unsupported
// directives.
func goLayout(pattern string) (string, bool) {
	if !strings.Contains(pattern, "%") {
		return pattern, true
	}
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(pattern) {
			return "", false
		}
		i++
		layout, ok := strftimeDirectives[pattern[i]]
		if !ok {
			return "", false
		}
		b.WriteString(layout)
	}
	return b.String(), true
}

// parseTime tries the configured formats in order, then the fallbacks. Values
// without a zone are read as UTC.
func parseTime(s string, formats []string) (time.Time, bool) {
	for _, f := range formats {
		layout, ok := goLayout(f)
		if !ok {
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
