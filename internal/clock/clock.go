// Package clock holds the calendar helpers the timeline grouping logic
// relies on. Timestamps travel as strings so they stay sortable and
// comparable without timezone juggling on the wire.
package clock

import "time"

// Layout is the wall-clock encoding used for every message timestamp.
// Lexicographic order on these strings matches chronological order.
const Layout = "2006-01-02 15:04:05"

// Now returns the current time in the wire encoding.
func Now() string {
	return time.Now().UTC().Format(Layout)
}

// Format encodes a time in the wire encoding.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse decodes a wire timestamp. Malformed input yields the zero time,
// which sorts before everything and is treated as out of order upstream.
func Parse(ts string) time.Time {
	t, err := time.Parse(Layout, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b string) bool {
	ta, tb := Parse(a), Parse(b)
	ay, am, ad := ta.Date()
	by, bm, bd := tb.Date()
	return ay == by && am == bm && ad == bd
}

// SameMinute reports whether two timestamps fall inside the same
// calendar minute. Consecutive messages in one bucket render as a burst.
func SameMinute(a, b string) bool {
	return Parse(a).Truncate(time.Minute).Equal(Parse(b).Truncate(time.Minute))
}
