package clock_test

import (
	"testing"
	"time"

	"github.com/nsong/lingotalk/internal/clock"
)

func TestParseRoundTrip(t *testing.T) {
	ts := "2021-02-18 10:00:30"
	parsed := clock.Parse(ts)
	if parsed.IsZero() {
		t.Fatalf("Parse returned zero time for %q", ts)
	}
	if got := clock.Format(parsed); got != ts {
		t.Fatalf("round trip mismatch: got %s want %s", got, ts)
	}
}

func TestParseMalformed(t *testing.T) {
	if got := clock.Parse("not-a-timestamp"); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
}

func TestSameDay(t *testing.T) {
	if !clock.SameDay("2021-02-18 00:00:01", "2021-02-18 23:59:59") {
		t.Fatal("expected same calendar day")
	}
	if clock.SameDay("2021-02-18 23:59:59", "2021-02-19 00:00:00") {
		t.Fatal("expected different calendar days")
	}
}

func TestSameMinute(t *testing.T) {
	if !clock.SameMinute("2021-02-18 10:00:05", "2021-02-18 10:00:59") {
		t.Fatal("expected same minute bucket")
	}
	if clock.SameMinute("2021-02-18 10:00:59", "2021-02-18 10:01:00") {
		t.Fatal("expected different minute buckets")
	}
}

func TestLexicographicOrderMatchesChronological(t *testing.T) {
	earlier := clock.Format(time.Date(2021, 2, 18, 9, 59, 59, 0, time.UTC))
	later := clock.Format(time.Date(2021, 2, 18, 10, 0, 0, 0, time.UTC))
	if !(earlier < later) {
		t.Fatalf("expected %q < %q", earlier, later)
	}
}
