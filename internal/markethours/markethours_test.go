package markethours

import (
	"testing"
	"time"
)

func et(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, Eastern)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday midday", et(2026, time.August, 26, 12, 0), true},
		{"at open", et(2026, time.August, 26, 9, 30), true},
		{"before open", et(2026, time.August, 26, 9, 29), false},
		{"at close", et(2026, time.August, 26, 16, 0), false},
		{"saturday", et(2026, time.August, 29, 12, 0), false},
		{"sunday", et(2026, time.August, 30, 12, 0), false},
		{"thanksgiving", et(2026, time.November, 26, 12, 0), false},
		{"july 4 observed", et(2026, time.July, 3, 12, 0), false},
	}
	for _, tc := range cases {
		if got := IsMarketOpen(tc.t); got != tc.want {
			t.Errorf("%s: IsMarketOpen = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsMarketOpenConvertsZones(t *testing.T) {
	// 12:00 ET expressed in UTC should still count as open.
	utc := et(2026, time.August, 26, 12, 0).UTC()
	if !IsMarketOpen(utc) {
		t.Error("expected market open for UTC-expressed session time")
	}
}

func TestNextOpenSameDay(t *testing.T) {
	got := NextOpen(et(2026, time.August, 26, 7, 0))
	want := et(2026, time.August, 26, 9, 30)
	if !got.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", got, want)
	}
}

func TestNextOpenSkipsWeekendAndHoliday(t *testing.T) {
	// Thursday July 2 after close: Friday July 3 is a holiday and the
	// weekend follows, so the next open is Monday July 6.
	got := NextOpen(et(2026, time.July, 2, 17, 0))
	want := et(2026, time.July, 6, 9, 30)
	if !got.Equal(want) {
		t.Errorf("NextOpen = %v, want %v", got, want)
	}
}

func TestTimeUntilClose(t *testing.T) {
	d := TimeUntilClose(et(2026, time.August, 26, 15, 0))
	if d != time.Hour {
		t.Errorf("TimeUntilClose = %v, want 1h", d)
	}
	if d := TimeUntilClose(et(2026, time.August, 26, 17, 0)); d != 0 {
		t.Errorf("TimeUntilClose after hours = %v, want 0", d)
	}
}

func TestIsTradingDay(t *testing.T) {
	if IsTradingDay(et(2026, time.December, 25, 10, 0)) {
		t.Error("christmas should not be a trading day")
	}
	if !IsTradingDay(et(2026, time.December, 24, 10, 0)) {
		t.Error("christmas eve should be a trading day")
	}
}
