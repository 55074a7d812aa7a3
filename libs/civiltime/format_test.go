package civiltime

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestFormat(t *testing.T) {
	c := New("America/Argentina/Buenos_Aires")
	at := time.Date(2024, 1, 15, 12, 5, 0, 0, time.UTC)

	if got := c.Format(at, false); got != "15/01/2024 09:05" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := c.Format(at, true); got != "15/01/2024 09:05 (-03)" {
		t.Fatalf("unexpected format with zone %q", got)
	}
}

func TestParse(t *testing.T) {
	c := New("America/Argentina/Buenos_Aires")
	want := time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC)

	for _, date := range []string{"15/01/2024", "2024-01-15"} {
		got, err := c.Parse(date, "09:30")
		if err != nil {
			t.Fatalf("parse %q: %v", date, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %v, got %v", date, want, got)
		}
	}

	midnight, err := c.Parse("2024-01-15", "")
	if err != nil {
		t.Fatalf("parse without time: %v", err)
	}
	if !midnight.Equal(time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected local midnight, got %v", midnight)
	}

	if _, err := c.Parse("2024/15/01", ""); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := c.Parse("2024-01-15", "25:00"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}

func TestParseClockAndMinutes(t *testing.T) {
	got, err := ParseClock("09:15:30")
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	if got != (civil.Time{Hour: 9, Minute: 15, Second: 30}) {
		t.Fatalf("unexpected clock %v", got)
	}
	if FormatClock(got) != "09:15:30" {
		t.Fatalf("unexpected formatted clock %q", FormatClock(got))
	}
	if ClockToMinutes(got) != 555 {
		t.Fatalf("expected 555 minutes, got %d", ClockToMinutes(got))
	}

	back, err := MinutesToClock(1020)
	if err != nil || FormatClock(back) != "17:00" {
		t.Fatalf("expected 17:00, got %v (%v)", back, err)
	}
	if _, err := MinutesToClock(1440); err == nil {
		t.Fatalf("expected error for minute 1440")
	}
}

func TestCompareClock(t *testing.T) {
	a := civil.Time{Hour: 9}
	b := civil.Time{Hour: 9, Second: 1}
	if CompareClock(a, b) != -1 || CompareClock(b, a) != 1 || CompareClock(a, a) != 0 {
		t.Fatalf("unexpected ordering")
	}
}

func TestZoneForProvince(t *testing.T) {
	tests := map[string]string{
		"córdoba":          "America/Argentina/Cordoba",
		"  TUCUMÁN ":       "America/Argentina/Tucuman",
		"Tierra_del_Fuego": "America/Argentina/Ushuaia",
		"Santa Cruz":       "America/Argentina/Rio_Gallegos",
		"Neuquén":          "America/Argentina/Buenos_Aires",
		"Atlantis":         DefaultZone,
	}
	for in, want := range tests {
		if got := ZoneForProvince(in); got != want {
			t.Fatalf("province %q: expected %s, got %s", in, want, got)
		}
	}
}

func TestValidateZone(t *testing.T) {
	if ok, err := ValidateZone("America/Argentina/Salta"); err != nil || !ok {
		t.Fatalf("expected supported zone, got %v %v", ok, err)
	}
	if ok, err := ValidateZone("Europe/Madrid"); err != nil || ok {
		t.Fatalf("expected valid unsupported zone, got %v %v", ok, err)
	}
	if _, err := ValidateZone("Nope/Nowhere"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}

func TestParseWeekday(t *testing.T) {
	if d, err := ParseWeekday(0); err != nil || d != Sunday {
		t.Fatalf("expected Sunday, got %v %v", d, err)
	}
	if _, err := ParseWeekday(7); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("expected ErrInvalidWeekday, got %v", err)
	}
}
