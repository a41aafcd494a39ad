package locale

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestToASCIIDigitsFullAlphabet(t *testing.T) {
	persian := []rune("۰۱۲۳۴۵۶۷۸۹")
	for i, r := range persian {
		got := ToASCIIDigits(string(r))
		want := string(rune('0' + i))
		if got != want {
			t.Errorf("glyph %q: expected %q, got %q", r, want, got)
		}
	}
}

func TestToASCIIDigitsIdentity(t *testing.T) {
	inputs := []string{"", "abc", "123", "تهران", "a1b2c3", "geo:35.7,51.4"}
	for _, in := range inputs {
		if got := ToASCIIDigits(in); got != in {
			t.Errorf("expected identity for %q, got %q", in, got)
		}
	}
}

func TestToASCIIDigitsMixed(t *testing.T) {
	if got := ToASCIIDigits("ساعت ۲۰:۳۰"); got != "ساعت 20:30" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestExtractPrices(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []int
	}{
		{"persian range", "۱۵۰,۰۰۰ تا ۳۰۰,۰۰۰", []int{150000, 300000}},
		{"ascii range", "150,000 تا 300,000", []int{150000, 300000}},
		{"unsorted input", "900 و 100 و 500", []int{100, 500, 900}},
		{"repeated figure kept", "200,000 تا 200,000", []int{200000, 200000}},
		{"single value", "۵۰,۰۰۰ تومان", []int{50000}},
		{"no digits", "رایگان", nil},
		{"empty", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractPrices(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestJalaliToUTC(t *testing.T) {
	got, err := JalaliToUTC(1402, 9, 19, 20, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2023, time.December, 10, 17, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", got.Location())
	}
}

func TestJalaliToUTCInvalid(t *testing.T) {
	cases := []struct {
		name                           string
		year, month, day, hour, minute int
	}{
		{"month 13", 1402, 13, 1, 12, 0},
		{"month 0", 1402, 0, 1, 12, 0},
		{"day 32", 1402, 1, 32, 12, 0},
		{"day 31 in mehr", 1402, 7, 31, 12, 0},
		{"esfand 30 in common year", 1402, 12, 30, 12, 0},
		{"hour 24", 1402, 9, 19, 24, 0},
		{"minute 60", 1402, 9, 19, 20, 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := JalaliToUTC(tc.year, tc.month, tc.day, tc.hour, tc.minute)
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("expected ErrInvalidDate, got %v", err)
			}
		})
	}
}

func TestJalaliToUTCLeapEsfand(t *testing.T) {
	// 1403 is a leap year in the Jalali calendar, so Esfand has 30 days.
	if _, err := JalaliToUTC(1403, 12, 30, 0, 0); err != nil {
		t.Fatalf("expected leap-year Esfand 30 to be valid, got %v", err)
	}
}

func TestParseLatLon(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		lat, lon float64
		ok       bool
	}{
		{"geo uri", "geo:35.7219,51.3347", 35.7219, 51.3347, true},
		{"geo uri with zoom", "geo:35.7219,51.3347?z=17", 35.7219, 51.3347, true},
		{"query pair", "https://maps.google.com/?q=35.7219,51.3347", 35.7219, 51.3347, true},
		{"lat lon params", "https://example.com/map?lat=26.5323&lon=53.9891", 26.5323, 53.9891, true},
		{"lat lng params", "https://example.com/map?lat=26.5323&lng=53.9891", 26.5323, 53.9891, true},
		{"persian digits", "geo:۳۵.۵,۵۱.۲", 35.5, 51.2, true},
		{"plain text", "نقشه", 0, 0, false},
		{"empty", "", 0, 0, false},
		{"missing lon", "https://example.com/map?lat=26.5", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lat, lon, ok := ParseLatLon(tc.in)
			if ok != tc.ok || lat != tc.lat || lon != tc.lon {
				t.Fatalf("expected (%v, %v, %v), got (%v, %v, %v)", tc.lat, tc.lon, tc.ok, lat, lon, ok)
			}
		})
	}
}
