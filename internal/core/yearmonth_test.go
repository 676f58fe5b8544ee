package core

import (
	"testing"
	"time"
)

func TestParseYearMonth(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2022-01", true},
		{"1900-01", true},
		{"2099-12", true},
		{"foo", false},
		{"foo-bar", false},
		{"1899-01", false},
		{"2100-01", false},
		{"2022-00", false},
		{"2022-13", false},
		{"2022-7", false},
		{"22-07", false},
		{"2022-07-01", false},
		{"2022-0x", false},
		{"+202-07", false},
		{"", false},
	}
	for _, tc := range cases {
		got, err := ParseYearMonth(tc.in)
		if tc.ok {
			if err != nil || string(got) != tc.in {
				t.Fatalf("%q expected ok, got %q err=%v", tc.in, got, err)
			}
		} else if err != ErrInvalidYearMonth {
			t.Fatalf("%q expected ErrInvalidYearMonth, got %v", tc.in, err)
		}
	}
}

func TestYearMonthOf(t *testing.T) {
	ym := YearMonthOf(time.Date(2023, time.July, 31, 23, 59, 0, 0, time.UTC))
	if ym != "2023-07" {
		t.Fatalf("expected 2023-07, got %q", ym)
	}
	if ym.Year() != 2023 || ym.Month() != 7 {
		t.Fatalf("unexpected parts %d %d", ym.Year(), ym.Month())
	}
}
