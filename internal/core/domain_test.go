package core

import (
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01-01", true},
		{" 2025-12-31 ", true},
		{"2025-1-1", false},
		{"2025-13-01", false},
		{"01/02/2025", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && err != ErrInvalidDate {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
		if tc.ok && d.String() != strings.TrimSpace(tc.in) {
			t.Fatalf("%q round-tripped to %q", tc.in, d.String())
		}
	}
}

func TestDateInMonth(t *testing.T) {
	d := NewDate(2025, 4, 30)
	if !d.InMonth(2025, 4) {
		t.Fatalf("expected april 2025")
	}
	if d.InMonth(2024, 4) || d.InMonth(2025, 5) {
		t.Fatalf("unexpected month match")
	}
}

func TestSnapshotValidate(t *testing.T) {
	good := Snapshot{Date: NewDate(2025, 1, 1), Filename: "plan.xlsx", Content: []byte("x")}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		s    Snapshot
		want error
	}{
		{"zero date", Snapshot{Date: Date{Time: time.Time{}}, Filename: "a", Content: []byte("x")}, ErrInvalidDate},
		{"no filename", Snapshot{Date: NewDate(2025, 1, 1), Filename: "  ", Content: []byte("x")}, ErrEmptyFilename},
		{"long filename", Snapshot{Date: NewDate(2025, 1, 1), Filename: strings.Repeat("a", 256), Content: []byte("x")}, ErrFilenameLength},
		{"no content", Snapshot{Date: NewDate(2025, 1, 1), Filename: "a.csv"}, ErrEmptyContent},
	}
	for _, tc := range cases {
		if err := tc.s.Validate(); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
