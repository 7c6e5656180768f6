package utils

import (
	"testing"
	"time"
)

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{0: "0", 999: "999", 1200: "1,200", 1234567: "1,234,567"}
	for in, want := range cases {
		if got := FormatCount(in); got != want {
			t.Fatalf("FormatCount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatQtyAndPercent(t *testing.T) {
	if got := FormatQty(4); got != "4" {
		t.Fatalf("FormatQty(4) = %q", got)
	}
	if got := FormatQty(1.5); got != "1.5" {
		t.Fatalf("FormatQty(1.5) = %q", got)
	}
	if got := FormatPercent(33.33); got != "33.33" {
		t.Fatalf("FormatPercent(33.33) = %q", got)
	}
}

func TestFormatDateTime(t *testing.T) {
	if got := FormatDateTime(time.Time{}); got != "" {
		t.Fatalf("zero time formatted as %q", got)
	}
	ts := time.Date(2024, 3, 14, 9, 30, 5, 0, time.UTC)
	if got := FormatDateTime(ts); got != "2024-03-14 09:30:05" {
		t.Fatalf("FormatDateTime = %q", got)
	}
}

func TestHumanizeSlug(t *testing.T) {
	cases := map[string]string{
		"variable-product-part":  "Variable Product Part",
		"raw-material":           "Raw Material",
		"product-part-variation": "Product Part Variation",
		"":                       "",
	}
	for in, want := range cases {
		if got := HumanizeSlug(in); got != want {
			t.Fatalf("HumanizeSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseOrderID(t *testing.T) {
	if id, err := ParseOrderID(" 42 "); err != nil || id != 42 {
		t.Fatalf("ParseOrderID = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		if _, err := ParseOrderID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on"} {
		if !ParseBool(v) {
			t.Fatalf("ParseBool(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "nope"} {
		if ParseBool(v) {
			t.Fatalf("ParseBool(%q) = true", v)
		}
	}
}
