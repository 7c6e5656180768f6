package models

import (
	"errors"
	"testing"
)

func TestSyntheticItemIDDistinctForConcatenationTwins(t *testing.T) {
	// "1"+"23" and "12"+"3" both concatenate to 123.
	a, err := SyntheticItemID(1, 23)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := SyntheticItemID(12, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct keys, both were %d", a)
	}
}

func TestSyntheticItemIDRoundTripAndNamespace(t *testing.T) {
	cases := [][2]uint64{{793171, 342255}, {0, 0}, {1, 1}, {syntheticHalfMax, syntheticHalfMax}}
	for _, tc := range cases {
		id, err := SyntheticItemID(tc[0], tc[1])
		if err != nil {
			t.Fatalf("SyntheticItemID(%d, %d): %v", tc[0], tc[1], err)
		}
		if id < 1<<62 {
			t.Fatalf("key %d is outside the synthetic namespace", id)
		}
		if id > 1<<63-1 {
			t.Fatalf("key %d does not fit a signed BIGINT", id)
		}
		item, bom, ok := SplitSyntheticItemID(id)
		if !ok || item != tc[0] || bom != tc[1] {
			t.Fatalf("split(%d) = (%d, %d, %v), want (%d, %d, true)", id, item, bom, ok, tc[0], tc[1])
		}
	}
}

func TestSyntheticItemIDOverflow(t *testing.T) {
	if _, err := SyntheticItemID(1<<31, 5); !errors.Is(err, ErrSyntheticKeyOverflow) {
		t.Fatalf("expected overflow for large item id, got %v", err)
	}
	if _, err := SyntheticItemID(5, 1<<31); !errors.Is(err, ErrSyntheticKeyOverflow) {
		t.Fatalf("expected overflow for large bom id, got %v", err)
	}
}

func TestSplitSyntheticItemIDRejectsNativeIDs(t *testing.T) {
	if _, _, ok := SplitSyntheticItemID(793171); ok {
		t.Fatalf("native id must not split")
	}
}

func TestBackfillProgressRecalculate(t *testing.T) {
	p := &BackfillProgress{Processed: 50, Total: 120}
	p.Recalculate()
	if p.Percent != 41.7 {
		t.Fatalf("percent = %v, want 41.7", p.Percent)
	}

	idle := NewBackfillProgress()
	idle.Recalculate()
	if idle.Percent != 0 || idle.StatusLabel() != "Not Started" {
		t.Fatalf("unexpected idle progress %+v", idle)
	}
}
