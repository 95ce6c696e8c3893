package analytics

import "testing"

func TestRingAppendBelowCapacity(t *testing.T) {
	r := NewRing[int](5)
	r.Append(1)
	r.Append(2)
	r.Append(3)

	if r.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", r.Len())
	}

	got := r.Snapshot()
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRingEvictsOldestAtCapacity(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Append(i)
	}

	if r.Len() != 3 {
		t.Fatalf("expected len capped at 3, got %d", r.Len())
	}

	got := r.Snapshot()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRingLastReturnsNewestInInsertionOrder(t *testing.T) {
	r := NewRing[int](10)
	for i := 1; i <= 7; i++ {
		r.Append(i)
	}

	got := r.Last(3)
	want := []int{5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRingLastNeverNil(t *testing.T) {
	r := NewRing[int](4)
	if got := r.Last(10); got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if got := r.Last(10); len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestRingBoundaryAtExactCapacity(t *testing.T) {
	r := NewRing[int](200)
	for i := 0; i < 200; i++ {
		r.Append(i)
	}
	if r.Len() != 200 {
		t.Fatalf("expected 200 entries, got %d", r.Len())
	}
	if got := r.Snapshot(); got[0] != 0 || got[199] != 199 {
		t.Fatalf("expected untouched order at capacity, got first=%d last=%d", got[0], got[199])
	}

	r.Append(200)
	got := r.Snapshot()
	if r.Len() != 200 || got[0] != 1 || got[199] != 200 {
		t.Fatalf("expected oldest evicted after overflow, got len=%d first=%d last=%d", r.Len(), got[0], got[199])
	}
}
