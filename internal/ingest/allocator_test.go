package ingest

import (
	"context"
	"testing"
)

func TestIsAvailable(t *testing.T) {
	content := newFakeContent()
	content.taken[100] = true
	alloc := NewCodeAllocator(content)

	ok, err := alloc.IsAvailable(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("taken code reported available")
	}

	ok, err = alloc.IsAvailable(context.Background(), 101)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("free code reported unavailable")
	}
}

func TestFindNearestAvailableSkipsTaken(t *testing.T) {
	content := newFakeContent()
	for _, code := range []int{101, 102, 104} {
		content.taken[code] = true
	}
	alloc := NewCodeAllocator(content)

	free, err := alloc.FindNearestAvailable(context.Background(), 100, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{103, 105, 106}
	if len(free) != len(want) {
		t.Fatalf("free = %v, want %v", free, want)
	}
	for i := range want {
		if free[i] != want[i] {
			t.Errorf("free[%d] = %d, want %d", i, free[i], want[i])
		}
	}
}

func TestFindNearestAvailableAscending(t *testing.T) {
	alloc := NewCodeAllocator(newFakeContent())
	free, err := alloc.FindNearestAvailable(context.Background(), 500, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(free); i++ {
		if free[i] <= free[i-1] {
			t.Fatalf("not ascending: %v", free)
		}
	}
	if free[0] != 501 {
		t.Errorf("scan did not start at code+1: %v", free)
	}
}

func TestFindNearestAvailableZeroCount(t *testing.T) {
	alloc := NewCodeAllocator(newFakeContent())
	free, err := alloc.FindNearestAvailable(context.Background(), 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if free != nil {
		t.Errorf("free = %v, want nil", free)
	}
}

func TestFindNearestAvailableProbeCap(t *testing.T) {
	content := newFakeContent()
	content.takenAll = true
	alloc := NewCodeAllocator(content)

	free, err := alloc.FindNearestAvailable(context.Background(), 1, 5)
	if err == nil {
		t.Error("expected an error when every code is taken")
	}
	if len(free) != 0 {
		t.Errorf("free = %v", free)
	}
}
