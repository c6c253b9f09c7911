package buffer_test

import (
	"slices"
	"testing"

	"github.com/mickamy/revisionable/internal/buffer"
)

func TestBuffer(t *testing.T) {
	t.Parallel()

	b := buffer.New[int]()
	b.Add(1, 2)
	b.Add(3)
	if got := b.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	var seen []int
	b.Each(func(v int) { seen = append(seen, v) })
	if !slices.Equal(seen, []int{1, 2, 3}) {
		t.Fatalf("Each saw %v, want [1 2 3]", seen)
	}
	if got := b.Len(); got != 3 {
		t.Fatalf("Each must not consume items, Len() = %d", got)
	}

	got := b.Drain()
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("Drain() = %v, want [1 2 3]", got)
	}
	if b.Len() != 0 {
		t.Fatalf("buffer not empty after Drain")
	}

	b.Add(5)
	b.Requeue([]int{3, 4})
	if got := b.Drain(); !slices.Equal(got, []int{3, 4, 5}) {
		t.Fatalf("after Requeue Drain() = %v, want [3 4 5]", got)
	}

	b.Add(9)
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("buffer not empty after Reset")
	}
}
