package ring

import (
	"reflect"
	"testing"
)

func TestPushEvictsOldest(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 3; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d should not evict", i)
		}
	}
	if r.Push(4) {
		t.Error("push onto full ring should report eviction")
	}
	if got := r.Items(); !reflect.DeepEqual(got, []int{2, 3, 4}) {
		t.Errorf("expected [2 3 4], got %v", got)
	}
	if r.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", r.Dropped())
	}
	if r.Len() != 3 || r.Cap() != 3 {
		t.Errorf("unexpected len/cap %d/%d", r.Len(), r.Cap())
	}
}

func TestLast(t *testing.T) {
	r := New[string](5)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.Push(s)
	}
	if got := r.Last(2); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Errorf("expected [c d], got %v", got)
	}
	if got := r.Last(0); len(got) != 4 {
		t.Errorf("expected all 4 items, got %v", got)
	}
	if got := r.Last(10); len(got) != 4 {
		t.Errorf("expected all 4 items, got %v", got)
	}
}

func TestClear(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Clear()
	if r.Len() != 0 || r.Dropped() != 0 {
		t.Errorf("expected empty ring, got len %d dropped %d", r.Len(), r.Dropped())
	}
	r.Push(9)
	if got := r.Items(); !reflect.DeepEqual(got, []int{9}) {
		t.Errorf("expected [9], got %v", got)
	}
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	New[int](0)
}
