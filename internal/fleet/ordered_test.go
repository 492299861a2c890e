package fleet

import (
	"reflect"
	"testing"
)

func TestOrderedMapKeepsInsertionSlot(t *testing.T) {
	m := NewOrderedMap[string, int](0)
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	if slot := m.Set("a", 10); slot != 0 {
		t.Errorf("expected a to keep slot 0, got %d", slot)
	}
	if slot := m.Set("d", 4); slot != 3 {
		t.Errorf("expected d at slot 3, got %d", slot)
	}
	if got := m.Values(); !reflect.DeepEqual(got, []int{10, 2, 3, 4}) {
		t.Errorf("expected values 10,2,3,4, got %v", got)
	}
	if m.Len() != 4 {
		t.Errorf("expected len 4, got %d", m.Len())
	}
	if !m.Has("c") || m.Has("zz") {
		t.Error("unexpected membership")
	}
	if _, ok := m.Get("zz"); ok {
		t.Error("expected missing key")
	}
}

func TestOrderedMapValuesIsCopy(t *testing.T) {
	m := NewOrderedMap[string, int](1)
	m.Set("a", 1)
	vals := m.Values()
	vals[0] = 99
	if v, _ := m.Get("a"); v != 1 {
		t.Errorf("mutating Values() leaked into map: %d", v)
	}
}
