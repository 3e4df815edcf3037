package mempool

import "testing"

func TestRollingFilterAddContains(t *testing.T) {
	f := NewRollingFilter(1000, 0.001, 0xdeadbeef)

	data := []byte("some transaction hash bytes")
	if f.Contains(data) {
		t.Fatalf("filter reports membership before Add")
	}

	f.Add(data)
	if !f.Contains(data) {
		t.Fatalf("filter does not report membership after Add")
	}
}

func TestRollingFilterReset(t *testing.T) {
	f := NewRollingFilter(1000, 0.001, 1)
	data := []byte("tx")
	f.Add(data)

	f.Reset()
	if f.Contains(data) {
		t.Fatalf("filter still reports membership after Reset")
	}
}

func TestRollingFilterDistinguishesMost(t *testing.T) {
	f := NewRollingFilter(1000, 0.001, 7)
	f.Add([]byte("aaa"))

	if f.Contains([]byte("completely different bytes")) {
		t.Fatalf("filter false-positived on an unrelated key (unlucky but check the seed math)")
	}
}
