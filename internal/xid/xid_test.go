package xid

import "testing"

func TestNewIsUniqueAndPrefixed(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New("drf")
		if !HasPrefix(id, "drf") {
			t.Fatalf("missing prefix: %s", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if HasPrefix("drf_", "drf") || HasPrefix("req_abc", "drf") {
		t.Fatal("HasPrefix accepted a foreign id")
	}
}
