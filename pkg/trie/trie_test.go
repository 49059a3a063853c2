package trie

import (
	"reflect"
	"sort"
	"testing"
)

func keysOf(t *testing.T, tr *Trie[int]) []string {
	t.Helper()
	var got []string
	tr.Walk(func(e Entry[int]) (int, Action) {
		got = append(got, string(e.Key))
		return 0, Keep
	})
	sort.Strings(got)
	return got
}

func TestInsertFindBasic(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("foo"), 1)
	tr.Insert([]byte("bar"), 2)

	if v, ok := tr.Find([]byte("foo")); !ok || v != 1 {
		t.Fatalf("Find(foo): got (%d, %v), want (1, true)", v, ok)
	}
	if v, ok := tr.Find([]byte("bar")); !ok || v != 2 {
		t.Fatalf("Find(bar): got (%d, %v), want (2, true)", v, ok)
	}
	if _, ok := tr.Find([]byte("baz")); ok {
		t.Fatal("Find(baz): expected not found")
	}
	if tr.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", tr.Len())
	}
}

func TestInsertReplace(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("foo"), 1)
	old, replaced := tr.Insert([]byte("foo"), 2)
	if !replaced || old != 1 {
		t.Fatalf("Insert replace: got (%d, %v), want (1, true)", old, replaced)
	}
	if v, _ := tr.Find([]byte("foo")); v != 2 {
		t.Fatalf("Find after replace: got %d, want 2", v)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len after replace: got %d, want 1", tr.Len())
	}
}

func TestEdgeSplit(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("team"), 1)
	tr.Insert([]byte("test"), 2)
	tr.Insert([]byte("te"), 3)

	cases := map[string]int{"team": 1, "test": 2, "te": 3}
	for k, want := range cases {
		if v, ok := tr.Find([]byte(k)); !ok || v != want {
			t.Fatalf("Find(%q): got (%d, %v), want (%d, true)", k, v, ok, want)
		}
	}
	if _, ok := tr.Find([]byte("tea")); ok {
		t.Fatal("Find(tea): expected not found (only a partial edge)")
	}
}

func TestEmptyKeyAtRoot(t *testing.T) {
	tr := New[int]()
	tr.Insert(nil, 99)
	if v, ok := tr.Find(nil); !ok || v != 99 {
		t.Fatalf("Find(\"\"): got (%d, %v), want (99, true)", v, ok)
	}
}

func TestFindPrefixAcceptsMidEdgeRejectsDivergence(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("hello"), 1)

	if !tr.HasPrefix([]byte("hel")) {
		t.Fatal("HasPrefix(hel): expected true, \"hel\" is a walkable edge prefix")
	}
	if tr.HasPrefix([]byte("help")) {
		t.Fatal("HasPrefix(help): expected false, diverges mid-edge")
	}
	if !tr.HasPrefix(nil) {
		t.Fatal("HasPrefix(\"\"): root is always walkable")
	}
}

func TestWalkPrefixOrderingAndReconstruction(t *testing.T) {
	tr := New[int]()
	for i, k := range []string{"app", "apple", "application", "banana", "apt"} {
		tr.Insert([]byte(k), i)
	}

	var got []string
	tr.WalkPrefix([]byte("app"), func(e Entry[int]) (int, Action) {
		got = append(got, string(e.Key))
		return 0, Keep
	})
	sort.Strings(got)

	want := []string{"app", "apple", "application"}
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WalkPrefix(app): got %v, want %v", got, want)
	}
}

func TestRemoveCompactsChain(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("team"), 1)
	tr.Insert([]byte("test"), 2)

	old, ok := tr.Remove([]byte("team"))
	if !ok || old != 1 {
		t.Fatalf("Remove(team): got (%d, %v), want (1, true)", old, ok)
	}
	if _, ok := tr.Find([]byte("team")); ok {
		t.Fatal("Find(team) after remove: expected not found")
	}
	if v, ok := tr.Find([]byte("test")); !ok || v != 2 {
		t.Fatalf("Find(test) after sibling removed: got (%d, %v), want (2, true)", v, ok)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len after remove: got %d, want 1", tr.Len())
	}
}

func TestRemoveNonexistent(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("foo"), 1)
	if _, ok := tr.Remove([]byte("bar")); ok {
		t.Fatal("Remove(bar): expected false, key never existed")
	}
}

func TestWalkPrefixDeleteAndUpdate(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("x1"), 1)
	tr.Insert([]byte("x2"), 2)
	tr.Insert([]byte("x3"), 3)
	tr.Insert([]byte("y1"), 100)

	tr.WalkPrefix([]byte("x"), func(e Entry[int]) (int, Action) {
		if e.Value == 2 {
			return 0, Delete
		}
		return e.Value * 10, Update
	})

	if v, ok := tr.Find([]byte("x1")); !ok || v != 10 {
		t.Fatalf("Find(x1): got (%d, %v), want (10, true)", v, ok)
	}
	if _, ok := tr.Find([]byte("x2")); ok {
		t.Fatal("Find(x2): expected deleted")
	}
	if v, ok := tr.Find([]byte("x3")); !ok || v != 30 {
		t.Fatalf("Find(x3): got (%d, %v), want (30, true)", v, ok)
	}
	if v, ok := tr.Find([]byte("y1")); !ok || v != 100 {
		t.Fatalf("Find(y1): expected untouched, got (%d, %v)", v, ok)
	}
	if tr.Len() != 3 {
		t.Fatalf("Len after prefix delete: got %d, want 3", tr.Len())
	}
}

func TestWalkPrefixOnMissingPrefix(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("foo"), 1)
	found := tr.WalkPrefix([]byte("nope"), func(e Entry[int]) (int, Action) {
		t.Fatal("callback should not run for a nonexistent prefix")
		return 0, Keep
	})
	if found {
		t.Fatal("WalkPrefix: expected false for a prefix with no walkable path")
	}
}

func TestLexicographicOrder(t *testing.T) {
	tr := New[int]()
	words := []string{"banana", "apple", "cherry", "app", "bandana"}
	for i, w := range words {
		tr.Insert([]byte(w), i)
	}
	got := keysOf(t, tr)
	want := append([]string(nil), words...)
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lexicographic walk: got %v, want %v", got, want)
	}
}
