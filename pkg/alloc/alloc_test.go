package alloc

import "testing"

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New(1024)

	if used := a.Alloc(100); used != 100 {
		t.Fatalf("Alloc: got used=%d, want 100", used)
	}
	if used := a.Alloc(50); used != 150 {
		t.Fatalf("Alloc: got used=%d, want 150", used)
	}
	if peak := a.Peak(); peak != 150 {
		t.Fatalf("Peak: got %d, want 150", peak)
	}

	if used := a.Free(50); used != 100 {
		t.Fatalf("Free: got used=%d, want 100", used)
	}
	if peak := a.Peak(); peak != 150 {
		t.Fatalf("Peak after Free: got %d, want unchanged 150", peak)
	}
}

func TestOverBudget(t *testing.T) {
	a := New(100)
	if a.OverBudget() {
		t.Fatal("expected not over budget initially")
	}
	a.Alloc(150)
	if !a.OverBudget() {
		t.Fatal("expected over budget after allocating past budget")
	}
	a.Free(100)
	if a.OverBudget() {
		t.Fatal("expected not over budget after freeing back under")
	}
}

func TestUnboundedBudget(t *testing.T) {
	a := New(0)
	a.Alloc(1 << 30)
	if a.OverBudget() {
		t.Fatal("a zero budget should never report over-budget")
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0.0B"},
		{512, "512.0B"},
		{1024, "1.0KB"},
		{1536, "1.5KB"},
		{512 << 20, "512.0MB"},
		{1 << 30, "1.0GB"},
		{1 << 40, "1.0TB"},
		{1 << 50, "1024.0TB"}, // TB is the largest suffix; never rolls over further
	}
	for _, c := range cases {
		if got := FormatBytes(c.n); got != c.want {
			t.Fatalf("FormatBytes(%d): got %q, want %q", c.n, got, c.want)
		}
	}
}

func TestFreeUnderflowInvokesOOM(t *testing.T) {
	a := New(1024)
	var reason string
	a.OnOOM(func(r string) { reason = r })

	a.Alloc(10)
	a.Free(20)

	if reason == "" {
		t.Fatal("expected OOM handler to be invoked on accounting underflow")
	}
	if used := a.Used(); used != 0 {
		t.Fatalf("Used after underflow recovery: got %d, want 0", used)
	}
}
