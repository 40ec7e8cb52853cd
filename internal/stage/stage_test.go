package stage

import "testing"

func TestNextCoversWholeSequence(t *testing.T) {
	seq := Sequence()
	for i, s := range seq[:len(seq)-1] {
		next, ok := Next(s)
		if !ok {
			t.Fatalf("expected successor for %s", s)
		}
		if next != seq[i+1] {
			t.Fatalf("Next(%s) = %s, want %s", s, next, seq[i+1])
		}
	}
	if _, ok := Next(Terminal()); ok {
		t.Fatalf("terminal stage must not have a successor")
	}
	if _, ok := Next(Stage("bogus")); ok {
		t.Fatalf("unknown stage must not have a successor")
	}
}

func TestSequenceOrder(t *testing.T) {
	want := []Stage{Defined, Approved, Extended, Accepted, Sustained, SetApart, RecordedLCR}
	got := Sequence()
	if len(got) != len(want) {
		t.Fatalf("sequence length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestIndexAndValid(t *testing.T) {
	if Index(Defined) != 0 {
		t.Fatalf("Index(defined) = %d", Index(Defined))
	}
	if Index(RecordedLCR) != 6 {
		t.Fatalf("Index(recorded_lcr) = %d", Index(RecordedLCR))
	}
	if Valid(Stage("nope")) {
		t.Fatalf("unknown stage reported valid")
	}
	if !IsTerminal(RecordedLCR) || IsTerminal(SetApart) {
		t.Fatalf("terminal detection wrong")
	}
}

func TestLabels(t *testing.T) {
	if Label(SetApart) != "Set Apart" {
		t.Fatalf("Label(set_apart) = %q", Label(SetApart))
	}
	if Label(RecordedLCR) != "Recorded in LCR" {
		t.Fatalf("Label(recorded_lcr) = %q", Label(RecordedLCR))
	}
	if Label(Stage("custom")) != "custom" {
		t.Fatalf("unknown label fallback wrong")
	}
}
