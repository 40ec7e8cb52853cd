// Package stage defines the fixed calling-process stage sequence.
package stage

// Stage is one step in the calling approval pipeline.
type Stage string

const (
	Defined     Stage = "defined"
	Approved    Stage = "approved"
	Extended    Stage = "extended"
	Accepted    Stage = "accepted"
	Sustained   Stage = "sustained"
	SetApart    Stage = "set_apart"
	RecordedLCR Stage = "recorded_lcr"
)

// sequence is the total order of stages. It is a constant of the domain,
// not configurable per workspace or calling.
var sequence = []Stage{
	Defined,
	Approved,
	Extended,
	Accepted,
	Sustained,
	SetApart,
	RecordedLCR,
}

var labels = map[Stage]string{
	Defined:     "Defined",
	Approved:    "Approved",
	Extended:    "Extended",
	Accepted:    "Accepted",
	Sustained:   "Sustained",
	SetApart:    "Set Apart",
	RecordedLCR: "Recorded in LCR",
}

// Sequence returns the ordered stage list.
func Sequence() []Stage {
	out := make([]Stage, len(sequence))
	copy(out, sequence)
	return out
}

// Index returns the position of s in the sequence, or -1 if s is unknown.
func Index(s Stage) int {
	for i, st := range sequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func Valid(s Stage) bool {
	return Index(s) >= 0
}

// Next returns the immediate successor of s. The second return is false when
// s is the terminal stage or unknown.
func Next(s Stage) (Stage, bool) {
	i := Index(s)
	if i < 0 || i == len(sequence)-1 {
		return "", false
	}
	return sequence[i+1], true
}

// Terminal returns the final stage of the sequence.
func Terminal() Stage {
	return sequence[len(sequence)-1]
}

// IsTerminal reports whether s is the final stage.
func IsTerminal(s Stage) bool {
	return s == Terminal()
}

// Label returns the display label for s, falling back to the raw value.
func Label(s Stage) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}
