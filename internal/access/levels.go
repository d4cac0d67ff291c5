// Package access defines the disclosure-tier lattice and the static policy
// tables that bound what each staff role may ever see. Everything in this
// package is pure data and pure functions; enforcement lives elsewhere.
package access

import "fmt"

// Level is an ordered disclosure tier. Higher levels reveal strictly more
// sensitive client data.
type Level int

const (
	LevelNone Level = iota
	LevelBasic
	LevelMedical
	LevelFinancial
	LevelFull
)

var levelNames = map[Level]string{
	LevelNone:      "none",
	LevelBasic:     "basic",
	LevelMedical:   "medical",
	LevelFinancial: "financial",
	LevelFull:      "full",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Covers reports whether a session holding l may read data that requires
// the given level. The lattice is a total order, so this is plain comparison.
func (l Level) Covers(required Level) bool { return l >= required }

// Valid reports whether l is one of the defined tiers.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseLevel converts a wire-format level name. Unknown names fail closed.
func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown access level %q", s)
}
