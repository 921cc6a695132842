package model

// BloomLevel identifies one of the six cognitive-skill categories used to
// scope test questions and scoring.
type BloomLevel string

const (
	LevelRemember   BloomLevel = "remember"
	LevelUnderstand BloomLevel = "understand"
	LevelApply      BloomLevel = "apply"
	LevelAnalyze    BloomLevel = "analyze"
	LevelEvaluate   BloomLevel = "evaluate"
	LevelCreate     BloomLevel = "create"
)

// MaxPoints is the score ceiling for every level. A level counts as
// completed once its points reach this value.
const MaxPoints = 10.0

// LevelOrder is the fixed progression through the taxonomy. Advancing a
// session walks this slice front to back and never skips or regresses.
var LevelOrder = []BloomLevel{
	LevelRemember,
	LevelUnderstand,
	LevelApply,
	LevelAnalyze,
	LevelEvaluate,
	LevelCreate,
}

// ValidLevel reports whether l is one of the six known levels.
func ValidLevel(l BloomLevel) bool {
	for _, v := range LevelOrder {
		if v == l {
			return true
		}
	}
	return false
}

// NextLevel returns the level after l in the fixed order. The second return
// is false when l is already the last level (or unknown).
func NextLevel(l BloomLevel) (BloomLevel, bool) {
	for i, v := range LevelOrder {
		if v == l && i < len(LevelOrder)-1 {
			return LevelOrder[i+1], true
		}
	}
	return l, false
}
