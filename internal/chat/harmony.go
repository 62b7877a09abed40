package chat

import "math"

type Mood int

const (
	MoodTense Mood = iota
	MoodNeutral
	MoodCalm
)

// Harmony thresholds: scores at or above CalmThreshold are calm,
// scores below NeutralThreshold are tense.
const (
	CalmThreshold    = 0.66
	NeutralThreshold = 0.33
)

func MoodFor(score float64) Mood {
	switch {
	case score >= CalmThreshold:
		return MoodCalm
	case score >= NeutralThreshold:
		return MoodNeutral
	default:
		return MoodTense
	}
}

func (m Mood) String() string {
	switch m {
	case MoodCalm:
		return "calm"
	case MoodNeutral:
		return "neutral"
	default:
		return "tense"
	}
}

// Indicator is the glyph shown next to the harmony badge.
func (m Mood) Indicator() string {
	switch m {
	case MoodCalm:
		return "😌"
	case MoodNeutral:
		return "😐"
	default:
		return "😬"
	}
}

func ClampHarmony(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
