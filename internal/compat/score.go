// Package compat implements the hanky-code compatibility score between two
// users' tag assignments. Pure functions, no store access.
package compat

// TagAssignment is one user's take on a catalog entry, flattened for scoring.
type TagAssignment struct {
	CodeID    uint64
	Color     string
	Position  string // "left" or "right"
	Intensity int    // 1..10
}

const (
	maxIntensity = 10

	// Complementary positions (one flags left, the other right) signal
	// reciprocal interest and outweigh same-side overlap.
	complementaryWeight = 1.5
	samePositionWeight  = 0.8
)

// Score computes the normalized [0,1] compatibility between mine and theirs
// together with the ids of my codes that the other side also wears.
//
// Codes match by color, not id: the catalog stores left and right variants
// of a color as separate rows. Each shared color contributes
// weight × min(intensities), and the total is normalized by the maximum my
// own assignments could reach (10 × len(mine)).
//
// The normalization only counts my side, so Score(a, b) and Score(b, a) can
// differ. Callers always score from the requesting user's perspective.
func Score(mine, theirs []TagAssignment) (float64, []uint64) {
	if len(mine) == 0 {
		return 0, nil
	}

	byColor := make(map[string]TagAssignment, len(theirs))
	for _, t := range theirs {
		if _, ok := byColor[t.Color]; !ok {
			byColor[t.Color] = t
		}
	}

	var total float64
	var shared []uint64
	for _, m := range mine {
		other, ok := byColor[m.Color]
		if !ok {
			continue
		}
		shared = append(shared, m.CodeID)

		weight := samePositionWeight
		if m.Position != other.Position {
			weight = complementaryWeight
		}
		total += weight * float64(min(m.Intensity, other.Intensity))
	}

	score := total / float64(maxIntensity*len(mine))
	if score > 1.0 {
		score = 1.0
	}
	return score, shared
}

// Percent renders a score the way the API reports it (0-100).
func Percent(score float64) int {
	return int(score*100 + 0.5)
}
