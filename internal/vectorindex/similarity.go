package vectorindex

const defaultEpsilon = 0.001

// scoreFromDistance maps a cosine distance to a similarity score in (0, 1].
// Distances under epsilon count as exact matches and score 1-d; anything
// farther decays as 1/(1+d). Each branch is strictly decreasing in d, so
// ranking by score preserves ranking by distance.
func scoreFromDistance(d, epsilon float64) float64 {
	if d < 0 {
		d = 0
	}
	if epsilon <= 0 {
		epsilon = defaultEpsilon
	}
	if d < epsilon {
		return 1 - d
	}
	return 1 / (1 + d)
}
