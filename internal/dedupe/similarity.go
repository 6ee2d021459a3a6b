package dedupe

// Similarity scores the overlap of two amount multisets (Jaccard over
// multiset cardinalities). 1.0 means identical multisets; 0 means disjoint.
// Two empty multisets are identical by convention.
func Similarity(a, b []int64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	counts := make(map[int64]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	intersection := 0
	for _, v := range b {
		if counts[v] > 0 {
			counts[v]--
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
