package collate

// Combinations lists the index pairs (i, j) over n candidates in lexicographic order, with
// i <= j when withReplacement is set and i < j otherwise.
func Combinations(n int, withReplacement bool) [][2]int {
	if n <= 0 {
		return nil
	}
	var pairs [][2]int
	for i := 0; i < n; i++ {
		start := i + 1
		if withReplacement {
			start = i
		}
		for j := start; j < n; j++ {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}

// CombinationCount is len(Combinations(n, withReplacement)).
func CombinationCount(n int, withReplacement bool) int {
	if n <= 0 {
		return 0
	}
	if withReplacement {
		return n * (n + 1) / 2
	}
	return n * (n - 1) / 2
}
