package dedup

import "strings"

// TitleSimilarity returns a similarity ratio in [0, 1] between two titles,
// compared case-insensitively. The ratio is 2*M/T, where M counts characters
// in matching blocks found by recursively taking the longest common
// substring (Ratcliff/Obershelp) and T is the combined length.
func TitleSimilarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingChars(ra, rb)) / float64(total)
}

func matchingChars(a, b []rune) int {
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingChars(a[:i], b[:j]) +
		matchingChars(a[i+size:], b[j+size:])
}

// longestMatch finds the longest common substring of a and b, preferring the
// earliest start in a and then in b.
func longestMatch(a, b []rune) (besti, bestj, bestSize int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestSize {
					bestSize = cur[j]
					besti = i - cur[j]
					bestj = j - cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return besti, bestj, bestSize
}
