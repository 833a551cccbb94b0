// -----------------------------------------------------------------------
// String and alignment algorithms - edit distances, Wagner-Fischer
// alignment, and deletion-neighborhood generation for the spell checker
// -----------------------------------------------------------------------

package algorithms

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// EditOp is a single step in an edit sequence.
type EditOp byte

const (
	OpMatch  EditOp = 'm'
	OpSub    EditOp = 's'
	OpInsert EditOp = 'i'
	OpDelete EditOp = 'd'
)

// CharPair keys a custom per-character score. The empty string stands for
// the boundary when scoring the initial row and column.
type CharPair struct {
	A string
	B string
}

// Scores configures the edit distance cost model. A zero CharMatrix falls
// back to the flat per-operation scores.
type Scores struct {
	Substitution int
	Insertion    int
	Deletion     int
	CharMatrix   map[CharPair]int
}

// UnitScores is the unweighted Levenshtein cost model.
func UnitScores() Scores {
	return Scores{Substitution: 1, Insertion: 1, Deletion: 1}
}

func (s Scores) sub(a, b string) int { return s.lookup(a, b, s.Substitution) }
func (s Scores) ins(a, b string) int { return s.lookup(a, b, s.Insertion) }
func (s Scores) del(a, b string) int { return s.lookup(a, b, s.Deletion) }

func (s Scores) lookup(a, b string, def int) int {
	if s.CharMatrix != nil {
		if v, ok := s.CharMatrix[CharPair{a, b}]; ok {
			return v
		}
	}
	return def
}

// Sanitize strips leading and trailing whitespace and converts the string
// to NFD. Dictionary files and hOCR tokens both pass through here so that
// comparisons happen on one normal form.
func Sanitize(s string) string {
	return norm.NFD.String(strings.TrimSpace(s))
}

// StringsByDeletion computes the unique strings formed by deleting exactly
// dels characters from s. The results are sorted in ascending order.
func StringsByDeletion(s string, dels int) []string {
	runes := []rune(s)
	if dels < 0 || dels > len(runes) {
		return nil
	}

	seen := make(map[string]struct{})
	indices := make([]int, dels)
	for i := range indices {
		indices[i] = i
	}

	for {
		var b strings.Builder
		drop := make(map[int]struct{}, dels)
		for _, i := range indices {
			drop[i] = struct{}{}
		}
		for i, r := range runes {
			if _, ok := drop[i]; !ok {
				b.WriteRune(r)
			}
		}
		seen[b.String()] = struct{}{}

		// Advance to the next combination of deletion positions
		i := dels - 1
		for i >= 0 && indices[i] == len(runes)-dels+i {
			i--
		}
		if i < 0 {
			break
		}
		indices[i]++
		for j := i + 1; j < dels; j++ {
			indices[j] = indices[j-1] + 1
		}
	}

	result := make([]string, 0, len(seen))
	for s := range seen {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// EditDistance calculates the Levenshtein distance between two strings
// using the two-row dynamic programming optimization.
func EditDistance(str1, str2 string) int {
	r1, r2 := []rune(str1), []rune(str2)
	if len(r1) < len(r2) {
		r1, r2 = r2, r1
	}
	if len(r2) == 0 {
		return len(r1)
	}

	previous := make([]int, len(r2)+1)
	current := make([]int, len(r2)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		current[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			current[j] = min3(
				previous[j-1]+cost, // substitution or match
				current[j-1]+1,     // insertion
				previous[j]+1,      // deletion
			)
		}
		previous, current = current, previous
	}

	return previous[len(r2)]
}

// AlignmentType selects the initial matrix of a full edit distance run.
type AlignmentType int

const (
	// Global aligns both strings end to end.
	Global AlignmentType = iota
	// SemiGlobal lets the shorter string float inside the longer one
	// without paying for the overhang.
	SemiGlobal
)

// FullEditDistance runs the modified Wagner-Fischer algorithm and returns
// the complete scoring matrix together with an operation matrix for
// backtracing. Use this when an alignment is wanted, not only the
// distance.
func FullEditDistance(str1, str2 string, sc Scores, alignment AlignmentType) ([][]int, [][]EditOp) {
	r1, r2 := []rune(str1), []rune(str2)

	matrix := make([][]int, len(r1)+1)
	steps := make([][]EditOp, len(r1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(r2)+1)
		steps[i] = make([]EditOp, len(r2)+1)
	}

	for i := 1; i <= len(r1); i++ {
		matrix[i][0] = i * sc.del("", string(r1[i-1]))
		steps[i][0] = OpDelete
	}
	if alignment == Global {
		for j := 1; j <= len(r2); j++ {
			matrix[0][j] = j * sc.ins(string(r2[j-1]), "")
		}
	}
	for j := 1; j <= len(r2); j++ {
		steps[0][j] = OpInsert
	}

	for i := 1; i <= len(r1); i++ {
		for j := 1; j <= len(r2); j++ {
			c1, c2 := string(r1[i-1]), string(r2[j-1])

			if r1[i-1] == r2[j-1] {
				matrix[i][j] = matrix[i-1][j-1]
				steps[i][j] = OpMatch
				continue
			}

			subScore := matrix[i-1][j-1] + sc.sub(c1, c2)
			insScore := matrix[i][j-1] + sc.ins(c1, c2)
			delScore := matrix[i-1][j] + sc.del(c1, c2)

			best, op := subScore, OpSub
			if insScore < best {
				best, op = insScore, OpInsert
			}
			if delScore < best {
				best, op = delScore, OpDelete
			}
			matrix[i][j] = best
			steps[i][j] = op
		}
	}

	return matrix, steps
}

// WeightedEditDistance returns the bottom-right score of a full global
// edit distance run under the given cost model.
func WeightedEditDistance(str1, str2 string, sc Scores) int {
	matrix, _ := FullEditDistance(str1, str2, sc, Global)
	return matrix[len(matrix)-1][len(matrix[0])-1]
}

// Backtrace traces edit steps backward from start to reconstruct an edit
// sequence. The backtrace always ends at index (0,0); a nil start begins
// at the bottom-right corner.
func Backtrace(steps [][]EditOp, start []int) []EditOp {
	i, j := len(steps)-1, len(steps[0])-1
	if start != nil {
		i, j = start[0], start[1]
	}

	var path []EditOp
	for steps[i][j] != 0 {
		path = append(path, steps[i][j])
		switch steps[i][j] {
		case OpInsert:
			j--
		case OpDelete:
			i--
		default: // match and substitution both move diagonally
			i--
			j--
		}
	}

	// Reverse into forward order
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// Align calculates a global alignment between two strings and returns a
// valid edit sequence.
func Align(str1, str2 string, sc Scores) []EditOp {
	_, steps := FullEditDistance(str1, str2, sc, Global)
	return Backtrace(steps, nil)
}

// SemiGlobalAlign finds a semi-global alignment of the shorter string
// inside the longer one.
func SemiGlobalAlign(shortseq, longseq string, sc Scores) ([]EditOp, error) {
	if len([]rune(shortseq)) > len([]rune(longseq)) {
		return nil, fmt.Errorf("shortseq must be <= longseq in length")
	}

	matrix, steps := FullEditDistance(shortseq, longseq, sc, SemiGlobal)

	// Start the backtrace at the cheapest cell of the last row
	last := matrix[len(matrix)-1]
	minIdx := 0
	for j, v := range last {
		if v < last[minIdx] {
			minIdx = j
		}
	}
	return Backtrace(steps, []int{len(matrix) - 1, minIdx}), nil
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
