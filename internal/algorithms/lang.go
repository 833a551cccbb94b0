// -----------------------------------------------------------------------
// Language identification - unicode block statistics and Greek-specific
// filters used by the polytonic Greek spell-check path
// -----------------------------------------------------------------------

package algorithms

import (
	"fmt"
	"strings"
)

// UnicodeBlock is a named inclusive range of code points. Ranges may be
// user defined and need not match official unicode blocks; they are
// assumed not to overlap.
type UnicodeBlock struct {
	Name string
	Lo   rune
	Hi   rune
}

// Contains checks that the rune is equal to or between the block bounds.
func (b UnicodeBlock) Contains(c rune) bool {
	return c >= b.Lo && c <= b.Hi
}

var (
	AsciiBlock               = UnicodeBlock{"Ascii", 0x0000, 0x007F}
	GreekCopticBlock         = UnicodeBlock{"Greek Coptic", 0x0370, 0x03FF}
	ExtendedGreekBlock       = UnicodeBlock{"Extended Greek", 0x1F00, 0x1FFF}
	CombiningDiacriticsBlock = UnicodeBlock{"Combining Diacritical", 0x0300, 0x036F}
)

// Tone mark code points outside the combining diacritical block, from the
// Greek and Coptic and Extended Greek blocks.
var greekAndCopticDiacritics = []rune{0x037A, 0x0384, 0x0385}

var extendedGreekDiacritics = []rune{
	0x1FBD, 0x1FBE, 0x1FBF, 0x1FC0,
	0x1FC1, 0x1FCD, 0x1FCE, 0x1FCF,
	0x1FDD, 0x1FDE, 0x1FDF, 0x1FED,
	0x1FEE, 0x1FEF, 0x1FFD, 0x1FFE,
}

// Uniblock returns all the characters between lo and hi inclusive.
func Uniblock(lo, hi rune) []rune {
	if hi < lo {
		return nil
	}
	chars := make([]rune, 0, hi-lo+1)
	for c := lo; c <= hi; c++ {
		chars = append(chars, c)
	}
	return chars
}

// Identify determines how many characters of the string fall in each
// given unicode block.
func Identify(s string, blocks []UnicodeBlock) map[string]int {
	result := make(map[string]int, len(blocks))
	for _, b := range blocks {
		result[b.Name] = 0
	}
	for _, c := range s {
		for _, b := range blocks {
			if b.Contains(c) {
				result[b.Name]++
			}
		}
	}
	return result
}

// IsLang determines whether the fraction of the string's characters
// inside the given blocks reaches the threshold. Threshold must be > 0.0
// and <= 1.0.
func IsLang(s string, blocks []UnicodeBlock, threshold float64) (bool, error) {
	if threshold > 1.0 || threshold <= 0.0 {
		return false, fmt.Errorf("threshold must be > 0.0 and <= 1.0")
	}
	if len(s) == 0 {
		return false, fmt.Errorf("cannot identify an empty string")
	}

	counts := Identify(s, blocks)
	inLang := 0
	for _, b := range blocks {
		inLang += counts[b.Name]
	}

	total := len([]rune(s))
	return float64(inLang)/float64(total) >= threshold, nil
}

// greekBlocks covers the Greek and Coptic and Extended Greek blocks plus
// combining diacritical marks.
func greekBlocks() []UnicodeBlock {
	return []UnicodeBlock{GreekCopticBlock, ExtendedGreekBlock, CombiningDiacriticsBlock}
}

// IsGreek reports whether every character of the string is Greek. The
// string is expected to be in NFD so that tone marks decompose into the
// combining diacritical block.
func IsGreek(s string) bool {
	ok, err := IsLang(s, greekBlocks(), 1.0)
	return err == nil && ok
}

// GreekFilter removes all non-Greek characters from a string.
func GreekFilter(s string) string {
	var b strings.Builder
	for _, c := range s {
		for _, block := range greekBlocks() {
			if block.Contains(c) {
				b.WriteRune(c)
				break
			}
		}
	}
	return b.String()
}

// StripDiacritics removes all Greek diacritics from the string. Expects
// the string to be in NFD.
func StripDiacritics(s string) string {
	drop := make(map[rune]struct{})
	for _, c := range Uniblock(CombiningDiacriticsBlock.Lo, CombiningDiacriticsBlock.Hi) {
		drop[c] = struct{}{}
	}
	for _, c := range greekAndCopticDiacritics {
		drop[c] = struct{}{}
	}
	for _, c := range extendedGreekDiacritics {
		drop[c] = struct{}{}
	}

	var b strings.Builder
	for _, c := range s {
		if _, ok := drop[c]; !ok {
			b.WriteRune(c)
		}
	}
	return b.String()
}
