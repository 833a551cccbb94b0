package algorithms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	socrates = "Σωκράτης" // Σωκράτης
	plato    = "Πλάτων"             // Πλάτων
)

func TestUnicodeBlockContains(t *testing.T) {
	printable := UnicodeBlock{"printable", '!', '~'}
	for c := '!'; c <= '~'; c++ {
		assert.True(t, printable.Contains(c))
	}
	assert.False(t, printable.Contains('!'-1))
	assert.False(t, printable.Contains('~'+1))
}

func TestUniblock(t *testing.T) {
	assert.Equal(t, []rune{'a', 'b', 'c'}, Uniblock('a', 'c'))
	assert.Equal(t, []rune{'a'}, Uniblock('a', 'a'))
	assert.Nil(t, Uniblock('c', 'a'))
	assert.Len(t, Uniblock(CombiningDiacriticsBlock.Lo, CombiningDiacriticsBlock.Hi), 112)
}

func TestIdentifyAscii(t *testing.T) {
	counts := Identify("this is a string of ascii", []UnicodeBlock{AsciiBlock})
	assert.Equal(t, map[string]int{"Ascii": 25}, counts)

	for c := rune(0); c < 128; c++ {
		counts := Identify(string(c), []UnicodeBlock{AsciiBlock})
		assert.Equal(t, map[string]int{"Ascii": 1}, counts)
	}
}

func TestIdentifyGreekAndLatin(t *testing.T) {
	blocks := []UnicodeBlock{GreekCopticBlock}

	assert.Equal(t, map[string]int{"Greek Coptic": 8}, Identify(socrates, blocks))
	assert.Equal(t, map[string]int{"Greek Coptic": 6}, Identify(plato, blocks))
}

func TestIsLangThresholdCheck(t *testing.T) {
	for _, threshold := range []float64{-0.00001, 1.00001, 0.0} {
		_, err := IsLang("irrelevant", []UnicodeBlock{AsciiBlock}, threshold)
		assert.Error(t, err)
	}

	_, err := IsLang("", []UnicodeBlock{AsciiBlock}, 1.0)
	assert.Error(t, err)
}

func TestIsLangAscii(t *testing.T) {
	ok, err := IsLang("a plain ascii string", []UnicodeBlock{AsciiBlock}, 1.0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsLangGreek(t *testing.T) {
	for _, s := range []string{socrates, plato} {
		ok, err := IsLang(s, []UnicodeBlock{GreekCopticBlock}, 1.0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestIsLangMixedThreshold(t *testing.T) {
	halfAndHalf := plato + "_ascii" // six Greek runes, six ascii

	ok, err := IsLang(halfAndHalf, []UnicodeBlock{AsciiBlock}, 0.5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsLang(halfAndHalf, []UnicodeBlock{GreekCopticBlock}, 0.5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsLang(halfAndHalf, []UnicodeBlock{GreekCopticBlock}, 0.5000001)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsGreek(t *testing.T) {
	assert.True(t, IsGreek(socrates))
	assert.True(t, IsGreek(plato))
	assert.True(t, IsGreek(Sanitize(socrates)))
	assert.False(t, IsGreek("latin"))
	assert.False(t, IsGreek(plato+"_ascii"))
	assert.False(t, IsGreek(""))
}

func TestGreekFilter(t *testing.T) {
	assert.Equal(t, plato, GreekFilter(plato+"_ascii"))
	assert.Equal(t, "", GreekFilter("no greek here"))
	assert.Equal(t, socrates, GreekFilter(socrates))
}

func TestStripDiacriticsCombining(t *testing.T) {
	diacritics := Uniblock(CombiningDiacriticsBlock.Lo, CombiningDiacriticsBlock.Hi)
	require.NotEmpty(t, diacritics)
	assert.Equal(t, "", StripDiacritics(string(diacritics)))
}

func TestStripDiacriticsNonCombining(t *testing.T) {
	gcDiacritics := "ͺ΄΅"
	gxDiacritics := "᾽ι᾿῀῁῍῎῏῝῟῞῭΅`´῾"
	assert.Equal(t, "", StripDiacritics(gcDiacritics+gxDiacritics))
}

func TestStripDiacriticsKeepsBaseLetters(t *testing.T) {
	decomposed := Sanitize("ά") // alpha + combining tonos
	assert.Equal(t, "α", StripDiacritics(decomposed))
}
