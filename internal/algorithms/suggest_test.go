package algorithms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymSuggestAlreadyWord(t *testing.T) {
	deleteDict := map[string][]string{
		"ord": {"word"}, "wod": {"word"}, "wor": {"word"}, "wrd": {"word"},
		"ree": {"tree"}, "tee": {"tree"}, "tre": {"tree"},
	}
	dict := WordSet{"tree": {}, "word": {}}

	assert.Equal(t, []string{"word"}, SymSuggest("word", dict, deleteDict, 1))
	assert.Equal(t, []string{"tree"}, SymSuggest("tree", dict, deleteDict, 1))
}

func TestSymSuggestSingleDelete(t *testing.T) {
	deleteDict := map[string][]string{
		"ord": {"word"}, "wod": {"word"}, "wor": {"word"}, "wrd": {"word"},
		"ree": {"tree"}, "tee": {"tree"}, "tre": {"tree"},
	}
	dict := WordSet{"tree": {}, "word": {}}

	for _, misspelling := range []string{"ord", "wod", "wor", "wrd"} {
		assert.Equal(t, []string{"word"}, SymSuggest(misspelling, dict, deleteDict, 1))
	}
}

func TestSymSuggestSingleInsert(t *testing.T) {
	deleteDict := map[string][]string{
		"Xword": {"word"}, "wXord": {"word"}, "woXrd": {"word"},
		"worXd": {"word"}, "wordX": {"word"}, "Xtree": {"tree"},
	}
	dict := WordSet{"tree": {}, "word": {}}

	for _, misspelling := range []string{"Xword", "wXord", "woXrd", "worXd", "wordX"} {
		assert.Equal(t, []string{"word"}, SymSuggest(misspelling, dict, deleteDict, 1))
	}
	assert.Equal(t, []string{"tree"}, SymSuggest("Xtree", dict, deleteDict, 1))
}

func TestSymSuggestSingleSubstitution(t *testing.T) {
	deleteDict := map[string][]string{
		"Word": {"word"}, "wOrd": {"word"}, "woRd": {"word"}, "worD": {"word"},
	}
	dict := WordSet{"word": {}}

	for _, misspelling := range []string{"Word", "wOrd", "woRd", "worD"} {
		assert.Equal(t, []string{"word"}, SymSuggest(misspelling, dict, deleteDict, 1))
	}
}

// newTestDelDict writes the shared deletion dictionary fixture used by
// the mapped suggestion tests.
func newTestDelDict(t *testing.T) (*Dictionary, WordSet) {
	t.Helper()
	path := writeDict(t, "123\t1234\n124\t1234\n134\t1234\n234\t1234\naaaa\taaaaa\nbbbb\tbbbbb\n")

	dict, err := OpenDictionary(path, ParseDelDictEntry)
	require.NoError(t, err)
	t.Cleanup(func() { dict.Close() })

	words := WordSet{"aaaaa": {}, "bbbbb": {}, "1234": {}}
	return dict, words
}

func TestMappedSymSuggestEmptyString(t *testing.T) {
	delDict, words := newTestDelDict(t)

	classes, err := MappedSymSuggest("", delDict, words, 1)
	require.NoError(t, err)
	assert.Empty(t, classes.Inserts)
	assert.Empty(t, classes.Deletes)
	assert.Empty(t, classes.Subs)
	assert.Empty(t, classes.InsAndDels)
}

func TestMappedSymSuggestSingleInsert(t *testing.T) {
	delDict, words := newTestDelDict(t)

	tests := []struct {
		misspelling string
		expected    string
	}{
		{"aaaa", "aaaaa"},
		{"bbbb", "bbbbb"},
	}

	for _, tt := range tests {
		t.Run(tt.misspelling, func(t *testing.T) {
			classes, err := MappedSymSuggest(tt.misspelling, delDict, words, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.expected}, classes.Inserts)
			assert.Empty(t, classes.Deletes)
			assert.Empty(t, classes.Subs)
			assert.Empty(t, classes.InsAndDels)
		})
	}
}

func TestMappedSymSuggestSingleDelete(t *testing.T) {
	delDict, words := newTestDelDict(t)

	tests := []struct {
		misspelling string
		expected    string
	}{
		{"aaXaaa", "aaaaa"},
		{"Xbbbbb", "bbbbb"},
	}

	for _, tt := range tests {
		t.Run(tt.misspelling, func(t *testing.T) {
			classes, err := MappedSymSuggest(tt.misspelling, delDict, words, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.expected}, classes.Deletes)
			assert.Empty(t, classes.Inserts)
			assert.Empty(t, classes.Subs)
			assert.Empty(t, classes.InsAndDels)
		})
	}
}

func TestMappedSymSuggestSingleSubstitution(t *testing.T) {
	delDict, words := newTestDelDict(t)

	tests := []struct {
		misspelling string
		expected    string
	}{
		{"aaXaa", "aaaaa"},
		{"Xbbbb", "bbbbb"},
	}

	for _, tt := range tests {
		t.Run(tt.misspelling, func(t *testing.T) {
			classes, err := MappedSymSuggest(tt.misspelling, delDict, words, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.expected}, classes.Subs)
			assert.Empty(t, classes.Inserts)
			assert.Empty(t, classes.Deletes)
			assert.Empty(t, classes.InsAndDels)
		})
	}
}

func TestMappedSymSuggestMixed(t *testing.T) {
	delDict, words := newTestDelDict(t)

	// Deleting the X reaches the key 123 whose word 1234 is two edits
	// away from the misspelling, beyond the searched depth.
	classes, err := MappedSymSuggest("X123", delDict, words, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1234"}, classes.InsAndDels)
	assert.Empty(t, classes.Subs)
}

func TestSuggestionClassesAll(t *testing.T) {
	classes := SuggestionClasses{
		Deletes: []string{"word"},
		Inserts: []string{"word", "tree"},
		Subs:    []string{"house"},
	}
	assert.Equal(t, []string{"house", "tree", "word"}, classes.All())
}

func TestSuggestionsOrdering(t *testing.T) {
	orig := "aaaa"
	sugs := []string{"ccccc", "ccccc", "aabb", "aacc", "aaaa", "baaa", "caaa", "cccc"}

	// Match first, then increasing edit distance, alphabetic within a
	// distance class.
	expected := []string{"aaaa", "baaa", "caaa", "aabb", "aacc", "cccc", "ccccc", "ccccc"}
	assert.Equal(t, expected, Suggestions(orig, sugs, nil))
}

func TestSuggestionsFrequencyLayer(t *testing.T) {
	freq := map[string]int{"baaa": 5, "caaa": 1}

	// Same edit distance; the less frequent suggestion sorts first.
	assert.Equal(t, []string{"caaa", "baaa"}, Suggestions("aaaa", []string{"baaa", "caaa"}, freq))
}
