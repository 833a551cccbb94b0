// -----------------------------------------------------------------------
// Spelling suggestions - symmetric deletion search over word sets and
// precomputed deletion dictionaries
// -----------------------------------------------------------------------

package algorithms

import (
	"sort"
)

// SymSuggest returns spelling corrections for word using a symmetric
// deletion search. dict is the set of correct words; deleteDict maps a
// deletion-derived term to its candidate source words.
func SymSuggest(word string, dict WordSet, deleteDict map[string][]string, depth int) []string {
	suggestions := make(map[string]struct{})

	if dict.Contains(word) {
		suggestions[word] = struct{}{}
	}
	// word is missing characters relative to a dictionary word
	for _, candidate := range deleteDict[word] {
		suggestions[candidate] = struct{}{}
	}

	for _, s := range StringsByDeletion(word, depth) {
		// word has extra characters
		if dict.Contains(s) {
			suggestions[s] = struct{}{}
		}
		// word has substitutions or transpositions
		for _, candidate := range deleteDict[s] {
			suggestions[candidate] = struct{}{}
		}
	}

	result := make([]string, 0, len(suggestions))
	for s := range suggestions {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// SuggestionClasses groups suggestions by the relationship between the
// misspelling and the candidate at the searched depth.
type SuggestionClasses struct {
	Deletes    []string // reachable by deleting from the misspelling
	Inserts    []string // reachable by inserting into the misspelling
	Subs       []string // substitutions at exactly the searched depth
	InsAndDels []string // mixed insertions and deletions beyond the depth
}

// MappedSymSuggest generates spelling suggestions using a binary search
// over a sorted deletion dictionary file, classifying candidates at the
// given depth. Only suggestions at exactly that depth land in Subs;
// anything further away is classified as mixed.
func MappedSymSuggest(word string, delDict *Dictionary, dict WordSet, depth int) (SuggestionClasses, error) {
	var classes SuggestionClasses

	deletes := make(map[string]struct{})
	inserts := make(map[string]struct{})
	subs := make(map[string]struct{})
	insAndDels := make(map[string]struct{})

	entry, err := delDict.Search(word)
	if err == nil {
		// words reachable by adding characters to the misspelling
		for _, w := range SplitDelDictValues(entry) {
			inserts[w] = struct{}{}
		}
	} else if err != ErrEntryNotFound {
		return classes, err
	}

	for _, s := range StringsByDeletion(word, depth) {
		if dict.Contains(s) {
			deletes[s] = struct{}{}
		}

		entry, err := delDict.Search(s)
		if err == ErrEntryNotFound {
			continue
		}
		if err != nil {
			return classes, err
		}
		// Words reachable by deleting from an original and adding to the
		// result. Not the same as Levenshtein substitution: only those at
		// exactly the searched depth count as substitutions.
		for _, candidate := range SplitDelDictValues(entry) {
			distance := EditDistance(candidate, word)
			if distance == depth {
				subs[candidate] = struct{}{}
			} else if distance > depth {
				insAndDels[candidate] = struct{}{}
			}
		}
	}

	classes.Deletes = sortedKeys(deletes)
	classes.Inserts = sortedKeys(inserts)
	classes.Subs = sortedKeys(subs)
	classes.InsAndDels = sortedKeys(insAndDels)
	return classes, nil
}

// All flattens the classes into a single deduplicated list.
func (c SuggestionClasses) All() []string {
	seen := make(map[string]struct{})
	for _, group := range [][]string{c.Deletes, c.Inserts, c.Subs, c.InsAndDels} {
		for _, s := range group {
			seen[s] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Suggestions orders candidate corrections for presentation. Go's sort is
// not stable by default, so the stable variant is used to layer the
// criteria: alphabetic first, then frequency, then edit distance to the
// misspelling, least important to most important.
func Suggestions(word string, sugs []string, freq map[string]int) []string {
	ordered := append([]string(nil), sugs...)

	sort.Strings(ordered)
	if freq != nil {
		sort.SliceStable(ordered, func(i, j int) bool {
			return freq[ordered[i]] < freq[ordered[j]]
		})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return EditDistance(word, ordered[i]) < EditDistance(word, ordered[j])
	})

	return ordered
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
