// -----------------------------------------------------------------------
// Spell check task - symmetric deletion suggestions for hOCR tokens
// against the configured language dictionaries
// -----------------------------------------------------------------------

package tasks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/algorithms"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/hocr"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/storage"
)

// The deletion dictionary derived from a word list shares its path with
// this extension.
const delDictExt = ".deldict"

const defaultSuggestDepth = 1

// SpellCheck extracts the recognized words from an hOCR document and
// writes a corrections file listing suggestions for every token missing
// from the language dictionary. Suggestions are ordered best first.
type SpellCheck struct {
	logger arbor.ILogger
	cfg    *common.PipelineConfig
	store  *storage.Filestore
}

// NewSpellCheck creates the spell check task.
func NewSpellCheck(logger arbor.ILogger, cfg *common.PipelineConfig, store *storage.Filestore) *SpellCheck {
	return &SpellCheck{logger: logger, cfg: cfg, store: store}
}

func (s *SpellCheck) Execute(ctx context.Context, doc models.DocumentRef, args map[string]string) (models.DocumentRef, error) {
	lang := args["language"]
	if lang == "" {
		return models.DocumentRef{}, fmt.Errorf("spellcheck task requires a language argument")
	}
	depth := defaultSuggestDepth
	if arg, ok := args["depth"]; ok {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return models.DocumentRef{}, fmt.Errorf("invalid suggestion depth %q", arg)
		}
		depth = v
	}

	segments, ok := s.cfg.Dictionary(lang)
	if !ok {
		return models.DocumentRef{}, fmt.Errorf("no dictionary configured for language %q", lang)
	}
	dictPath, err := s.store.ResolveSegments(segments)
	if err != nil {
		return models.DocumentRef{}, err
	}

	words, err := algorithms.LoadWordSet(dictPath)
	if err != nil {
		return models.DocumentRef{}, err
	}
	delDict, err := algorithms.OpenDictionary(storage.ReplaceExt(dictPath, delDictExt), algorithms.ParseDelDictEntry)
	if err != nil {
		return models.DocumentRef{}, err
	}
	defer delDict.Close()

	input, err := s.store.AbsPath(doc)
	if err != nil {
		return models.DocumentRef{}, err
	}
	f, err := os.Open(input)
	if err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to open hOCR input: %w", err)
	}
	tokens, err := hocr.ExtractSanitizedTokens(f)
	f.Close()
	if err != nil {
		return models.DocumentRef{}, err
	}

	var out bytes.Buffer
	misspelled := 0
	for _, token := range tokens {
		if words.Contains(token) {
			continue
		}
		classes, err := algorithms.MappedSymSuggest(token, delDict, words, depth)
		if err != nil {
			return models.DocumentRef{}, err
		}
		suggestions := algorithms.Suggestions(token, classes.All(), nil)

		misspelled++
		out.WriteString(token)
		out.WriteByte('\t')
		out.WriteString(strings.Join(suggestions, " "))
		out.WriteByte('\n')
	}

	output := storage.ReplaceExt(storage.InsertSuffix(input, "spellcheck", lang), ".txt")
	if err := os.WriteFile(output, out.Bytes(), 0o644); err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to write corrections file: %w", err)
	}

	s.logger.Info().
		Str("input", doc.String()).
		Str("language", lang).
		Int("tokens", len(tokens)).
		Int("misspelled", misspelled).
		Msg("Spell check complete")
	return s.store.RefFor(output)
}
