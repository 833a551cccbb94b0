// -----------------------------------------------------------------------
// Tesseract runner - hOCR recognition via the tesseract CLI
// -----------------------------------------------------------------------

package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/storage"
)

// Tesseract recognizes text in binarized page images. Old tesseract
// releases name their hOCR output with an .html extension while current
// ones use .hocr; the pipeline configuration selects which convention the
// installed binary follows.
type Tesseract struct {
	logger  arbor.ILogger
	cfg     *common.PipelineConfig
	store   *storage.Filestore
	spawner *Spawner
	binary  string
}

// NewTesseract creates a tesseract runner using the default binary name.
func NewTesseract(logger arbor.ILogger, cfg *common.PipelineConfig, store *storage.Filestore, spawner *Spawner) *Tesseract {
	return &Tesseract{
		logger:  logger,
		cfg:     cfg,
		store:   store,
		spawner: spawner,
		binary:  "tesseract",
	}
}

// tesseractArgs builds the argument vector for a recognition run.
// Tesseract appends the hOCR extension to the output base itself.
func tesseractArgs(input, outputBase string, languages []string) []string {
	args := []string{input, outputBase}
	if len(languages) > 0 {
		args = append(args, "-l", strings.Join(languages, "+"))
	}
	return append(args, "hocr")
}

// outputPaths returns the output document and the path tesseract will
// actually write, which differ when the legacy extension convention is in
// effect.
func (t *Tesseract) outputPaths(input string) (base, written, final string) {
	base = strings.TrimSuffix(storage.InsertSuffix(input, "ocr"), extOf(input))
	written = base + t.cfg.OutputExtension()
	final = base + ".hocr"
	return base, written, final
}

// Recognize runs tesseract on the document and returns a reference to the
// hOCR output. Legacy .html output is renamed to .hocr so downstream
// tasks see one extension.
func (t *Tesseract) Recognize(ctx context.Context, doc models.DocumentRef, languages []string) (models.DocumentRef, error) {
	input, err := t.store.AbsPath(doc)
	if err != nil {
		return models.DocumentRef{}, err
	}

	base, written, final := t.outputPaths(input)
	if err := t.spawner.Run(ctx, t.binary, tesseractArgs(input, base, languages)...); err != nil {
		return models.DocumentRef{}, err
	}
	if err := requireFile(written); err != nil {
		return models.DocumentRef{}, err
	}

	if written != final {
		if err := os.Rename(written, final); err != nil {
			return models.DocumentRef{}, fmt.Errorf("failed to normalize tesseract output: %w", err)
		}
	}

	out, err := t.store.RefFor(final)
	if err != nil {
		return models.DocumentRef{}, err
	}

	t.logger.Info().
		Str("job", doc.Job).
		Str("input", doc.Path).
		Str("output", out.Path).
		Msg("Tesseract recognition complete")
	return out, nil
}

func extOf(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[idx:]
	}
	return ""
}
