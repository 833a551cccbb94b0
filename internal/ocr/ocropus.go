// -----------------------------------------------------------------------
// Ocropus runner - binarization, segmentation, recognition and hOCR
// assembly via the ocropus toolchain
// -----------------------------------------------------------------------

package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/storage"
)

// The ocropus steps in pipeline order.
const (
	stepNlbin   = "nlbin"
	stepPageseg = "gpageseg"
	stepRpred   = "rpred"
	stepHocr    = "hocr"
)

// Ocropus drives the ocropus toolchain over a working directory per page.
// Current releases ship a single ocropus binary with subcommands; legacy
// installations have one ocropus-<step> script per step. The pipeline
// configuration selects the invocation convention.
type Ocropus struct {
	logger  arbor.ILogger
	cfg     *common.PipelineConfig
	store   *storage.Filestore
	spawner *Spawner
	binary  string
}

// NewOcropus creates an ocropus runner using the default binary name.
func NewOcropus(logger arbor.ILogger, cfg *common.PipelineConfig, store *storage.Filestore, spawner *Spawner) *Ocropus {
	return &Ocropus{
		logger:  logger,
		cfg:     cfg,
		store:   store,
		spawner: spawner,
		binary:  "ocropus",
	}
}

// ocropusCommand resolves a pipeline step to the binary and leading
// arguments for the configured invocation convention.
func ocropusCommand(binary, step string, legacy bool) (string, []string) {
	if legacy {
		return binary + "-" + step, nil
	}
	return binary, []string{step}
}

// ModelPath resolves a configured recognition model name to an absolute
// path under the storage root.
func (o *Ocropus) ModelPath(name string) (string, error) {
	segments, ok := o.cfg.Model(name)
	if !ok {
		return "", fmt.Errorf("unknown ocropus model %q", name)
	}
	return o.store.ResolveSegments(segments)
}

// Recognize runs the full ocropus pipeline on the document and returns a
// reference to the assembled hOCR output.
func (o *Ocropus) Recognize(ctx context.Context, doc models.DocumentRef, model string) (models.DocumentRef, error) {
	input, err := o.store.AbsPath(doc)
	if err != nil {
		return models.DocumentRef{}, err
	}
	modelPath, err := o.ModelPath(model)
	if err != nil {
		return models.DocumentRef{}, err
	}

	// ocropus scatters intermediate files over a book directory named
	// after the input page
	workDir := strings.TrimSuffix(storage.InsertSuffix(input, "ocr"), extOf(input))
	output := workDir + ".hocr"

	steps := [][]string{
		{stepNlbin, "-o", workDir, input},
		{stepPageseg, filepath.Join(workDir, "????.bin.png")},
		{stepRpred, "-m", modelPath, filepath.Join(workDir, "????", "??????.bin.png")},
		{stepHocr, "-o", output, filepath.Join(workDir, "????.bin.png")},
	}
	for _, step := range steps {
		binary, args := ocropusCommand(o.binary, step[0], o.cfg.LegacyOcropus)
		args = append(args, step[1:]...)
		if err := o.spawner.Run(ctx, binary, args...); err != nil {
			return models.DocumentRef{}, err
		}
	}

	if err := requireFile(output); err != nil {
		return models.DocumentRef{}, err
	}
	out, err := o.store.RefFor(output)
	if err != nil {
		return models.DocumentRef{}, err
	}

	o.logger.Info().
		Str("job", doc.Job).
		Str("input", doc.Path).
		Str("model", model).
		Str("output", out.Path).
		Msg("Ocropus recognition complete")
	return out, nil
}
