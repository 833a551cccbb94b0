// -----------------------------------------------------------------------
// OCR tasks - thin executors dispatching documents to the engine runners
// -----------------------------------------------------------------------

package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/ocr"
)

// TesseractOCR recognizes a binarized page with tesseract. The languages
// argument is a +-separated list of tesseract language codes.
type TesseractOCR struct {
	runner *ocr.Tesseract
}

// NewTesseractOCR creates the tesseract recognition task.
func NewTesseractOCR(runner *ocr.Tesseract) *TesseractOCR {
	return &TesseractOCR{runner: runner}
}

func (t *TesseractOCR) Execute(ctx context.Context, doc models.DocumentRef, args map[string]string) (models.DocumentRef, error) {
	var languages []string
	if arg := args["languages"]; arg != "" {
		languages = strings.Split(arg, "+")
	}
	return t.runner.Recognize(ctx, doc, languages)
}

// OcropusOCR recognizes a page with the ocropus toolchain using a
// configured recognition model.
type OcropusOCR struct {
	runner *ocr.Ocropus
}

// NewOcropusOCR creates the ocropus recognition task.
func NewOcropusOCR(runner *ocr.Ocropus) *OcropusOCR {
	return &OcropusOCR{runner: runner}
}

func (o *OcropusOCR) Execute(ctx context.Context, doc models.DocumentRef, args map[string]string) (models.DocumentRef, error) {
	model := args["model"]
	if model == "" {
		return models.DocumentRef{}, fmt.Errorf("ocropus task requires a model argument")
	}
	return o.runner.Recognize(ctx, doc, model)
}
