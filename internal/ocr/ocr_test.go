package ocr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/common"
)

func TestTesseractArgs(t *testing.T) {
	tests := []struct {
		name      string
		languages []string
		expected  []string
	}{
		{
			name:      "single language",
			languages: []string{"grc"},
			expected:  []string{"/in/page.tif", "/in/page_ocr", "-l", "grc", "hocr"},
		},
		{
			name:      "multiple languages",
			languages: []string{"grc", "eng"},
			expected:  []string{"/in/page.tif", "/in/page_ocr", "-l", "grc+eng", "hocr"},
		},
		{
			name:      "no languages",
			languages: nil,
			expected:  []string{"/in/page.tif", "/in/page_ocr", "hocr"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tesseractArgs("/in/page.tif", "/in/page_ocr", tt.languages))
		})
	}
}

func TestTesseractOutputPaths(t *testing.T) {
	tests := []struct {
		name    string
		legacy  bool
		written string
		final   string
	}{
		{
			name:    "modern extension",
			legacy:  false,
			written: "/data/job/page_ocr.hocr",
			final:   "/data/job/page_ocr.hocr",
		},
		{
			name:    "legacy html extension",
			legacy:  true,
			written: "/data/job/page_ocr.html",
			final:   "/data/job/page_ocr.hocr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &Tesseract{cfg: &common.PipelineConfig{LegacyTesseract: tt.legacy}}
			base, written, final := runner.outputPaths("/data/job/page.tif")
			assert.Equal(t, "/data/job/page_ocr", base)
			assert.Equal(t, tt.written, written)
			assert.Equal(t, tt.final, final)
		})
	}
}

func TestOcropusCommand(t *testing.T) {
	tests := []struct {
		name         string
		step         string
		legacy       bool
		expectedBin  string
		expectedArgs []string
	}{
		{"modern nlbin", stepNlbin, false, "ocropus", []string{"nlbin"}},
		{"modern rpred", stepRpred, false, "ocropus", []string{"rpred"}},
		{"legacy nlbin", stepNlbin, true, "ocropus-nlbin", nil},
		{"legacy gpageseg", stepPageseg, true, "ocropus-gpageseg", nil},
		{"legacy rpred", stepRpred, true, "ocropus-rpred", nil},
		{"legacy hocr", stepHocr, true, "ocropus-hocr", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binary, args := ocropusCommand("ocropus", tt.step, tt.legacy)
			assert.Equal(t, tt.expectedBin, binary)
			assert.Equal(t, tt.expectedArgs, args)
		})
	}
}

func TestOcropusModelPathUnknownModel(t *testing.T) {
	runner := &Ocropus{cfg: &common.PipelineConfig{}}
	_, err := runner.ModelPath("no_such_model")
	assert.Error(t, err)
}

func TestSpawnerMissingBinary(t *testing.T) {
	spawner := NewSpawner(arbor.NewLogger(), 0, time.Second)

	err := spawner.Run(context.Background(), "lectio-test-binary-that-does-not-exist")
	assert.Error(t, err)
}

func TestSpawnerContextCancelled(t *testing.T) {
	spawner := NewSpawner(arbor.NewLogger(), 0.001, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The limiter allows no spawn for many seconds, so the cancelled
	// context must surface immediately.
	err := spawner.Run(ctx, "true")
	require.Error(t, err)
}

func TestRequireFile(t *testing.T) {
	assert.Error(t, requireFile("/no/such/file"))
	assert.Error(t, requireFile(t.TempDir()))
}
