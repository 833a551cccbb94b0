// -----------------------------------------------------------------------
// Image tasks - grayscale conversion and binarization of page scans
// ahead of recognition
// -----------------------------------------------------------------------

package tasks

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/storage"
)

// Grayscale converts an arbitrary bit depth page image to 8-bit
// grayscale and writes it back with a _gray suffix.
type Grayscale struct {
	logger arbor.ILogger
	store  *storage.Filestore
}

// NewGrayscale creates the grayscale conversion task.
func NewGrayscale(logger arbor.ILogger, store *storage.Filestore) *Grayscale {
	return &Grayscale{logger: logger, store: store}
}

func (g *Grayscale) Execute(ctx context.Context, doc models.DocumentRef, args map[string]string) (models.DocumentRef, error) {
	input, err := g.store.AbsPath(doc)
	if err != nil {
		return models.DocumentRef{}, err
	}
	output := storage.InsertSuffix(input, "gray")

	img, err := decodeImage(input)
	if err != nil {
		return models.DocumentRef{}, err
	}
	if err := encodeImage(output, toGray(img)); err != nil {
		return models.DocumentRef{}, err
	}

	g.logger.Debug().Str("input", doc.String()).Str("output", output).Msg("Converted to grayscale")
	return g.store.RefFor(output)
}

// Binarize thresholds a grayscale image into a bilevel one. Without an
// explicit threshold argument the Otsu method picks one from the image
// histogram.
type Binarize struct {
	logger arbor.ILogger
	store  *storage.Filestore
}

// NewBinarize creates the binarization task.
func NewBinarize(logger arbor.ILogger, store *storage.Filestore) *Binarize {
	return &Binarize{logger: logger, store: store}
}

func (b *Binarize) Execute(ctx context.Context, doc models.DocumentRef, args map[string]string) (models.DocumentRef, error) {
	input, err := b.store.AbsPath(doc)
	if err != nil {
		return models.DocumentRef{}, err
	}
	output := storage.InsertSuffix(input, "bin")

	img, err := decodeImage(input)
	if err != nil {
		return models.DocumentRef{}, err
	}
	gray := toGray(img)

	var threshold uint8
	if arg, ok := args["threshold"]; ok {
		v, err := strconv.ParseUint(arg, 10, 8)
		if err != nil {
			return models.DocumentRef{}, fmt.Errorf("invalid threshold %q: %w", arg, err)
		}
		threshold = uint8(v)
	} else {
		threshold = otsuThreshold(gray)
	}

	if err := encodeImage(output, applyThreshold(gray, threshold)); err != nil {
		return models.DocumentRef{}, err
	}

	b.logger.Debug().
		Str("input", doc.String()).
		Str("output", output).
		Int("threshold", int(threshold)).
		Msg("Binarized image")
	return b.store.RefFor(output)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

func encodeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, nil)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, nil)
	case ".bmp":
		err = bmp.Encode(f, img)
	default:
		err = fmt.Errorf("unsupported image format %s", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode image %s: %w", path, err)
	}
	return nil
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// otsuThreshold picks the threshold maximizing the between-class variance
// of the image histogram.
func otsuThreshold(img *image.Gray) uint8 {
	var histogram [256]int
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			histogram[img.GrayAt(x, y).Y]++
		}
	}

	var sum float64
	for i, count := range histogram {
		sum += float64(i) * float64(count)
	}

	var sumBack, weightBack float64
	var maxVariance float64
	var threshold uint8
	for t := 0; t < 256; t++ {
		weightBack += float64(histogram[t])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(t) * float64(histogram[t])

		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore
		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > maxVariance {
			maxVariance = variance
			threshold = uint8(t)
		}
	}
	return threshold
}

func applyThreshold(img *image.Gray, threshold uint8) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}
