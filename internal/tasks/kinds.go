package tasks

// Task kinds as registered with the worker pool and referenced from
// batch stage definitions.
const (
	KindGrayscale  = "img.rgb_to_gray"
	KindBinarize   = "img.binarize"
	KindTesseract  = "ocr.tesseract"
	KindOcropus    = "ocr.ocropus"
	KindSpellCheck = "spellcheck.sym"
)
