// -----------------------------------------------------------------------
// Pipeline configuration - machine description of the OCR filestore,
// dictionaries, recognition models, and engine invocation conventions
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PathSegments is an ordered pair of path segments resolved beneath the
// filestore root. The on-disk format requires exactly two elements; anything
// else is a configuration error.
type PathSegments []string

// UnmarshalYAML decodes a sequence node and enforces the two-element shape.
func (p *PathSegments) UnmarshalYAML(value *yaml.Node) error {
	var segments []string
	if err := value.Decode(&segments); err != nil {
		return err
	}
	if len(segments) != 2 {
		return fmt.Errorf("path segments must have exactly 2 elements, got %d", len(segments))
	}
	*p = segments
	return nil
}

// PipelineConfig is the read-only pipeline configuration loaded once at
// startup. It describes where job artifacts live (storage_path), where
// spell-check dictionaries and recognition models are found relative to that
// root, and which command-line conventions the external OCR engines follow.
type PipelineConfig struct {
	// StoragePath is the root directory for job output artifacts. All
	// dictionary and model locations resolve beneath it.
	StoragePath string `yaml:"storage_path"`

	// LangDicts maps a language name to the dictionary location used by the
	// spell checker, as a two-element path-segment pair under StoragePath.
	LangDicts map[string]PathSegments `yaml:"lang_dicts"`

	// LegacyTesseract selects the output extension convention of the
	// installed tesseract: versions before 3.03 write <base>.html, newer
	// ones write <base>.hocr.
	LegacyTesseract bool `yaml:"legacy_tesseract"`

	// LegacyOcropus selects the invocation convention of the installed
	// ocropus: old installations ship one binary per step (ocropus-nlbin,
	// ocropus-rpred, ...), newer ones a single ocropus binary taking the
	// step as its first argument.
	LegacyOcropus bool `yaml:"legacy_ocropus"`

	// OcropusModels maps a model name to the location of the recognition
	// model file, as a two-element path-segment pair under StoragePath.
	OcropusModels map[string]PathSegments `yaml:"ocropus_models"`
}

// LoadPipelineConfig reads and validates the pipeline configuration file.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := ParsePipelineConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config %s: %w", path, err)
	}
	return cfg, nil
}

// ParsePipelineConfig decodes a pipeline configuration from a reader.
// Unknown top-level keys are rejected so typos surface at startup rather
// than silently falling back to defaults.
func ParsePipelineConfig(r io.Reader) (*PipelineConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg PipelineConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the YAML decoder cannot express on
// programmatically constructed configs: a non-empty storage root and
// well-formed relative segment pairs.
func (c *PipelineConfig) Validate() error {
	if strings.TrimSpace(c.StoragePath) == "" {
		return fmt.Errorf("storage_path is required")
	}
	for lang, segments := range c.LangDicts {
		if err := validateSegments(segments); err != nil {
			return fmt.Errorf("lang_dicts[%s]: %w", lang, err)
		}
	}
	for model, segments := range c.OcropusModels {
		if err := validateSegments(segments); err != nil {
			return fmt.Errorf("ocropus_models[%s]: %w", model, err)
		}
	}
	return nil
}

func validateSegments(segments PathSegments) error {
	if len(segments) != 2 {
		return fmt.Errorf("path segments must have exactly 2 elements, got %d", len(segments))
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("path segment cannot be empty")
		}
		if filepath.IsAbs(s) {
			return fmt.Errorf("path segment %q must be relative", s)
		}
		for _, part := range strings.Split(filepath.ToSlash(s), "/") {
			if part == ".." {
				return fmt.Errorf("path segment %q must not traverse upwards", s)
			}
		}
	}
	return nil
}

// Marshal serializes the configuration back to YAML. Round-tripping a parsed
// file preserves every key and value.
func (c *PipelineConfig) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pipeline config: %w", err)
	}
	return data, nil
}

// OutputExtension returns the hOCR output extension the installed tesseract
// uses: ".html" for pre-3.03 installations, ".hocr" otherwise.
func (c *PipelineConfig) OutputExtension() string {
	if c.LegacyTesseract {
		return ".html"
	}
	return ".hocr"
}

// Dictionary returns the segment pair for a language's spell-check
// dictionary.
func (c *PipelineConfig) Dictionary(lang string) (PathSegments, bool) {
	segments, ok := c.LangDicts[lang]
	return segments, ok
}

// Model returns the segment pair for a named ocropus recognition model.
func (c *PipelineConfig) Model(name string) (PathSegments, bool) {
	segments, ok := c.OcropusModels[name]
	return segments, ok
}

// Languages returns the configured spell-check language names.
func (c *PipelineConfig) Languages() []string {
	langs := make([]string, 0, len(c.LangDicts))
	for lang := range c.LangDicts {
		langs = append(langs, lang)
	}
	return langs
}
