// -----------------------------------------------------------------------
// Filestore - shared on-disk storage for job artifacts. Every path handed
// to tasks is a (job, path) pair resolved beneath the configured root.
// -----------------------------------------------------------------------

package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/models"
)

// ErrOutsideRoot is returned when a reference resolves outside the
// filestore root.
var ErrOutsideRoot = fmt.Errorf("path escapes filestore root")

// Filestore manages job directories beneath the pipeline storage_path.
type Filestore struct {
	root   string
	logger arbor.ILogger
}

// NewFilestore opens the filestore rooted at the pipeline storage_path,
// creating the root directory if needed.
func NewFilestore(logger arbor.ILogger, cfg *common.PipelineConfig) (*Filestore, error) {
	root, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	logger.Debug().Str("root", root).Msg("Filestore opened")

	return &Filestore{root: root, logger: logger}, nil
}

// Root returns the absolute filestore root.
func (f *Filestore) Root() string {
	return f.root
}

// NewJob creates a fresh job directory and returns its name.
func (f *Filestore) NewJob() (string, error) {
	job := common.NewJobID()
	if err := os.MkdirAll(filepath.Join(f.root, job), 0755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}
	f.logger.Debug().Str("job", job).Msg("Created filestore job")
	return job, nil
}

// RemoveJob deletes a job directory and all its artifacts.
func (f *Filestore) RemoveJob(job string) error {
	if !f.IsValidJob(job) {
		return fmt.Errorf("unknown filestore job %q", job)
	}
	if err := os.RemoveAll(filepath.Join(f.root, job)); err != nil {
		return fmt.Errorf("failed to remove job directory: %w", err)
	}
	f.logger.Debug().Str("job", job).Msg("Removed filestore job")
	return nil
}

// IsValidJob reports whether the job directory exists in the filestore.
func (f *Filestore) IsValidJob(job string) bool {
	if job == "" || strings.ContainsRune(job, os.PathSeparator) {
		return false
	}
	info, err := os.Stat(filepath.Join(f.root, job))
	return err == nil && info.IsDir()
}

// AbsPath resolves a document reference to an absolute path, rejecting
// anything that escapes the filestore root.
func (f *Filestore) AbsPath(ref models.DocumentRef) (string, error) {
	return f.resolve(ref.Job, ref.Path)
}

// ResolveSegments resolves a two-element segment pair from the pipeline
// configuration (dictionaries, recognition models) beneath the root.
func (f *Filestore) ResolveSegments(segments common.PathSegments) (string, error) {
	if len(segments) != 2 {
		return "", fmt.Errorf("path segments must have exactly 2 elements, got %d", len(segments))
	}
	return f.resolve(segments[0], segments[1])
}

func (f *Filestore) resolve(parts ...string) (string, error) {
	abs := filepath.Join(append([]string{f.root}, parts...)...)
	// Join cleans the path, so a prefix check is sufficient here.
	if abs != f.root && !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, filepath.Join(parts...))
	}
	return abs, nil
}

// RefFor converts an absolute path back into a document reference.
func (f *Filestore) RefFor(abs string) (models.DocumentRef, error) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return models.DocumentRef{}, fmt.Errorf("%w: %s", ErrOutsideRoot, abs)
	}
	rel = filepath.ToSlash(rel)
	job, path, ok := strings.Cut(rel, "/")
	if !ok {
		return models.DocumentRef{}, fmt.Errorf("path %s is not inside a job directory", abs)
	}
	return models.DocumentRef{Job: job, Path: path}, nil
}

// Store writes data to the referenced location, creating intermediate
// directories as needed.
func (f *Filestore) Store(ref models.DocumentRef, data []byte) error {
	abs, err := f.AbsPath(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", ref, err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ref, err)
	}
	return nil
}

// Retrieve reads the referenced file.
func (f *Filestore) Retrieve(ref models.DocumentRef) ([]byte, error) {
	abs, err := f.AbsPath(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return data, nil
}

// List returns the references of all regular files under a job directory.
func (f *Filestore) List(job string) ([]models.DocumentRef, error) {
	if !f.IsValidJob(job) {
		return nil, fmt.Errorf("unknown job %q", job)
	}

	jobDir := filepath.Join(f.root, job)
	var refs []models.DocumentRef
	err := filepath.WalkDir(jobDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(jobDir, path)
		if err != nil {
			return err
		}
		refs = append(refs, models.DocumentRef{Job: job, Path: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list job %s: %w", job, err)
	}
	return refs, nil
}

// InsertSuffix inserts suffixes between the stem and extension of a path:
// page.tif + ("gray") -> page_gray.tif. Tasks use this to derive output
// names from their input without clobbering it.
func InsertSuffix(path string, suffixes ...string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for _, suffix := range suffixes {
		if suffix == "" {
			continue
		}
		stem += "_" + suffix
	}
	return stem + ext
}

// ReplaceExt swaps the extension of a path, keeping the directory and stem.
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
