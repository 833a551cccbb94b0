// -----------------------------------------------------------------------
// Batch - the unit of work submitted to the pipeline: a set of input
// documents and the ordered stages of tasks applied to each of them
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/lectio/internal/common"
)

// BatchStatus represents the lifecycle state of a batch
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// DocumentRef addresses a file in the shared filestore as a (job, path)
// pair. Tasks receive and return these instead of absolute paths so that
// every artifact stays anchored under the filestore root.
type DocumentRef struct {
	Job  string `json:"job"`  // Filestore job directory (the batch's storage area)
	Path string `json:"path"` // Path relative to the job directory
}

// String renders the reference in job/path form for logs.
func (d DocumentRef) String() string {
	return d.Job + "/" + d.Path
}

// TaskSpec describes one task applied to a document. Args is an immutable
// snapshot taken at batch creation time.
type TaskSpec struct {
	Kind string            `json:"kind"` // Task kind: "img.rgb_to_gray", "binarize.otsu", "ocr.tesseract", ...
	Args map[string]string `json:"args"` // Task-specific arguments (language, model, thresholds)
}

// TaskError records a task failure against the batch, preserving enough
// context to diagnose it after the run: which task, which document, and the
// underlying message.
type TaskError struct {
	Task     TaskSpec    `json:"task"`
	Document DocumentRef `json:"document"`
	Message  string      `json:"message"`
	At       time.Time   `json:"at"`
}

// StageProgress tracks how far one stage has advanced across the batch's
// documents.
type StageProgress struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Batch is the persistent batch record. Documents and stages are immutable
// once the batch is enqueued; status, progress, and errors mutate as tasks
// report back.
type Batch struct {
	ID        string        `json:"id" badgerhold:"key"`
	Job       string        `json:"job"` // Filestore job directory holding all batch artifacts
	Documents []DocumentRef `json:"documents"`
	Stages    [][]TaskSpec  `json:"stages"` // Stage N+1 runs on the outputs of stage N

	Status   BatchStatus     `json:"status"`
	Progress []StageProgress `json:"progress"` // One entry per stage
	Errors   []TaskError     `json:"errors"`
	DocsDone int             `json:"docs_done"`         // Documents whose task chain has finished
	Outputs  []DocumentRef   `json:"outputs,omitempty"` // Final artifact of each finished chain

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewBatch creates a pending batch over the given filestore job.
func NewBatch(job string, documents []DocumentRef) *Batch {
	return &Batch{
		ID:        common.NewBatchID(),
		Job:       job,
		Documents: documents,
		Status:    BatchStatusPending,
		CreatedAt: time.Now(),
	}
}

// AddStage appends a stage of tasks. All tasks in a stage run on the same
// input document generation; outputs feed the next stage.
func (b *Batch) AddStage(tasks ...TaskSpec) {
	b.Stages = append(b.Stages, tasks)
	b.Progress = append(b.Progress, StageProgress{Total: len(b.Documents) * len(tasks)})
}

// Validate validates the batch before it is persisted or enqueued.
func (b *Batch) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("batch ID is required")
	}
	if b.Job == "" {
		return fmt.Errorf("batch job directory is required")
	}
	if len(b.Documents) == 0 {
		return fmt.Errorf("batch has no documents")
	}
	if len(b.Stages) == 0 {
		return fmt.Errorf("batch has no stages")
	}
	for i, stage := range b.Stages {
		if len(stage) == 0 {
			return fmt.Errorf("stage %d is empty", i)
		}
		for _, task := range stage {
			if task.Kind == "" {
				return fmt.Errorf("stage %d contains a task without a kind", i)
			}
		}
	}
	return nil
}

// MarkStarted marks the batch as running
func (b *Batch) MarkStarted() {
	b.Status = BatchStatusRunning
	now := time.Now()
	b.StartedAt = &now
}

// MarkCompleted marks the batch as completed. A batch that accumulated
// errors but still produced output finishes as failed rather than
// completed.
func (b *Batch) MarkCompleted() {
	if len(b.Errors) > 0 {
		b.Status = BatchStatusFailed
	} else {
		b.Status = BatchStatusCompleted
	}
	now := time.Now()
	b.CompletedAt = &now
}

// MarkFailed marks the batch as failed
func (b *Batch) MarkFailed() {
	b.Status = BatchStatusFailed
	now := time.Now()
	b.CompletedAt = &now
}

// AppendError records a task failure against the batch.
func (b *Batch) AppendError(task TaskSpec, doc DocumentRef, message string) {
	b.Errors = append(b.Errors, TaskError{
		Task:     task,
		Document: doc,
		Message:  message,
		At:       time.Now(),
	})
}

// MarkDocDone records that one document's task chain has finished. A
// successful chain contributes its final artifact to the batch outputs; a
// chain cut short by a failure passes a nil output.
func (b *Batch) MarkDocDone(output *DocumentRef) {
	b.DocsDone++
	if output != nil {
		b.Outputs = append(b.Outputs, *output)
	}
}

// AllDocsDone reports whether every document chain has finished.
func (b *Batch) AllDocsDone() bool {
	return b.DocsDone >= len(b.Documents)
}

// IsTerminal returns true if the batch is in a terminal state
func (b *Batch) IsTerminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

// ToJSON serializes the batch
func (b *Batch) ToJSON() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return data, nil
}

// BatchFromJSON deserializes a batch
func BatchFromJSON(data []byte) (*Batch, error) {
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}
	return &batch, nil
}
