package models

import (
	"errors"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// QueueMessage is the structure stored in the queue.
// Keep it simple - just enough to route the task.
type QueueMessage struct {
	BatchID   string      `json:"batch_id"`   // References the owning batch
	Stage     int         `json:"stage"`      // Stage index within the batch
	TaskIndex int         `json:"task_index"` // Position of the task within its stage
	Task      TaskSpec    `json:"task"`       // Task to execute
	Document  DocumentRef `json:"document"`   // Input document for this task
}
