package common

import (
	"github.com/google/uuid"
)

// NewBatchID generates a unique batch ID with the "batch_" prefix
// Format: batch_<uuid>
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}

// NewJobID generates a unique filestore job directory name
func NewJobID() string {
	return uuid.New().String()
}
