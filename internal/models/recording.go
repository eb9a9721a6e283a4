package models

import (
	"time"

	"github.com/google/uuid"
)

// Recording status lifecycle. READY is initial; the three others are terminal
// for the ingestion pipeline. Error states are only left by operator
// intervention (re-upload or manual reset), never by the pipeline itself.
const (
	RecordingStatusReady        = "READY"
	RecordingStatusConvertError = "CONVERT_ERROR"
	RecordingStatusSTTError     = "STT_ERROR"
	RecordingStatusCompleted    = "COMPLETED"
)

// CanTransition reports whether the pipeline may move a recording from one
// status to another. Only READY has outgoing transitions; there is no
// automatic way out of an error state.
func CanTransition(from, to string) bool {
	if from != RecordingStatusReady {
		return false
	}
	switch to {
	case RecordingStatusCompleted, RecordingStatusConvertError, RecordingStatusSTTError:
		return true
	}
	return false
}

// Recording is an uploaded voice recording tracked through the ingestion
// pipeline (object store → transcode → STT → transcript).
type Recording struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	FileName   string     `json:"file_name"`
	StorageKey string     `json:"storage_key"`
	Status     string     `json:"status"`
	Duration   int        `json:"duration"` // seconds, set after transcode
	Edited     bool       `json:"edited"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
