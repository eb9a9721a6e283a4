package models

import (
	"time"

	"github.com/google/uuid"
)

// Utterance is one timed span of transcribed speech within a recording's
// transcript. Order is 1-based and contiguous per recording: the set of
// Order values for a recording is always exactly {1..N}.
type Utterance struct {
	ID          uuid.UUID `json:"id"`
	RecordingID uuid.UUID `json:"recording_id"`
	Order       int       `json:"order"`
	StartTime   int64     `json:"start_time"` // milliseconds from recording start
	EndTime     int64     `json:"end_time"`
	Text        string    `json:"text"`
	TextEdited  string    `json:"text_edited"`
	Confidence  float64   `json:"confidence"` // 0..1
	Speaker     string    `json:"speaker"`
	ActID       *int      `json:"act_id,omitempty"`       // speech-act classification, owned elsewhere
	TalkMoreID  *int      `json:"talk_more_id,omitempty"` // follow-up classification, owned elsewhere
	CreatedAt   time.Time `json:"created_at"`
}
