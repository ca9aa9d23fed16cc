package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes a behavioral occurrence reported by the
// proctoring frontend.
type EventType string

const (
	EventPaste            EventType = "paste"
	EventBlur             EventType = "blur"
	EventFocus            EventType = "focus"
	EventVisibilityChange EventType = "visibility_change"
	EventDevTools         EventType = "devtools"
	EventOriginality      EventType = "originality"
	EventTaskCompleted    EventType = "task_completed"
)

// BehavioralEvent is one timestamped, categorized occurrence tagged to a
// task. Events accumulate in an append-only ledger ordered by timestamp;
// derived trust signals depend on that ordering.
type BehavioralEvent struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  string          `json:"session_id"`
	TaskID     string          `json:"task_id,omitempty"`
	Type       EventType       `json:"type"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EventMeta carries the typed payloads the trust scorer reads out of an
// event's meta blob. Fields are pointers so absent keys stay distinguishable
// from zero values.
type EventMeta struct {
	// Paste payload length in characters.
	Length *int `json:"length,omitempty"`

	// Visibility flag for visibility_change events.
	Visible *bool `json:"visible,omitempty"`

	// Opened flag for devtools events.
	Opened *bool `json:"opened,omitempty"`

	// Originality score 0-100 for originality events.
	Score *float64 `json:"score,omitempty"`

	// Task completion payload for task_completed events.
	Difficulty string  `json:"difficulty,omitempty"`
	ElapsedSec float64 `json:"elapsed_sec,omitempty"`
	Coverage   float64 `json:"coverage,omitempty"`
}

// DecodeMeta unmarshals the event's meta blob. Malformed or absent meta
// decodes to the zero EventMeta rather than failing; the trust scorer
// must stay total over arbitrary ledgers.
func (e BehavioralEvent) DecodeMeta() EventMeta {
	var m EventMeta
	if len(e.Meta) > 0 {
		_ = json.Unmarshal(e.Meta, &m)
	}
	return m
}
