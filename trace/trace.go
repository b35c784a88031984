package trace

import (
	"time"

	"github.com/google/uuid"

	"github.com/samarth-org/samarth/engine"
)

// ============================================================================
// TRACE — Auditable record of one answered question
// ============================================================================
// Every answer carries its full provenance: the exact program that
// produced it, the execution result it was synthesized from, and how
// many attempts it took. A failed question gets a record too, with the
// raw failure attached.
// ============================================================================

// State is the terminal state of a question's lifecycle.
type State string

const (
	StateAnswered State = "answered"
	StateFailed   State = "failed"
)

// AnswerRecord is the provenance of one answer.
type AnswerRecord struct {
	ID            string                 `json:"id"`
	Question      string                 `json:"question"`
	GeneratedCode string                 `json:"generatedCode,omitempty"`
	Result        engine.ExecutionResult `json:"result"`
	FinalAnswer   string                 `json:"finalAnswer"`
	State         State                  `json:"state"`
	Attempts      int                    `json:"attempts"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// NewAnswerRecord builds a record for a question. All trace records go
// through here so every answer gets an ID and timestamp.
func NewAnswerRecord(question string) *AnswerRecord {
	return &AnswerRecord{
		ID:        uuid.NewString(),
		Question:  question,
		CreatedAt: time.Now().UTC(),
	}
}
