package dlq

import (
	"time"

	"github.com/courierhq/courier/id"
)

// Entry records an envelope that was terminally rejected — retry budget
// exhausted, or an unresolvable handler name — and archived for
// inspection or manual replay.
type Entry struct {
	ID         id.DLQID   `json:"id"`
	EnvelopeID string     `json:"envelope_id"`
	Handler    string     `json:"handler"`
	Queue      string     `json:"queue"`
	Body       []byte     `json:"body"`
	Error      string     `json:"error"`
	Attempt    int        `json:"attempt"`
	FailedAt   time.Time  `json:"failed_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
