package history

import "time"

const SchemaVersion = 1

// Outcome values stored with each build.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// BuildRecord is one pipeline run as persisted in the history database.
type BuildRecord struct {
	ID         string
	Operation  string
	Entry      string
	StartedAt  time.Time
	Duration   time.Duration
	Outcome    string
	ErrorCode  string
	Message    string
	Files      int
	Cycles     int
	Skipped    int
	Collisions int
	Output     string
}
