package models

import "time"

// FailureState tracks consecutive poll failures for one source. Created on
// first failure, removed on any success, persisted so the counter and
// cooldown survive process restarts.
type FailureState struct {
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastNotifiedAt      *time.Time `json:"last_notified_at,omitempty"`
}
