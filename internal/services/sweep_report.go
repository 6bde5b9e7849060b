package services

import (
	"time"

	"github.com/google/uuid"
)

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// SessionOutcome is the tagged result of evaluating one meet.
type SessionOutcome struct {
	MeetID uuid.UUID     `json:"meet_id"`
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

type NoShowReport struct {
	Checked   int              `json:"checked"`
	Cancelled int              `json:"cancelled"`
	Error     string           `json:"error,omitempty"`
	Results   []SessionOutcome `json:"results,omitempty"`
}

type CompletionReport struct {
	Checked   int              `json:"checked"`
	Completed int              `json:"completed"`
	Error     string           `json:"error,omitempty"`
	Results   []SessionOutcome `json:"results,omitempty"`
}

// SweepSummary is what one invocation of the sweep reports back to the scheduler.
type SweepSummary struct {
	Success         bool             `json:"success"`
	Timestamp       time.Time        `json:"timestamp"`
	NoShowCheck     NoShowReport     `json:"noShowCheck"`
	CompletionCheck CompletionReport `json:"completionCheck"`
}

// Compact drops the per-session results.
func (s SweepSummary) Compact() SweepSummary {
	s.NoShowCheck.Results = nil
	s.CompletionCheck.Results = nil
	return s
}

func countOutcomes(results []SessionOutcome, status OutcomeStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (r NoShowReport) Failed() int {
	return countOutcomes(r.Results, OutcomeFailed)
}

func (r CompletionReport) Failed() int {
	return countOutcomes(r.Results, OutcomeFailed)
}
