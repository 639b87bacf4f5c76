package etl

import (
	"context"
	"fmt"
	"time"
)

// State is a step of the run lifecycle.
type State string

const (
	StatePending    State = "PENDING"
	StateExtracting State = "EXTRACTING"
	StateCleaning   State = "CLEANING"
	StateLoading    State = "LOADING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Stage names, as used in logs, metrics and StageError.
const (
	StageExtract = "extract"
	StageClean   = "clean"
	StageLoad    = "load"
)

var transitions = map[State][]State{
	StatePending:    {StateExtracting},
	StateExtracting: {StateCleaning, StateFailed},
	StateCleaning:   {StateLoading, StateFailed},
	StateLoading:    {StateDone, StateFailed},
}

// CanTransition reports whether a run may move from one state to another.
// DONE and FAILED are terminal; a new run starts over from PENDING.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// RunReport summarizes one run.
type RunReport struct {
	ID          string    `json:"id"`
	State       State     `json:"state"`
	History     []State   `json:"history"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Extracted   int       `json:"extracted"`
	Cleaned     int       `json:"cleaned"`
	Documents   int       `json:"documents"`
}

func newRunReport(id string, now time.Time) *RunReport {
	return &RunReport{
		ID:        id,
		State:     StatePending,
		History:   []State{StatePending},
		StartedAt: now,
	}
}

func (r *RunReport) advance(to State) {
	if !CanTransition(r.State, to) {
		panic(fmt.Sprintf("etl: illegal run transition %s -> %s", r.State, to))
	}
	r.State = to
	r.History = append(r.History, to)
}

// Duration is the wall time of a finished run, zero while it is in progress.
func (r *RunReport) Duration() time.Duration {
	if !r.State.Terminal() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the ID of the run ctx belongs to, or "" outside a run.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
