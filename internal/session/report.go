package session

import (
	"github.com/zainarain279/Dropee/internal/game/entity"
)

// Outcome is how one account session ended.
type Outcome int

const (
	Completed Outcome = iota + 1
	// Failed means authentication or the first sync did not succeed, or a
	// stage hit an invalid credential.
	Failed
	// Skipped means the session never started, e.g. its proxy was unusable.
	Skipped
	// TimedOut is set by the orchestrator when the account deadline passes.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// CredentialAction tells the coordinator how to update the credential store.
type CredentialAction int

const (
	Keep CredentialAction = iota
	Put
	Evict
)

func (a CredentialAction) String() string {
	switch a {
	case Put:
		return "put"
	case Evict:
		return "evict"
	default:
		return "keep"
	}
}

// StageStatus is the result of one optional stage.
type StageStatus int

const (
	StageDone StageStatus = iota + 1
	StageSkipped
	StageFailed
)

func (s StageStatus) String() string {
	switch s {
	case StageDone:
		return "done"
	case StageSkipped:
		return "skipped"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type StageResult struct {
	Name   string
	Status StageStatus
	Err    error
}

// Report is what a worker sends back to the coordinator. Workers never write
// the credential store; Action and Token describe the change to apply.
type Report struct {
	Index    int
	Identity string
	ProxyIP  string
	Outcome  Outcome
	Action   CredentialAction
	Token    string
	Err      error
	Stages   []StageResult
	Final    *entity.PlayerState
}

// Stage returns the result recorded for name.
func (r Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}
