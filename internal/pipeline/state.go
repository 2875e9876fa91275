package pipeline

import "primecheck/internal/logging"

// State is a node of the query state machine:
//
//	Idle -> Parsing -> TrivialCheck -> MillerRabin -> Lucas -> Done
//
// Error is reachable from Parsing only; Cancelled from every non-terminal
// state. TrivialCheck may jump straight to Done.
type State int32

const (
	StateIdle State = iota
	StateParsing
	StateTrivialCheck
	StateMillerRabin
	StateLucas
	StateDone
	StateError
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParsing:
		return "parsing"
	case StateTrivialCheck:
		return "trivial_check"
	case StateMillerRabin:
		return "miller_rabin"
	case StateLucas:
		return "lucas"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateCancelled
}

// Stage names a timed unit of work; it is the metrics label and span suffix.
type Stage string

const (
	StageParse       Stage = "parse"
	StageTrivial     Stage = "trivial"
	StageMillerRabin Stage = "miller_rabin"
	StageLucas       Stage = "lucas"
)

func (s Stage) category() logging.Category {
	switch s {
	case StageParse:
		return logging.CategoryParser
	case StageTrivial:
		return logging.CategoryTrivial
	case StageMillerRabin:
		return logging.CategoryMillerRabin
	case StageLucas:
		return logging.CategoryLucas
	default:
		return logging.CategoryPipeline
	}
}
