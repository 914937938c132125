package types

// Stage is the pipeline position of a session.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageExtracting Stage = "extracting"
	StageExtracted  Stage = "extracted"
	StageSolving    Stage = "solving"
	StageSolved     Stage = "solved"
	StageDebugging  Stage = "debugging"
	StageDebugged   Stage = "debugged"
	StageFailed     Stage = "failed"
)

// Transition names a pipeline step that produces an artifact.
type Transition string

const (
	TransitionExtract Transition = "extract"
	TransitionSolve   Transition = "solve"
	TransitionDebug   Transition = "debug"
)

// InFlight reports whether the stage represents a running provider call.
func (s Stage) InFlight() bool {
	switch s {
	case StageExtracting, StageSolving, StageDebugging:
		return true
	default:
		return false
	}
}

// Running returns the in-flight stage for t.
func (t Transition) Running() Stage {
	switch t {
	case TransitionExtract:
		return StageExtracting
	case TransitionSolve:
		return StageSolving
	case TransitionDebug:
		return StageDebugging
	default:
		return ""
	}
}

// Done returns the stage reached when t succeeds.
func (t Transition) Done() Stage {
	switch t {
	case TransitionExtract:
		return StageExtracted
	case TransitionSolve:
		return StageSolved
	case TransitionDebug:
		return StageDebugged
	default:
		return ""
	}
}
