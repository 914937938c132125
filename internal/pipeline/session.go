package pipeline

import (
	"context"

	"github.com/google/uuid"

	"snapsolve/internal/dispatch"
	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/types"
)

// session is the mutable pipeline state owned by the Orchestrator.
// Every field is guarded by Orchestrator.mu.
type session struct {
	id       string
	gen      uint64
	cfg      llmclient.ProviderConfig
	provider llmclient.Provider
	language string

	stage    types.Stage
	failedOp types.Transition
	lastErr  error

	shots []types.Screenshot
	// cursor is the index of the first screenshot not yet consumed by extract or debug.
	cursor int

	problem  *types.ProblemStatement
	solution *types.Solution
	debugs   []types.DebugResult

	cancel context.CancelFunc
}

func newSession(cfg llmclient.ProviderConfig, provider llmclient.Provider, language string) *session {
	return &session{
		id:       uuid.NewString(),
		cfg:      cfg,
		provider: provider,
		language: language,
		stage:    types.StageIdle,
	}
}

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	ID          string                  `json:"id"`
	Stage       types.Stage             `json:"stage"`
	Provider    string                  `json:"provider"`
	Language    string                  `json:"language"`
	Screenshots []types.ScreenshotRef   `json:"screenshots"`
	Pending     int                     `json:"pending_screenshots"`
	FailedStage types.Transition        `json:"failed_stage,omitempty"`
	LastError   *dispatch.StageError    `json:"last_error,omitempty"`
	Problem     *types.ProblemStatement `json:"problem,omitempty"`
	Solution    *types.Solution         `json:"solution,omitempty"`
	LastDebug   *types.DebugResult      `json:"last_debug,omitempty"`
	DebugRounds int                     `json:"debug_rounds"`
}

func (s *session) snapshot() Snapshot {
	out := Snapshot{
		ID:          s.id,
		Stage:       s.stage,
		Provider:    s.cfg.ID(),
		Language:    s.language,
		Screenshots: types.RefsOf(s.shots),
		Pending:     len(s.shots) - s.cursor,
		FailedStage: s.failedOp,
		DebugRounds: len(s.debugs),
	}
	if s.lastErr != nil {
		se := Describe(s.lastErr)
		out.LastError = &se
	}
	if s.problem != nil {
		p := *s.problem
		out.Problem = &p
	}
	if s.solution != nil {
		sol := *s.solution
		out.Solution = &sol
	}
	if n := len(s.debugs); n > 0 {
		d := s.debugs[n-1]
		out.LastDebug = &d
	}
	return out
}

// allows reports whether t may start from the current state. A failed session
// may retry the transition whose inputs it still holds.
func (s *session) allows(t types.Transition) bool {
	switch t {
	case types.TransitionExtract:
		return s.stage == types.StageIdle || (s.stage == types.StageFailed && s.problem == nil)
	case types.TransitionSolve:
		return s.stage == types.StageExtracted || (s.stage == types.StageFailed && s.problem != nil && s.solution == nil)
	case types.TransitionDebug:
		return s.stage == types.StageSolved || s.stage == types.StageDebugged || (s.stage == types.StageFailed && s.solution != nil)
	default:
		return false
	}
}

// currentSolution is the solution a debug round revises: the latest debug
// revision, or the generated solution.
func (s *session) currentSolution() types.Solution {
	if n := len(s.debugs); n > 0 {
		return s.debugs[n-1].Solution
	}
	if s.solution != nil {
		return *s.solution
	}
	return types.Solution{}
}
