package llmclient

import (
	"context"

	"snapsolve/internal/types"
)

// Provider is the capability contract every LLM backend implements.
// Implementations must not keep screenshots past the call that received them.
type Provider interface {
	Name() string
	Close() error
	ExtractProblem(ctx context.Context, screenshots []types.Screenshot) (types.ProblemStatement, error)
	GenerateSolution(ctx context.Context, problem types.ProblemStatement, language string) (types.Solution, error)
	DebugSolution(ctx context.Context, problem types.ProblemStatement, solution types.Solution, screenshots []types.Screenshot) (types.DebugResult, error)
}

// DefaultLanguage is used when no solution language is requested.
const DefaultLanguage = "python"
