package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/types"
)

const (
	FakeProviderName = "fake"
	FakeModel        = "test-1"
)

// FakeProvider returns deterministic artifacts for offline runs and tests.
// Each debug call returns code that differs from the solution it was given.
type FakeProvider struct {
	model string

	mu    sync.Mutex
	calls map[types.Transition]int
}

func NewFakeProvider(model string) *FakeProvider {
	if strings.TrimSpace(model) == "" {
		model = FakeModel
	}
	return &FakeProvider{model: model, calls: map[types.Transition]int{}}
}

func (f *FakeProvider) Name() string { return FakeProviderName + ":" + f.model }
func (f *FakeProvider) Close() error { return nil }

// Calls returns how many times op was invoked.
func (f *FakeProvider) Calls(op types.Transition) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeProvider) count(op types.Transition) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.calls[op]
}

func (f *FakeProvider) ExtractProblem(ctx context.Context, shots []types.Screenshot) (types.ProblemStatement, error) {
	if len(shots) == 0 {
		return types.ProblemStatement{}, llmclient.InvalidInput("extract requires at least one screenshot")
	}
	if err := ctx.Err(); err != nil {
		return types.ProblemStatement{}, err
	}
	f.count(types.TransitionExtract)
	return types.ProblemStatement{
		Title:       "Sum Two Numbers",
		Description: "Read two integers a and b and print a + b.",
		Constraints: &types.Constraints{
			InputFormat:  "Two integers a and b on one line.",
			OutputFormat: "A single integer.",
			Limits:       []string{"-10^9 <= a, b <= 10^9"},
			Examples:     []types.Example{{Input: "1 2", Output: "3"}},
		},
		RawResponse: `{"title":"Sum Two Numbers","description":"Read two integers a and b and print a + b."}`,
	}, nil
}

func (f *FakeProvider) GenerateSolution(ctx context.Context, problem types.ProblemStatement, language string) (types.Solution, error) {
	if strings.TrimSpace(problem.Description) == "" {
		return types.Solution{}, llmclient.InvalidInput("solve requires a problem description")
	}
	if err := ctx.Err(); err != nil {
		return types.Solution{}, err
	}
	f.count(types.TransitionSolve)
	if language = strings.ToLower(strings.TrimSpace(language)); language == "" {
		language = llmclient.DefaultLanguage
	}
	return types.Solution{
		Language:        language,
		Code:            fakeCode(language),
		Explanation:     "Read both numbers and print their sum.",
		Thoughts:        []string{"The answer fits in 64-bit integers."},
		TimeComplexity:  "O(1)",
		SpaceComplexity: "O(1)",
	}, nil
}

func (f *FakeProvider) DebugSolution(ctx context.Context, problem types.ProblemStatement, solution types.Solution, shots []types.Screenshot) (types.DebugResult, error) {
	if len(shots) == 0 {
		return types.DebugResult{}, llmclient.InvalidInput("debug requires at least one screenshot")
	}
	if err := ctx.Err(); err != nil {
		return types.DebugResult{}, err
	}
	n := f.count(types.TransitionDebug)
	revised := solution
	revised.Code = fmt.Sprintf("%s\n%s revision %d: handle surrounding whitespace\n", strings.TrimRight(solution.Code, "\n"), commentPrefix(solution.Language), n)
	revised.Explanation = "Trim input before parsing."
	return types.DebugResult{
		Solution:    revised,
		Changes:     fmt.Sprintf("revision %d: trim input before parsing", n),
		Issues:      []string{"input may contain trailing whitespace"},
		Screenshots: types.RefsOf(shots),
	}, nil
}

func fakeCode(language string) string {
	switch language {
	case "go", "golang":
		return "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tvar a, b int64\n\tfmt.Scan(&a, &b)\n\tfmt.Println(a + b)\n}\n"
	case "javascript", "js":
		return "const [a, b] = require('fs').readFileSync(0, 'utf8').split(/\\s+/).map(Number);\nconsole.log(a + b);\n"
	default:
		return "a, b = map(int, input().split())\nprint(a + b)\n"
	}
}

func commentPrefix(language string) string {
	switch strings.ToLower(language) {
	case "python", "ruby", "bash", "sh":
		return "#"
	default:
		return "//"
	}
}

// RegisterFake adds the deterministic fake provider. It needs no credential.
func RegisterFake(reg llmclient.Registrar) error {
	return reg.Register(llmclient.Registration{
		Name:         FakeProviderName,
		DefaultModel: FakeModel,
		Factory: func(_ context.Context, cfg llmclient.ProviderConfig) (llmclient.Provider, error) {
			return NewFakeProvider(cfg.Model), nil
		},
	})
}
