package pipeline

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"snapsolve/internal/artifact"
	"snapsolve/internal/capture"
	"snapsolve/internal/config"
	"snapsolve/internal/dispatch"
	"snapsolve/internal/llm"
	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/types"
)

var quiet = log.New(io.Discard, "", 0)

// recorder is a synchronous sink; every delivered result lands in ch.
type recorder struct {
	ch chan dispatch.Result
}

func newRecorder() *recorder { return &recorder{ch: make(chan dispatch.Result, 64)} }

func (r *recorder) Deliver(res dispatch.Result) { r.ch <- res }

type harness struct {
	o     *Orchestrator
	rec   *recorder
	audit *artifact.MemoryStore
}

func newHarness(t *testing.T, reg *llm.Registry, src config.Source, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{rec: newRecorder(), audit: artifact.NewMemoryStore()}
	opts := Options{
		Registry: reg,
		Config:   src,
		Results:  h.rec,
		Capture:  capture.Placeholder{},
		Audit:    h.audit,
		Timeout:  5 * time.Second,
		Logger:   quiet,
	}
	for _, m := range mutate {
		m(&opts)
	}
	o, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	h.o = o
	return h
}

func (h *harness) next(t *testing.T) dispatch.Result {
	t.Helper()
	select {
	case r := <-h.rec.ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for stage result")
	}
	return dispatch.Result{}
}

func (h *harness) shot(t *testing.T, sessionID string) Snapshot {
	t.Helper()
	snap, err := h.o.AddScreenshot(context.Background(), sessionID, capture.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G', byte(time.Now().UnixNano())}})
	require.NoError(t, err)
	return snap
}

// stubProvider answers immediately unless a gate is set for the operation.
type stubProvider struct {
	gates map[types.Transition]chan struct{}
	// ignoreCtx makes gated calls wait for the gate even after cancellation.
	ignoreCtx bool
	errs      map[types.Transition]error

	started chan types.Transition

	mu    sync.Mutex
	calls map[types.Transition]int
}

func newStub() *stubProvider {
	return &stubProvider{
		gates:   map[types.Transition]chan struct{}{},
		errs:    map[types.Transition]error{},
		started: make(chan types.Transition, 16),
		calls:   map[types.Transition]int{},
	}
}

func (p *stubProvider) Name() string { return "stub:m1" }
func (p *stubProvider) Close() error { return nil }

func (p *stubProvider) Calls(op types.Transition) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *stubProvider) enter(ctx context.Context, op types.Transition) error {
	p.mu.Lock()
	p.calls[op]++
	p.mu.Unlock()
	select {
	case p.started <- op:
	default:
	}
	if gate := p.gates[op]; gate != nil {
		if p.ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return p.errs[op]
}

func (p *stubProvider) ExtractProblem(ctx context.Context, shots []types.Screenshot) (types.ProblemStatement, error) {
	if err := p.enter(ctx, types.TransitionExtract); err != nil {
		return types.ProblemStatement{}, err
	}
	return types.ProblemStatement{Title: "Stub", Description: "stub problem"}, nil
}

func (p *stubProvider) GenerateSolution(ctx context.Context, problem types.ProblemStatement, language string) (types.Solution, error) {
	if err := p.enter(ctx, types.TransitionSolve); err != nil {
		return types.Solution{}, err
	}
	return types.Solution{Language: language, Code: "print(1)\n"}, nil
}

func (p *stubProvider) DebugSolution(ctx context.Context, problem types.ProblemStatement, solution types.Solution, shots []types.Screenshot) (types.DebugResult, error) {
	if err := p.enter(ctx, types.TransitionDebug); err != nil {
		return types.DebugResult{}, err
	}
	revised := solution
	revised.Code = solution.Code + "# fixed\n"
	return types.DebugResult{Solution: revised, Changes: "fixed", Screenshots: types.RefsOf(shots)}, nil
}

// waitStarted blocks until op enters the provider. Earlier operations still
// queued on started are skipped.
func (p *stubProvider) waitStarted(t *testing.T, op types.Transition) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-p.started:
			if got == op {
				return
			}
		case <-deadline:
			t.Fatalf("provider %s never started", op)
		}
	}
}

func stubRegistry(t *testing.T, p llmclient.Provider) *llm.Registry {
	t.Helper()
	reg := llm.NewRegistry(quiet)
	require.NoError(t, reg.Register(llmclient.Registration{
		Name:         "stub",
		DefaultModel: "m1",
		Factory: func(ctx context.Context, cfg llmclient.ProviderConfig) (llmclient.Provider, error) {
			return p, nil
		},
	}))
	return reg
}

var stubConfig = config.Map{"LLM_PROVIDER": "stub"}
