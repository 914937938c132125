package llm

import (
	"context"
	"log"
	"time"

	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/types"
)

// Middleware decorates a Provider to inject cross-cutting concerns
// (rate limiting, retries, logging, hooks, etc.).
type Middleware func(llmclient.Provider) llmclient.Provider

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.Provider, mws ...Middleware) llmclient.Provider {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// Call describes one provider operation as seen by an Interceptor.
type Call struct {
	Op       types.Transition
	Provider string
	Images   int
}

// Interceptor runs around a single provider operation. fn performs the call and
// may be invoked more than once.
type Interceptor func(ctx context.Context, call Call, fn func(context.Context) error) error

// Intercept turns an Interceptor into a Middleware covering all three operations.
// onClose, if set, runs after the inner provider is closed.
func Intercept(ic Interceptor, onClose func()) Middleware {
	return func(next llmclient.Provider) llmclient.Provider {
		return &intercepted{next: next, ic: ic, onClose: onClose}
	}
}

type intercepted struct {
	next    llmclient.Provider
	ic      Interceptor
	onClose func()
}

func (p *intercepted) Name() string { return p.next.Name() }

func (p *intercepted) Close() error {
	err := p.next.Close()
	if p.onClose != nil {
		p.onClose()
	}
	return err
}

func (p *intercepted) ExtractProblem(ctx context.Context, shots []types.Screenshot) (types.ProblemStatement, error) {
	var out types.ProblemStatement
	err := p.ic(ctx, Call{Op: types.TransitionExtract, Provider: p.next.Name(), Images: len(shots)}, func(ctx context.Context) error {
		var err error
		out, err = p.next.ExtractProblem(ctx, shots)
		return err
	})
	return out, err
}

func (p *intercepted) GenerateSolution(ctx context.Context, problem types.ProblemStatement, language string) (types.Solution, error) {
	var out types.Solution
	err := p.ic(ctx, Call{Op: types.TransitionSolve, Provider: p.next.Name()}, func(ctx context.Context) error {
		var err error
		out, err = p.next.GenerateSolution(ctx, problem, language)
		return err
	})
	return out, err
}

func (p *intercepted) DebugSolution(ctx context.Context, problem types.ProblemStatement, solution types.Solution, shots []types.Screenshot) (types.DebugResult, error) {
	var out types.DebugResult
	err := p.ic(ctx, Call{Op: types.TransitionDebug, Provider: p.next.Name(), Images: len(shots)}, func(ctx context.Context) error {
		var err error
		out, err = p.next.DebugSolution(ctx, problem, solution, shots)
		return err
	})
	return out, err
}

// -------- Logging & Hooks --------

// WithLogging logs each call and its outcome. Provide a custom logger or nil
// to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return Intercept(func(ctx context.Context, call Call, fn func(context.Context) error) error {
		start := time.Now()
		logger.Printf("LLM request (%s) %s: %d screenshot(s)", call.Op, call.Provider, call.Images)
		err := fn(ctx)
		if err != nil {
			logger.Printf("LLM error (%s) %s after %s: %v", call.Op, call.Provider, time.Since(start).Round(time.Millisecond), err)
			return err
		}
		logger.Printf("LLM done (%s) %s in %s", call.Op, call.Provider, time.Since(start).Round(time.Millisecond))
		return nil
	}, nil)
}

// WithHooks calls HookFrom(ctx).Before/After around every operation.
// If no hook is present in the context, it is a no-op.
func WithHooks() Middleware {
	return Intercept(func(ctx context.Context, call Call, fn func(context.Context) error) error {
		hook := HookFrom(ctx)
		if hook != nil {
			hook.Before(ctx, call)
		}
		err := fn(ctx)
		if hook != nil {
			hook.After(ctx, call, err)
		}
		return err
	}, nil)
}
