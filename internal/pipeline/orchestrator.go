// Package pipeline sequences capture, extract, solve and debug for one active
// session and is the only caller of the provider contract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"snapsolve/internal/artifact"
	"snapsolve/internal/capture"
	"snapsolve/internal/config"
	"snapsolve/internal/dispatch"
	"snapsolve/internal/llm"
	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/types"
)

// Options configure an Orchestrator. Registry and Config are required.
type Options struct {
	Registry *llm.Registry
	// Config is read on every NewSession to select the provider.
	Config config.Source
	// Results receives one message per transition attempt.
	Results dispatch.Sink
	// Capture is used by Capture; AddScreenshot does not need it.
	Capture capture.Source
	// Audit, when set, receives a best-effort copy of screenshots and artifacts.
	Audit artifact.Store
	// Hook is attached to every provider call context.
	Hook     llm.Hook
	Timeout  time.Duration
	Language string
	Logger   *log.Logger
}

// Orchestrator owns the single active session.
type Orchestrator struct {
	reg      *llm.Registry
	src      config.Source
	disp     *dispatch.Dispatcher
	capture  capture.Source
	audit    artifact.Store
	hook     llm.Hook
	timeout  time.Duration
	language string
	logger   *log.Logger

	root       context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	current *session
	closed  bool
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("pipeline: registry is required")
	}
	if opts.Config == nil {
		return nil, errors.New("pipeline: config source is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultProviderTimeout
	}
	if strings.TrimSpace(opts.Language) == "" {
		opts.Language = llmclient.DefaultLanguage
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		reg:        opts.Registry,
		src:        opts.Config,
		disp:       dispatch.NewDispatcher(opts.Results),
		capture:    opts.Capture,
		audit:      opts.Audit,
		hook:       opts.Hook,
		timeout:    opts.Timeout,
		language:   strings.ToLower(strings.TrimSpace(opts.Language)),
		logger:     opts.Logger,
		root:       root,
		rootCancel: cancel,
	}, nil
}

// NewSession selects and builds the provider, then replaces the active session.
// A configuration error leaves the previous session untouched; no provider is
// built and no network call is made in that case.
func (o *Orchestrator) NewSession(ctx context.Context) (Snapshot, error) {
	cfg, err := o.reg.Select(o.src)
	if err != nil {
		return Snapshot{}, err
	}
	provider, err := o.reg.Build(ctx, cfg, llm.BuildOptions{RateLimit: llm.RateLimitFrom(o.src, cfg.Provider)})
	if err != nil {
		return Snapshot{}, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		_ = provider.Close()
		return Snapshot{}, ErrClosed
	}
	prev := o.current
	if prev != nil {
		o.abandonLocked(prev)
	}
	s := newSession(cfg, provider, o.language)
	o.current = s
	snap := s.snapshot()
	o.auditJSON(s.id, "session.json", sessionRecord{ID: s.id, Provider: cfg.Provider, Model: cfg.Model, CreatedAt: time.Now().UTC()})
	o.mu.Unlock()

	if prev != nil && prev.provider != nil {
		if err := prev.provider.Close(); err != nil {
			o.logger.Printf("pipeline: close provider %s: %v", prev.cfg.ID(), err)
		}
	}
	o.logger.Printf("pipeline: session %s started with %s", s.id, cfg.ID())
	return snap, nil
}

// Reset discards the session's in-flight work and starts a fresh idle session
// with the same provider.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev, err := o.sessionLocked(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	o.abandonLocked(prev)
	s := newSession(prev.cfg, prev.provider, prev.language)
	o.current = s
	o.auditJSON(s.id, "session.json", sessionRecord{ID: s.id, Provider: s.cfg.Provider, Model: s.cfg.Model, CreatedAt: time.Now().UTC()})
	o.logger.Printf("pipeline: session %s reset to %s", prev.id, s.id)
	return s.snapshot(), nil
}

// Snapshot returns the current state of the session.
func (o *Orchestrator) Snapshot(sessionID string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.sessionLocked(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

// Capture acquires a screenshot from the configured source and appends it.
func (o *Orchestrator) Capture(ctx context.Context, sessionID string) (Snapshot, error) {
	if o.capture == nil {
		return Snapshot{}, llmclient.InvalidInput("no screenshot source configured")
	}
	if _, err := o.Snapshot(sessionID); err != nil {
		return Snapshot{}, err
	}
	img, err := o.capture.Capture(ctx)
	if err != nil {
		if errors.Is(err, capture.ErrNoImage) {
			return Snapshot{}, fmt.Errorf("%w: %v", llmclient.ErrInvalidInput, err)
		}
		return Snapshot{}, fmt.Errorf("capture: %w", err)
	}
	return o.AddScreenshot(ctx, sessionID, img)
}

// AddScreenshot appends img to the session. It never changes the stage; captures
// made while a debug round runs feed the next debug round.
func (o *Orchestrator) AddScreenshot(ctx context.Context, sessionID string, img capture.Image) (Snapshot, error) {
	if len(img.Data) == 0 {
		return Snapshot{}, llmclient.InvalidInput("screenshot is empty")
	}
	o.mu.Lock()
	s, err := o.sessionLocked(sessionID)
	if err != nil {
		o.mu.Unlock()
		return Snapshot{}, err
	}
	at := img.CapturedAt
	if at.IsZero() {
		at = time.Now()
	}
	if n := len(s.shots); n > 0 && at.Before(s.shots[n-1].CapturedAt) {
		at = s.shots[n-1].CapturedAt
	}
	mime := img.MIMEType
	if mime == "" {
		mime = capture.DetectMIME(img.Data)
	}
	shot := types.Screenshot{
		Index:      len(s.shots),
		CapturedAt: at,
		MIMEType:   mime,
		Data:       append([]byte(nil), img.Data...),
	}
	s.shots = append(s.shots, shot)
	snap := s.snapshot()
	// Registered under the lock so Close cannot start waiting first.
	o.auditBlob(s.id, screenshotPath(shot), shot.Data)
	o.mu.Unlock()
	return snap, nil
}

// Extract starts extracting the problem from every screenshot captured so far.
func (o *Orchestrator) Extract(ctx context.Context, sessionID string) (Snapshot, error) {
	return o.start(sessionID, types.TransitionExtract, "")
}

// Solve starts generating a solution. An empty language uses the session default.
func (o *Orchestrator) Solve(ctx context.Context, sessionID, language string) (Snapshot, error) {
	return o.start(sessionID, types.TransitionSolve, language)
}

// Debug starts revising the current solution against screenshots captured since
// the last extract or debug round.
func (o *Orchestrator) Debug(ctx context.Context, sessionID string) (Snapshot, error) {
	return o.start(sessionID, types.TransitionDebug, "")
}

// Close abandons in-flight work, waits for background goroutines and closes the provider.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	s := o.current
	if s != nil {
		o.abandonLocked(s)
	}
	o.mu.Unlock()

	o.rootCancel()
	o.wg.Wait()
	if s != nil && s.provider != nil {
		return s.provider.Close()
	}
	return nil
}

// attempt is everything a provider call needs, captured under the lock.
type attempt struct {
	s        *session
	gen      uint64
	ticket   dispatch.Ticket
	op       types.Transition
	provider llmclient.Provider
	shots    []types.Screenshot
	consumed int
	problem  types.ProblemStatement
	solution types.Solution
	language string
}

func (o *Orchestrator) start(sessionID string, op types.Transition, language string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.sessionLocked(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if s.stage.InFlight() {
		return Snapshot{}, ErrAlreadyInProgress
	}
	if !s.allows(op) {
		return Snapshot{}, &TransitionError{From: s.stage, Transition: op}
	}

	a := attempt{s: s, gen: s.gen, op: op, provider: s.provider}
	switch op {
	case types.TransitionExtract:
		if len(s.shots) == 0 {
			return Snapshot{}, llmclient.InvalidInput("extract requires at least one screenshot")
		}
		a.shots = s.shots[:len(s.shots):len(s.shots)]
		a.consumed = len(s.shots)
	case types.TransitionSolve:
		a.problem = *s.problem
		a.language = strings.ToLower(strings.TrimSpace(language))
		if a.language == "" {
			a.language = s.language
		}
	case types.TransitionDebug:
		if s.cursor >= len(s.shots) {
			return Snapshot{}, llmclient.InvalidInput("debug requires at least one new screenshot")
		}
		a.shots = s.shots[s.cursor:len(s.shots):len(s.shots)]
		a.consumed = len(s.shots)
		a.problem = *s.problem
		a.solution = s.currentSolution()
	}

	callCtx, cancel := context.WithCancel(o.root)
	s.cancel = cancel
	s.stage = op.Running()
	a.ticket = o.disp.Begin(s.id, op)
	snap := s.snapshot()

	o.wg.Add(1)
	go o.run(callCtx, cancel, a)
	return snap, nil
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, a attempt) {
	defer o.wg.Done()
	defer cancel()
	if o.hook != nil {
		ctx = llm.WithHook(ctx, o.hook)
	}

	var art dispatch.Artifact
	var err error
	switch a.op {
	case types.TransitionExtract:
		var p types.ProblemStatement
		p, err = bounded(ctx, o.timeout, a.provider.Name(), func(ctx context.Context) (types.ProblemStatement, error) {
			return a.provider.ExtractProblem(ctx, a.shots)
		})
		art.Problem = &p
	case types.TransitionSolve:
		var sol types.Solution
		sol, err = bounded(ctx, o.timeout, a.provider.Name(), func(ctx context.Context) (types.Solution, error) {
			return a.provider.GenerateSolution(ctx, a.problem, a.language)
		})
		art.Solution = &sol
	case types.TransitionDebug:
		var d types.DebugResult
		d, err = bounded(ctx, o.timeout, a.provider.Name(), func(ctx context.Context) (types.DebugResult, error) {
			return a.provider.DebugSolution(ctx, a.problem, a.solution, a.shots)
		})
		art.Debug = &d
	}
	if path, body, ok := o.finish(a, art, err); ok {
		o.auditJSON(a.s.id, path, body)
	}
}

// finish applies the outcome if the attempt is still current and emits its
// result. It returns the audit record to write for a success.
func (o *Orchestrator) finish(a attempt, art dispatch.Artifact, err error) (string, any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := a.s
	if o.current != s || s.gen != a.gen {
		o.disp.Abandon(a.ticket)
		o.logger.Printf("pipeline: dropping late %s result for session %s", a.op, s.id)
		return "", nil, false
	}
	s.cancel = nil

	if err != nil {
		s.stage = types.StageFailed
		s.failedOp = a.op
		s.lastErr = err
		o.logger.Printf("pipeline: %s failed for session %s: %v", a.op, s.id, err)
		o.disp.Complete(a.ticket, dispatch.Failed(a.op, Describe(err)))
		return "", nil, false
	}

	s.stage = a.op.Done()
	s.failedOp = ""
	s.lastErr = nil
	var path string
	var body any
	switch a.op {
	case types.TransitionExtract:
		p := *art.Problem
		s.problem = &p
		s.cursor = a.consumed
		path, body = "problem.json", *art.Problem
	case types.TransitionSolve:
		sol := *art.Solution
		s.solution = &sol
		path, body = "solution.json", *art.Solution
	case types.TransitionDebug:
		s.debugs = append(s.debugs, *art.Debug)
		s.cursor = a.consumed
		path, body = fmt.Sprintf("debug/%04d.json", len(s.debugs)), *art.Debug
	}
	o.disp.Complete(a.ticket, dispatch.Succeeded(a.op, art))
	return path, body, true
}

func (o *Orchestrator) sessionLocked(sessionID string) (*session, error) {
	if o.closed {
		return nil, ErrClosed
	}
	if o.current == nil {
		return nil, ErrNoSession
	}
	if id := strings.TrimSpace(sessionID); id != "" && id != o.current.id {
		return nil, ErrStaleSession
	}
	return o.current, nil
}

// abandonLocked invalidates s's in-flight attempt. The provider call is
// cancelled best effort; its result is dropped when it returns.
func (o *Orchestrator) abandonLocked(s *session) {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	o.disp.Drop(s.id)
}

// bounded runs fn with a deadline and returns when either fn returns or the
// deadline passes, whichever is first. fn keeps running in the background if it
// ignores its context; its late result is discarded.
func bounded[T any](ctx context.Context, timeout time.Duration, provider string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v: v, err: err}
	}()

	var zero T
	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if kind, ok := llmclient.KindOf(out.err); !ok || kind != llmclient.KindTimeout {
				return zero, llmclient.NewProviderError(provider, llmclient.KindTimeout, out.err)
			}
		}
		return out.v, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, llmclient.NewProviderError(provider, llmclient.KindTimeout, fmt.Errorf("no reply within %s", timeout))
		}
		return zero, ctx.Err()
	}
}
