package llm

import "context"

// Hook observes provider operations. Attach one to a context with WithHook.
type Hook interface {
	Before(ctx context.Context, call Call)
	After(ctx context.Context, call Call, err error)
}

type ctxKeyHook struct{}
type ctxKeyAttempt struct{}

// WithHook attaches a Hook to the context used by provider calls.
func WithHook(ctx context.Context, hook Hook) context.Context {
	if hook == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyHook{}, hook)
}

// HookFrom returns the hook stored in the context.
func HookFrom(ctx context.Context) Hook {
	if v := ctx.Value(ctxKeyHook{}); v != nil {
		if h, ok := v.(Hook); ok {
			return h
		}
	}
	return nil
}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, ctxKeyAttempt{}, n)
}

// AttemptFrom returns the 1-based retry attempt for the current call.
func AttemptFrom(ctx context.Context) int {
	if v, ok := ctx.Value(ctxKeyAttempt{}).(int); ok && v > 0 {
		return v
	}
	return 1
}

// HookFuncs adapts plain functions to Hook. Nil fields are skipped.
type HookFuncs struct {
	OnBefore func(ctx context.Context, call Call)
	OnAfter  func(ctx context.Context, call Call, err error)
}

func (h HookFuncs) Before(ctx context.Context, call Call) {
	if h.OnBefore != nil {
		h.OnBefore(ctx, call)
	}
}

func (h HookFuncs) After(ctx context.Context, call Call, err error) {
	if h.OnAfter != nil {
		h.OnAfter(ctx, call, err)
	}
}
