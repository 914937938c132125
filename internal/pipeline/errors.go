package pipeline

import (
	"context"
	"errors"
	"fmt"

	"snapsolve/internal/dispatch"
	"snapsolve/internal/llm"
	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/types"
)

var (
	// ErrAlreadyInProgress rejects a transition while another runs for the same session.
	ErrAlreadyInProgress = errors.New("transition already in progress")
	// ErrNoSession is returned before the first NewSession.
	ErrNoSession = fmt.Errorf("%w: no active session", llmclient.ErrInvalidInput)
	// ErrStaleSession is returned for commands addressed to a discarded session.
	ErrStaleSession = fmt.Errorf("%w: session is no longer active", llmclient.ErrInvalidInput)
	ErrClosed       = errors.New("orchestrator is closed")
)

// TransitionError reports a transition requested from a stage that cannot take it.
type TransitionError struct {
	From       types.Stage
	Transition types.Transition
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from stage %s", e.Transition, e.From)
}

func (e *TransitionError) Unwrap() error { return llmclient.ErrInvalidInput }

var providerMessages = map[llmclient.ProviderErrorKind]struct{ msg, hint string }{
	llmclient.KindCredentialInvalid:  {"the provider rejected the API key", "check the configured API key and restart the session"},
	llmclient.KindQuotaExceeded:      {"the provider account is out of quota", "check billing or switch provider"},
	llmclient.KindRateLimited:        {"the provider is rate limiting requests", "wait a moment and retry"},
	llmclient.KindNetworkUnavailable: {"the provider could not be reached", "check the network connection and retry"},
	llmclient.KindMalformedResponse:  {"the provider reply could not be understood", "retry; a clearer screenshot may help"},
	llmclient.KindTimeout:            {"the provider did not answer in time", "retry, or raise PROVIDER_TIMEOUT"},
	llmclient.KindUnknown:            {"the provider call failed", "retry"},
}

// Describe classifies err for the UI. Provider failures carry a fixed message per
// kind instead of vendor text.
func Describe(err error) dispatch.StageError {
	var cErr *llm.ConfigurationError
	var pErr *llmclient.ProviderError
	var tErr *TransitionError
	switch {
	case err == nil:
		return dispatch.StageError{}
	case errors.As(err, &cErr):
		return dispatch.StageError{Kind: dispatch.KindConfiguration, Message: cErr.Error(), Hint: cErr.Hint}
	case errors.Is(err, ErrAlreadyInProgress):
		return dispatch.StageError{Kind: dispatch.KindAlreadyInProgress, Message: err.Error(), Hint: "wait for the running step to finish"}
	case errors.As(err, &tErr):
		return dispatch.StageError{Kind: dispatch.KindInvalidInput, Message: err.Error()}
	case errors.Is(err, llmclient.ErrInvalidInput):
		return dispatch.StageError{Kind: dispatch.KindInvalidInput, Message: err.Error()}
	case errors.As(err, &pErr):
		m := providerMessages[pErr.Kind]
		if m.msg == "" {
			m = providerMessages[llmclient.KindUnknown]
		}
		return dispatch.StageError{
			Kind:         dispatch.KindProvider,
			ProviderKind: pErr.Kind,
			Message:      m.msg,
			Hint:         m.hint,
			RetryAfterMS: pErr.RetryAfter.Milliseconds(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return Describe(llmclient.NewProviderError("", llmclient.KindTimeout, err))
	default:
		return Describe(llmclient.NewProviderError("", llmclient.KindUnknown, err))
	}
}
