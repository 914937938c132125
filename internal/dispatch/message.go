// Package dispatch defines the command/result contract between the pipeline
// and the UI, and delivers stage results in issuance order.
package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/types"
)

// CommandType names a UI request.
type CommandType string

const (
	CommandNewSession CommandType = "new_session"
	CommandCapture    CommandType = "capture"
	CommandExtract    CommandType = "extract"
	CommandSolve      CommandType = "solve"
	CommandDebug      CommandType = "debug"
	CommandReset      CommandType = "reset"
)

// Command is one inbound message from the UI.
type Command struct {
	Type CommandType `json:"type"`
	// ID is an optional client correlation id echoed in the reply.
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	// Image carries the screenshot for capture when the UI supplies it;
	// without it the server-side screenshot source is used.
	Image    *Image `json:"image,omitempty"`
	Language string `json:"language,omitempty"`
}

// Image is a screenshot payload. Data is base64 in JSON.
type Image struct {
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"`
}

// ResultType tags a Result.
type ResultType string

const (
	StageSucceeded ResultType = "stage_succeeded"
	StageFailed    ResultType = "stage_failed"
)

// ErrorKind is the top-level error class shown to the UI.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindProvider          ErrorKind = "provider"
	KindAlreadyInProgress ErrorKind = "already_in_progress"
)

// StageError is a classified failure. It never carries raw vendor text.
type StageError struct {
	Kind         ErrorKind                   `json:"kind"`
	ProviderKind llmclient.ProviderErrorKind `json:"provider_kind,omitempty"`
	Message      string                      `json:"message"`
	Hint         string                      `json:"hint,omitempty"`
	RetryAfterMS int64                       `json:"retry_after_ms,omitempty"`
}

func (e StageError) Error() string {
	if e.ProviderKind != "" {
		return fmt.Sprintf("%s/%s: %s", e.Kind, e.ProviderKind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Artifact holds exactly one stage output.
type Artifact struct {
	Problem  *types.ProblemStatement `json:"problem,omitempty"`
	Solution *types.Solution         `json:"solution,omitempty"`
	Debug    *types.DebugResult      `json:"debug,omitempty"`
}

// Result is the single message emitted for one stage-transition attempt.
type Result struct {
	Type      ResultType       `json:"type"`
	SessionID string           `json:"session_id"`
	Seq       uint64           `json:"seq"`
	Stage     types.Transition `json:"stage"`
	Artifact  *Artifact        `json:"artifact,omitempty"`
	Error     *StageError      `json:"error,omitempty"`
}

// Succeeded builds a success result. Seq is filled in by the Dispatcher.
func Succeeded(stage types.Transition, art Artifact) Result {
	return Result{Type: StageSucceeded, Stage: stage, Artifact: &art}
}

// Failed builds a failure result. Seq is filled in by the Dispatcher.
func Failed(stage types.Transition, se StageError) Result {
	return Result{Type: StageFailed, Stage: stage, Error: &se}
}

// Validate checks the tagged-union shape of r.
func (r Result) Validate() error {
	switch r.Type {
	case StageSucceeded:
		if r.Artifact == nil || r.Error != nil {
			return fmt.Errorf("dispatch: %s must carry an artifact and no error", r.Type)
		}
		n := 0
		for _, set := range []bool{r.Artifact.Problem != nil, r.Artifact.Solution != nil, r.Artifact.Debug != nil} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("dispatch: artifact must hold exactly one value, has %d", n)
		}
	case StageFailed:
		if r.Error == nil || r.Artifact != nil {
			return fmt.Errorf("dispatch: %s must carry an error and no artifact", r.Type)
		}
	default:
		return fmt.Errorf("dispatch: unknown result type %q", r.Type)
	}
	return nil
}

// Encode marshals a message for the wire.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeCommand parses and validates an inbound command.
func DecodeCommand(b []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(b, &c); err != nil {
		return Command{}, fmt.Errorf("dispatch: decode command: %w", err)
	}
	c.Type = CommandType(strings.ToLower(strings.TrimSpace(string(c.Type))))
	switch c.Type {
	case CommandNewSession, CommandCapture, CommandExtract, CommandSolve, CommandDebug, CommandReset:
	case "":
		return Command{}, fmt.Errorf("dispatch: command type is required")
	default:
		return Command{}, fmt.Errorf("dispatch: unsupported command type %q", c.Type)
	}
	c.SessionID = strings.TrimSpace(c.SessionID)
	return c, nil
}

// DecodeResult parses and validates a result message.
func DecodeResult(b []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return Result{}, fmt.Errorf("dispatch: decode result: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Result{}, err
	}
	return r, nil
}
