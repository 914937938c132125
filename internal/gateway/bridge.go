// Package gateway exposes the pipeline to the UI process over HTTP and websocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"snapsolve/internal/capture"
	"snapsolve/internal/dispatch"
	"snapsolve/internal/pipeline"
)

// Orchestrator is the command surface the bridge drives.
type Orchestrator interface {
	NewSession(ctx context.Context) (pipeline.Snapshot, error)
	Capture(ctx context.Context, sessionID string) (pipeline.Snapshot, error)
	AddScreenshot(ctx context.Context, sessionID string, img capture.Image) (pipeline.Snapshot, error)
	Extract(ctx context.Context, sessionID string) (pipeline.Snapshot, error)
	Solve(ctx context.Context, sessionID, language string) (pipeline.Snapshot, error)
	Debug(ctx context.Context, sessionID string) (pipeline.Snapshot, error)
	Reset(ctx context.Context, sessionID string) (pipeline.Snapshot, error)
	Snapshot(sessionID string) (pipeline.Snapshot, error)
}

// Results is the stream of stage results the bridge forwards.
type Results interface {
	Subscribe(ctx context.Context) <-chan dispatch.Result
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	// maxMessageBytes bounds inbound commands; screenshots arrive inline.
	maxMessageBytes = 16 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Reply answers a single command. Stage outcomes arrive separately as dispatch.Result.
type Reply struct {
	Type    string               `json:"type"`
	ID      string               `json:"id,omitempty"`
	Command dispatch.CommandType `json:"command,omitempty"`
	Session *pipeline.Snapshot   `json:"session,omitempty"`
	Error   *dispatch.StageError `json:"error,omitempty"`
}

const (
	ReplyAck   = "ack"
	ReplyError = "error"
)

type Bridge struct {
	orch    Orchestrator
	results Results
	logger  *log.Logger
}

func NewBridge(orch Orchestrator, results Results, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{orch: orch, results: results, logger: logger}
}

// ServeWS upgrades the request and serves commands until the peer disconnects.
func (b *Bridge) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	if err := b.serve(r.Context(), conn); err != nil && !isClosure(err) {
		b.logger.Printf("gateway ws: %v", err)
	}
}

func (b *Bridge) serve(parent context.Context, conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	g, ctx := errgroup.WithContext(parent)
	results := b.results.Subscribe(ctx)
	replies := make(chan Reply, 16)

	g.Go(func() error {
		// Closing the connection is what unblocks the reader.
		defer conn.Close()
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			var out any
			select {
			case <-ctx.Done():
				return nil
			case rep := <-replies:
				out = rep
			case res, ok := <-results:
				if !ok {
					return nil
				}
				out = res
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return err
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return err
				}
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return err
			}
			if err := conn.WriteJSON(out); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			rep := b.handle(ctx, raw)
			select {
			case replies <- rep:
			case <-ctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

func (b *Bridge) handle(ctx context.Context, raw []byte) Reply {
	cmd, err := dispatch.DecodeCommand(raw)
	if err != nil {
		var probe struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(raw, &probe)
		return Reply{Type: ReplyError, ID: probe.ID, Error: &dispatch.StageError{Kind: dispatch.KindInvalidInput, Message: err.Error()}}
	}

	snap, err := b.execute(ctx, cmd)
	if err != nil {
		se := pipeline.Describe(err)
		return Reply{Type: ReplyError, ID: cmd.ID, Command: cmd.Type, Error: &se}
	}
	return Reply{Type: ReplyAck, ID: cmd.ID, Command: cmd.Type, Session: &snap}
}

func (b *Bridge) execute(ctx context.Context, cmd dispatch.Command) (pipeline.Snapshot, error) {
	switch cmd.Type {
	case dispatch.CommandNewSession:
		return b.orch.NewSession(ctx)
	case dispatch.CommandCapture:
		if cmd.Image != nil {
			return b.orch.AddScreenshot(ctx, cmd.SessionID, capture.Image{
				MIMEType:   cmd.Image.MIMEType,
				Data:       cmd.Image.Data,
				CapturedAt: time.Now(),
			})
		}
		return b.orch.Capture(ctx, cmd.SessionID)
	case dispatch.CommandExtract:
		return b.orch.Extract(ctx, cmd.SessionID)
	case dispatch.CommandSolve:
		return b.orch.Solve(ctx, cmd.SessionID, cmd.Language)
	case dispatch.CommandDebug:
		return b.orch.Debug(ctx, cmd.SessionID)
	case dispatch.CommandReset:
		return b.orch.Reset(ctx, cmd.SessionID)
	default:
		return pipeline.Snapshot{}, errors.New("unsupported command " + string(cmd.Type))
	}
}

func isClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, context.Canceled)
}
