package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"snapsolve/internal/types"
)

const auditTimeout = 10 * time.Second

// sessionRecord is written once per session. It never holds the credential.
type sessionRecord struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

func screenshotPath(s types.Screenshot) string {
	ext := "png"
	if _, sub, ok := strings.Cut(s.MIMEType, "/"); ok && sub != "" {
		ext = sub
	}
	return path.Join("screenshots", fmt.Sprintf("%04d.%s", s.Index, ext))
}

func (o *Orchestrator) auditJSON(sessionID, p string, v any) {
	if o.audit == nil {
		return
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		o.logger.Printf("pipeline: audit encode %s/%s: %v", sessionID, p, err)
		return
	}
	o.auditBlob(sessionID, p, b)
}

// auditBlob writes in the background. Failures are logged and never reach the caller.
func (o *Orchestrator) auditBlob(sessionID, p string, b []byte) {
	if o.audit == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := o.audit.Put(ctx, sessionID, p, b); err != nil {
			o.logger.Printf("pipeline: audit write %s/%s: %v", sessionID, p, err)
		}
	}()
}
