// Package capture provides screenshot sources for the pipeline.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNoImage is returned when a source has nothing new to hand out.
var ErrNoImage = errors.New("capture: no new image")

// Image is a captured screenshot before the pipeline assigns it an index.
type Image struct {
	MIMEType   string
	Data       []byte
	CapturedAt time.Time
}

// Source acquires one screenshot.
type Source interface {
	Capture(ctx context.Context) (Image, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Image, error)

func (f SourceFunc) Capture(ctx context.Context) (Image, error) { return f(ctx) }

// Placeholder returns a solid 10x10 PNG on every call.
type Placeholder struct {
	Color color.Color
}

func (p Placeholder) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	c := p.Color
	if c == nil {
		c = color.White
	}
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("capture: encode placeholder: %w", err)
	}
	return Image{MIMEType: "image/png", Data: buf.Bytes(), CapturedAt: time.Now()}, nil
}

// Files hands out image files matching Pattern, newest first, each at most once.
// It suits setups where an external tool drops screenshots into a directory.
// Matches that resolve outside the pattern's directory are skipped.
type Files struct {
	Pattern string

	mu   sync.Mutex
	dir  *dropDir
	seen map[string]struct{}
}

func NewFiles(pattern string) *Files {
	return &Files{Pattern: pattern, seen: map[string]struct{}{}}
}

func (f *Files) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	matches, err := filepath.Glob(f.Pattern)
	if err != nil {
		return Image{}, fmt.Errorf("capture: bad pattern %q: %w", f.Pattern, err)
	}
	type candidate struct {
		path string
		mod  time.Time
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]struct{}{}
	}
	if f.dir == nil {
		dir, err := openDropDir(filepath.Dir(f.Pattern))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Image{}, ErrNoImage
			}
			return Image{}, err
		}
		f.dir = dir
	}
	var cands []candidate
	for _, m := range matches {
		if _, ok := f.seen[m]; ok {
			continue
		}
		info, _, err := f.dir.stat(m)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{path: m, mod: info.ModTime()})
	}
	if len(cands) == 0 {
		return Image{}, ErrNoImage
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].mod.Equal(cands[j].mod) {
			return cands[i].path > cands[j].path
		}
		return cands[i].mod.After(cands[j].mod)
	})
	pick := cands[0]
	data, err := f.dir.readFile(pick.path)
	if err != nil {
		return Image{}, fmt.Errorf("capture: read %s: %w", pick.path, err)
	}
	f.seen[pick.path] = struct{}{}
	return Image{MIMEType: DetectMIME(data), Data: data, CapturedAt: pick.mod}, nil
}

// ReadFile loads a single image from disk.
func ReadFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("capture: read %s: %w", path, err)
	}
	captured := time.Now()
	if info, err := os.Stat(path); err == nil {
		captured = info.ModTime()
	}
	return Image{MIMEType: DetectMIME(data), Data: data, CapturedAt: captured}, nil
}

// DetectMIME sniffs the payload and falls back to image/png for unknown content.
func DetectMIME(data []byte) string {
	m := http.DetectContentType(data)
	if strings.HasPrefix(m, "image/") {
		return m
	}
	return "image/png"
}
