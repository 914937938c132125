package capture

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapsolve/internal/tester"
)

func TestPlaceholder_IsTenByTenPNG(t *testing.T) {
	img, err := Placeholder{}.Capture(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, img.MIMEType, "image/png")
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	tester.NoErr(t, err)
	tester.Eq(t, decoded.Bounds().Dx(), 10)
	tester.Eq(t, decoded.Bounds().Dy(), 10)
	tester.Eq(t, DetectMIME(img.Data), "image/png")
}

func TestPlaceholder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Placeholder{}.Capture(ctx)
	tester.ErrIs(t, err, context.Canceled)
}

func TestFiles_NewestUnseenFirst(t *testing.T) {
	dir := t.TempDir()
	shot, err := Placeholder{}.Capture(context.Background())
	tester.NoErr(t, err)

	older := filepath.Join(dir, "a.png")
	newer := filepath.Join(dir, "b.png")
	tester.NoErr(t, os.WriteFile(older, shot.Data, 0o644))
	tester.NoErr(t, os.WriteFile(newer, shot.Data, 0o644))
	now := time.Now()
	tester.NoErr(t, os.Chtimes(older, now.Add(-time.Minute), now.Add(-time.Minute)))
	tester.NoErr(t, os.Chtimes(newer, now, now))

	src := NewFiles(filepath.Join(dir, "*.png"))
	first, err := src.Capture(context.Background())
	tester.NoErr(t, err)

	second, err := src.Capture(context.Background())
	tester.NoErr(t, err)
	tester.True(t, second.CapturedAt.Before(first.CapturedAt), "newest file should be handed out first")

	_, err = src.Capture(context.Background())
	tester.True(t, errors.Is(err, ErrNoImage), "all files consumed")
}

func TestDetectMIME_FallsBack(t *testing.T) {
	tester.Eq(t, DetectMIME([]byte("plain text")), "image/png")
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
	tester.Eq(t, DetectMIME(jpeg), "image/jpeg")
}

func TestFiles_SkipsLinksOutsideDropDir(t *testing.T) {
	outside := t.TempDir()
	dir := t.TempDir()
	shot, err := Placeholder{}.Capture(context.Background())
	tester.NoErr(t, err)

	secret := filepath.Join(outside, "secret.png")
	tester.NoErr(t, os.WriteFile(secret, shot.Data, 0o644))
	if err := os.Symlink(secret, filepath.Join(dir, "link.png")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	src := NewFiles(filepath.Join(dir, "*.png"))
	_, err = src.Capture(context.Background())
	tester.True(t, errors.Is(err, ErrNoImage), "escaping symlink must not be read")

	tester.NoErr(t, os.WriteFile(filepath.Join(dir, "ok.png"), shot.Data, 0o644))
	img, err := src.Capture(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, img.MIMEType, "image/png")
}

func TestFiles_MissingDirectoryHasNothing(t *testing.T) {
	src := NewFiles(filepath.Join(t.TempDir(), "absent", "*.png"))
	_, err := src.Capture(context.Background())
	tester.True(t, errors.Is(err, ErrNoImage), "missing drop dir yields ErrNoImage")
}
