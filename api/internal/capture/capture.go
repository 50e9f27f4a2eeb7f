package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrCapture wraps every failure of the grab or compression step.
var ErrCapture = errors.New("capture failed")

// Artifact is one screenshot written to the transient capture directory.
type Artifact struct {
	Path       string
	CapturedAt time.Time
}

// Release deletes the file. A file that is already gone counts as released.
func (a Artifact) Release() error {
	if a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Grabber is the screen-capture primitive. It returns an encoded image
// (PNG or JPEG).
type Grabber interface {
	Grab(ctx context.Context) ([]byte, error)
}

// CommandGrabber runs an external tool that prints the screenshot to stdout,
// e.g. `import -window root png:-` or `grim -`.
type CommandGrabber struct {
	Args []string
}

func (g CommandGrabber) Grab(ctx context.Context) ([]byte, error) {
	if len(g.Args) == 0 {
		return nil, errors.New("capture command is empty")
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.Args[0], g.Args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", g.Args[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s: empty output", g.Args[0])
	}
	return stdout.Bytes(), nil
}

type Options struct {
	Dir      string
	Quality  int
	MaxWidth int
	Now      func() time.Time
}

// Adapter turns one grab into one compressed JPEG file.
type Adapter struct {
	grabber  Grabber
	dir      string
	quality  int
	maxWidth int
	now      func() time.Time
}

func New(g Grabber, opt Options) *Adapter {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Quality <= 0 || opt.Quality > 100 {
		opt.Quality = 85
	}
	return &Adapter{
		grabber:  g,
		dir:      opt.Dir,
		quality:  opt.Quality,
		maxWidth: opt.MaxWidth,
		now:      opt.Now,
	}
}

// Capture grabs the screen, re-encodes it and writes it under a unique name.
// There is no retry; the caller decides.
func (a *Adapter) Capture(ctx context.Context) (Artifact, error) {
	raw, err := a.grabber.Grab(ctx)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: grab: %v", ErrCapture, err)
	}
	jpg, err := compress(raw, a.quality, a.maxWidth)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: compress: %v", ErrCapture, err)
	}
	if err := os.MkdirAll(a.dir, 0o700); err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	ts := a.now()
	path := filepath.Join(a.dir, fileName(ts))
	if err := os.WriteFile(path, jpg, 0o600); err != nil {
		return Artifact{}, fmt.Errorf("%w: write: %v", ErrCapture, err)
	}
	return Artifact{Path: path, CapturedAt: ts}, nil
}

// timestamp first so files sort by capture time; the uuid suffix keeps
// concurrent captures in the same microsecond apart.
func fileName(ts time.Time) string {
	return fmt.Sprintf("shot-%s-%s.jpg", ts.UTC().Format("20060102-150405.000000"), uuid.NewString()[:8])
}
