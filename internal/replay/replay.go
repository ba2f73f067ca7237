// Package replay is the outbound service: state listing and video synthesis
// for one session.
package replay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rsoreplay/internal/encode"
	"rsoreplay/internal/errs"
	"rsoreplay/internal/interpolate"
	"rsoreplay/internal/projector"
	"rsoreplay/internal/render"
	"rsoreplay/internal/snapshot"
)

// Store is the read side of the snapshot log.
type Store interface {
	projector.Querier
	LatestSequence(ctx context.Context, sessionID string) (int64, error)
}

type VideoEncoder interface {
	Encode(ctx context.Context, src encode.FrameSource, p encode.Params) error
}

type Settings struct {
	SourceFPS  int
	DefaultFPS int
	Width      int
	Height     int
	TempDir    string
}

type Request struct {
	SessionID string
	// FPS of the output. Zero selects the configured default.
	FPS   int
	Speed float64
	From  *time.Time
	To    *time.Time
	// Output is the destination file. Empty places the video in a fresh
	// directory under the temp dir.
	Output string
}

type Result struct {
	Path      string
	Snapshots int
	Frames    int
	FPS       int
	Duration  time.Duration
}

type Service struct {
	store     Store
	projector *projector.Projector
	renderer  *render.Renderer
	encoder   VideoEncoder
	settings  Settings
	logger    *slog.Logger
}

func NewService(store Store, renderer *render.Renderer, encoder VideoEncoder, settings Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		projector: projector.New(store),
		renderer:  renderer,
		encoder:   encoder,
		settings:  settings,
		logger:    logger.With("component", "replay"),
	}
}

func (s *Service) GetStates(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errs.Invalid("session id is required")
	}
	return s.projector.GetStates(ctx, sessionID, r)
}

func (s *Service) LatestSequence(ctx context.Context, sessionID string) (int64, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, errs.Invalid("session id is required")
	}
	return s.store.LatestSequence(ctx, sessionID)
}

// CreateReplay renders the session's snapshots inside the requested window
// into a video. Arguments are checked before the log is read; a window with
// no snapshots fails with errs.ErrNotFound.
func (s *Service) CreateReplay(ctx context.Context, req Request) (_ *Result, err error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, errs.Invalid("session id is required")
	}
	fps := req.FPS
	if fps == 0 {
		fps = s.settings.DefaultFPS
	}
	if fps <= 0 {
		return nil, errs.Invalid("fps must be positive, got %d", req.FPS)
	}
	params := interpolate.Params{
		SourceFPS: float64(s.settings.SourceFPS),
		TargetFPS: float64(fps),
		Speed:     req.Speed,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	window := snapshot.TimeRange{From: req.From, To: req.To}
	if err := window.Validate(); err != nil {
		return nil, errs.Invalid("%v", err)
	}

	states, err := s.projector.GetStates(ctx, req.SessionID, window)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: session %s has no snapshots in range", errs.ErrNotFound, req.SessionID)
	}

	frames, err := interpolate.Expand(states, params)
	if err != nil {
		return nil, err
	}

	output := req.Output
	if output == "" {
		var dir string
		dir, err = s.workDir(req.SessionID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err == nil {
				return
			}
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				s.logger.Warn("removing replay work dir failed", "dir", dir, "error", rmErr)
			}
		}()
		output = filepath.Join(dir, safeName(req.SessionID)+".mp4")
	}

	src := &renderedFrames{renderer: s.renderer, frames: frames}
	if err := s.encoder.Encode(ctx, src, encode.Params{
		FPS:    fps,
		Width:  s.settings.Width,
		Height: s.settings.Height,
		Output: output,
	}); err != nil {
		return nil, fmt.Errorf("encoding replay for %s: %w", req.SessionID, err)
	}

	s.logger.Info("replay created",
		"session_id", req.SessionID,
		"snapshots", len(states),
		"frames", len(frames),
		"fps", fps,
		"speed", req.Speed,
		"output", output,
	)
	return &Result{
		Path:      output,
		Snapshots: len(states),
		Frames:    len(frames),
		FPS:       fps,
		Duration:  time.Duration(float64(len(frames)) / float64(fps) * float64(time.Second)),
	}, nil
}

func (s *Service) workDir(sessionID string) (string, error) {
	base := s.settings.TempDir
	if base == "" {
		base = filepath.Join(os.TempDir(), "rso-replay")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating temp dir: %w", errs.ErrIO, err)
	}
	dir, err := os.MkdirTemp(base, "replay-"+safeName(sessionID)+"-")
	if err != nil {
		return "", fmt.Errorf("%w: creating work dir: %w", errs.ErrIO, err)
	}
	return dir, nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator || r == 0 {
			return '_'
		}
		return r
	}, s)
}

// renderedFrames renders lazily into a single reused buffer.
type renderedFrames struct {
	renderer *render.Renderer
	frames   []snapshot.Snapshot
	buf      *image.RGBA
}

func (f *renderedFrames) Len() int {
	return len(f.frames)
}

func (f *renderedFrames) Frame(i int) (*image.RGBA, error) {
	if i < 0 || i >= len(f.frames) {
		return nil, errors.New("frame index out of range")
	}
	if f.buf == nil {
		f.buf = image.NewRGBA(f.renderer.Bounds())
	}
	f.renderer.RenderInto(f.buf, f.frames[i])
	return f.buf, nil
}
