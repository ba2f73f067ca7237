// Package encode streams raw RGBA frames into an ffmpeg subprocess.
package encode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"rsoreplay/internal/errs"
)

const (
	defaultStderrLimit = 64 << 10
	defaultWaitDelay   = 5 * time.Second
)

// FrameSource yields frames by index. Frame may reuse one buffer between
// calls; the encoder is done with a frame before asking for the next.
type FrameSource interface {
	Len() int
	Frame(i int) (*image.RGBA, error)
}

type Params struct {
	FPS    int
	Width  int
	Height int
	// Output is the final container path. It only appears once the encoder
	// exits cleanly.
	Output string
}

func (p Params) Validate() error {
	if p.FPS <= 0 {
		return errs.Invalid("fps must be positive, got %d", p.FPS)
	}
	if p.Width <= 0 || p.Height <= 0 || p.Width%2 != 0 || p.Height%2 != 0 {
		return errs.Invalid("frame size must be positive and even, got %dx%d", p.Width, p.Height)
	}
	if p.Output == "" {
		return errs.Invalid("output path is required")
	}
	return nil
}

type Encoder struct {
	Binary string
	// BuildArgs overrides the ffmpeg command line. target is the path the
	// subprocess must write.
	BuildArgs   func(p Params, target string) []string
	StderrLimit int
	WaitDelay   time.Duration
	Logger      *slog.Logger
}

func New(binary string, logger *slog.Logger) *Encoder {
	return &Encoder{Binary: binary, Logger: logger}
}

// DefaultArgs reads rawvideo RGBA from stdin and writes fragmented H.264 MP4.
func DefaultArgs(p Params, target string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(p.Width) + "x" + strconv.Itoa(p.Height),
		"-framerate", strconv.Itoa(p.FPS),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "medium",
		"-crf", "23",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		target,
	}
}

// Encode writes every frame of src to the encoder one at a time, flushing
// after each so at most one frame is buffered in this process. The output is
// written to p.Output+".part" and renamed into place after a zero exit. On
// any failure, including cancellation of ctx, the subprocess is killed and
// the partial file removed.
func (e *Encoder) Encode(ctx context.Context, src FrameSource, p Params) (err error) {
	if err := p.Validate(); err != nil {
		return err
	}
	if src == nil || src.Len() == 0 {
		return errs.Invalid("no frames to encode")
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	binary := e.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	buildArgs := e.BuildArgs
	if buildArgs == nil {
		buildArgs = DefaultArgs
	}
	limit := e.StderrLimit
	if limit <= 0 {
		limit = defaultStderrLimit
	}

	part := p.Output + ".part"
	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.Remove(part); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("removing partial output failed", "path", part, "error", rmErr)
		}
	}()

	cmd := exec.CommandContext(ctx, binary, buildArgs(p, part)...)
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}
	stderr := &tailBuffer{limit: limit}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: encoder stdin: %w", errs.ErrIO, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: starting %s: %w", errs.ErrIO, binary, err)
	}

	started := time.Now()
	writeErr := e.writeFrames(ctx, stdin, src, p)
	if writeErr != nil {
		// The caller gave up or the pipe broke; make sure the process is
		// not left blocked on a half-written frame.
		if cmd.Process != nil && !errors.Is(writeErr, errBrokenPipe) {
			_ = cmd.Process.Kill()
		}
	}
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("encoding canceled: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && (writeErr == nil || errors.Is(writeErr, errBrokenPipe)) {
		return &errs.EncoderError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	if writeErr != nil {
		return writeErr
	}
	if waitErr != nil {
		return fmt.Errorf("%w: waiting for encoder: %w", errs.ErrIO, waitErr)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return fmt.Errorf("%w: closing encoder stdin: %w", errs.ErrIO, closeErr)
	}

	if err := os.Rename(part, p.Output); err != nil {
		return fmt.Errorf("%w: finalizing output: %w", errs.ErrIO, err)
	}
	logger.Info("encoded replay", "frames", src.Len(), "fps", p.FPS, "output", p.Output, "elapsed", time.Since(started))
	return nil
}

var errBrokenPipe = fmt.Errorf("%w: encoder stopped reading", errs.ErrEncoderFailure)

func (e *Encoder) writeFrames(ctx context.Context, stdin io.Writer, src FrameSource, p Params) error {
	rowBytes := p.Width * 4
	w := bufio.NewWriterSize(stdin, rowBytes*p.Height)

	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.Frame(i)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if frame == nil || frame.Bounds().Dx() != p.Width || frame.Bounds().Dy() != p.Height {
			return errs.Invalid("frame %d does not match %dx%d", i, p.Width, p.Height)
		}

		if frame.Stride == rowBytes && len(frame.Pix) >= rowBytes*p.Height {
			_, err = w.Write(frame.Pix[:rowBytes*p.Height])
		} else {
			for y := 0; y < p.Height && err == nil; y++ {
				off := y * frame.Stride
				_, err = w.Write(frame.Pix[off : off+rowBytes])
			}
		}
		if err == nil {
			err = w.Flush()
		}
		if err != nil {
			return fmt.Errorf("%w: frame %d: %w", errBrokenPipe, i, err)
		}
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
