package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"rsoreplay/internal/errs"
)

const maxLineBytes = 16 << 20

type Result struct {
	Appended int
	Ignored  int
	Errors   []error
}

// Timeline places loaded snapshots on the recording's own clock: the n-th
// appended snapshot is stamped Start + n/SourceFPS seconds. A zero Start
// means now.
type Timeline struct {
	Start     time.Time
	SourceFPS float64
}

func (tl Timeline) at(n int) time.Time {
	return tl.Start.Add(time.Duration(float64(n) * float64(time.Second) / tl.SourceFPS))
}

// Load appends newline-delimited bus payloads from r to sessionID, the way a
// recorded stream of one session would have arrived over the bus. Every
// accepted line is a tick, identical or not. Per-line failures are collected
// in Result.Errors; only read failures and cancellation abort the run.
func Load(ctx context.Context, seq *Sequencer, sessionID string, r io.Reader, tl Timeline) (*Result, error) {
	if tl.SourceFPS <= 0 {
		return nil, errs.Invalid("source fps must be positive, got %v", tl.SourceFPS)
	}
	if tl.Start.IsZero() {
		tl.Start = seq.now()
	}

	result := &Result{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return result, err
		}
		payload := []byte(strings.TrimSpace(scanner.Text()))
		if len(payload) == 0 {
			continue
		}

		entities, err := Decode(payload)
		if errors.Is(err, ErrIgnored) {
			result.Ignored++
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		_, _, err = seq.AppendAt(ctx, sessionID, entities, tl.at(result.Appended), Digest(payload), false)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		result.Appended++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("reading payloads: %w", err)
	}
	return result, nil
}
