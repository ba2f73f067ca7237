// Package interpolate resamples a session's snapshot log to an output frame
// rate and playback speed.
package interpolate

import (
	"math"
	"time"

	"rsoreplay/internal/errs"
	"rsoreplay/internal/snapshot"
)

type Params struct {
	// SourceFPS is the rate the log was sampled at.
	SourceFPS float64
	TargetFPS float64
	Speed     float64
}

func (p Params) Validate() error {
	if !(p.SourceFPS > 0) || math.IsInf(p.SourceFPS, 0) {
		return errs.Invalid("source fps must be positive, got %v", p.SourceFPS)
	}
	if !(p.TargetFPS > 0) || math.IsInf(p.TargetFPS, 0) {
		return errs.Invalid("target fps must be positive, got %v", p.TargetFPS)
	}
	if !(p.Speed > 0) || math.IsInf(p.Speed, 0) {
		return errs.Invalid("speed must be positive, got %v", p.Speed)
	}
	return nil
}

// FramesBetween is the number of synthesized frames inserted between two
// adjacent snapshots. Zero or less means the output decimates instead.
func (p Params) FramesBetween() int {
	return int(math.RoundToEven((p.TargetFPS/p.Speed)/p.SourceFPS - 1))
}

// Stride is the decimation step used when FramesBetween is not positive.
func (p Params) Stride() int {
	stride := int(math.RoundToEven(p.SourceFPS * p.Speed / p.TargetFPS))
	if stride < 1 {
		return 1
	}
	return stride
}

// Expand returns the frame sequence for states. Fewer than two states are
// returned as is. Otherwise either every Stride-th state is kept, or
// FramesBetween blended frames are inserted after each state but the last.
// The input is never modified.
func Expand(states []snapshot.Snapshot, p Params) ([]snapshot.Snapshot, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for i := 1; i < len(states); i++ {
		if states[i].SessionID != states[0].SessionID {
			return nil, errs.Invalid("snapshots span sessions %q and %q", states[0].SessionID, states[i].SessionID)
		}
	}
	if len(states) < 2 {
		return states, nil
	}

	between := p.FramesBetween()
	if between <= 0 {
		stride := p.Stride()
		out := make([]snapshot.Snapshot, 0, (len(states)+stride-1)/stride)
		for i := 0; i < len(states); i += stride {
			out = append(out, states[i])
		}
		return out, nil
	}

	out := make([]snapshot.Snapshot, 0, len(states)+(len(states)-1)*between)
	for i := 0; i < len(states)-1; i++ {
		current, next := states[i], states[i+1]
		out = append(out, current)
		for frame := 1; frame <= between; frame++ {
			t := float64(frame) / float64(between+1)
			out = append(out, Blend(current, next, t))
		}
	}
	out = append(out, states[len(states)-1])
	return out, nil
}

// Blend builds the frame at fraction t between current and next.
//
// Movables alive on both sides are interpolated linearly. A movable alive on
// only one side is carried unchanged from that side, and one alive on neither
// side is dropped. Order is current's movables first, then those only in next.
// Statics are copied from current.
func Blend(current, next snapshot.Snapshot, t float64) snapshot.Snapshot {
	nextByName := make(map[string]snapshot.Movable, len(next.Entities.Movables))
	for _, m := range next.Entities.Movables {
		nextByName[m.Name] = m
	}

	movables := make([]snapshot.Movable, 0, len(current.Entities.Movables)+len(next.Entities.Movables))
	seen := make(map[string]struct{}, len(current.Entities.Movables))
	for _, cur := range current.Entities.Movables {
		seen[cur.Name] = struct{}{}
		nxt, inNext := nextByName[cur.Name]
		switch {
		case cur.Alive && inNext && nxt.Alive:
			movables = append(movables, snapshot.Movable{
				Name:  cur.Name,
				Alive: true,
				Circle: snapshot.Circle{
					X:      lerp(cur.Circle.X, nxt.Circle.X, t),
					Y:      lerp(cur.Circle.Y, nxt.Circle.Y, t),
					Radius: lerp(cur.Circle.Radius, nxt.Circle.Radius, t),
				},
			})
		case cur.Alive:
			movables = append(movables, cur)
		case inNext && nxt.Alive:
			movables = append(movables, nxt)
		}
	}
	for _, nxt := range next.Entities.Movables {
		if _, ok := seen[nxt.Name]; ok {
			continue
		}
		if nxt.Alive {
			movables = append(movables, nxt)
		}
	}

	statics := make([]snapshot.Static, len(current.Entities.Statics))
	copy(statics, current.Entities.Statics)

	return snapshot.Snapshot{
		SessionID: current.SessionID,
		Sequence:  current.Sequence,
		Timestamp: lerpTime(current.Timestamp, next.Timestamp, t),
		Entities:  snapshot.Entities{Movables: movables, Statics: statics},
	}
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func lerpTime(a, b time.Time, t float64) time.Time {
	return a.Add(time.Duration(t * float64(b.Sub(a))))
}
