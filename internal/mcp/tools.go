package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"rsoreplay/internal/errs"
	"rsoreplay/internal/replay"
	"rsoreplay/internal/snapshot"
)

type ReplayService interface {
	GetStates(ctx context.Context, sessionID string, r snapshot.TimeRange) ([]snapshot.Snapshot, error)
	LatestSequence(ctx context.Context, sessionID string) (int64, error)
	CreateReplay(ctx context.Context, req replay.Request) (*replay.Result, error)
}

type StatusFunc func() StatusOutput

type GetStatesInput struct {
	SessionID string `json:"session_id" jsonschema:"game session id"`
	From      string `json:"from,omitempty" jsonschema:"inclusive RFC 3339 lower bound"`
	To        string `json:"to,omitempty" jsonschema:"inclusive RFC 3339 upper bound"`
}

type LatestSequenceInput struct {
	SessionID string `json:"session_id" jsonschema:"game session id"`
}

type CreateReplayInput struct {
	SessionID string  `json:"session_id" jsonschema:"game session id"`
	FPS       int     `json:"fps,omitempty" jsonschema:"output frame rate, defaults to the configured rate"`
	Speed     float64 `json:"speed,omitempty" jsonschema:"playback speed multiplier, defaults to 1"`
	From      string  `json:"from,omitempty" jsonschema:"inclusive RFC 3339 lower bound"`
	To        string  `json:"to,omitempty" jsonschema:"inclusive RFC 3339 upper bound"`
	Output    string  `json:"output,omitempty" jsonschema:"destination file path"`
}

type GetStatusInput struct{}

type CircleOutput struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

type MovableOutput struct {
	Name   string       `json:"name"`
	Alive  bool         `json:"alive"`
	Circle CircleOutput `json:"circle"`
}

type StaticOutput struct {
	Index  int          `json:"index"`
	Circle CircleOutput `json:"circle"`
}

type SnapshotOutput struct {
	SessionID string          `json:"session_id"`
	Sequence  int64           `json:"sequence"`
	Timestamp string          `json:"timestamp"`
	Movables  []MovableOutput `json:"movables"`
	Statics   []StaticOutput  `json:"statics"`
}

type GetStatesOutput struct {
	States []SnapshotOutput `json:"states"`
}

type LatestSequenceOutput struct {
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"sequence"`
}

type CreateReplayOutput struct {
	Path      string  `json:"path"`
	Snapshots int     `json:"snapshots"`
	Frames    int     `json:"frames"`
	FPS       int     `json:"fps"`
	Seconds   float64 `json:"seconds"`
}

type StatusOutput struct {
	Ingest     string            `json:"ingest"`
	Breakers   map[string]string `json:"breakers"`
	Received   uint64            `json:"received"`
	Appended   uint64            `json:"appended"`
	Ignored    uint64            `json:"ignored"`
	Duplicates uint64            `json:"duplicates"`
	Dropped    uint64            `json:"dropped"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_states",
		Description: "List the logged snapshots of a session, optionally within a time window",
	}, s.handleGetStates)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "latest_sequence",
		Description: "Return the newest sequence number of a session, or -1 when it has none",
	}, s.handleLatestSequence)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_replay",
		Description: "Render a session's snapshots into an MP4 replay",
	}, s.handleCreateReplay)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_status",
		Description: "Report ingestion and circuit breaker state",
	}, s.handleGetStatus)
}

func (s *Server) handleGetStates(ctx context.Context, req *sdk.CallToolRequest, input GetStatesInput) (*sdk.CallToolResult, GetStatesOutput, error) {
	if input.SessionID == "" {
		return nil, GetStatesOutput{}, fmt.Errorf("session_id is required")
	}
	window, err := parseWindow(input.From, input.To)
	if err != nil {
		return nil, GetStatesOutput{}, err
	}
	states, err := s.replay.GetStates(ctx, input.SessionID, window)
	if err != nil {
		return nil, GetStatesOutput{}, toolError(err)
	}

	output := make([]SnapshotOutput, 0, len(states))
	for _, state := range states {
		output = append(output, snapshotOutput(state))
	}
	return nil, GetStatesOutput{States: output}, nil
}

func (s *Server) handleLatestSequence(ctx context.Context, req *sdk.CallToolRequest, input LatestSequenceInput) (*sdk.CallToolResult, LatestSequenceOutput, error) {
	if input.SessionID == "" {
		return nil, LatestSequenceOutput{}, fmt.Errorf("session_id is required")
	}
	seq, err := s.replay.LatestSequence(ctx, input.SessionID)
	if err != nil {
		return nil, LatestSequenceOutput{}, toolError(err)
	}
	return nil, LatestSequenceOutput{SessionID: input.SessionID, Sequence: seq}, nil
}

func (s *Server) handleCreateReplay(ctx context.Context, req *sdk.CallToolRequest, input CreateReplayInput) (*sdk.CallToolResult, CreateReplayOutput, error) {
	if input.SessionID == "" {
		return nil, CreateReplayOutput{}, fmt.Errorf("session_id is required")
	}
	window, err := parseWindow(input.From, input.To)
	if err != nil {
		return nil, CreateReplayOutput{}, err
	}
	speed := input.Speed
	if speed == 0 {
		speed = 1
	}

	result, err := s.replay.CreateReplay(ctx, replay.Request{
		SessionID: input.SessionID,
		FPS:       input.FPS,
		Speed:     speed,
		From:      window.From,
		To:        window.To,
		Output:    input.Output,
	})
	if err != nil {
		return nil, CreateReplayOutput{}, toolError(err)
	}
	return nil, CreateReplayOutput{
		Path:      result.Path,
		Snapshots: result.Snapshots,
		Frames:    result.Frames,
		FPS:       result.FPS,
		Seconds:   result.Duration.Seconds(),
	}, nil
}

func (s *Server) handleGetStatus(ctx context.Context, req *sdk.CallToolRequest, input GetStatusInput) (*sdk.CallToolResult, StatusOutput, error) {
	if s.status == nil {
		return nil, StatusOutput{Ingest: "disabled", Breakers: map[string]string{}}, nil
	}
	return nil, s.status(), nil
}

// toolError prefixes err with its taxonomy code so clients can tell a missing
// session from a transient outage.
func toolError(err error) error {
	return fmt.Errorf("%s: %w", errs.Code(err), err)
}

func parseWindow(from, to string) (snapshot.TimeRange, error) {
	var window snapshot.TimeRange
	if strings.TrimSpace(from) != "" {
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(from))
		if err != nil {
			return window, fmt.Errorf("invalid from: %w", err)
		}
		window.From = &ts
	}
	if strings.TrimSpace(to) != "" {
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(to))
		if err != nil {
			return window, fmt.Errorf("invalid to: %w", err)
		}
		window.To = &ts
	}
	if err := window.Validate(); err != nil {
		return window, err
	}
	return window, nil
}

func snapshotOutput(s snapshot.Snapshot) SnapshotOutput {
	out := SnapshotOutput{
		SessionID: s.SessionID,
		Sequence:  s.Sequence,
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339Nano),
		Movables:  make([]MovableOutput, 0, len(s.Entities.Movables)),
		Statics:   make([]StaticOutput, 0, len(s.Entities.Statics)),
	}
	for _, m := range s.Entities.Movables {
		out.Movables = append(out.Movables, MovableOutput{Name: m.Name, Alive: m.Alive, Circle: circleOutput(m.Circle)})
	}
	for _, st := range s.Entities.Statics {
		out.Statics = append(out.Statics, StaticOutput{Index: st.Index, Circle: circleOutput(st.Circle)})
	}
	return out
}

func circleOutput(c snapshot.Circle) CircleOutput {
	return CircleOutput{X: c.X, Y: c.Y, Radius: c.Radius}
}
