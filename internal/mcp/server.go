package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type Server struct {
	replay ReplayService
	status StatusFunc
	mcp    *sdk.Server
}

// NewServer exposes svc as MCP tools. status may be nil when no ingestion
// connector runs in this process.
func NewServer(svc ReplayService, status StatusFunc, version string) *Server {
	s := &Server{
		replay: svc,
		status: status,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "rsoreplay",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
