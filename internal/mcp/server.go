// ABOUTME: MCP server setup for the health query path.
// ABOUTME: Wraps the MCP server around a query Service and the source export document.
package mcp

import (
	"context"

	"github.com/harperreed/healthx/internal/service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Server wraps the MCP server with query access and direct reads of the export.
type Server struct {
	mcpServer *mcp.Server
	svc       *service.Service
	source    string
	log       *zap.Logger
}

// NewServer creates a new MCP server answering queries through svc and
// XML tools from the export document at source.
func NewServer(svc *service.Service, source string, log *zap.Logger, version string) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "healthx",
			Version: version,
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		svc:       svc,
		source:    source,
		log:       log,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("mcp server listening on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
