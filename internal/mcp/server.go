/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "nldb-query"
	ServerVersion   = "0.1.0"
)

// serverInstructions is sent to clients on initialize
const serverInstructions = "Ask questions about the configured databases in plain English with analyze_and_execute. " +
	"Use explain_query to see the SQL without running it, and get_schema to see what can be asked."

// ToolProvider is an interface for listing and executing tools
type ToolProvider interface {
	List() []Tool
	Execute(ctx context.Context, name string, args map[string]interface{}) (ToolResponse, error)
}

// ResourceProvider is an interface for listing and reading resources
type ResourceProvider interface {
	List() []Resource
	Read(ctx context.Context, uri string) (ResourceContent, error)
}

// Server handles MCP protocol communication over a line-delimited stream
type Server struct {
	tools     ToolProvider
	resources ResourceProvider

	in  io.Reader
	out io.Writer
	mu  sync.Mutex // serialises writes to out
}

// NewServer creates a new MCP server reading stdin and writing stdout
func NewServer(tools ToolProvider) *Server {
	return &Server{
		tools: tools,
		in:    os.Stdin,
		out:   os.Stdout,
	}
}

// SetResourceProvider sets the resource provider for the server
func (s *Server) SetResourceProvider(resources ResourceProvider) {
	s.resources = resources
}

// SetIO replaces the protocol streams
func (s *Server) SetIO(in io.Reader, out io.Writer) {
	s.in = in
	s.out = out
}

// Run serves requests until the input is closed or ctx is cancelled.
// Requests are handled one at a time in arrival order.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, ScannerInitialBufferSize), ScannerMaxBufferSize)

	logging.Info("mcp_server_started", "protocol", ProtocolVersion, "version", ServerVersion)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError(nil, CodeParseError, "Parse error", err.Error())
			continue
		}

		s.handleRequest(ctx, req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	logging.Info("mcp_server_stopped")
	return nil
}

func (s *Server) handleRequest(ctx context.Context, req JSONRPCRequest) {
	if req.JSONRPC != "2.0" {
		if !req.IsNotification() {
			s.sendError(req.ID, CodeInvalidRequest, "Invalid Request", "jsonrpc must be \"2.0\"")
		}
		return
	}

	logging.Debug("mcp_request", "method", req.Method)

	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "notifications/initialized", "notifications/cancelled":
		// Client notification - no response needed
	case "ping":
		s.sendResponse(req.ID, map[string]interface{}{})
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolCall(ctx, req)
	case "resources/list":
		s.handleResourcesList(req)
	case "resources/read":
		s.handleResourceRead(ctx, req)
	default:
		if !req.IsNotification() {
			s.sendError(req.ID, CodeMethodNotFound, "Method not found", req.Method)
		}
	}
}

// decodeParams re-decodes the generic params value into v
func decodeParams(params interface{}, v interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Server) handleInitialize(req JSONRPCRequest) {
	var params InitializeParams
	if err := decodeParams(req.Params, &params); err != nil {
		s.sendError(req.ID, CodeInvalidParams, "Invalid params", err.Error())
		return
	}

	// Accept the client's protocol version for compatibility
	protocolVersion := params.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = ProtocolVersion
	}

	capabilities := ServerCapabilities{Tools: &Capability{}}
	if s.resources != nil {
		capabilities.Resources = &Capability{}
	}

	logging.Info("mcp_client_initialized", "client", params.ClientInfo.Name, "client_version", params.ClientInfo.Version)

	s.sendResponse(req.ID, InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    capabilities,
		ServerInfo: Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		Instructions: serverInstructions,
	})
}

func (s *Server) handleToolsList(req JSONRPCRequest) {
	s.sendResponse(req.ID, ToolsListResult{Tools: s.tools.List()})
}

func (s *Server) handleToolCall(ctx context.Context, req JSONRPCRequest) {
	var params ToolCallParams
	if err := decodeParams(req.Params, &params); err != nil {
		s.sendError(req.ID, CodeInvalidParams, "Invalid params", err.Error())
		return
	}
	if params.Name == "" {
		s.sendError(req.ID, CodeInvalidParams, "Invalid params", "tool name is required")
		return
	}

	response, err := s.tools.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		s.sendError(req.ID, CodeInternalError, "Tool execution error", err.Error())
		return
	}

	s.sendResponse(req.ID, response)
}

func (s *Server) handleResourcesList(req JSONRPCRequest) {
	if s.resources == nil {
		s.sendError(req.ID, CodeMethodNotFound, "Resources not supported", nil)
		return
	}
	s.sendResponse(req.ID, ResourcesListResult{Resources: s.resources.List()})
}

func (s *Server) handleResourceRead(ctx context.Context, req JSONRPCRequest) {
	if s.resources == nil {
		s.sendError(req.ID, CodeMethodNotFound, "Resources not supported", nil)
		return
	}

	var params ResourceReadParams
	if err := decodeParams(req.Params, &params); err != nil {
		s.sendError(req.ID, CodeInvalidParams, "Invalid params", err.Error())
		return
	}
	if params.URI == "" {
		s.sendError(req.ID, CodeInvalidParams, "Invalid params", "uri is required")
		return
	}

	content, err := s.resources.Read(ctx, params.URI)
	if err != nil {
		s.sendError(req.ID, CodeInternalError, "Resource read error", err.Error())
		return
	}

	s.sendResponse(req.ID, content)
}

func (s *Server) sendResponse(id, result interface{}) {
	s.write(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (s *Server) sendError(id interface{}, code int, message string, data interface{}) {
	s.write(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}

func (s *Server) write(resp JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error("mcp_marshal_failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.out, string(data)); err != nil {
		logging.Error("mcp_write_failed", "error", err)
		return
	}
	if f, ok := s.out.(*os.File); ok {
		_ = f.Sync()
	}
}
