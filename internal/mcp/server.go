// Package mcp implements the Model Context Protocol surface over JSON-RPC 2.0:
// the handshake, tool listing and tool calls, independent of transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/colintoh/clicky-mcp/internal/session"
	"github.com/colintoh/clicky-mcp/internal/tools"
)

// ServerName is reported in serverInfo.
const ServerName = "clicky-mcp"

// Dispatcher runs named operations.
type Dispatcher interface {
	List() []tools.Descriptor
	Call(ctx context.Context, name string, args json.RawMessage) tools.CallResult
}

// Server answers protocol messages for any transport.
type Server struct {
	dispatcher Dispatcher
	version    string
	logger     zerolog.Logger
}

// NewServer creates a protocol server.
func NewServer(dispatcher Dispatcher, version string, logger zerolog.Logger) *Server {
	return &Server{
		dispatcher: dispatcher,
		version:    version,
		logger:     logger.With().Str("component", "mcp").Logger(),
	}
}

// HandleMessage parses and answers one raw message. It returns nil when
// nothing should be sent back.
func (s *Server) HandleMessage(ctx context.Context, sess *session.Session, raw []byte) *Response {
	req, errResp := ParseRequest(raw)
	if errResp != nil {
		s.logger.Warn().Int("code", errResp.Error.Code).Msg("Rejected message")
		return errResp
	}
	return s.Handle(ctx, sess, req)
}

// Handle answers a parsed request. Notifications yield nil.
func (s *Server) Handle(ctx context.Context, sess *session.Session, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("method", req.Method).
				Interface("panic", r).
				Msg("Request handler panicked")
			resp = nil
			if !req.IsNotification() {
				resp = newError(req.ID, CodeInternalError, fmt.Sprintf("Internal error: %v", r))
			}
		}
	}()

	if sess != nil {
		sess.Touch()
	}

	result, rpcErr := s.route(ctx, sess, req)
	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: rpcErr}
	}
	return newResult(req.ID, result)
}

func (s *Server) route(ctx context.Context, sess *session.Session, req *Request) (any, *Error) {
	s.logger.Debug().
		Str("method", req.Method).
		Bool("notification", req.IsNotification()).
		Msg("Handling request")

	switch req.Method {
	case MethodInitialize:
		return s.initialize(sess, req.Params)
	case MethodInitialized:
		if sess != nil {
			sess.MarkInitialized()
		}
		return struct{}{}, nil
	case MethodPing:
		return struct{}{}, nil
	case MethodToolsList:
		return ListToolsResult{Tools: s.dispatcher.List()}, nil
	case MethodToolsCall:
		return s.callTool(ctx, sess, req.Params)
	}

	if req.IsNotification() {
		return nil, nil
	}
	return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
}

func (s *Server) initialize(sess *session.Session, raw json.RawMessage) (any, *Error) {
	var params InitializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "Invalid params: " + err.Error()}
		}
	}

	version := params.ProtocolVersion
	if !supportedProtocolVersions[version] {
		version = LatestProtocolVersion
	}

	if sess != nil {
		sess.SetClient(params.ClientInfo, version)
	}

	s.logger.Info().
		Str("client", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Str("protocol_version", version).
		Msg("Client initialized")

	return InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapabilities{Tools: ToolsCapability{}},
		ServerInfo:      Implementation{Name: ServerName, Version: s.version},
	}, nil
}

func (s *Server) callTool(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, *Error) {
	var params CallToolParams
	if len(raw) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "Invalid params: missing tool name"}
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "Invalid params: " + err.Error()}
	}
	if params.Name == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "Invalid params: missing tool name"}
	}

	result := s.dispatcher.Call(ctx, params.Name, params.Arguments)
	if sess != nil {
		sess.RecordCall(result.IsError)
	}
	return result, nil
}
