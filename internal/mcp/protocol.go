package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/colintoh/clicky-mcp/internal/session"
	"github.com/colintoh/clicky-mcp/internal/tools"
)

// JSONRPCVersion is the only accepted "jsonrpc" member value.
const JSONRPCVersion = "2.0"

// LatestProtocolVersion is answered to clients asking for a version we do not know.
const LatestProtocolVersion = "2025-06-18"

var supportedProtocolVersions = map[string]bool{
	"2024-11-05":          true,
	"2025-03-26":          true,
	LatestProtocolVersion: true,
}

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Methods
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

var nullID = json.RawMessage("null")

// Request is an incoming JSON-RPC request or notification
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the sender expects no response
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is an outgoing JSON-RPC response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func newResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func newError(id json.RawMessage, code int, message string) *Response {
	if len(id) == 0 {
		id = nullID
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: &Error{Code: code, Message: message}}
}

// ParseRequest decodes one message. On failure it returns the error
// response to send back instead.
func ParseRequest(raw []byte) (*Request, *Response) {
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return nil, newError(nil, CodeParseError, "Parse error")
	}
	if len(raw) > 0 && raw[0] == '[' {
		return nil, newError(nil, CodeInvalidRequest, "Batch requests are not supported")
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, newError(nil, CodeInvalidRequest, "Invalid Request")
	}
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		return nil, newError(req.ID, CodeInvalidRequest, "Invalid Request")
	}
	return &req, nil
}

// Implementation names a protocol peer
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is sent by the client on connect
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      session.ClientInfo `json:"clientInfo"`
	Capabilities    json.RawMessage    `json:"capabilities,omitempty"`
}

// ToolsCapability advertises the tool surface
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities lists what the server supports
type ServerCapabilities struct {
	Tools ToolsCapability `json:"tools"`
}

// InitializeResult answers initialize
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

// ListToolsResult answers tools/list
type ListToolsResult struct {
	Tools []tools.Descriptor `json:"tools"`
}

// CallToolParams is the tools/call payload
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
