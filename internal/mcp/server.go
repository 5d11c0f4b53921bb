package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"hostpilot/internal/models"
)

type Monitor interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
	Interval() time.Duration
	Snapshot(ctx context.Context) models.MetricsSnapshot
	Alerts() []models.AlertEvent
	ClearAlerts()
}

type Executor interface {
	Wake(ctx context.Context, target string) models.RemoteOperation
	Shutdown(ctx context.Context) models.RemoteOperation
	Restart(ctx context.Context) models.RemoteOperation
	ScheduleShutdown(ctx context.Context, delayMinutes int) models.RemoteOperation
	CancelScheduledShutdown(ctx context.Context) models.RemoteOperation
	Ping(ctx context.Context, target string) models.RemoteOperation
}

// Store is the operation history and target table.
type Store interface {
	Recent(ctx context.Context, limit int) ([]models.RemoteOperation, error)
	RecentForTarget(ctx context.Context, target string, limit int) ([]models.RemoteOperation, error)
	ListTargets(ctx context.Context) ([]models.RemoteTarget, error)
	AddTarget(ctx context.Context, t models.RemoteTarget) error
	RemoveTarget(ctx context.Context, name string) error
}

type Server struct {
	info     Implementation
	monitor  Monitor
	executor Executor
	store    Store
	log      *slog.Logger
	tools    map[string]tool
	order    []string
}

func NewServer(info Implementation, monitor Monitor, executor Executor, store Store, logger *slog.Logger) *Server {
	s := &Server{
		info:     info,
		monitor:  monitor,
		executor: executor,
		store:    store,
		log:      logger,
		tools:    map[string]tool{},
	}
	s.registerTools()
	return s
}

// HandleMessage decodes one JSON-RPC message and returns the encoded
// response, or nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, body []byte) []byte {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return encode(errorResponse(json.RawMessage("null"), CodeParseError, "parse error"))
	}
	resp := s.Handle(ctx, req)
	if resp == nil {
		return nil
	}
	return encode(*resp)
}

func (s *Server) Handle(ctx context.Context, req Request) *Response {
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		r := errorResponse(req.ID, CodeInvalidRequest, "invalid request")
		return &r
	}
	if req.IsNotification() {
		s.log.Debug("notification", "method", req.Method)
		return nil
	}

	var (
		result any
		rpcErr *Error
	)
	switch req.Method {
	case "initialize":
		result, rpcErr = s.initialize(req.Params)
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, rpcErr = s.callTool(ctx, req.Params)
	default:
		rpcErr = &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
	if rpcErr != nil {
		r := errorResponse(req.ID, rpcErr.Code, rpcErr.Message)
		return &r
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.log.Error("encode result failed", "method", req.Method, "err", err)
		r := errorResponse(req.ID, CodeInternalError, "internal error")
		return &r
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Result: raw}
}

func (s *Server) initialize(params json.RawMessage) (InitializeResult, *Error) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return InitializeResult{}, &Error{Code: CodeInvalidParams, Message: "invalid initialize params"}
		}
	}
	version := LatestProtocolVersion
	for _, v := range supportedProtocolVersions {
		if v == p.ProtocolVersion {
			version = v
			break
		}
	}
	s.log.Info("client initialized", "client", p.ClientInfo.Name, "client_version", p.ClientInfo.Version, "protocol", version)
	return InitializeResult{
		ProtocolVersion: version,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
		ServerInfo:   s.info,
		Instructions: "Monitor this machine, inspect alerts and run power actions on registered targets.",
	}, nil
}

func (s *Server) listTools() ToolsListResult {
	out := ToolsListResult{Tools: make([]Tool, 0, len(s.order))}
	for _, name := range s.order {
		out.Tools = append(out.Tools, s.tools[name].def)
	}
	return out
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (ToolsCallResult, *Error) {
	var p ToolsCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return ToolsCallResult{}, &Error{Code: CodeInvalidParams, Message: "invalid tools/call params"}
	}
	t, ok := s.tools[p.Name]
	if !ok {
		return ToolsCallResult{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool: %s", p.Name)}
	}
	args := arguments(p.Arguments)
	res, err := t.call(ctx, args)
	if err != nil {
		s.log.Warn("tool call failed", "tool", p.Name, "err", err)
		return toolError(err), nil
	}
	s.log.Debug("tool call", "tool", p.Name, "is_error", res.IsError)
	return res, nil
}

func errorResponse(id json.RawMessage, code int, msg string) Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return Response{JSONRPC: JSONRPCVersion, ID: id, Error: &Error{Code: code, Message: msg}}
}

func encode(r Response) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return b
}
