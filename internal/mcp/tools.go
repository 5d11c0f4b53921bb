package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"hostpilot/internal/models"
)

const defaultHistoryLimit = 20

type tool struct {
	def  Tool
	call func(ctx context.Context, args arguments) (ToolsCallResult, error)
}

func (s *Server) register(def Tool, call func(ctx context.Context, args arguments) (ToolsCallResult, error)) {
	s.tools[def.Name] = tool{def: def, call: call}
	s.order = append(s.order, def.Name)
}

var (
	noArgs      = json.RawMessage(`{"type":"object","properties":{}}`)
	targetArg   = json.RawMessage(`{"type":"object","properties":{"target":{"type":"string","description":"Registered target name"}},"required":["target"]}`)
	readOnly    = &ToolAnnotations{ReadOnlyHint: true}
	destructive = &ToolAnnotations{DestructiveHint: true}
)

func (s *Server) registerTools() {
	s.register(Tool{
		Name:        "get_system_status",
		Description: "Sample CPU, memory, disk, network and uptime of this machine now.",
		InputSchema: noArgs,
		Annotations: readOnly,
	}, s.getSystemStatus)
	s.register(Tool{
		Name:        "get_alerts",
		Description: "List recorded threshold alerts, newest first.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50}}}`),
		Annotations: readOnly,
	}, s.getAlerts)
	s.register(Tool{
		Name:        "clear_alerts",
		Description: "Discard every recorded alert.",
		InputSchema: noArgs,
		Annotations: &ToolAnnotations{DestructiveHint: true, IdempotentHint: true},
	}, s.clearAlerts)
	s.register(Tool{
		Name:        "start_monitoring",
		Description: "Start periodic sampling and alert evaluation.",
		InputSchema: noArgs,
		Annotations: &ToolAnnotations{IdempotentHint: true},
	}, s.startMonitoring)
	s.register(Tool{
		Name:        "stop_monitoring",
		Description: "Stop periodic sampling.",
		InputSchema: noArgs,
		Annotations: &ToolAnnotations{IdempotentHint: true},
	}, s.stopMonitoring)
	s.register(Tool{
		Name:        "list_targets",
		Description: "List machines registered for remote actions.",
		InputSchema: noArgs,
		Annotations: readOnly,
	}, s.listTargets)
	s.register(Tool{
		Name:        "add_target",
		Description: "Register a machine for wake-on-LAN and ping.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{` +
			`"name":{"type":"string"},"ip":{"type":"string"},"mac":{"type":"string"},` +
			`"platform":{"type":"string","enum":["windows","linux","darwin"]},"port":{"type":"integer"}},` +
			`"required":["name"]}`),
	}, s.addTarget)
	s.register(Tool{
		Name:        "remove_target",
		Description: "Unregister a machine.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
		Annotations: destructive,
	}, s.removeTarget)
	s.register(Tool{
		Name:        "wake_on_lan",
		Description: "Send a wake-on-LAN magic packet to a registered target.",
		InputSchema: targetArg,
		Annotations: &ToolAnnotations{OpenWorldHint: true},
	}, func(ctx context.Context, a arguments) (ToolsCallResult, error) {
		name, err := a.requiredString("target")
		if err != nil {
			return ToolsCallResult{}, err
		}
		return operationResult(s.executor.Wake(ctx, name)), nil
	})
	s.register(Tool{
		Name:        "shutdown_system",
		Description: "Shut this machine down immediately.",
		InputSchema: noArgs,
		Annotations: destructive,
	}, func(ctx context.Context, _ arguments) (ToolsCallResult, error) {
		return operationResult(s.executor.Shutdown(ctx)), nil
	})
	s.register(Tool{
		Name:        "restart_system",
		Description: "Restart this machine immediately.",
		InputSchema: noArgs,
		Annotations: destructive,
	}, func(ctx context.Context, _ arguments) (ToolsCallResult, error) {
		return operationResult(s.executor.Restart(ctx)), nil
	})
	s.register(Tool{
		Name:        "schedule_shutdown",
		Description: "Shut this machine down after a delay of 1 to 1440 minutes.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"delay_minutes":{"type":"integer","minimum":1,"maximum":1440}},"required":["delay_minutes"]}`),
		Annotations: destructive,
	}, func(ctx context.Context, a arguments) (ToolsCallResult, error) {
		delay, ok, err := a.integer("delay_minutes")
		if err != nil {
			return ToolsCallResult{}, err
		}
		if !ok {
			return ToolsCallResult{}, fmt.Errorf("delay_minutes is required")
		}
		return operationResult(s.executor.ScheduleShutdown(ctx, delay)), nil
	})
	s.register(Tool{
		Name:        "cancel_shutdown",
		Description: "Cancel a scheduled shutdown.",
		InputSchema: noArgs,
	}, func(ctx context.Context, _ arguments) (ToolsCallResult, error) {
		return operationResult(s.executor.CancelScheduledShutdown(ctx)), nil
	})
	s.register(Tool{
		Name:        "ping_host",
		Description: "Check whether a registered target answers ping.",
		InputSchema: targetArg,
		Annotations: &ToolAnnotations{ReadOnlyHint: true, OpenWorldHint: true},
	}, func(ctx context.Context, a arguments) (ToolsCallResult, error) {
		name, err := a.requiredString("target")
		if err != nil {
			return ToolsCallResult{}, err
		}
		return operationResult(s.executor.Ping(ctx, name)), nil
	})
	s.register(Tool{
		Name:        "get_operation_history",
		Description: "List recent remote operations, oldest first.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"target":{"type":"string"},"limit":{"type":"integer","minimum":1}}}`),
		Annotations: readOnly,
	}, s.operationHistory)
}

func (s *Server) getSystemStatus(ctx context.Context, _ arguments) (ToolsCallResult, error) {
	snap := s.monitor.Snapshot(ctx)
	alerts := s.monitor.Alerts()
	res := textResult(RenderStatus(snap, s.monitor.Running(), s.monitor.Interval(), len(alerts)))
	res.StructuredContent = structured(map[string]any{
		"snapshot":     snap,
		"monitoring":   s.monitor.Running(),
		"alert_count":  len(alerts),
		"interval_sec": s.monitor.Interval().Seconds(),
	})
	return res, nil
}

func (s *Server) getAlerts(_ context.Context, a arguments) (ToolsCallResult, error) {
	limit, ok, err := a.integer("limit")
	if err != nil {
		return ToolsCallResult{}, err
	}
	events := s.monitor.Alerts()
	if ok && limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	res := textResult(RenderAlerts(events))
	res.StructuredContent = structured(map[string]any{"alerts": events})
	return res, nil
}

func (s *Server) clearAlerts(context.Context, arguments) (ToolsCallResult, error) {
	n := len(s.monitor.Alerts())
	s.monitor.ClearAlerts()
	return textResult(fmt.Sprintf("Cleared %d alert(s).", n)), nil
}

func (s *Server) startMonitoring(ctx context.Context, _ arguments) (ToolsCallResult, error) {
	if s.monitor.Running() {
		return textResult(fmt.Sprintf("Monitoring already running every %s.", s.monitor.Interval())), nil
	}
	// The timer outlives this request; Stop ends it.
	s.monitor.Start(context.WithoutCancel(ctx))
	return textResult(fmt.Sprintf("Monitoring started, sampling every %s.", s.monitor.Interval())), nil
}

func (s *Server) stopMonitoring(context.Context, arguments) (ToolsCallResult, error) {
	if !s.monitor.Running() {
		return textResult("Monitoring is not running."), nil
	}
	s.monitor.Stop()
	return textResult("Monitoring stopped."), nil
}

func (s *Server) listTargets(ctx context.Context, _ arguments) (ToolsCallResult, error) {
	targets, err := s.store.ListTargets(ctx)
	if err != nil {
		return ToolsCallResult{}, fmt.Errorf("list targets: %w", err)
	}
	res := textResult(RenderTargets(targets))
	res.StructuredContent = structured(map[string]any{"targets": targets})
	return res, nil
}

func (s *Server) addTarget(ctx context.Context, a arguments) (ToolsCallResult, error) {
	name, err := a.requiredString("name")
	if err != nil {
		return ToolsCallResult{}, err
	}
	port, _, err := a.integer("port")
	if err != nil {
		return ToolsCallResult{}, err
	}
	t := models.RemoteTarget{
		Name:     name,
		IP:       a.str("ip"),
		MAC:      a.str("mac"),
		Platform: a.str("platform"),
		Port:     port,
	}
	if err := s.store.AddTarget(ctx, t); err != nil {
		return ToolsCallResult{}, err
	}
	return textResult(fmt.Sprintf("Target %s registered.", t.Name)), nil
}

func (s *Server) removeTarget(ctx context.Context, a arguments) (ToolsCallResult, error) {
	name, err := a.requiredString("name")
	if err != nil {
		return ToolsCallResult{}, err
	}
	if err := s.store.RemoveTarget(ctx, name); err != nil {
		return ToolsCallResult{}, err
	}
	return textResult(fmt.Sprintf("Target %s removed.", name)), nil
}

func (s *Server) operationHistory(ctx context.Context, a arguments) (ToolsCallResult, error) {
	limit, ok, err := a.integer("limit")
	if err != nil {
		return ToolsCallResult{}, err
	}
	if !ok {
		limit = defaultHistoryLimit
	}
	var ops []models.RemoteOperation
	if target := a.str("target"); target != "" {
		ops, err = s.store.RecentForTarget(ctx, target, limit)
	} else {
		ops, err = s.store.Recent(ctx, limit)
	}
	if err != nil {
		return ToolsCallResult{}, fmt.Errorf("read operation history: %w", err)
	}
	res := textResult(RenderOperations(ops))
	res.StructuredContent = structured(map[string]any{"operations": ops})
	return res, nil
}

func operationResult(op models.RemoteOperation) ToolsCallResult {
	res := textResult(RenderOperation(op))
	res.StructuredContent = structured(op)
	res.IsError = op.Status == models.StatusFailed
	return res
}

func textResult(text string) ToolsCallResult {
	return ToolsCallResult{Content: []ToolContent{{Type: "text", Text: text}}}
}

func toolError(err error) ToolsCallResult {
	return ToolsCallResult{Content: []ToolContent{{Type: "text", Text: err.Error()}}, IsError: true}
}

// structured converts v to the JSON object form used for structuredContent.
func structured(v any) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

type arguments map[string]interface{}

func (a arguments) str(key string) string {
	s, _ := a[key].(string)
	return strings.TrimSpace(s)
}

func (a arguments) requiredString(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return strings.TrimSpace(s), nil
}

// integer reads a whole number, accepting JSON numbers and numeric strings.
func (a arguments) integer(key string) (int, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		f = parsed
	default:
		return 0, true, fmt.Errorf("%s must be an integer", key)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) > math.MaxInt32 {
		return 0, true, fmt.Errorf("%s must be an integer", key)
	}
	return int(f), true, nil
}
