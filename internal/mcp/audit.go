package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// AuditEntry describes a single MCP tool invocation. It carries metadata
// about the call, never the baseline or change values themselves.
type AuditEntry struct {
	Timestamp  time.Time
	Tool       string
	DurationMs int64
	Status     string // "success" or "error"
	Error      string
	Params     map[string]string // sanitized metadata only
}

// AuditLogger records tool invocations as structured log records. A nil
// AuditLogger is safe to use; Log is a no-op on a nil receiver.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger returns an audit logger writing to logger under the
// "audit" component.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		return nil
	}
	return &AuditLogger{logger: logger.With("component", "audit")}
}

// Log writes entry. Failed calls are logged at warn level.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("tool", entry.Tool),
		slog.Time("started", entry.Timestamp),
		slog.Int64("duration_ms", entry.DurationMs),
		slog.String("status", entry.Status),
	}
	if entry.Error != "" {
		attrs = append(attrs, slog.String("error", entry.Error))
	}
	if len(entry.Params) > 0 {
		keys := make([]string, 0, len(entry.Params))
		for k := range entry.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		params := make([]any, 0, len(keys))
		for _, k := range keys {
			params = append(params, slog.String(k, entry.Params[k]))
		}
		attrs = append(attrs, slog.Group("params", params...))
	}

	level := slog.LevelInfo
	if entry.Status == "error" {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, "tool call", attrs...)
}

// sanitizeToolParams extracts safe metadata from tool parameters.
// It returns key names and non-sensitive value summaries, never content.
//
// Parameters are classified into three categories:
//   - Safe-value params: both key and value are safe to log (e.g., "format", "city")
//   - Presence-only params: key is logged but value is replaced with a size summary
//   - Unknown params: not logged at all
//
// A "_param_count" key is always included to indicate how many params were provided.
func sanitizeToolParams(params map[string]interface{}) map[string]string {
	if params == nil {
		return nil
	}

	result := make(map[string]string)

	safeValueParams := map[string]bool{
		"format":              true,
		"city":                true,
		"max_iterations":      true,
		"tolerance":           true,
		"amplification_limit": true,
	}

	// Caller-supplied emission data and graphs are summarized by size.
	presenceOnlyParams := map[string]bool{
		"sectors": true,
		"changes": true,
		"graph":   true,
	}

	set := 0
	for key, val := range params {
		if isZero(val) {
			continue
		}
		set++
		switch {
		case safeValueParams[key]:
			result[key] = fmt.Sprintf("%v", val)
		case presenceOnlyParams[key]:
			result[key] = presence(val)
		}
	}

	result["_param_count"] = fmt.Sprintf("%d", set)

	return result
}

func isZero(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case float64:
		return x == 0
	case map[string]interface{}:
		return x == nil
	case map[string]map[string]float64:
		return x == nil
	}
	return false
}

func presence(v interface{}) string {
	switch x := v.(type) {
	case map[string]interface{}:
		return fmt.Sprintf("(%d entries)", len(x))
	case map[string]map[string]float64:
		return fmt.Sprintf("(%d entries)", len(x))
	default:
		return "(set)"
	}
}

// auditTool logs a tool invocation to the audit log.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
