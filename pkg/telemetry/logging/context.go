package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// ExecutionIDKey is the context key for execution identifiers.
	ExecutionIDKey contextKey = "execution_id"

	// TenantIDKey is the context key for tenant identifiers.
	TenantIDKey contextKey = "tenant_id"

	// BotIDKey is the context key for bot identifiers.
	BotIDKey contextKey = "bot_id"

	// NodeIDKey is the context key for process node identifiers.
	NodeIDKey contextKey = "node_id"

	// PackIDKey is the context key for evidence pack identifiers.
	PackIDKey contextKey = "pack_id"
)

// WithExecutionID adds an execution id to the context.
func WithExecutionID(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, ExecutionIDKey, executionID)
}

// GetExecutionID retrieves the execution id from the context.
func GetExecutionID(ctx context.Context) string {
	if id, ok := ctx.Value(ExecutionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTenantID adds a tenant id to the context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// GetTenantID retrieves the tenant id from the context.
func GetTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(TenantIDKey).(string); ok {
		return id
	}
	return ""
}

// WithBotID adds a bot id to the context.
func WithBotID(ctx context.Context, botID string) context.Context {
	return context.WithValue(ctx, BotIDKey, botID)
}

// GetBotID retrieves the bot id from the context.
func GetBotID(ctx context.Context) string {
	if id, ok := ctx.Value(BotIDKey).(string); ok {
		return id
	}
	return ""
}

// WithNodeID adds a process node id to the context.
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, NodeIDKey, nodeID)
}

// GetNodeID retrieves the process node id from the context.
func GetNodeID(ctx context.Context) string {
	if id, ok := ctx.Value(NodeIDKey).(string); ok {
		return id
	}
	return ""
}

// WithPackID adds an evidence pack id to the context.
func WithPackID(ctx context.Context, packID string) context.Context {
	return context.WithValue(ctx, PackIDKey, packID)
}

// GetPackID retrieves the evidence pack id from the context.
func GetPackID(ctx context.Context) string {
	if id, ok := ctx.Value(PackIDKey).(string); ok {
		return id
	}
	return ""
}

// extractContextFields extracts execution identifiers from context as
// key-value pairs suitable for Logger.With.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	if id := GetExecutionID(ctx); id != "" {
		fields = append(fields, "execution_id", id)
	}
	if id := GetTenantID(ctx); id != "" {
		fields = append(fields, "tenant_id", id)
	}
	if id := GetBotID(ctx); id != "" {
		fields = append(fields, "bot_id", id)
	}
	if id := GetNodeID(ctx); id != "" {
		fields = append(fields, "node_id", id)
	}
	if id := GetPackID(ctx); id != "" {
		fields = append(fields, "pack_id", id)
	}
	return fields
}
