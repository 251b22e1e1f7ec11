package util

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey 是一个私有类型，用于避免 context key 的冲突
type contextKey string

const runIDKey contextKey = "runID"

// NewRunID 生成一次模拟运行的 ID
// 使用 UUIDv7，按时间有序，便于在运行日志和数据库中排序
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ContextWithRunID 将运行 ID 注入到 Context 中，并返回一个新的 Context
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext 从 Context 中提取运行 ID
func RunIDFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(runIDKey).(string)
	return runID, ok && runID != ""
}

// LoggerFromContext 返回带有 run_id 字段的 logger，Context 中没有运行 ID 时原样返回
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if runID, ok := RunIDFromContext(ctx); ok {
		return logger.With("run_id", runID)
	}
	return logger
}
