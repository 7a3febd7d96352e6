// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base zerolog.Logger

func init() {
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 根据配置初始化全局日志器。service 会附加到每条日志上。
func Init(service, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	base = zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Ctx 返回带上下文信息的日志器。
// 如果 ctx 中存在有效的 Span，则自动附加 trace_id，便于和 Jaeger 中的链路对齐。
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			l := base.With().Str("trace_id", sc.TraceID().String()).Logger()
			return &l
		}
	}
	return &base
}
