package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log 全局日志实例，Init 之前为 Nop，避免测试和工具链中出现 nil
var Log = zap.NewNop()

// Init 根据运行环境初始化日志
func Init(env string, debug bool) error {
	var cfg zap.Config
	if env == "prod" && !debug {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return err
	}
	Log = l.With(zap.String("env", env))
	return nil
}

// Sync 刷新缓冲区
func Sync() {
	_ = Log.Sync()
}

type traceKey struct{}

// WithTraceID 把链路 ID 放进 ctx，FromContext 取出的日志会带上它
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID 没有时返回空串
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func FromContext(ctx context.Context) *zap.Logger {
	if id := TraceID(ctx); id != "" {
		return Log.With(zap.String("trace_id", id))
	}
	return Log
}
