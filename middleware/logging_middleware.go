package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware records the service method, duration, and any error
// for each RPC call via a structured zap logger.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, serviceMethod string, args, reply any) error {
			start := time.Now()
			err := next(ctx, serviceMethod, args, reply)
			fields := []zap.Field{
				zap.String("method", serviceMethod),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("rpc call failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("rpc call completed", fields...)
			}
			return err
		}
	}
}
