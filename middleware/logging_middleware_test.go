package middleware

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestLoggingMiddlewarePassesThroughResult(t *testing.T) {
	called := false
	handler := LoggingMiddleware(zaptest.NewLogger(t))(func(ctx context.Context, serviceMethod string, args, reply any) error {
		called = true
		return nil
	})

	if err := handler(context.Background(), "Arith.Add", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected wrapped handler to be invoked")
	}
}

func TestLoggingMiddlewarePropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	handler := LoggingMiddleware(zaptest.NewLogger(t))(func(ctx context.Context, serviceMethod string, args, reply any) error {
		return wantErr
	})

	if err := handler(context.Background(), "Arith.Add", nil, nil); err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}
