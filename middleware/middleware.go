// Package middleware implements the onion-model wrapper around krpc's
// business handler invocation.
package middleware

import "context"

// HandlerFunc invokes one RPC method call and returns its error, if
// any. args and reply are already-decoded Go values (pointers to the
// method's ArgType/ReplyType instances), the same values the server's
// service.call passes to the method.
type HandlerFunc func(ctx context.Context, serviceMethod string, args, reply any) error

// Middleware wraps a HandlerFunc with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one listed is the outermost
// layer, executed first on the way in and last on the way out:
//
//	Chain(A, B)(handler)  ==  A(B(handler))
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
