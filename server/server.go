// Package server implements krpc's RPC server: service registration,
// etcd-backed advertisement, and the accept/dispatch loop.
//
// Request processing pipeline:
//
//	Accept conn -> handleConn (single goroutine reads frames)
//	  -> wire.DecodeRequest -> service lookup -> middleware chain
//	    -> reflect.Call -> codec.Encode -> write reply (no frame)
//
// The accept loop hands each connection to a pool worker, which runs
// handleConn synchronously: frames on that connection are decoded,
// dispatched and answered one after another, with no per-request
// goroutine fan-out inside handleConn.
package server

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"krpc/codec"
	"krpc/config"
	"krpc/middleware"
	"krpc/registry"
	"krpc/wire"
)

// Server is krpc's RPC server: a set of registered services, a TCP
// listener, and an etcd registration session.
type Server struct {
	serviceMap  map[string]*service
	listener    net.Listener
	pool        *connPool
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
	codec       codec.Codec
	logger      *zap.Logger

	mu       sync.Mutex
	shutdown bool
}

// New creates a server with an empty service map. logger may be nil, in
// which case a no-op logger is used.
func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		serviceMap: make(map[string]*service),
		codec:      codec.Get(codec.TypeJSON),
		logger:     logger,
	}
}

// Use registers a middleware, applied in registration order around the
// business handler.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// SetCodec overrides the payload codec used for replies (and expected
// for request args). Must be called before Serve.
func (s *Server) SetCodec(c codec.Codec) {
	s.codec = c
}

// Register exposes rcvr's RPC-compatible methods under its type name.
// Re-registering the same name silently overwrites the previous
// service.
func (s *Server) Register(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	s.serviceMap[svc.name] = svc
	return nil
}

// Serve listens on cfg's configured address, advertises every
// registered service in reg, starts the worker pool, and runs the
// accept loop until Shutdown closes the listener.
func (s *Server) Serve(ctx context.Context, cfg *config.Config, reg registry.Registry) error {
	addr := cfg.ServerAddr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.handler = middleware.Chain(s.middlewares...)(s.businessHandler)
	s.pool = newConnPool(workerPoolSize, s.handleConn)

	if reg != nil {
		if err := reg.Connect(ctx); err != nil {
			listener.Close()
			return fmt.Errorf("server: registry connect: %w", err)
		}
		if err := s.advertise(ctx, reg, addr); err != nil {
			listener.Close()
			return err
		}
	}

	s.logger.Info("server listening", zap.String("addr", addr))
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			down := s.shutdown
			s.mu.Unlock()
			if down {
				return nil
			}
			return err
		}
		s.pool.submit(conn)
	}
}

// advertise creates the persistent "/service" parent and, per exported
// method, the ephemeral "/service/method" leaf holding addr. A
// NodeEphemeral create failure is fatal.
func (s *Server) advertise(ctx context.Context, reg registry.Registry, addr string) error {
	for name, svc := range s.serviceMap {
		path := "/" + name
		if err := reg.CreateNode(ctx, path, nil, registry.NodePersistent); err != nil {
			return fmt.Errorf("server: advertise %s: %w", path, err)
		}
		for _, method := range svc.methods() {
			leaf := path + "/" + method
			if err := reg.CreateNode(ctx, leaf, []byte(addr), registry.NodeEphemeral); err != nil {
				return fmt.Errorf("server: advertise %s: %w", leaf, err)
			}
		}
	}
	return nil
}

// handleConn is the per-connection worker body: decode one frame,
// dispatch it, reply, repeat until the connection errors or closes.
// Because wire.DecodeRequest blocks on io.ReadFull, a short read or a
// TCP segment carrying multiple frames is handled transparently with no
// manual reassembly buffer.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		serviceName, methodName, argBytes, err := wire.DecodeRequest(conn)
		if err != nil {
			return
		}
		reply, err := s.dispatch(serviceName, methodName, argBytes)
		if err != nil {
			s.logger.Warn("request failed",
				zap.String("service", serviceName),
				zap.String("method", methodName),
				zap.Error(err))
			return
		}
		if _, err := conn.Write(reply); err != nil {
			s.logger.Warn("reply write failed", zap.Error(err))
			return
		}
	}
}

// dispatch looks up the service/method, decodes args, invokes the
// handler through the middleware chain, and encodes the reply.
func (s *Server) dispatch(serviceName, methodName string, argBytes []byte) ([]byte, error) {
	svc, ok := s.serviceMap[serviceName]
	if !ok {
		return nil, fmt.Errorf("server: unknown service %q", serviceName)
	}
	argv, ok := svc.newArgs(methodName)
	if !ok {
		return nil, fmt.Errorf("server: unknown method %s.%s", serviceName, methodName)
	}
	replyv, _ := svc.newReply(methodName)

	if err := s.codec.Decode(argBytes, argv.Interface()); err != nil {
		return nil, fmt.Errorf("server: decode args: %w", err)
	}

	serviceMethod := serviceName + "." + methodName
	if err := s.handler(context.Background(), serviceMethod, argv.Interface(), replyv.Interface()); err != nil {
		return nil, err
	}

	return s.codec.Encode(replyv.Interface())
}

// businessHandler is the innermost handler the middleware chain wraps:
// it splits serviceMethod back into its service/method parts, looks the
// service up again, and invokes the reflect-backed call. args and reply
// are the same *ArgType/*ReplyType pointers svc.newArgs/newReply
// produced in dispatch, so reflect.ValueOf recovers their addressable
// reflect.Value without any extra bookkeeping.
func (s *Server) businessHandler(ctx context.Context, serviceMethod string, args, reply any) error {
	idx := strings.LastIndexByte(serviceMethod, '.')
	if idx < 0 {
		return fmt.Errorf("server: malformed service method %q", serviceMethod)
	}
	serviceName, methodName := serviceMethod[:idx], serviceMethod[idx+1:]
	svc, ok := s.serviceMap[serviceName]
	if !ok {
		return fmt.Errorf("server: unknown service %q", serviceName)
	}
	return svc.call(methodName, reflect.ValueOf(args), reflect.ValueOf(reply))
}

// Shutdown stops accepting new connections, closes the listener, and
// waits for in-flight handleConn workers to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		if s.pool != nil {
			s.pool.close()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

