// Package client implements krpc's client channel: resolve a method's
// address via the name registry, place one synchronous call over a
// fresh TCP connection, and close it.
//
// Call flow:
//
//	CallMethod(ctx, ctl, args, reply)
//	  -> registry.Get("/Service/Method")  -> resolve one address
//	  -> net.Dial (up to 3 attempts)
//	  -> codec.Encode(args) -> wire.EncodeRequest -> write
//	  -> read into a fixed buffer -> codec.Decode(reply)
//	  -> close
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"krpc/codec"
	"krpc/controller"
	"krpc/registry"
	"krpc/wire"
)

// RecvBufSize is the size of the fixed buffer CallMethod reads a reply
// into (1024 by default; set it before placing calls to change it).
// The reply carries no length prefix, so any reply longer than this is
// truncated.
var RecvBufSize = 1024

// dialAttempts bounds how many times in total CallMethod tries net.Dial
// before giving up.
const dialAttempts = 3

var (
	ErrResolutionFailed = errors.New("client: method resolution failed")
	ErrConnectFailed    = errors.New("client: connect failed")
	ErrSerializeFailed  = errors.New("client: serialize args failed")
	ErrSendFailed       = errors.New("client: send failed")
	ErrRecvFailed       = errors.New("client: receive failed")
	ErrParseFailed      = errors.New("client: parse reply failed")
)

// Channel is a single service/method binding backed by a shared
// registry handle. It is not safe for concurrent use; concurrent
// callers should use distinct Channel values. There is deliberately no
// eager-connect constructor — Channel only dials when CallMethod is
// invoked.
type Channel struct {
	serviceName string
	methodName  string
	registry    registry.Registry
	codec       codec.Codec
}

// NewChannel binds a Channel to one "Service.Method" pair and the
// registry used to resolve it. No network or registry I/O happens here.
func NewChannel(serviceMethod string, reg registry.Registry) (*Channel, error) {
	idx := strings.LastIndexByte(serviceMethod, '.')
	if idx < 0 {
		return nil, fmt.Errorf("client: invalid service method %q", serviceMethod)
	}
	return &Channel{
		serviceName: serviceMethod[:idx],
		methodName:  serviceMethod[idx+1:],
		registry:    reg,
		codec:       codec.Get(codec.TypeJSON),
	}, nil
}

// SetCodec overrides the payload codec used to encode args and decode
// the reply. Must match the codec the server uses.
func (c *Channel) SetCodec(cd codec.Codec) {
	c.codec = cd
}

// CallMethod resolves the method's address, places one synchronous
// call, and records any failure on ctl in addition to returning it —
// so callers may use either idiom.
func (c *Channel) CallMethod(ctx context.Context, ctl *controller.Controller, args, reply any) error {
	addr, err := c.resolve(ctx)
	if err != nil {
		return c.fail(ctl, err)
	}

	conn, err := c.dial(addr)
	if err != nil {
		return c.fail(ctl, err)
	}
	defer conn.Close()

	argBytes, err := c.codec.Encode(args)
	if err != nil {
		return c.fail(ctl, fmt.Errorf("%w: %v", ErrSerializeFailed, err))
	}

	frame, err := wire.EncodeRequest(c.serviceName, c.methodName, argBytes)
	if err != nil {
		return c.fail(ctl, fmt.Errorf("%w: %v", ErrSendFailed, err))
	}

	if err := c.writeAll(conn, frame); err != nil {
		return c.fail(ctl, fmt.Errorf("%w: %v", ErrSendFailed, err))
	}

	buf := make([]byte, RecvBufSize)
	n, err := conn.Read(buf)
	if err != nil {
		return c.fail(ctl, fmt.Errorf("%w: %v", ErrRecvFailed, err))
	}

	if err := c.codec.Decode(buf[:n], reply); err != nil {
		return c.fail(ctl, fmt.Errorf("%w: %v", ErrParseFailed, err))
	}

	if ctl != nil {
		ctl.Reset()
	}
	return nil
}

func (c *Channel) resolve(ctx context.Context) (string, error) {
	path := "/" + c.serviceName + "/" + c.methodName
	data, err := c.registry.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s not registered", ErrResolutionFailed, path)
	}
	addr := string(data)
	if strings.IndexByte(addr, ':') < 0 {
		return "", fmt.Errorf("%w: %s has malformed address %q", ErrResolutionFailed, path, addr)
	}
	return addr, nil
}

// dial attempts to connect up to dialAttempts times.
func (c *Channel) dial(addr string) (net.Conn, error) {
	var lastErr error
	for i := 0; i < dialAttempts; i++ {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrConnectFailed, lastErr)
}

// writeAll loops Write until every byte of frame is sent or an error
// occurs, since a single Write may perform a short write.
func (c *Channel) writeAll(conn net.Conn, frame []byte) error {
	for len(frame) > 0 {
		n, err := conn.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

func (c *Channel) fail(ctl *controller.Controller, err error) error {
	if ctl != nil {
		ctl.SetFailed(err.Error())
	}
	return err
}
