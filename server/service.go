package server

import (
	"fmt"
	"reflect"
)

// methodType holds the reflection metadata for one RPC-compatible
// method.
type methodType struct {
	method    reflect.Method
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// service wraps a registered handler and its RPC-compatible methods.
type service struct {
	name   string
	rcvr   reflect.Value
	typ    reflect.Type
	method map[string]*methodType
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// newService validates rcvr and scans its exported methods for the RPC
// signature convention:
//
//	func (receiver) MethodName(args *ArgsType, reply *ReplyType) error
//
// Methods that don't match are silently skipped.
func newService(rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("server: rcvr must be a pointer, got %s", typ.Kind())
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("server: rcvr must point to a struct, got %s", typ.Elem().Kind())
	}

	svc := &service{
		name:   typ.Elem().Name(),
		rcvr:   reflect.ValueOf(rcvr),
		typ:    typ,
		method: make(map[string]*methodType),
	}
	svc.registerMethods()
	if len(svc.method) == 0 {
		return nil, fmt.Errorf("server: %s exposes no RPC-compatible methods", svc.name)
	}
	return svc, nil
}

func (s *service) registerMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		m := s.typ.Method(i)
		if m.Type.NumIn() != 3 || m.Type.NumOut() != 1 {
			continue
		}
		if m.Type.Out(0) != errorType {
			continue
		}
		if m.Type.In(1).Kind() != reflect.Ptr || m.Type.In(2).Kind() != reflect.Ptr {
			continue
		}
		s.method[m.Name] = &methodType{
			method:    m,
			ArgType:   m.Type.In(1).Elem(),
			ReplyType: m.Type.In(2).Elem(),
		}
	}
}

// methods lists the exported RPC method names on this service.
func (s *service) methods() []string {
	names := make([]string, 0, len(s.method))
	for name := range s.method {
		names = append(names, name)
	}
	return names
}

// newArgs and newReply construct fresh, addressable instances of a
// method's request/reply types.
func (s *service) newArgs(method string) (reflect.Value, bool) {
	mt, ok := s.method[method]
	if !ok {
		return reflect.Value{}, false
	}
	return reflect.New(mt.ArgType), true
}

func (s *service) newReply(method string) (reflect.Value, bool) {
	mt, ok := s.method[method]
	if !ok {
		return reflect.Value{}, false
	}
	return reflect.New(mt.ReplyType), true
}

// call invokes method via reflection: receiver.Method(args, reply).
func (s *service) call(method string, argv, replyv reflect.Value) error {
	mt, ok := s.method[method]
	if !ok {
		return fmt.Errorf("server: unknown method %s.%s", s.name, method)
	}
	args := [3]reflect.Value{s.rcvr, argv, replyv}
	results := mt.method.Func.Call(args[:])
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}
