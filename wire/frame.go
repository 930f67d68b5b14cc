// Package wire implements the request frame codec for krpc.
//
// A request frame on the wire is:
//
//	header_len (varint) | header_bytes (header_len bytes) | args_bytes (args_len bytes)
//
// header_bytes is a 3-field protobuf-wire-format message carrying the
// service name, the method name, and the exact length of args_bytes,
// hand-encoded with protowire — the same tag/varint/length-delimited
// primitives protoc-generated code compiles down to — without requiring
// a protoc run.
//
// The reply frame carries no header and no length prefix: it is the
// serialized response message, read directly off the connection into a
// fixed-size buffer by the caller (see package client).
package wire

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the header message.
const (
	fieldServiceName protowire.Number = 1
	fieldMethodName  protowire.Number = 2
	fieldArgsLen     protowire.Number = 3
)

// MaxArgsLen bounds the declared args_len to guard against a corrupt or
// hostile header forcing an enormous allocation.
const MaxArgsLen = 16 << 20 // 16 MiB

// ErrMalformed signals a frame that could not be parsed: a truncated
// stream, or a header that fails to decode as the 3-field wire message.
var ErrMalformed = errors.New("wire: malformed frame")

// ErrFrameTooLarge signals an args_len beyond MaxArgsLen.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// EncodeRequest builds a complete request frame: the varint header_len,
// the serialized header, and args verbatim.
func EncodeRequest(service, method string, args []byte) ([]byte, error) {
	if len(args) > MaxArgsLen {
		return nil, ErrFrameTooLarge
	}

	var header []byte
	header = protowire.AppendTag(header, fieldServiceName, protowire.BytesType)
	header = protowire.AppendString(header, service)
	header = protowire.AppendTag(header, fieldMethodName, protowire.BytesType)
	header = protowire.AppendString(header, method)
	header = protowire.AppendTag(header, fieldArgsLen, protowire.VarintType)
	header = protowire.AppendVarint(header, uint64(len(args)))

	if len(header) == 0 {
		return nil, fmt.Errorf("wire: empty header")
	}

	frame := protowire.AppendVarint(nil, uint64(len(header)))
	frame = append(frame, header...)
	frame = append(frame, args...)
	return frame, nil
}

// DecodeRequest reads one complete frame from r: a varint header_len,
// exactly that many header bytes, then exactly args_len further bytes.
// It never reads past the frame boundary. A stream that ends before the
// first byte of header_len yields the reader's own error (io.EOF for a
// clean close); a stream that ends anywhere later yields ErrMalformed.
func DecodeRequest(r io.Reader) (service, method string, args []byte, err error) {
	headerLen, err := readVarint(r)
	if err != nil {
		return "", "", nil, err
	}
	if headerLen == 0 {
		return "", "", nil, ErrMalformed
	}

	headerBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return "", "", nil, ErrMalformed
	}

	var argsLen uint64
	var haveService, haveMethod, haveArgsLen bool
	for len(headerBuf) > 0 {
		num, typ, n := protowire.ConsumeTag(headerBuf)
		if n < 0 {
			return "", "", nil, ErrMalformed
		}
		headerBuf = headerBuf[n:]

		switch {
		case num == fieldServiceName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(headerBuf)
			if n < 0 {
				return "", "", nil, ErrMalformed
			}
			service, haveService = v, true
			headerBuf = headerBuf[n:]
		case num == fieldMethodName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(headerBuf)
			if n < 0 {
				return "", "", nil, ErrMalformed
			}
			method, haveMethod = v, true
			headerBuf = headerBuf[n:]
		case num == fieldArgsLen && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(headerBuf)
			if n < 0 {
				return "", "", nil, ErrMalformed
			}
			argsLen, haveArgsLen = v, true
			headerBuf = headerBuf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, headerBuf)
			if n < 0 {
				return "", "", nil, ErrMalformed
			}
			headerBuf = headerBuf[n:]
		}
	}

	if !haveService || !haveMethod || !haveArgsLen {
		return "", "", nil, ErrMalformed
	}
	if argsLen > MaxArgsLen {
		return "", "", nil, ErrFrameTooLarge
	}

	args = make([]byte, argsLen)
	if argsLen > 0 {
		if _, err := io.ReadFull(r, args); err != nil {
			return "", "", nil, ErrMalformed
		}
	}
	return service, method, args, nil
}

// readVarint reads a base-128 varint one byte at a time, since r may not
// support peeking. This matches the wire format's "least-significant
// group first, high bit as continuation" encoding.
func readVarint(r io.Reader) (uint64, error) {
	var buf [1]byte
	var x uint64
	var s uint
	for i := 0; i < 10; i++ { // 10 groups covers a full uint64
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if i > 0 {
				return 0, ErrMalformed // truncated inside the varint
			}
			return 0, err
		}
		b := buf[0]
		if b < 0x80 {
			if i == 9 && b > 1 {
				return 0, ErrMalformed // overflow
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, ErrMalformed
}
