package wire

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		service, method string
		args            []byte
	}{
		{"UserService", "Login", []byte(`{"name":"leo","pwd":"123456"}`)},
		{"Arith", "Add", []byte{}},
		{"A", "B", bytes.Repeat([]byte{0xAB}, 4096)},
	}

	for _, c := range cases {
		frame, err := EncodeRequest(c.service, c.method, c.args)
		if err != nil {
			t.Fatalf("EncodeRequest(%q,%q): %v", c.service, c.method, err)
		}

		service, method, args, err := DecodeRequest(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("DecodeRequest: %v", err)
		}
		if service != c.service || method != c.method {
			t.Fatalf("got (%q,%q), want (%q,%q)", service, method, c.service, c.method)
		}
		if !bytes.Equal(args, c.args) {
			t.Fatalf("args mismatch: got %v want %v", args, c.args)
		}
	}
}

func TestDecodeRequestDoesNotOverrun(t *testing.T) {
	frame, err := EncodeRequest("Svc", "Method", []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	// Append a second frame's worth of garbage after the first frame and
	// verify DecodeRequest stops exactly at the boundary.
	trailer := []byte("NEXT-FRAME-SENTINEL")
	buf := bytes.NewBuffer(append(append([]byte{}, frame...), trailer...))

	_, _, args, err := DecodeRequest(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(args) != "hello" {
		t.Fatalf("args = %q, want %q", args, "hello")
	}
	if buf.String() != string(trailer) {
		t.Fatalf("decoder consumed past the frame boundary: leftover = %q", buf.String())
	}
}

func TestDecodeRequestTruncatedHeader(t *testing.T) {
	// header_len = 3 but only 2 bytes of header follow (spec.md Scenario C).
	var buf []byte
	buf = protowire.AppendVarint(buf, 3)
	buf = append(buf, 0x01, 0x02)

	_, _, _, err := DecodeRequest(bytes.NewReader(buf))
	if err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestDecodeRequestFrameTooLarge(t *testing.T) {
	var header []byte
	header = protowire.AppendTag(header, fieldServiceName, protowire.BytesType)
	header = protowire.AppendString(header, "S")
	header = protowire.AppendTag(header, fieldMethodName, protowire.BytesType)
	header = protowire.AppendString(header, "M")
	header = protowire.AppendTag(header, fieldArgsLen, protowire.VarintType)
	header = protowire.AppendVarint(header, MaxArgsLen+1)

	var frame []byte
	frame = protowire.AppendVarint(frame, uint64(len(header)))
	frame = append(frame, header...)

	_, _, _, err := DecodeRequest(bytes.NewReader(frame))
	if err != ErrFrameTooLarge {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<32 - 1}
	for _, v := range values {
		buf := protowire.AppendVarint(nil, v)
		got, err := readVarint(bytes.NewReader(buf))
		if err != nil {
			t.Fatalf("readVarint(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("readVarint round-trip: got %d, want %d", got, v)
		}
	}
}
