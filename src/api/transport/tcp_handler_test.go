package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    Address
		wantErr bool
	}{
		{name: "bare path", address: "/run/fs-curator/socket", want: Address{Network: NetworkUnixPacket, Target: "/run/fs-curator/socket"}},
		{name: "unix stream", address: "unix:///tmp/c.sock", want: Address{Network: NetworkUnix, Target: "/tmp/c.sock"}},
		{name: "tcp", address: "tcp://127.0.0.1:9000", want: Address{Network: NetworkTCP, Target: "127.0.0.1:9000"}},
		{name: "vsock", address: "vsock://3:5000", want: Address{Network: NetworkVSock, Target: "3:5000"}},
		{name: "vsock without port", address: "vsock://3", wantErr: true},
		{name: "vsock bad cid", address: "vsock://x:1", wantErr: true},
		{name: "unknown scheme", address: "udp://127.0.0.1:1", wantErr: true},
		{name: "empty", address: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAddress(tc.address)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseAddress(%q) = %+v, want error", tc.address, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q) failed: %v", tc.address, err)
			}
			if got != tc.want {
				t.Errorf("ParseAddress(%q) = %+v, want %+v", tc.address, got, tc.want)
			}
			if got.String() != tc.address {
				t.Errorf("String() = %q, want %q", got.String(), tc.address)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{{}, []byte("hello"), bytes.Repeat([]byte{1}, 70000)}
	for _, f := range frames {
		if err := writeFrame(&buf, f); err != nil {
			t.Fatalf("writeFrame failed: %v", err)
		}
	}
	for i, want := range frames {
		got, err := readFrame(&buf)
		if err != nil {
			t.Fatalf("readFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d: got %d bytes, want %d", i, len(got), len(want))
		}
	}
	if _, err := readFrame(&buf); err != io.EOF {
		t.Errorf("readFrame on empty buffer = %v, want io.EOF", err)
	}
}

func TestReadFrameRejectsOversize(t *testing.T) {
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := readFrame(bytes.NewReader(header)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("readFrame = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	data := []byte{10, 0, 0, 0, 'a', 'b'}
	if _, err := readFrame(bytes.NewReader(data)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("readFrame = %v, want io.ErrUnexpectedEOF", err)
	}
}

func echoOnce(t *testing.T, ln Listener) {
	t.Helper()
	go func() {
		s, err := ln.Accept()
		if err != nil {
			return
		}
		defer s.Close()
		for {
			frame, err := s.Receive()
			if err != nil {
				return
			}
			if err := s.Send(append([]byte("echo:"), frame...)); err != nil {
				return
			}
		}
	}()
}

func exerciseEcho(t *testing.T, address string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s, err := NetDialer{Timeout: 2 * time.Second}.Dial(ctx, address)
	if err != nil {
		t.Fatalf("Dial(%s) failed: %v", address, err)
	}
	defer s.Close()

	for _, msg := range []string{"one", "two", "three"} {
		if err := s.Send([]byte(msg)); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		got, err := s.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if string(got) != "echo:"+msg {
			t.Errorf("Receive = %q, want %q", got, "echo:"+msg)
		}
	}
}

func TestTCPStreamSendReceive(t *testing.T) {
	ln, err := Listen("tcp://127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()
	echoOnce(t, ln)

	exerciseEcho(t, ln.Addr())
}

func shortSocketPath(t *testing.T, name string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cl")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, name)
}

func TestUnixStreamSendReceive(t *testing.T) {
	ln, err := Listen("unix://" + shortSocketPath(t, "s.sock"))
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()
	echoOnce(t, ln)

	exerciseEcho(t, ln.Addr())
}

func TestUnixPacketSendReceive(t *testing.T) {
	path := shortSocketPath(t, "p.sock")
	ln, err := Listen(path)
	if err != nil {
		t.Skipf("unixpacket not available: %v", err)
	}
	defer ln.Close()
	echoOnce(t, ln)

	exerciseEcho(t, path)
}

func TestDialFailureIsConnectionError(t *testing.T) {
	// Reserve a port, then close it so nothing is listening.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen failed: %v", err)
	}
	address := "tcp://" + l.Addr().String()
	l.Close()

	_, err = NetDialer{Timeout: time.Second}.Dial(context.Background(), address)
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("Dial error = %v, want *ConnectionError", err)
	}
	if ce.Address != address {
		t.Errorf("ConnectionError.Address = %q, want %q", ce.Address, address)
	}
}

func TestReceiveReturnsEOFAfterPeerClose(t *testing.T) {
	ln, err := Listen("tcp://127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	go func() {
		s, err := ln.Accept()
		if err == nil {
			s.Close()
		}
	}()

	s, err := NetDialer{}.Dial(context.Background(), ln.Addr())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Receive(); err != io.EOF {
		t.Errorf("Receive after peer close = %v, want io.EOF", err)
	}
}
