package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
)

// framedStream carries length-prefixed messages over a byte stream
// (unix, tcp, vsock).
type framedStream struct {
	conn   net.Conn
	reader *bufio.Reader
	wmu    sync.Mutex
}

func newFramedStream(conn net.Conn) *framedStream {
	return &framedStream{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (s *framedStream) Send(frame []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := writeFrame(s.conn, frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (s *framedStream) Receive() ([]byte, error) {
	return readFrame(s.reader)
}

func (s *framedStream) Close() error {
	return s.conn.Close()
}

func (s *framedStream) RemoteAddr() string {
	return remoteAddr(s.conn)
}

// packetStream maps one SOCK_SEQPACKET packet to one message.
type packetStream struct {
	conn net.Conn
	wmu  sync.Mutex
	buf  []byte
}

func newPacketStream(conn net.Conn) *packetStream {
	return &packetStream{
		conn: conn,
		buf:  make([]byte, MaxPacketSize),
	}
}

func (s *packetStream) Send(frame []byte) error {
	if len(frame) > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// Receive is not safe for concurrent use; the session read loop is its only
// caller.
func (s *packetStream) Receive() ([]byte, error) {
	n, err := s.conn.Read(s.buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, nil
}

func (s *packetStream) Close() error {
	return s.conn.Close()
}

func (s *packetStream) RemoteAddr() string {
	return remoteAddr(s.conn)
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	if addr := conn.LocalAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
