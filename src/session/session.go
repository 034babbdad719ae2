package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/curator_link/src/api/transport"
	"github.com/danmuck/curator_link/src/protocol"
	logs "github.com/danmuck/smplog"
)

// ErrConnectionClosed fails every request still pending when the stream
// closes, and every request made afterwards.
var ErrConnectionClosed = errors.New("connection closed")

type result struct {
	payload []byte
	err     error
}

type call struct {
	op    protocol.Opcode
	reply chan result // buffered; the read loop never blocks on a caller
}

// Session owns one stream and the queue of requests outstanding on it.
// Requests may be issued concurrently; responses are matched in send order.
type Session struct {
	stream  transport.Stream
	onClose func(cause error)

	sendMu sync.Mutex // orders enqueue+send pairs

	mu       sync.Mutex
	queue    Queue[*call]
	closed   bool
	explicit bool

	closeOnce sync.Once
	done      chan struct{}
}

// Open starts reading from stream. onClose runs once on the read loop when
// the stream ends, with nil after Close or the transport error otherwise; it
// must not call Close.
func Open(stream transport.Stream, onClose func(cause error)) *Session {
	s := &Session{
		stream:  stream,
		onClose: onClose,
		done:    make(chan struct{}),
	}
	logs.Debugf("session.Open(%s)", stream.RemoteAddr())
	go s.readLoop()
	return s
}

// Request sends frame and waits for its response payload. Cancelling ctx
// abandons the wait only; the response is still consumed in order.
func (s *Session) Request(ctx context.Context, frame []byte) ([]byte, error) {
	op, _, err := protocol.DecodeRequest(frame)
	if err != nil {
		return nil, err
	}
	c := &call{op: op, reply: make(chan result, 1)}

	s.sendMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return nil, ErrConnectionClosed
	}
	s.queue.Enqueue(c)
	s.mu.Unlock()

	if err := s.stream.Send(frame); err != nil {
		s.mu.Lock()
		if tail, ok := s.queue.DropNewest(); ok && tail != c {
			s.queue.Enqueue(tail)
		}
		s.mu.Unlock()
		s.sendMu.Unlock()
		// a partial write leaves the stream unusable
		s.Close()
		return nil, fmt.Errorf("failed to send %s request: %w", op, err)
	}
	s.sendMu.Unlock()

	select {
	case r := <-c.reply:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Config asks the daemon where its config file and collection live.
func (s *Session) Config(ctx context.Context) (configPath, collectionPath string, err error) {
	payload, err := s.Request(ctx, protocol.EncodeConfigRequest())
	if err != nil {
		return "", "", err
	}
	return protocol.DecodeConfigPayload(payload)
}

// Query asks for up to limit images similar to path.
func (s *Session) Query(ctx context.Context, algorithm, path string, limit uint32) ([]protocol.Similar, error) {
	payload, err := s.Request(ctx, protocol.EncodeQueryRequest(algorithm, path, limit))
	if err != nil {
		return nil, err
	}
	return protocol.DecodeSimilarList(payload), nil
}

// Pending returns the number of requests awaiting a response.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Done is closed once the stream has ended and onClose has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close closes the stream and waits for the read loop to finish. Safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.explicit = true
		s.mu.Unlock()
		if err := s.stream.Close(); err != nil {
			logs.Debugf("session.Close(%s): %v", s.stream.RemoteAddr(), err)
		}
	})
	<-s.done
}

func (s *Session) readLoop() {
	defer close(s.done)

	for {
		frame, err := s.stream.Receive()
		if err != nil {
			s.shutdown(err)
			return
		}

		s.mu.Lock()
		c, ok := s.queue.DequeueOldest()
		s.mu.Unlock()
		if !ok {
			logs.Warnf("dropping %d-byte frame from %s with no pending request", len(frame), s.stream.RemoteAddr())
			continue
		}

		payload, err := protocol.DecodeResponse(frame)
		if err != nil {
			err = fmt.Errorf("%s request: %w", c.op, err)
		}
		c.reply <- result{payload: payload, err: err}
	}
}

func (s *Session) shutdown(cause error) {
	s.mu.Lock()
	s.closed = true
	explicit := s.explicit
	pending := s.queue.Drain()
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		_ = s.stream.Close()
	})

	for _, c := range pending {
		c.reply <- result{err: fmt.Errorf("%s request: %w", c.op, ErrConnectionClosed)}
	}

	if explicit {
		cause = nil
		logs.Debugf("session closed (%s), %d request(s) failed", s.stream.RemoteAddr(), len(pending))
	} else {
		logs.Warnf("session lost (%s): %v, %d request(s) failed", s.stream.RemoteAddr(), cause, len(pending))
	}
	if s.onClose != nil {
		s.onClose(cause)
	}
}
