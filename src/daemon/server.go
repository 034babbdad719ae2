// Package daemon is a minimal stand-in for the curator daemon. It answers
// Config and Query requests from a fixture and rejects everything else.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/danmuck/curator_link/src/api/transport"
	"github.com/danmuck/curator_link/src/protocol"
	logs "github.com/danmuck/smplog"
)

type Server struct {
	fixture Fixture

	mu      sync.Mutex
	streams map[transport.Stream]struct{}
	wg      sync.WaitGroup
}

func NewServer(fixture Fixture) *Server {
	return &Server{
		fixture: fixture,
		streams: make(map[transport.Stream]struct{}),
	}
}

// Serve accepts connections until ln is closed. Closing the listener is a
// clean shutdown and returns nil.
func (s *Server) Serve(ln transport.Listener) error {
	logs.Infof("fake curator listening on %s (collection: %s)", ln.Addr(), s.fixture.CollectionPath)
	for {
		stream, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.track(stream)
		s.wg.Add(1)
		go s.handleStream(stream)
	}
}

// Shutdown closes every open client stream and waits for their handlers.
func (s *Server) Shutdown() {
	s.mu.Lock()
	for stream := range s.streams {
		stream.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) track(stream transport.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[stream] = struct{}{}
}

func (s *Server) untrack(stream transport.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, stream)
}

func (s *Server) handleStream(stream transport.Stream) {
	defer s.wg.Done()
	defer s.untrack(stream)
	defer stream.Close()

	logs.Debugf("client %s connected", stream.RemoteAddr())
	for {
		frame, err := stream.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logs.Warnf("receive from %s: %v", stream.RemoteAddr(), err)
			}
			logs.Debugf("client %s disconnected", stream.RemoteAddr())
			return
		}
		if err := stream.Send(s.Handle(frame)); err != nil {
			logs.Warnf("send to %s: %v", stream.RemoteAddr(), err)
			return
		}
	}
}

// Handle answers one request frame. Every request gets exactly one response.
func (s *Server) Handle(frame []byte) []byte {
	op, body, err := protocol.DecodeRequest(frame)
	if err != nil {
		return protocol.EncodeErrorResponse(protocol.StatusInvalidParams, err.Error())
	}

	switch op {
	case protocol.OpConfig:
		return protocol.EncodeResponse(protocol.EncodeConfigPayload(s.fixture.ConfigPath, s.fixture.CollectionPath))
	case protocol.OpQuery:
		return s.handleQuery(body)
	default:
		logs.Debugf("unsupported %s request", op)
		return protocol.EncodeErrorResponse(protocol.StatusUnsupported, "")
	}
}

func (s *Server) handleQuery(body []byte) []byte {
	req, err := protocol.DecodeQueryRequest(body)
	if err != nil {
		return protocol.EncodeErrorResponse(protocol.StatusInvalidParams, "")
	}
	if req.Algorithm != protocol.PhashAlgorithm {
		return protocol.EncodeErrorResponse(protocol.StatusInvalidParams, fmt.Sprintf("unknown algorithm %q", req.Algorithm))
	}

	matches, ok := s.fixture.Lookup(req.Path, req.Limit)
	if !ok {
		return protocol.EncodeErrorResponse(protocol.StatusNotFound, "")
	}
	logs.Debugf("query %s: %d match(es)", req.Path, len(matches))
	return protocol.EncodeResponse(protocol.EncodeSimilarList(matches))
}
