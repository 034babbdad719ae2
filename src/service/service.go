package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/danmuck/curator_link/src/api/transport"
	"github.com/danmuck/curator_link/src/fsreader"
	"github.com/danmuck/curator_link/src/ini"
	"github.com/danmuck/curator_link/src/layout"
	"github.com/danmuck/curator_link/src/protocol"
	"github.com/danmuck/curator_link/src/session"
	logs "github.com/danmuck/smplog"
)

var (
	ErrNotConnected     = errors.New("not connected to curator service")
	ErrAlreadyConnected = errors.New("already connected to curator service")
	ErrConnecting       = errors.New("connection to curator service in progress")
)

// CandidateLimit is the number of matches asked for per similarity query.
const CandidateLimit = 3

// connection is everything derived from one live session.
type connection struct {
	session        *session.Session
	address        string
	configPath     string
	collectionPath string
	generators     []layout.PathGenerator
	hoppers        []layout.Hopper
	announced      bool // guarded by Service.mu
	closed         bool // guarded by Service.mu
}

// Service owns at most one connection to the curator daemon.
type Service struct {
	dialer transport.Dialer
	fs     fsreader.FS

	mu         sync.RWMutex
	current    *connection
	connecting bool

	subs subscribers
}

func New(dialer transport.Dialer, fs fsreader.FS) *Service {
	return &Service{dialer: dialer, fs: fs}
}

// Subscribe registers fn for connectivity changes. Subscribers are called in
// subscription order.
func (s *Service) Subscribe(fn func(connected bool)) Token {
	return s.subs.subscribe(fn)
}

// Unsubscribe removes a subscription and reports whether it existed.
func (s *Service) Unsubscribe(token Token) bool {
	return s.subs.unsubscribe(token)
}

func (s *Service) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// CollectionPath returns the daemon's collection root, or false when
// disconnected.
func (s *Service) CollectionPath() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", false
	}
	return s.current.collectionPath, true
}

// ConfigPath returns the daemon's config file path, or false when
// disconnected.
func (s *Service) ConfigPath() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", false
	}
	return s.current.configPath, true
}

// Hoppers returns the configured hoppers in config order; nil means
// disconnected, an empty slice connected with none configured.
func (s *Service) Hoppers() []layout.Hopper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	out := make([]layout.Hopper, len(s.current.hoppers))
	copy(out, s.current.hoppers)
	return out
}

// Hopper looks a hopper up by name.
func (s *Service) Hopper(name string) (layout.Hopper, bool) {
	for _, h := range s.Hoppers() {
		if h.Name == name {
			return h, true
		}
	}
	return layout.Hopper{}, false
}

// ThumbnailPaths returns one thumbnail URI per configured store, in config
// order.
func (s *Service) ThumbnailPaths(group, index uint32) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNotConnected
	}
	out := make([]string, len(s.current.generators))
	for i, gen := range s.current.generators {
		out[i] = gen(group, index)
	}
	return out, nil
}

// Connect dials address, asks the daemon for its config and derives the
// thumbnail and hopper layout from it. No partial state is exposed on failure.
func (s *Service) Connect(ctx context.Context, address string) error {
	s.mu.Lock()
	switch {
	case s.current != nil:
		s.mu.Unlock()
		return ErrAlreadyConnected
	case s.connecting:
		s.mu.Unlock()
		return ErrConnecting
	}
	s.connecting = true
	s.mu.Unlock()

	conn, err := s.open(ctx, address)

	s.mu.Lock()
	s.connecting = false
	if err == nil && conn.closed {
		err = fmt.Errorf("curator connection %s: %w", address, session.ErrConnectionClosed)
	}
	if err == nil {
		conn.announced = true
		s.current = conn
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	logs.Infof("connected to curator at %s (collection %s, %d store(s), %d hopper(s))",
		address, conn.collectionPath, len(conn.generators), len(conn.hoppers))
	s.subs.notify(true)
	return nil
}

func (s *Service) open(ctx context.Context, address string) (*connection, error) {
	stream, err := s.dialer.Dial(ctx, address)
	if err != nil {
		var ce *transport.ConnectionError
		if !errors.As(err, &ce) {
			err = &transport.ConnectionError{Address: address, Err: err}
		}
		return nil, err
	}

	conn := &connection{address: address}
	conn.session = session.Open(stream, func(cause error) { s.handleClose(conn, cause) })

	conn.configPath, conn.collectionPath, err = conn.session.Config(ctx)
	if err != nil {
		conn.session.Close()
		return nil, fmt.Errorf("failed to request curator config: %w", err)
	}

	conn.generators, conn.hoppers, err = s.loadLayout(ctx, conn.configPath, conn.collectionPath)
	if err != nil {
		conn.session.Close()
		return nil, err
	}
	return conn, nil
}

// loadLayout streams the daemon's config file through the store and hopper
// builders.
func (s *Service) loadLayout(ctx context.Context, configPath, collectionPath string) ([]layout.PathGenerator, []layout.Hopper, error) {
	thumbs := layout.NewThumbnailBuilder(filepath.Join(collectionPath, layout.ThumbnailSubpath))
	hoppers := layout.NewHopperBuilder()
	parser := ini.NewParser().
		With(layout.StoreSection, thumbs).
		With(layout.HopperSection, hoppers)

	_, err := fsreader.Reduce(ctx, s.fs, configPath, feedLine, parser)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read curator config %s: %w", configPath, err)
	}
	parser.Close()

	logs.Debugf("loadLayout(%s): %d generator(s), %d hopper(s)", configPath, len(thumbs.Generators()), len(hoppers.Hoppers()))
	return thumbs.Generators(), hoppers.Hoppers(), nil
}

// Disconnect closes the live connection, if any. State is cleared before it
// returns, and subscribers have been told.
func (s *Service) Disconnect() {
	s.mu.Lock()
	conn := s.current
	s.current = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}
	logs.Debugf("Disconnect(%s)", conn.address)
	conn.session.Close()
}

func (s *Service) handleClose(conn *connection, cause error) {
	s.mu.Lock()
	if s.current == conn {
		s.current = nil
	}
	conn.closed = true
	announced := conn.announced
	s.mu.Unlock()

	if !announced {
		return
	}
	if cause != nil {
		logs.Warnf("curator connection %s lost: %v", conn.address, cause)
	}
	s.subs.notify(false)
}

// RequestPhashQuery returns up to CandidateLimit stored images similar to
// directory/file, in the daemon's order.
func (s *Service) RequestPhashQuery(ctx context.Context, directory, file string) ([]protocol.Similar, error) {
	s.mu.RLock()
	conn := s.current
	s.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}
	return conn.session.Query(ctx, protocol.PhashAlgorithm, filepath.Join(directory, file), CandidateLimit)
}
