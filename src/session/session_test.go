package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/curator_link/src/protocol"
	"github.com/google/go-cmp/cmp"
)

// fakeStream records sent frames and delivers whatever the test pushes.
type fakeStream struct {
	sent    chan []byte
	inbound chan []byte
	sendErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		sent:    make(chan []byte, 16),
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeStream) Send(frame []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent <- append([]byte(nil), frame...)
	return nil
}

func (f *fakeStream) Receive() ([]byte, error) {
	select {
	case frame := <-f.inbound:
		return frame, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeStream) RemoteAddr() string { return "fake" }

func waitSent(t *testing.T, f *fakeStream) []byte {
	t.Helper()
	select {
	case frame := <-f.sent:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sent frame")
		return nil
	}
}

type outcome struct {
	list []protocol.Similar
	err  error
}

func TestSessionConfig(t *testing.T) {
	stream := newFakeStream()
	s := Open(stream, nil)
	defer s.Close()

	done := make(chan error, 1)
	var config, collection string
	go func() {
		var err error
		config, collection, err = s.Config(context.Background())
		done <- err
	}()

	if got := waitSent(t, stream); string(got) != string(protocol.EncodeConfigRequest()) {
		t.Fatalf("sent frame = %v, want config request", got)
	}
	stream.inbound <- protocol.EncodeResponse(protocol.EncodeConfigPayload("/etc/c.ini", "/srv/c"))

	if err := <-done; err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if config != "/etc/c.ini" || collection != "/srv/c" {
		t.Errorf("Config = (%q, %q)", config, collection)
	}
}

func TestSessionFIFOCorrelation(t *testing.T) {
	stream := newFakeStream()
	s := Open(stream, nil)
	defer s.Close()

	first := make(chan outcome, 1)
	second := make(chan outcome, 1)

	go func() {
		list, err := s.Query(context.Background(), protocol.PhashAlgorithm, "/a", 3)
		first <- outcome{list, err}
	}()
	waitSent(t, stream)
	go func() {
		list, err := s.Query(context.Background(), protocol.PhashAlgorithm, "/b", 3)
		second <- outcome{list, err}
	}()
	waitSent(t, stream)

	if n := s.Pending(); n != 2 {
		t.Fatalf("Pending() = %d, want 2", n)
	}

	// The first response is larger than the second to rule out size effects.
	big := []protocol.Similar{{Group: 1, Index: 1, Diff: 1}, {Group: 1, Index: 2, Diff: 2}, {Group: 1, Index: 3, Diff: 3}}
	small := []protocol.Similar{{Group: 2, Index: 0, Diff: 0}}
	stream.inbound <- protocol.EncodeResponse(protocol.EncodeSimilarList(big))
	stream.inbound <- protocol.EncodeResponse(protocol.EncodeSimilarList(small))

	got1 := <-first
	got2 := <-second
	if got1.err != nil || got2.err != nil {
		t.Fatalf("queries failed: %v, %v", got1.err, got2.err)
	}
	if diff := cmp.Diff(big, got1.list); diff != "" {
		t.Errorf("first query mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(small, got2.list); diff != "" {
		t.Errorf("second query mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionStatusErrorIsPerRequest(t *testing.T) {
	stream := newFakeStream()
	s := Open(stream, nil)
	defer s.Close()

	errs := make(chan error, 1)
	go func() {
		_, err := s.Query(context.Background(), protocol.PhashAlgorithm, "/missing", 3)
		errs <- err
	}()
	waitSent(t, stream)
	stream.inbound <- protocol.EncodeErrorResponse(protocol.StatusNotFound, "")

	err := <-errs
	se, ok := protocol.IsStatusError(err)
	if !ok {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Message != "No data available" {
		t.Errorf("message = %q", se.Message)
	}

	// The session stays usable.
	go func() {
		_, err := s.Query(context.Background(), protocol.PhashAlgorithm, "/ok", 3)
		errs <- err
	}()
	waitSent(t, stream)
	stream.inbound <- protocol.EncodeResponse(nil)
	if err := <-errs; err != nil {
		t.Errorf("follow-up query failed: %v", err)
	}
}

func TestSessionTruncatedResponseIsProtocolError(t *testing.T) {
	stream := newFakeStream()
	s := Open(stream, nil)
	defer s.Close()

	errs := make(chan error, 1)
	go func() {
		_, err := s.Request(context.Background(), protocol.EncodeConfigRequest())
		errs <- err
	}()
	waitSent(t, stream)
	stream.inbound <- []byte{0}

	if _, ok := protocol.IsProtocolError(<-errs); !ok {
		t.Error("expected ProtocolError for a truncated response")
	}
}

func TestSessionUnsolicitedCloseFailsPending(t *testing.T) {
	stream := newFakeStream()
	causes := make(chan error, 1)
	s := Open(stream, func(cause error) { causes <- cause })

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.Query(context.Background(), protocol.PhashAlgorithm, "/x", 3)
			errs <- err
		}()
		waitSent(t, stream)
	}

	stream.Close() // peer goes away

	for i := 0; i < 2; i++ {
		if err := <-errs; !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("pending request error = %v, want ErrConnectionClosed", err)
		}
	}
	if cause := <-causes; cause != io.EOF {
		t.Errorf("onClose cause = %v, want io.EOF", cause)
	}

	if _, err := s.Request(context.Background(), protocol.EncodeConfigRequest()); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("request after close = %v, want ErrConnectionClosed", err)
	}
}

func TestSessionCloseIsIdempotentAndNotifiesOnce(t *testing.T) {
	stream := newFakeStream()
	var calls int
	var mu sync.Mutex
	s := Open(stream, func(cause error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if cause != nil {
			t.Errorf("explicit close cause = %v, want nil", cause)
		}
	})

	s.Close()
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("onClose called %d times, want 1", calls)
	}
}

func TestSessionContextCancelKeepsOrder(t *testing.T) {
	stream := newFakeStream()
	s := Open(stream, nil)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, err := s.Query(ctx, protocol.PhashAlgorithm, "/stale", 3)
		abandoned <- err
	}()
	waitSent(t, stream)
	cancel()
	if err := <-abandoned; !errors.Is(err, context.Canceled) {
		t.Fatalf("abandoned query = %v, want context.Canceled", err)
	}

	fresh := make(chan outcome, 1)
	go func() {
		list, err := s.Query(context.Background(), protocol.PhashAlgorithm, "/fresh", 3)
		fresh <- outcome{list, err}
	}()
	waitSent(t, stream)

	want := []protocol.Similar{{Group: 9, Index: 9, Diff: 9}}
	stream.inbound <- protocol.EncodeResponse(protocol.EncodeSimilarList([]protocol.Similar{{Group: 1}}))
	stream.inbound <- protocol.EncodeResponse(protocol.EncodeSimilarList(want))

	got := <-fresh
	if got.err != nil {
		t.Fatalf("fresh query failed: %v", got.err)
	}
	if diff := cmp.Diff(want, got.list); diff != "" {
		t.Errorf("fresh query got the stale response (-want +got):\n%s", diff)
	}
}

func TestSessionSendFailureClosesSession(t *testing.T) {
	stream := newFakeStream()
	stream.sendErr = errors.New("broken pipe")
	s := Open(stream, nil)

	if _, err := s.Request(context.Background(), protocol.EncodeConfigRequest()); err == nil {
		t.Fatal("expected send error")
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after a failed send")
	}
	if n := s.Pending(); n != 0 {
		t.Errorf("Pending() = %d after failed send, want 0", n)
	}
}

func TestQueueOrder(t *testing.T) {
	var q Queue[int]
	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}
	if v, _ := q.DequeueOldest(); v != 1 {
		t.Errorf("DequeueOldest = %d, want 1", v)
	}
	if v, _ := q.DropNewest(); v != 3 {
		t.Errorf("DropNewest = %d, want 3", v)
	}
	if diff := cmp.Diff([]int{2}, q.Drain()); diff != "" {
		t.Errorf("Drain mismatch (-want +got):\n%s", diff)
	}
	if _, ok := q.DequeueOldest(); ok {
		t.Error("DequeueOldest on empty queue reported an item")
	}
}
