package viewer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu     sync.Mutex
	status propresenter.SlideStatus
	err    error
}

func (f *fakeSource) set(status propresenter.SlideStatus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.err = status, err
}

func (f *fakeSource) Version(ctx context.Context) (propresenter.VersionInfo, error) {
	return propresenter.VersionInfo{Version: "7.9"}, nil
}

func (f *fakeSource) CurrentSlideStatus(ctx context.Context) (propresenter.SlideStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

type chanSink struct {
	ch   chan Event
	fail atomic.Bool
}

func newChanSink() *chanSink { return &chanSink{ch: make(chan Event, 64)} }

func (c *chanSink) Send(e Event) error {
	if c.fail.Load() {
		return errors.New("sink closed")
	}
	c.ch <- e
	return nil
}

func (c *chanSink) Ping() error {
	if c.fail.Load() {
		return errors.New("sink closed")
	}
	return nil
}

func (c *chanSink) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-c.ch:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (c *chanSink) none(t *testing.T) {
	t.Helper()
	select {
	case e := <-c.ch:
		t.Fatalf("unexpected event %q", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

// blockingSink stalls in Send until released, standing in for an SSE
// client that stopped reading.
type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Send(Event) error {
	<-b.release
	return nil
}

func (b *blockingSink) Ping() error { return nil }

func (s *Service) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func TestSubscribeBeforeFirstPollGetsDisconnectedSnapshot(t *testing.T) {
	s := NewService(&fakeSource{})
	sink := newChanSink()
	cancel := s.Subscribe(sink)
	defer cancel()

	assert.Equal(t, EventDisconnected, sink.next(t).Type)
}

func TestConnectBroadcastsConnectedThenSlideChange(t *testing.T) {
	src := &fakeSource{}
	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 0, CurrentText: "Amazing grace"}, nil)
	s := NewService(src)

	sink := newChanSink()
	cancel := s.Subscribe(sink)
	defer cancel()
	assert.Equal(t, EventDisconnected, sink.next(t).Type)

	s.tick(context.Background())

	assert.Equal(t, EventConnected, sink.next(t).Type)
	change := sink.next(t)
	assert.Equal(t, EventSlideChange, change.Type)
	require.NotNil(t, change.Status)
	assert.Equal(t, 0, change.Status.SlideIndex)
	assert.Equal(t, "Amazing grace", change.Status.CurrentText)
	assert.Equal(t, "7.9", change.Status.PresenterVersion)
	assert.Contains(t, change.ThumbnailURL, "/viewer/api/thumbnail/P/0?t=")
}

func TestLateSubscriberGetsSnapshotFirst(t *testing.T) {
	src := &fakeSource{}
	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 2}, nil)
	s := NewService(src)
	s.tick(context.Background())

	sink := newChanSink()
	cancel := s.Subscribe(sink)
	defer cancel()

	assert.Equal(t, EventConnected, sink.next(t).Type)
	change := sink.next(t)
	assert.Equal(t, EventSlideChange, change.Type)
	assert.Equal(t, 2, change.Status.SlideIndex)
}

func TestUnchangedSlideEmitsNothing(t *testing.T) {
	src := &fakeSource{}
	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 1}, nil)
	s := NewService(src)
	s.tick(context.Background())

	sink := newChanSink()
	cancel := s.Subscribe(sink)
	defer cancel()
	sink.next(t) // connected
	sink.next(t) // slideChange snapshot

	s.tick(context.Background())
	sink.none(t)

	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 2}, nil)
	s.tick(context.Background())
	assert.Equal(t, EventSlideChange, sink.next(t).Type)
}

func TestNoActiveSlideSuppressesSlideChange(t *testing.T) {
	src := &fakeSource{}
	src.set(propresenter.SlideStatus{SlideIndex: -1}, nil)
	s := NewService(src)

	sink := newChanSink()
	cancel := s.Subscribe(sink)
	defer cancel()
	sink.next(t) // disconnected snapshot

	s.tick(context.Background())
	assert.Equal(t, EventConnected, sink.next(t).Type)
	sink.none(t)

	assert.Equal(t, -1, s.Snapshot().SlideIndex)
	assert.Equal(t, -1, s.CurrentSlide().SlideIndex)
}

func TestDisconnectPublishedOncePerTransition(t *testing.T) {
	src := &fakeSource{}
	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 0}, nil)
	s := NewService(src)
	s.tick(context.Background())

	sink := newChanSink()
	cancel := s.Subscribe(sink)
	defer cancel()
	sink.next(t) // connected
	sink.next(t) // slideChange

	src.set(propresenter.SlideStatus{}, errors.New("connection refused"))
	s.tick(context.Background())
	assert.Equal(t, EventDisconnected, sink.next(t).Type)

	s.tick(context.Background())
	s.tick(context.Background())
	sink.none(t)

	assert.False(t, s.Snapshot().Connected)
}

func TestFailingSinkIsEvicted(t *testing.T) {
	src := &fakeSource{}
	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 0}, nil)
	s := NewService(src)

	dead := newChanSink()
	cancelDead := s.Subscribe(dead)
	defer cancelDead()
	dead.next(t) // snapshot delivered while healthy
	dead.fail.Store(true)

	live := newChanSink()
	cancelLive := s.Subscribe(live)
	defer cancelLive()
	live.next(t)

	s.tick(context.Background())

	live.next(t) // connected
	live.next(t) // slideChange

	// Eviction happens in the dead subscriber's pump goroutine.
	assert.Eventually(t, func() bool {
		return s.subscriberCount() == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSlowSubscriberDoesNotBlockPollOrSnapshot(t *testing.T) {
	src := &fakeSource{}
	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 0}, nil)
	s := NewService(src)

	stalled := &blockingSink{release: make(chan struct{})}
	defer close(stalled.release)
	cancelStalled := s.Subscribe(stalled)
	defer cancelStalled()

	healthy := newChanSink()
	cancelHealthy := s.Subscribe(healthy)
	defer cancelHealthy()
	healthy.next(t) // disconnected snapshot

	// The poll tick must return promptly even though one subscriber's
	// Send never completes.
	ticked := make(chan struct{})
	go func() {
		s.tick(context.Background())
		close(ticked)
	}()
	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("poll tick blocked by a stalled subscriber")
	}

	// Healthy subscribers keep receiving.
	assert.Equal(t, EventConnected, healthy.next(t).Type)
	assert.Equal(t, EventSlideChange, healthy.next(t).Type)

	// Status reads must not queue behind the stalled delivery.
	snapped := make(chan Status, 1)
	go func() { snapped <- s.Snapshot() }()
	select {
	case st := <-snapped:
		assert.True(t, st.Connected)
	case <-time.After(2 * time.Second):
		t.Fatal("Snapshot blocked behind a stalled subscriber")
	}
}

func TestStalledSubscriberEvictedOnBufferOverflow(t *testing.T) {
	src := &fakeSource{}
	s := NewService(src)

	stalled := &blockingSink{release: make(chan struct{})}
	defer close(stalled.release)
	cancelStalled := s.Subscribe(stalled)
	defer cancelStalled()

	// Sized to absorb the whole flood so only the stalled sink overflows.
	healthy := &chanSink{ch: make(chan Event, 4*subscriberBuffer)}
	cancelHealthy := s.Subscribe(healthy)
	defer cancelHealthy()

	// Each tick with a new slide index broadcasts one event; enough of
	// them fill the stalled subscriber's buffer and evict it.
	for i := 0; i < subscriberBuffer+4; i++ {
		src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: i}, nil)
		s.tick(context.Background())
	}

	assert.Equal(t, 1, s.subscriberCount())

	// The healthy subscriber is still attached and receiving.
	assert.Equal(t, EventDisconnected, healthy.next(t).Type)
	assert.Equal(t, EventConnected, healthy.next(t).Type)
	assert.Equal(t, EventSlideChange, healthy.next(t).Type)
}

func TestRunFanOutTwoSubscribers(t *testing.T) {
	src := &fakeSource{}
	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 0}, nil)
	s := NewService(src)
	s.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	s1 := newChanSink()
	c1 := s.Subscribe(s1)
	defer c1()
	time.Sleep(30 * time.Millisecond)
	s2 := newChanSink()
	c2 := s.Subscribe(s2)
	defer c2()

	for _, sink := range []*chanSink{s1, s2} {
		first := sink.next(t)
		second := sink.next(t)
		// Snapshot pair: connection state then the active slide.
		if first.Type == EventDisconnected {
			assert.Equal(t, EventConnected, second.Type)
			second = sink.next(t)
		} else {
			assert.Equal(t, EventConnected, first.Type)
		}
		assert.Equal(t, EventSlideChange, second.Type)
		assert.Equal(t, 0, second.Status.SlideIndex)
	}

	src.set(propresenter.SlideStatus{PresentationUUID: "P", SlideIndex: 1}, nil)

	for _, sink := range []*chanSink{s1, s2} {
		change := sink.next(t)
		assert.Equal(t, EventSlideChange, change.Type)
		assert.Equal(t, 1, change.Status.SlideIndex)
		sink.none(t)
	}

	cancel()
	<-done
}
