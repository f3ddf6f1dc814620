// Package viewer polls the Presenter for the live slide position and
// fans detected changes out to any number of stream subscribers.
package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/propresenter"
)

const (
	// PollInterval is the cadence of the slide status poll.
	PollInterval = 1500 * time.Millisecond
	// KeepaliveInterval is the cadence of subscriber comment pings.
	KeepaliveInterval = 15 * time.Second
)

// subscriberBuffer is the per-subscriber delivery buffer. A consumer
// that falls this far behind is evicted rather than blocking the poller.
const subscriberBuffer = 64

// EventType tags a viewer broadcast.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventSlideChange  EventType = "slideChange"
)

// Status is the viewer-facing connection and slide snapshot.
type Status struct {
	Connected        bool   `json:"connected"`
	PresenterVersion string `json:"presenterVersion,omitempty"`
	PresentationUUID string `json:"presentationUuid,omitempty"`
	SlideIndex       int    `json:"slideIndex"`
	CurrentText      string `json:"currentText"`
	NextText         string `json:"nextText"`
}

// Event is one broadcast record. slideChange events carry the full
// status plus a cache-busting thumbnail URL.
type Event struct {
	Type         EventType `json:"type"`
	Status       *Status   `json:"status,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
}

// Sink receives broadcasts for one subscriber. Any returned error
// evicts the subscriber.
type Sink interface {
	Send(Event) error
	Ping() error
}

// SlideSource is the slice of the Presenter client the poller needs.
type SlideSource interface {
	Version(ctx context.Context) (propresenter.VersionInfo, error)
	CurrentSlideStatus(ctx context.Context) (propresenter.SlideStatus, error)
}

// Service owns the poll loop and the subscriber set. Deliveries go
// through a buffered channel and a pump goroutine per subscriber, so a
// stalled sink never blocks the poller or the other subscribers.
type Service struct {
	client   SlideSource
	interval time.Duration

	mu        sync.Mutex
	subs      map[*subscription]struct{}
	connected bool
	version   string
	last      propresenter.SlideStatus
	hasSlide  bool

	now func() time.Time
}

// delivery is one queued item for a subscriber: an event or a ping.
type delivery struct {
	event Event
	ping  bool
}

type subscription struct {
	sink Sink
	ch   chan delivery
}

// NewService builds a poller over client at the default cadence.
func NewService(client SlideSource) *Service {
	return &Service{
		client:   client,
		interval: PollInterval,
		subs:     make(map[*subscription]struct{}),
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled. Blocking; run in its own goroutine.
func (s *Service) Run(ctx context.Context) error {
	logger := log.WithComponent("viewer")
	logger.Info().Dur("interval", s.interval).Msg("viewer poller started")

	poll := time.NewTicker(s.interval)
	defer poll.Stop()
	keepalive := time.NewTicker(KeepaliveInterval)
	defer keepalive.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("viewer poller stopped")
			return ctx.Err()
		case <-poll.C:
			s.tick(ctx)
		case <-keepalive.C:
			s.pingAll()
		}
	}
}

// Subscribe registers sink and queues it the snapshot events first: the
// connection state, then the active slide if there is one. The returned
// cancel removes the sink; it is safe to call more than once.
func (s *Service) Subscribe(sink Sink) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscription{sink: sink, ch: make(chan delivery, subscriberBuffer)}

	if s.connected {
		sub.ch <- delivery{event: Event{Type: EventConnected}}
		if s.hasSlide && s.last.SlideIndex >= 0 {
			sub.ch <- delivery{event: s.slideChangeEventLocked()}
		}
	} else {
		sub.ch <- delivery{event: Event{Type: EventDisconnected}}
	}

	s.subs[sub] = struct{}{}
	go s.pump(sub)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.removeLocked(sub)
	}
}

// pump drains one subscriber's queue into its sink. A failed write
// evicts the subscriber; the pump then drains the closed channel and
// exits.
func (s *Service) pump(sub *subscription) {
	for d := range sub.ch {
		var err error
		if d.ping {
			err = sub.sink.Ping()
		} else {
			err = sub.sink.Send(d.event)
		}
		if err != nil {
			s.mu.Lock()
			s.removeLocked(sub)
			s.mu.Unlock()
			for range sub.ch {
			}
			return
		}
	}
}

// removeLocked detaches sub and closes its queue. Caller holds s.mu.
// Idempotent, so cancel and pump eviction can race safely.
func (s *Service) removeLocked(sub *subscription) {
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		close(sub.ch)
	}
}

// Snapshot returns the current viewer status.
func (s *Service) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// CurrentSlide returns the last polled slide position. SlideIndex is -1
// when disconnected or no slide is active.
func (s *Service) CurrentSlide() propresenter.SlideStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || !s.hasSlide {
		return propresenter.SlideStatus{SlideIndex: -1}
	}
	return s.last
}

func (s *Service) statusLocked() Status {
	st := Status{
		Connected:        s.connected,
		PresenterVersion: s.version,
		SlideIndex:       -1,
	}
	if s.connected && s.hasSlide {
		st.PresentationUUID = s.last.PresentationUUID
		st.SlideIndex = s.last.SlideIndex
		st.CurrentText = s.last.CurrentText
		st.NextText = s.last.NextText
	}
	return st
}

func (s *Service) slideChangeEventLocked() Event {
	st := s.statusLocked()
	return Event{
		Type:         EventSlideChange,
		Status:       &st,
		ThumbnailURL: fmt.Sprintf("/viewer/api/thumbnail/%s/%d?t=%d", s.last.PresentationUUID, s.last.SlideIndex, s.now().UnixMilli()),
	}
}

// tick polls once and broadcasts transitions. The HTTP probes run
// before the lock is taken; the mutex only covers state mutation and
// the non-blocking queue writes.
func (s *Service) tick(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, s.interval)
	status, err := s.client.CurrentSlideStatus(pollCtx)
	cancel()

	if err != nil {
		s.markDisconnected(err)
		return
	}

	s.mu.Lock()
	wasConnected := s.connected
	s.mu.Unlock()

	var version string
	if !wasConnected {
		if v, verr := s.client.Version(ctx); verr == nil {
			version = v.Version
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		s.connected = true
		if version != "" {
			s.version = version
		}
		logger := log.WithComponent("viewer")
		logger.Info().Str("version", s.version).Msg("presenter connected")
		s.broadcastLocked(Event{Type: EventConnected})
	}

	changed := !s.hasSlide ||
		status.PresentationUUID != s.last.PresentationUUID ||
		status.SlideIndex != s.last.SlideIndex
	s.last = status
	s.hasSlide = true
	if changed && status.SlideIndex >= 0 {
		s.broadcastLocked(s.slideChangeEventLocked())
	}
}

func (s *Service) markDisconnected(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return
	}
	s.connected = false
	s.hasSlide = false
	logger := log.WithComponent("viewer")
	logger.Warn().Err(err).Msg("presenter unreachable")
	s.broadcastLocked(Event{Type: EventDisconnected})
}

// broadcastLocked queues e for every subscriber without blocking: a
// subscriber whose buffer is full is evicted. Caller holds s.mu.
func (s *Service) broadcastLocked(e Event) {
	for sub := range s.subs {
		select {
		case sub.ch <- delivery{event: e}:
		default:
			s.removeLocked(sub)
		}
	}
}

func (s *Service) pingAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.ch <- delivery{ping: true}:
		default:
			s.removeLocked(sub)
		}
	}
}
