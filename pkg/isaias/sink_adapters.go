package isaias

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("isaias: channel sink closed")

// DatasetHandler receives every assembled dataset together with the name of
// the target it came from.
type DatasetHandler func(source string, ds *Dataset) error

// Delivery is one dataset handed out by a channel sink.
type Delivery struct {
	Source  string
	Dataset *Dataset
}

// NewCallbackSink adapts a DatasetHandler into a full Sink implementation so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn DatasetHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes datasets via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan Delivery, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Delivery, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   DatasetHandler
}

func (s *callbackSink) WriteDataset(_ context.Context, source string, ds *Dataset) (int, error) {
	if s.fn == nil {
		return 0, fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if ds == nil || ds.Len() == 0 {
		return 0, nil
	}
	if err := s.fn(source, ds); err != nil {
		return 0, err
	}
	return ds.Len(), nil
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan Delivery
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (s *channelSink) WriteDataset(ctx context.Context, source string, ds *Dataset) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return 0, ErrChannelSinkClosed
	default:
	}

	if ds == nil || ds.Len() == 0 {
		return 0, nil
	}

	select {
	case <-s.closed:
		return 0, ErrChannelSinkClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	case s.ch <- Delivery{Source: source, Dataset: ds}:
		return ds.Len(), nil
	}
}

func (s *channelSink) Name() string { return s.name }

// close waits for in-flight writes so the channel is never closed under a sender.
func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
