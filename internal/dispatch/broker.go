package dispatch

import (
	"context"
	"sync"
)

// Broker fans delivered results out to subscribers. Each subscriber gets its
// own unbounded queue drained by a pump goroutine, so Deliver never blocks
// and no result is dropped while the subscription is open.
type Broker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: map[*subscriber]struct{}{}}
}

type subscriber struct {
	mu     sync.Mutex
	queue  []Result
	notify chan struct{}
	out    chan Result
	done   chan struct{}
	once   sync.Once
}

// Subscribe returns a channel receiving every result delivered after the call.
// The channel is closed when ctx is done or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context) <-chan Result {
	s := &subscriber{
		notify: make(chan struct{}, 1),
		out:    make(chan Result),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.out)
		return s.out
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		b.remove(s)
	}()
	return s.out
}

// Deliver implements Sink.
func (b *Broker) Deliver(r Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.push(r)
	}
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.subs {
		s.stop()
		delete(b.subs, s)
	}
}

// Subscribers reports the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) remove(s *subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
	s.stop()
}

func (s *subscriber) push(r Result) {
	s.mu.Lock()
	s.queue = append(s.queue, r)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) pump(ctx context.Context) {
	defer close(s.out)
	for {
		s.mu.Lock()
		var next *Result
		if len(s.queue) > 0 {
			r := s.queue[0]
			s.queue = s.queue[1:]
			next = &r
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		select {
		case s.out <- *next:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
