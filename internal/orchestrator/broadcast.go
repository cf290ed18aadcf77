package orchestrator

import "sync"

// defaultSubscriberBuffer is the per-subscriber channel capacity. A slow
// subscriber back-pressures the control loop once its buffer fills; events
// are never dropped.
const defaultSubscriberBuffer = 64

// subscriber owns one outbound event channel. The send mutex serialises
// sends against the close, so the channel is never closed mid-send.
type subscriber struct {
	ch   chan Event
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// send delivers ev unless the subscriber cancelled. A blocked send wakes up
// as soon as the subscriber's done channel closes.
func (s *subscriber) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	case <-s.done:
	}
}

// finish closes the outbound channel once no send is in flight.
func (s *subscriber) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// broadcaster fans events out to all current subscribers in emission order.
// publish is called only from the orchestrator control loop; subscribe and
// cancel may be called from any goroutine.
type broadcaster struct {
	buffer int

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

func newBroadcaster(buffer int) *broadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &broadcaster{
		buffer: buffer,
		subs:   make(map[int]*subscriber),
	}
}

// subscribe registers a new subscriber and returns its channel plus a
// cancel function. The channel is closed by cancel or by close; cancel is
// idempotent and never blocks on an in-flight publish.
func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:   make(chan Event, b.buffer),
		done: make(chan struct{}),
	}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Unblock any in-flight send, then close the channel once the
			// sender is guaranteed out.
			close(sub.done)
			go sub.finish()
		})
	}
	return sub.ch, cancel
}

// publish delivers ev to every subscriber, blocking on full buffers so no
// event is lost.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.send(ev)
	}
}

// close closes every subscriber channel. Further subscribes return a closed
// channel and publishes become no-ops.
func (b *broadcaster) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subs))
	for id, s := range b.subs {
		delete(b.subs, id)
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		close(s.done)
		s.finish()
	}
}
