package cancomm

import (
	"errors"
	"sync"
	"time"
)

// DefaultPollInterval is how long Mux waits after Receive reports
// ErrNoFrame.
const DefaultPollInterval = time.Millisecond

// Mux polls a Bus from one goroutine and fans frames out to subscribers.
//
// Receive never blocks, so the goroutine drains every queued frame and then
// sleeps for the poll interval. Close is the stop signal. Transmit is not
// proxied; keep using the Bus directly.
type Mux struct {
	bus      Bus
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once

	mu   sync.RWMutex
	subs map[uint64]*subscriber
	next uint64
	dead bool
	err  error
}

type subscriber struct {
	filter FrameFilter
	ch     chan Frame
}

// NewMux creates and starts a multiplexer reading from bus. A non-positive
// interval selects DefaultPollInterval.
func NewMux(bus Bus, interval time.Duration) *Mux {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	m := &Mux{
		bus:      bus,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		subs:     make(map[uint64]*subscriber),
	}
	go m.run()
	return m
}

// Close stops polling, waits for the goroutine to exit and closes all
// subscriber channels.
func (m *Mux) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done
	return nil
}

// Done is closed once the Mux has stopped, either by Close or because
// Receive failed.
func (m *Mux) Done() <-chan struct{} { return m.done }

// Err returns the Receive error that stopped the Mux, or nil.
func (m *Mux) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Subscribe registers a subscriber. Frames matching filter (all frames for a
// nil filter) are sent on the returned channel; they are dropped while the
// channel buffer is full. cancel closes the channel.
func (m *Mux) Subscribe(filter FrameFilter, buffer int) (<-chan Frame, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{filter: filter, ch: make(chan Frame, buffer)}
	m.mu.Lock()
	if m.dead {
		m.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	id := m.next
	m.next++
	m.subs[id] = s
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if cur, ok := m.subs[id]; ok && cur == s {
			close(cur.ch)
			delete(m.subs, id)
		}
		m.mu.Unlock()
	}
	return s.ch, cancel
}

func (m *Mux) run() {
	defer close(m.done)
	timer := time.NewTimer(m.interval)
	defer timer.Stop()
	for {
		select {
		case <-m.stop:
			m.shutdown(nil)
			return
		default:
		}
		f, err := m.bus.Receive()
		if err == nil {
			m.dispatch(f)
			continue
		}
		if !errors.Is(err, ErrNoFrame) {
			m.shutdown(err)
			return
		}
		timer.Reset(m.interval)
		select {
		case <-m.stop:
			m.shutdown(nil)
			return
		case <-timer.C:
		}
	}
}

func (m *Mux) dispatch(f Frame) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subs {
		if s.filter == nil || s.filter(f) {
			select {
			case s.ch <- f:
			default:
			}
		}
	}
}

func (m *Mux) shutdown(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = true
	m.err = err
	for id, s := range m.subs {
		close(s.ch)
		delete(m.subs, id)
	}
}
