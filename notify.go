package pubsub

import (
	"sync"

	"github.com/libp2p/go-libp2p-core/network"
	ma "github.com/multiformats/go-multiaddr"
)

// Bus is a validated, ordered fan-out of connection and stream lifecycle
// events. It is itself a network.Notifiee, so it can be registered directly
// with a libp2p host's Network() to receive the events it redistributes:
//
//	bus := NewBus()
//	host.Network().Notify(bus)
//	bus.Register(myNotifee)
//
// Unlike host.Network().Notify, which requires its argument to satisfy
// network.Notifiee at compile time, Bus.Register takes an unconstrained
// interface{} and reports whether the candidate qualifies, mirroring the
// duck-typed registration contract of the system this package models.
type Bus struct {
	mu       sync.Mutex
	notifees []network.Notifiee

	jobs      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBus creates a Bus and starts its dispatch loop. Call Close to stop it.
func NewBus() *Bus {
	b := &Bus{
		jobs: make(chan func()),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Bus) loop() {
	defer close(b.done)
	for {
		select {
		case fn := <-b.jobs:
			fn()
		case <-b.quit:
			return
		}
	}
}

// Close stops the dispatch loop. A dispatch already in flight completes;
// events arriving after Close are silently dropped rather than delivered,
// so a network that outlives the bus can keep firing notifications safely.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.quit)
		<-b.done
	})
}

// Register appends candidate to the ordered notifee list iff it implements
// all six network.Notifiee operations with compatible signatures. It
// returns whether the candidate was accepted; a rejected candidate is never
// retained and none of its methods are ever invoked.
func (b *Bus) Register(candidate interface{}) bool {
	n, ok := candidate.(network.Notifiee)
	if !ok {
		return false
	}

	b.mu.Lock()
	b.notifees = append(b.notifees, n)
	b.mu.Unlock()
	return true
}

func (b *Bus) snapshot() []network.Notifiee {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]network.Notifiee, len(b.notifees))
	copy(out, b.notifees)
	return out
}

// dispatch calls fn on every registered notifee, one after another in
// registration order, and blocks the caller until the last has returned.
// Scheduling the fan-out itself goes through the bus's own goroutine so
// that two dispatches from different callers never interleave their
// snapshots. A panicking notifee is logged and skipped; it never prevents
// delivery to the others.
func (b *Bus) dispatch(fn func(network.Notifiee)) {
	done := make(chan struct{})
	job := func() {
		defer close(done)

		for _, n := range b.snapshot() {
			b.safeCall(n, fn)
		}
	}

	select {
	case b.jobs <- job:
		<-done
	case <-b.quit:
	}
}

func (b *Bus) safeCall(n network.Notifiee, fn func(network.Notifiee)) {
	defer func() {
		if r := recover(); r != nil {
			log.Warningf("notifee %T panicked: %v", n, r)
		}
	}()
	fn(n)
}

// The six methods below make *Bus itself a network.Notifiee, letting it sit
// between a real network and the application-registered observers.

func (b *Bus) Listen(net network.Network, a ma.Multiaddr) {
	b.dispatch(func(n network.Notifiee) { n.Listen(net, a) })
}

func (b *Bus) ListenClose(net network.Network, a ma.Multiaddr) {
	b.dispatch(func(n network.Notifiee) { n.ListenClose(net, a) })
}

func (b *Bus) Connected(net network.Network, c network.Conn) {
	b.dispatch(func(n network.Notifiee) { n.Connected(net, c) })
}

func (b *Bus) Disconnected(net network.Network, c network.Conn) {
	b.dispatch(func(n network.Notifiee) { n.Disconnected(net, c) })
}

func (b *Bus) OpenedStream(net network.Network, s network.Stream) {
	b.dispatch(func(n network.Notifiee) { n.OpenedStream(net, s) })
}

func (b *Bus) ClosedStream(net network.Network, s network.Stream) {
	b.dispatch(func(n network.Notifiee) { n.ClosedStream(net, s) })
}
