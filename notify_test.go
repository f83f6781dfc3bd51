package pubsub

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peerstore"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

type countingNotifee struct {
	mu        sync.Mutex
	connected int
	opened    int
}

func (c *countingNotifee) Listen(network.Network, ma.Multiaddr)      {}
func (c *countingNotifee) ListenClose(network.Network, ma.Multiaddr) {}

func (c *countingNotifee) Connected(network.Network, network.Conn) {
	c.mu.Lock()
	c.connected++
	c.mu.Unlock()
}

func (c *countingNotifee) Disconnected(network.Network, network.Conn) {}

func (c *countingNotifee) OpenedStream(network.Network, network.Stream) {
	c.mu.Lock()
	c.opened++
	c.mu.Unlock()
}

func (c *countingNotifee) ClosedStream(network.Network, network.Stream) {}

func (c *countingNotifee) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected, c.opened
}

// busEvent is one recorded lifecycle callback: its tagged name plus the
// conn or stream it carried.
type busEvent struct {
	name string
	obj  interface{}
}

// eventLogNotifee records connected/opened_stream callbacks in arrival
// order, tagging each event name so tests with several observers can tell
// their logs apart.
type eventLogNotifee struct {
	mu     sync.Mutex
	tag    string
	events []busEvent
}

func (l *eventLogNotifee) record(name string, obj interface{}) {
	l.mu.Lock()
	l.events = append(l.events, busEvent{name: name + l.tag, obj: obj})
	l.mu.Unlock()
}

func (l *eventLogNotifee) Listen(network.Network, ma.Multiaddr)       {}
func (l *eventLogNotifee) ListenClose(network.Network, ma.Multiaddr)  {}
func (l *eventLogNotifee) Disconnected(network.Network, network.Conn) {}
func (l *eventLogNotifee) ClosedStream(network.Network, network.Stream) {}

func (l *eventLogNotifee) Connected(_ network.Network, c network.Conn) {
	l.record("connected", c)
}

func (l *eventLogNotifee) OpenedStream(_ network.Network, s network.Stream) {
	l.record("opened_stream", s)
}

// sawConnBeforeStream reports whether the log holds a connected event for
// s's connection strictly before an opened_stream event for s itself.
func (l *eventLogNotifee) sawConnBeforeStream(s network.Stream) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	connIdx, streamIdx := -1, -1
	for i, e := range l.events {
		if connIdx == -1 && e.name == "connected"+l.tag && e.obj == s.Conn() {
			connIdx = i
		}
		if streamIdx == -1 && e.name == "opened_stream"+l.tag && e.obj == s {
			streamIdx = i
		}
	}
	return connIdx != -1 && streamIdx != -1 && connIdx < streamIdx
}

const echoProtocol = "/echo/1.0.0"

// setUpEchoHosts wires two loopback hosts, installing an "ack:"-prefixing
// echo handler on the second, and teaches the first the second's addresses
// so it can open streams without an explicit dial.
func setUpEchoHosts(t *testing.T, ctx context.Context) (host.Host, host.Host) {
	hosts := getNetHosts(t, ctx, 2)
	a, b := hosts[0], hosts[1]

	b.SetStreamHandler(echoProtocol, func(s network.Stream) {
		defer s.Close()
		buf := make([]byte, 256)
		for {
			n, err := s.Read(buf)
			if err != nil {
				return
			}
			resp := append([]byte("ack:"), buf[:n]...)
			if _, err := s.Write(resp); err != nil {
				return
			}
		}
	})

	a.Peerstore().AddAddrs(b.ID(), b.Addrs(), peerstore.PermanentAddrTTL)
	return a, b
}

// TestOneNotifierSeesDialThenStream mirrors test_one_notifier: a single
// observer on the dialing node sees connected strictly before
// opened_stream, the recorded conn is the stream's own connection, and the
// stream itself still carries echo traffic afterwards.
func TestOneNotifierSeesDialThenStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := setUpEchoHosts(t, ctx)

	bus := NewBus()
	defer bus.Close()
	a.Network().Notify(bus)

	observer := &eventLogNotifee{tag: "0"}
	require.True(t, bus.Register(observer))

	s, err := a.NewStream(ctx, b.ID(), echoProtocol)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return observer.sawConnBeforeStream(s)
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 2; i++ {
		_, err = s.Write([]byte("hello"))
		require.NoError(t, err)

		buf := make([]byte, len("ack:hello"))
		_, err = io.ReadFull(s, buf)
		require.NoError(t, err)
		require.Equal(t, "ack:hello", string(buf))
	}
}

// invalidNotifee has lifecycle-shaped methods of the wrong arity, so it
// must never satisfy the Bus's capability check; every method counts its
// invocations so a test can assert none ever happened.
type invalidNotifee struct {
	calls int32
}

func (n *invalidNotifee) OpenedStream() { atomic.AddInt32(&n.calls, 1) }
func (n *invalidNotifee) ClosedStream() { atomic.AddInt32(&n.calls, 1) }
func (n *invalidNotifee) Connected()    { atomic.AddInt32(&n.calls, 1) }
func (n *invalidNotifee) Disconnected() { atomic.AddInt32(&n.calls, 1) }
func (n *invalidNotifee) Listen()       { atomic.AddInt32(&n.calls, 1) }

// TestInvalidNotifeeNeverInvoked mirrors test_invalid_notifee: ten
// registration attempts in a row are all rejected, and even after real
// stream traffic none of the candidate's methods has been called.
func TestInvalidNotifeeNeverInvoked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := setUpEchoHosts(t, ctx)

	bus := NewBus()
	defer bus.Close()
	a.Network().Notify(bus)

	inv := &invalidNotifee{}
	for i := 0; i < 10; i++ {
		require.False(t, bus.Register(inv))
	}

	s, err := a.NewStream(ctx, b.ID(), echoProtocol)
	require.NoError(t, err)

	_, err = s.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, len("ack:hello"))
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	require.Equal(t, "ack:hello", string(buf))

	require.Zero(t, atomic.LoadInt32(&inv.calls))
}

// TestNotifeeBusOrderingBothEnds mirrors test_one_notifier_on_two_nodes:
// observers on both ends of a connection each see their own node's events,
// the accept side included, with connected preceding opened_stream on each
// side.
func TestNotifeeBusOrderingBothEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hosts := getNetHosts(t, ctx, 2)
	a, b := hosts[0], hosts[1]

	busB := NewBus()
	defer busB.Close()
	b.Network().Notify(busB)

	observerB := &eventLogNotifee{tag: "b"}
	require.True(t, busB.Register(observerB))

	handled := make(chan network.Stream, 1)
	b.SetStreamHandler(echoProtocol, func(s network.Stream) {
		defer s.Close()
		handled <- s
		buf := make([]byte, 256)
		for {
			n, err := s.Read(buf)
			if err != nil {
				return
			}
			if _, err := s.Write(append([]byte("ack:"), buf[:n]...)); err != nil {
				return
			}
		}
	})

	a.Peerstore().AddAddrs(b.ID(), b.Addrs(), peerstore.PermanentAddrTTL)

	busA := NewBus()
	defer busA.Close()
	a.Network().Notify(busA)

	observerA := &eventLogNotifee{tag: "a"}
	require.True(t, busA.Register(observerA))

	s, err := a.NewStream(ctx, b.ID(), echoProtocol)
	require.NoError(t, err)

	_, err = s.Write([]byte("hello"))
	require.NoError(t, err)

	var inbound network.Stream
	select {
	case inbound = <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler never ran")
	}

	require.Eventually(t, func() bool {
		return observerA.sawConnBeforeStream(s)
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return observerB.sawConnBeforeStream(inbound)
	}, 2*time.Second, 10*time.Millisecond)
}

// TestBusRegisterRejectsNonNotifee exercises the duck-typed registration
// contract: a candidate lacking the six Notifiee methods is rejected
// without ever being invoked.
func TestBusRegisterRejectsNonNotifee(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ok := b.Register("not a notifee")
	require.False(t, ok)
}

// TestNotifeeBusTenObservers mirrors test_ten_notifiers: many observers
// registered on one bus all see the same event exactly once, in order.
func TestNotifeeBusTenObservers(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var notifees []*countingNotifee
	for i := 0; i < 10; i++ {
		n := &countingNotifee{}
		require.True(t, b.Register(n))
		notifees = append(notifees, n)
	}

	b.Connected(nil, nil)

	for _, n := range notifees {
		connected, _ := n.counts()
		require.Equal(t, 1, connected)
	}
}

type panickingNotifee struct{}

func (panickingNotifee) Listen(network.Network, ma.Multiaddr)         {}
func (panickingNotifee) ListenClose(network.Network, ma.Multiaddr)    {}
func (panickingNotifee) Connected(network.Network, network.Conn)      { panic("boom") }
func (panickingNotifee) Disconnected(network.Network, network.Conn)   {}
func (panickingNotifee) OpenedStream(network.Network, network.Stream) {}
func (panickingNotifee) ClosedStream(network.Network, network.Stream) {}

// TestBusIsolatesPanickingNotifee checks that one observer's panic does not
// stop delivery to the observers registered after it.
func TestBusIsolatesPanickingNotifee(t *testing.T) {
	b := NewBus()
	defer b.Close()

	require.True(t, b.Register(panickingNotifee{}))
	n := &countingNotifee{}
	require.True(t, b.Register(n))

	done := make(chan struct{})
	go func() {
		b.Connected(nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked after a notifee panicked")
	}

	connected, _ := n.counts()
	require.Equal(t, 1, connected)
}

// TestBusCloseDropsLateEvents checks that an event dispatched before Close
// is delivered, and that an event arriving after Close returns without
// being delivered instead of deadlocking.
func TestBusCloseDropsLateEvents(t *testing.T) {
	b := NewBus()

	slow := &countingNotifee{}
	require.True(t, b.Register(slow))

	b.Connected(nil, nil)
	b.Close()

	// a late event on a closed bus returns without delivering
	b.Connected(nil, nil)

	connected, _ := slow.counts()
	require.Equal(t, 1, connected)
}
