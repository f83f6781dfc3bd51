package pubsub

import (
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/protocol"
	ma "github.com/multiformats/go-multiaddr"
)

// pubSubNotifee is PubSub's own registration with the notifee Bus: it
// turns raw connection/stream lifecycle events into the processLoop
// channel traffic that drives peer bookkeeping (newPeers, newPeerStream,
// peerDead). It is registered alongside, not instead of, any
// application-level notifees the caller adds via ps.Bus().Register.
type pubSubNotifee PubSub

func (n *pubSubNotifee) Listen(network.Network, ma.Multiaddr)      {}
func (n *pubSubNotifee) ListenClose(network.Network, ma.Multiaddr) {}

func (n *pubSubNotifee) Connected(net network.Network, c network.Conn) {
	ps := (*PubSub)(n)
	select {
	case ps.newPeers <- c.RemotePeer():
	case <-ps.ctx.Done():
	}
}

func (n *pubSubNotifee) Disconnected(net network.Network, c network.Conn) {
	ps := (*PubSub)(n)
	if net.Connectedness(c.RemotePeer()) == network.Connected {
		// Still have another open connection to this peer; do nothing.
		return
	}
	select {
	case ps.peerDead <- c.RemotePeer():
	case <-ps.ctx.Done():
	}
}

func (n *pubSubNotifee) OpenedStream(net network.Network, s network.Stream) {
	ps := (*PubSub)(n)
	if !ps.supportsProtocol(s.Protocol()) {
		return
	}
	select {
	case ps.newPeerStream <- s:
	case <-ps.ctx.Done():
	}
}

func (n *pubSubNotifee) ClosedStream(network.Network, network.Stream) {}

func (ps *PubSub) supportsProtocol(id protocol.ID) bool {
	for _, p := range ps.rt.Protocols() {
		if p == id {
			return true
		}
	}
	return false
}

// Bus returns the notifee Bus this PubSub instance observes connection
// lifecycle through; applications register their own network.Notifiee
// implementations on it to watch the same host without racing PubSub's
// own bookkeeping.
func (p *PubSub) Bus() *Bus {
	return p.bus
}
