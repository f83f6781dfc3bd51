package pubsub

import (
	"context"

	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/protocol"
)

// FloodSubID is the protocol ID for the older, conservative floodsub
// wire protocol: a peer speaking it is always sent every message for a
// topic it has announced interest in, with no mesh or gossip machinery.
const FloodSubID = protocol.ID("/floodsub/1.0.0")

// NewFloodSub returns a new PubSub object using FloodSubRouter as the
// router.
func NewFloodSub(ctx context.Context, h host.Host, opts ...Option) (*PubSub, error) {
	rt := &FloodSubRouter{
		peers: make(map[peer.ID]protocol.ID),
	}
	return NewPubSub(ctx, h, rt, opts...)
}

// FloodSubRouter implements the simplest possible router: every message
// is forwarded to every peer subscribed to one of its topics, with no
// overlay to maintain. GossipSubRouter treats any peer speaking this
// protocol the same way -- unconditional forwarding, no mesh membership --
// which is the conservative interop stance for mixed-protocol networks.
type FloodSubRouter struct {
	p      *PubSub
	peers  map[peer.ID]protocol.ID
	tracer *pubsubTracer
}

func (fs *FloodSubRouter) Protocols() []protocol.ID {
	return []protocol.ID{FloodSubID}
}

func (fs *FloodSubRouter) Attach(p *PubSub) {
	fs.p = p
	fs.tracer = p.tracer
}

func (fs *FloodSubRouter) AddPeer(p peer.ID, proto protocol.ID) {
	fs.tracer.AddPeer(p, proto)
	fs.peers[p] = proto
}

func (fs *FloodSubRouter) RemovePeer(p peer.ID) {
	fs.tracer.RemovePeer(p)
	delete(fs.peers, p)
}

func (fs *FloodSubRouter) HandleRPC(*RPC) {}

func (fs *FloodSubRouter) Publish(msg *Message) {
	from := msg.ReceivedFrom

	tosend := make(map[peer.ID]struct{})
	for _, topic := range msg.GetTopicIDs() {
		tmap, ok := fs.p.topics[topic]
		if !ok {
			continue
		}
		for p := range tmap {
			tosend[p] = struct{}{}
		}
	}

	out := rpcWithMessages(msg.Message)
	for pid := range tosend {
		if pid == from || pid == peer.ID(msg.GetFrom()) {
			continue
		}

		mch, ok := fs.p.peers[pid]
		if !ok {
			continue
		}

		select {
		case mch <- out:
			fs.tracer.SendRPC(out, pid)
		default:
			log.Infof("dropping message to peer %s: queue full", pid)
			fs.tracer.DropRPC(out, pid)
		}
	}
}

func (fs *FloodSubRouter) Join(topic string) {
	fs.tracer.Join(topic)
}

func (fs *FloodSubRouter) Leave(topic string) {
	fs.tracer.Leave(topic)
}
