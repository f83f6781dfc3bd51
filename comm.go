package pubsub

import (
	"context"
	"io"

	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"

	ggio "github.com/gogo/protobuf/io"

	pb "github.com/quaylabs/meshsub/pb"
)

// handleNewStream is the stream handler registered for every router
// protocol ID; it runs the read pump for one inbound stream until it
// errors or the peer goes away. Frames are read with a size bound of
// p.maxMessageSize.
func (p *PubSub) handleNewStream(s network.Stream) {
	peer := s.Conn().RemotePeer()

	r := ggio.NewDelimitedReader(s, p.maxMessageSize)
	for {
		rpc := new(RPC)
		err := r.ReadMsg(&rpc.RPC)
		if err != nil {
			if err != io.EOF {
				s.Reset()
				log.Debugf("error reading rpc from %s: %s", peer, err)
			} else {
				s.Close()
			}
			select {
			case p.newPeerError <- peer:
			case <-p.ctx.Done():
			}
			return
		}

		rpc.from = peer
		select {
		case p.incoming <- rpc:
		case <-p.ctx.Done():
			s.Reset()
			return
		}
	}
}

// handleNewPeer runs the write pump for a newly connected peer: it opens
// an outbound stream (dialing the negotiated router protocol) and drains
// messages queued for that peer until the connection dies or the
// processLoop tears PubSub down.
func (p *PubSub) handleNewPeer(ctx context.Context, pid peer.ID, outgoing chan *RPC) {
	s, err := p.host.NewStream(p.ctx, pid, p.rt.Protocols()...)
	if err != nil {
		log.Debug("opening new stream to peer: ", err, pid)

		select {
		case p.newPeerError <- pid:
		case <-ctx.Done():
		}
		return
	}

	go p.handleSendingMessages(ctx, s, outgoing)
	select {
	case p.newPeerStream <- s:
	case <-ctx.Done():
	}
}

func (p *PubSub) handleSendingMessages(ctx context.Context, s network.Stream, outgoing chan *RPC) {
	defer s.Close()
	w := ggio.NewDelimitedWriter(s)

	writeRPC := func(rpc *RPC) error {
		return w.WriteMsg(&rpc.RPC)
	}

	for {
		select {
		case rpc, ok := <-outgoing:
			if !ok {
				return
			}

			err := writeRPC(rpc)
			if err != nil {
				log.Debug("writing message to ", s.Conn().RemotePeer(), ": ", err)
				select {
				case p.peerDead <- s.Conn().RemotePeer():
				case <-ctx.Done():
				}
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// rpcWithSubs builds an RPC envelope carrying only the given subscription
// announcements.
func rpcWithSubs(subs ...*pb.RPC_SubOpts) *RPC {
	return &RPC{RPC: pb.RPC{Subscriptions: subs}}
}

// rpcWithMessages builds an RPC envelope carrying only the given messages.
func rpcWithMessages(msgs ...*pb.Message) *RPC {
	return &RPC{RPC: pb.RPC{Publish: msgs}}
}

// rpcWithControl builds an RPC envelope carrying a control section plus
// any piggy-backed subscription announcements.
func rpcWithControl(msgs []*pb.Message,
	ihave []*pb.ControlIHave,
	iwant []*pb.ControlIWant,
	graft []*pb.ControlGraft,
	prune []*pb.ControlPrune,
	subs []*pb.RPC_SubOpts) *RPC {
	return &RPC{
		RPC: pb.RPC{
			Subscriptions: subs,
			Publish:       msgs,
			Control: &pb.ControlMessage{
				Ihave: ihave,
				Iwant: iwant,
				Graft: graft,
				Prune: prune,
			},
		},
	}
}
