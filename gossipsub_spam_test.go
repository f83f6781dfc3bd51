package pubsub

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	ggio "github.com/gogo/protobuf/io"
	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/network"

	pb "github.com/quaylabs/meshsub/pb"
)

// wireAttacker drives a raw GossipSub stream against a legitimate router,
// bypassing GossipSubRouter entirely so a test can script arbitrary,
// possibly-malformed control frames and observe how the real router
// reacts at the wire level.
type wireAttacker struct {
	t    *testing.T
	ctx  context.Context
	host host.Host
}

func newWireAttacker(ctx context.Context, t *testing.T, h host.Host) *wireAttacker {
	return &wireAttacker{t: t, ctx: ctx, host: h}
}

// onEachStream installs handle as the GossipSub stream handler; for each
// inbound stream it opens the matching outbound stream to that peer and
// invokes handle once per RPC read off the inbound stream, with a send
// function bound to that outbound stream.
func (a *wireAttacker) onEachStream(handle func(send func(*pb.RPC), in *pb.RPC)) {
	a.host.SetStreamHandler(GossipSubID_v10, func(in network.Stream) {
		peer := in.Conn().RemotePeer()
		out, err := a.host.NewStream(a.ctx, peer, GossipSubID_v10)
		if err != nil {
			a.t.Fatal(err)
		}

		reader := ggio.NewDelimitedReader(in, DefaultMaxMessageSize)
		writer := ggio.NewDelimitedWriter(out)
		send := func(rpc *pb.RPC) {
			if err := writer.WriteMsg(rpc); err != nil {
				a.t.Fatalf("error writing RPC: %s", err)
			}
		}

		var rpc pb.RPC
		for a.ctx.Err() == nil {
			rpc.Reset()
			if err := reader.ReadMsg(&rpc); err != nil {
				if a.ctx.Err() != nil {
					return
				}
				a.t.Fatal(err)
			}
			handle(send, &rpc)
		}
	})
}

func ackSubscribe(topic string) *pb.RPC {
	t := topic
	return &pb.RPC{Subscriptions: []*pb.RPC_SubOpts{{Subscribe: boolPtr(true), Topicid: &t}}}
}

func graftMsg(topics ...string) *pb.RPC {
	var grafts []*pb.ControlGraft
	for _, topic := range topics {
		t := topic
		grafts = append(grafts, &pb.ControlGraft{TopicID: &t})
	}
	return &pb.RPC{Control: &pb.ControlMessage{Graft: grafts}}
}

func pruneMsg(topics ...string) *pb.RPC {
	var prunes []*pb.ControlPrune
	for _, topic := range topics {
		t := topic
		prunes = append(prunes, &pb.ControlPrune{TopicID: &t})
	}
	return &pb.RPC{Control: &pb.ControlMessage{Prune: prunes}}
}

func ihaveMsg(topic string, ids ...string) *pb.RPC {
	t := topic
	return &pb.RPC{Control: &pb.ControlMessage{Ihave: []*pb.ControlIHave{{TopicID: &t, MessageIDs: ids}}}}
}

func iwantMsg(ids ...string) *pb.RPC {
	return &pb.RPC{Control: &pb.ControlMessage{Iwant: []*pb.ControlIWant{{MessageIDs: ids}}}}
}

// TestGossipsubAttackSpamIWANT checks that a peer hammering IWANT for the
// same message id over and over only ever gets answered up to
// GossipSubGossipRetransmission times, not once per request.
func TestGossipsubAttackSpamIWANT(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hosts := getNetHosts(t, ctx, 2)
	legit, attacker := hosts[0], hosts[1]

	ps, err := NewGossipSub(ctx, legit)
	if err != nil {
		t.Fatal(err)
	}
	const topic = "mytopic"
	if _, err := ps.Subscribe(topic); err != nil {
		t.Fatal(err)
	}

	var deliveries int32
	const wantTotal = 1 + GossipSubGossipRetransmission
	quiet := time.NewTimer(200 * time.Millisecond)

	go func() {
		<-quiet.C
		if got := atomic.LoadInt32(&deliveries); got != wantTotal {
			t.Errorf("expected %d messages, got %d", wantTotal, got)
		}
		cancel()
	}()

	av := newWireAttacker(ctx, t, attacker)
	av.onEachStream(func(send func(*pb.RPC), in *pb.RPC) {
		for _, sub := range in.GetSubscriptions() {
			if !sub.GetSubscribe() {
				continue
			}
			send(ackSubscribe(sub.GetTopicid()))
			send(graftMsg(sub.GetTopicid()))

			go func() {
				time.Sleep(100 * time.Millisecond)
				data := make([]byte, 16)
				rand.Read(data)
				if err := ps.Publish(topic, data); err != nil {
					t.Error(err)
				}
			}()
		}

		for _, msg := range in.GetPublish() {
			n := atomic.AddInt32(&deliveries, 1)
			quiet.Reset(200 * time.Millisecond)
			if n > wantTotal {
				cancel()
				t.Fatal("received too many responses")
			}
			send(iwantMsg(DefaultMsgIdFn(msg)))
		}
	})

	connect(t, legit, attacker)
	<-ctx.Done()
}

// TestGossipsubAttackSpamIHAVE checks that flooding IHAVE advertisements
// never yields more than one IWANT round's worth of replies per
// heartbeat, regardless of how many ids were advertised.
func TestGossipsubAttackSpamIHAVE(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hosts := getNetHosts(t, ctx, 2)
	legit, attacker := hosts[0], hosts[1]

	ps, err := NewGossipSub(ctx, legit)
	if err != nil {
		t.Fatal(err)
	}
	const topic = "mytopic"
	if _, err := ps.Subscribe(topic); err != nil {
		t.Fatal(err)
	}

	var iwants int32
	floodIDs := func(send func(*pb.RPC), offset int) {
		for i := 0; i < 3*GossipSubMaxIHaveLength; i++ {
			send(ihaveMsg(topic, "someid"+strconv.Itoa(offset+i)))
		}
	}

	av := newWireAttacker(ctx, t, attacker)
	av.onEachStream(func(send func(*pb.RPC), in *pb.RPC) {
		for _, sub := range in.GetSubscriptions() {
			if !sub.GetSubscribe() {
				continue
			}
			send(ackSubscribe(sub.GetTopicid()))
			send(graftMsg(sub.GetTopicid()))

			go func() {
				defer cancel()
				time.Sleep(20 * time.Millisecond)

				floodIDs(send, 0)
				time.Sleep(GossipSubHeartbeatInterval)

				firstRound := atomic.LoadInt32(&iwants)
				if firstRound > int32(GossipSubMaxIHaveLength) {
					t.Fatalf("expected at most %d IWANTs per heartbeat, got %d", GossipSubMaxIHaveLength, firstRound)
				}

				time.Sleep(GossipSubHeartbeatInterval)
				floodIDs(send, 100)
				time.Sleep(GossipSubHeartbeatInterval)

				total := atomic.LoadInt32(&iwants)
				if total == firstRound {
					t.Fatal("expected more IWANTs after the next heartbeat, got none")
				}
				if total-firstRound > int32(GossipSubMaxIHaveLength) {
					t.Fatalf("expected at most %d IWANTs per heartbeat, got %d", GossipSubMaxIHaveLength, total-firstRound)
				}
			}()
		}

		if ctl := in.GetControl(); ctl != nil {
			atomic.AddInt32(&iwants, int32(len(ctl.GetIwant())))
		}
	})

	connect(t, legit, attacker)
	<-ctx.Done()
}

// TestGossipsubAttackGRAFTNonExistentTopic checks that a GRAFT for a
// topic nobody has ever announced produces no PRUNE reply at all -- the
// frame is simply dropped, revealing nothing about what this node knows.
func TestGossipsubAttackGRAFTNonExistentTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hosts := getNetHosts(t, ctx, 2)
	legit, attacker := hosts[0], hosts[1]

	ps, err := NewGossipSub(ctx, legit)
	if err != nil {
		t.Fatal(err)
	}
	const topic = "mytopic"
	if _, err := ps.Subscribe(topic); err != nil {
		t.Fatal(err)
	}

	var prunes int32

	av := newWireAttacker(ctx, t, attacker)
	av.onEachStream(func(send func(*pb.RPC), in *pb.RPC) {
		for _, sub := range in.GetSubscriptions() {
			if !sub.GetSubscribe() {
				continue
			}
			send(ackSubscribe(sub.GetTopicid()))
			send(graftMsg(sub.GetTopicid()))
			send(graftMsg("non-existent"))

			go func() {
				defer cancel()
				time.Sleep(100 * time.Millisecond)
				if got := atomic.LoadInt32(&prunes); got != 0 {
					t.Fatalf("got %d unexpected PRUNE messages", got)
				}
			}()
		}

		if ctl := in.GetControl(); ctl != nil {
			atomic.AddInt32(&prunes, int32(len(ctl.GetPrune())))
		}
	})

	connect(t, legit, attacker)
	<-ctx.Done()
}

// TestGossipsubAttackGRAFTDuringBackoff checks the PRUNE-backoff lifecycle
// from the wire: after the attacker PRUNEs, a re-GRAFT sent once the flood
// threshold has passed but while the backoff is still active gets a fresh
// PRUNE, and a GRAFT sent after the backoff has fully elapsed is accepted,
// putting the attacker back into the legitimate host's mesh.
func TestGossipsubAttackGRAFTDuringBackoff(t *testing.T) {
	restore := overridePruneBackoffTimings(200*time.Millisecond, 100*time.Millisecond, 500*time.Millisecond)
	defer restore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hosts := getNetHosts(t, ctx, 2)
	legit, attacker := hosts[0], hosts[1]

	ps, err := NewGossipSub(ctx, legit)
	if err != nil {
		t.Fatal(err)
	}
	const topic = "mytopic"
	if _, err := ps.Subscribe(topic); err != nil {
		t.Fatal(err)
	}

	var prunes int32
	expectPruneCount := func(want int32) {
		if got := atomic.LoadInt32(&prunes); got != want {
			t.Fatalf("expected %d PRUNE messages but got %d", want, got)
		}
	}

	av := newWireAttacker(ctx, t, attacker)
	av.onEachStream(func(send func(*pb.RPC), in *pb.RPC) {
		for _, sub := range in.GetSubscriptions() {
			if !sub.GetSubscribe() {
				continue
			}
			topicID := sub.GetTopicid()
			send(ackSubscribe(topicID))
			send(graftMsg(topicID))

			go func() {
				defer cancel()

				time.Sleep(20 * time.Millisecond)
				expectPruneCount(0)

				send(pruneMsg(topicID))
				time.Sleep(20 * time.Millisecond)
				expectPruneCount(0)

				time.Sleep(GossipSubGraftFloodThreshold)
				send(graftMsg(topicID))
				time.Sleep(20 * time.Millisecond)
				expectPruneCount(1)

				time.Sleep(GossipSubPruneBackoffPenalty + time.Second)
				send(graftMsg(topicID))
				time.Sleep(20 * time.Millisecond)
				expectPruneCount(1)

				inMesh := make(chan bool)
				ps.eval <- func() {
					_, ok := ps.rt.(*GossipSubRouter).mesh[topic][attacker.ID()]
					inMesh <- ok
				}
				if !<-inMesh {
					t.Fatal("expected the attacker to be back in the legitimate host's mesh")
				}
			}()
		}

		if ctl := in.GetControl(); ctl != nil {
			atomic.AddInt32(&prunes, int32(len(ctl.GetPrune())))
		}
	})

	connect(t, legit, attacker)
	<-ctx.Done()
}

// overridePruneBackoffTimings temporarily shrinks the three backoff
// constants so tests don't have to wait out production-sized durations;
// it returns a func that restores the originals.
func overridePruneBackoffTimings(backoff, floodThreshold, penalty time.Duration) func() {
	origBackoff, origFlood, origPenalty := GossipSubPruneBackoff, GossipSubGraftFloodThreshold, GossipSubPruneBackoffPenalty
	GossipSubPruneBackoff = backoff
	GossipSubGraftFloodThreshold = floodThreshold
	GossipSubPruneBackoffPenalty = penalty
	return func() {
		GossipSubPruneBackoff = origBackoff
		GossipSubGraftFloodThreshold = origFlood
		GossipSubPruneBackoffPenalty = origPenalty
	}
}

func turnOnPubsubDebug() {
	logging.SetLogLevel("pubsub", "debug")
}
