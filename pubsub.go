// Package pubsub implements a GossipSub v1.0.0 mesh-maintenance publish/
// subscribe overlay, together with the connection notification bus (see
// Bus, in notify.go) used to observe the lifecycle of the connections and
// streams it rides on.
package pubsub

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/protocol"

	logging "github.com/ipfs/go-log"
	timecache "github.com/whyrusleeping/timecache"

	pb "github.com/quaylabs/meshsub/pb"
)

// DefaultMaxMessageSize is 1mb.
const DefaultMaxMessageSize = 1 << 20

// TimeCacheDuration bounds the ingress dedup window; it is distinct from,
// and typically longer than, the router's own message cache window
// (MessageCache), which exists to answer IWANT, not to dedup.
var TimeCacheDuration = 120 * time.Second

var log = logging.Logger("pubsub")

// PubSub is the pub/sub core: topic subscription registry, local delivery
// queues, and the inbound RPC demultiplexer. All mutable state is owned by
// a single processLoop goroutine; every other method communicates with
// that goroutine over a channel, so nothing outside processLoop ever
// touches the maps below directly.
type PubSub struct {
	// atomic counter for seqnos; must stay first in the struct, see
	// sync/atomic's alignment note.
	counter uint64

	host host.Host

	rt PubSubRouter

	bus *Bus

	tracer *pubsubTracer

	// maxMessageSize is the maximum message size; it applies globally to
	// all topics.
	maxMessageSize int

	// size of the outbound message channel maintained for each peer
	peerOutboundQueueSize int

	// incoming messages from other peers
	incoming chan *RPC

	// messages we are publishing out to our peers
	publish chan *Message

	// addSub is a control channel to add and remove subscriptions
	addSub chan *addSubReq

	// get list of topics we are subscribed to
	getTopics chan *topicReq

	// get list of peers we are connected to
	getPeers chan *listPeerReq

	// send subscription here to cancel it
	cancelCh chan *Subscription

	// addTopic is a channel to add a topic tracker
	addTopic chan *addTopicReq

	// rmTopic is a topic cancellation channel
	rmTopic chan *rmTopicReq

	// a notification channel for new peer connections
	newPeers chan peer.ID

	// a notification channel for new outgoing peer streams
	newPeerStream chan network.Stream

	// a notification channel for errors opening new peer streams
	newPeerError chan peer.ID

	// a notification channel for when our peers die
	peerDead chan peer.ID

	// the set of topics we are subscribed to
	mySubs map[string]map[*Subscription]struct{}

	// the set of topics we are interested in
	myTopics map[string]*Topic

	// topics tracks which topics each of our peers are subscribed to
	topics map[string]map[peer.ID]struct{}

	// sendMsg carries messages that have been pushed for delivery
	sendMsg chan *Message

	// eval runs a thunk in the processLoop goroutine
	eval chan func()

	// peer blacklist
	blacklist     Blacklist
	blacklistPeer chan peer.ID

	peers map[peer.ID]chan *RPC

	seenMessagesMx sync.Mutex
	seenMessages   *timecache.TimeCache

	// msgID computes the id for a message, used both for dedup and for
	// the message cache's own keying
	msgID MsgIdFunction

	ctx context.Context
}

// PubSubRouter is the message router component of PubSub; GossipSubRouter
// and FloodSubRouter both implement it.
type PubSubRouter interface {
	// Protocols returns the protocol IDs the router negotiates.
	Protocols() []protocol.ID
	// Attach is invoked by NewPubSub to attach the router to a freshly
	// initialized PubSub instance.
	Attach(*PubSub)
	// AddPeer notifies the router that a new peer has been connected,
	// speaking the given protocol.
	AddPeer(peer.ID, protocol.ID)
	// RemovePeer notifies the router that a peer has been disconnected.
	RemovePeer(peer.ID)
	// HandleRPC processes the control section of rpc. Invoked after
	// subscriptions and payload messages have already been processed.
	HandleRPC(*RPC)
	// Publish forwards a message that has passed the dedup pipeline.
	Publish(*Message)
	// Join notifies the router that we want to receive and forward
	// messages in topic. Invoked after the subscription announcement.
	Join(topic string)
	// Leave notifies the router that we are no longer interested in
	// topic. Invoked after the unsubscription announcement.
	Leave(topic string)
}

// Message wraps a wire pb.Message with the local bookkeeping PubSub needs:
// which peer, if any, forwarded it to us.
type Message struct {
	*pb.Message
	ReceivedFrom peer.ID
}

func (m *Message) GetFrom() peer.ID {
	return peer.ID(m.Message.GetFrom())
}

// RPC is an inbound frame tagged with the peer that sent it.
type RPC struct {
	pb.RPC

	// unexported on purpose, not sent over the wire
	from peer.ID
}

// Option configures a PubSub at construction time.
type Option func(*PubSub) error

// NewPubSub returns a new PubSub management object riding on host h, using
// rt as its router. The returned PubSub owns a notifee Bus registered with
// h.Network(), through which it learns of new connections and streams.
func NewPubSub(ctx context.Context, h host.Host, rt PubSubRouter, opts ...Option) (*PubSub, error) {
	ps := &PubSub{
		host:                  h,
		ctx:                   ctx,
		rt:                    rt,
		bus:                   NewBus(),
		maxMessageSize:        DefaultMaxMessageSize,
		peerOutboundQueueSize: 32,
		incoming:              make(chan *RPC, 32),
		publish:               make(chan *Message),
		newPeers:              make(chan peer.ID),
		newPeerStream:         make(chan network.Stream),
		newPeerError:          make(chan peer.ID),
		peerDead:              make(chan peer.ID),
		cancelCh:              make(chan *Subscription),
		getPeers:              make(chan *listPeerReq),
		addSub:                make(chan *addSubReq),
		addTopic:              make(chan *addTopicReq),
		rmTopic:               make(chan *rmTopicReq),
		getTopics:             make(chan *topicReq),
		sendMsg:               make(chan *Message, 32),
		eval:                  make(chan func()),
		myTopics:              make(map[string]*Topic),
		mySubs:                make(map[string]map[*Subscription]struct{}),
		topics:                make(map[string]map[peer.ID]struct{}),
		peers:                 make(map[peer.ID]chan *RPC),
		blacklist:             NewMapBlacklist(),
		blacklistPeer:         make(chan peer.ID),
		seenMessages:          timecache.NewTimeCache(TimeCacheDuration),
		msgID:                 DefaultMsgIdFn,
		counter:               uint64(time.Now().UnixNano()),
		tracer:                &pubsubTracer{pid: h.ID()},
	}

	for _, opt := range opts {
		if err := opt(ps); err != nil {
			return nil, err
		}
	}

	rt.Attach(ps)

	for _, id := range rt.Protocols() {
		h.SetStreamHandler(id, ps.handleNewStream)
	}

	ps.bus.Register((*pubSubNotifee)(ps))
	h.Network().Notify(ps.bus)

	go ps.processLoop(ctx)

	return ps, nil
}

// MsgIdFunction returns a unique ID for the passed Message. The default,
// DefaultMsgIdFn, concatenates origin and sequence number; it can be
// swapped out with WithMessageIdFn, e.g. to hash the payload instead.
type MsgIdFunction func(pmsg *pb.Message) string

// WithMessageIdFn customizes the way a message ID is computed.
func WithMessageIdFn(fn MsgIdFunction) Option {
	return func(p *PubSub) error {
		p.msgID = fn
		return nil
	}
}

// WithPeerOutboundQueueSize sets the buffer size for outbound messages to a
// peer. Once full, further messages to that peer are dropped rather than
// blocking the processLoop.
func WithPeerOutboundQueueSize(size int) Option {
	return func(p *PubSub) error {
		if size <= 0 {
			return errors.New("outbound queue size must always be positive")
		}
		p.peerOutboundQueueSize = size
		return nil
	}
}

// WithBlacklist overrides the default MapBlacklist implementation.
func WithBlacklist(b Blacklist) Option {
	return func(p *PubSub) error {
		p.blacklist = b
		return nil
	}
}

// WithMaxMessageSize sets the global maximum message size for pubsub wire
// messages. The default is 1MiB (DefaultMaxMessageSize).
func WithMaxMessageSize(maxMessageSize int) Option {
	return func(ps *PubSub) error {
		ps.maxMessageSize = maxMessageSize
		return nil
	}
}

// processLoop handles all inputs arriving on PubSub's channels. Only
// called by the single goroutine spawned in NewPubSub.
func (p *PubSub) processLoop(ctx context.Context) {
	defer func() {
		for _, ch := range p.peers {
			close(ch)
		}
		p.peers = nil
		p.topics = nil
		p.bus.Close()
	}()

	for {
		select {
		case pid := <-p.newPeers:
			if _, ok := p.peers[pid]; ok {
				log.Warning("already have connection to peer: ", pid)
				continue
			}

			if p.blacklist.Contains(pid) {
				log.Warning("ignoring connection from blacklisted peer: ", pid)
				continue
			}

			messages := make(chan *RPC, p.peerOutboundQueueSize)
			messages <- p.getHelloPacket()
			go p.handleNewPeer(ctx, pid, messages)
			p.peers[pid] = messages

		case s := <-p.newPeerStream:
			pid := s.Conn().RemotePeer()

			ch, ok := p.peers[pid]
			if !ok {
				log.Warning("new stream for unknown peer: ", pid)
				s.Reset()
				continue
			}

			if p.blacklist.Contains(pid) {
				log.Warning("closing stream for blacklisted peer: ", pid)
				close(ch)
				s.Reset()
				continue
			}

			p.rt.AddPeer(pid, s.Protocol())

		case pid := <-p.newPeerError:
			delete(p.peers, pid)

		case pid := <-p.peerDead:
			ch, ok := p.peers[pid]
			if !ok {
				continue
			}

			close(ch)

			if p.host.Network().Connectedness(pid) == network.Connected {
				log.Warning("peer declared dead but still connected; respawning writer: ", pid)
				messages := make(chan *RPC, p.peerOutboundQueueSize)
				messages <- p.getHelloPacket()
				go p.handleNewPeer(ctx, pid, messages)
				p.peers[pid] = messages
				continue
			}

			delete(p.peers, pid)
			for t, tmap := range p.topics {
				if _, ok := tmap[pid]; ok {
					delete(tmap, pid)
					p.notifyLeave(t, pid)
				}
			}

			p.rt.RemovePeer(pid)

		case treq := <-p.getTopics:
			var out []string
			for t := range p.mySubs {
				out = append(out, t)
			}
			treq.resp <- out

		case topic := <-p.addTopic:
			p.handleAddTopic(topic)

		case topic := <-p.rmTopic:
			p.handleRemoveTopic(topic)

		case sub := <-p.cancelCh:
			p.handleRemoveSubscription(sub)

		case sub := <-p.addSub:
			p.handleAddSubscription(sub)

		case preq := <-p.getPeers:
			tmap, ok := p.topics[preq.topic]
			if preq.topic != "" && !ok {
				preq.resp <- nil
				continue
			}
			var peers []peer.ID
			for pid := range p.peers {
				if preq.topic != "" {
					if _, ok := tmap[pid]; !ok {
						continue
					}
				}
				peers = append(peers, pid)
			}
			preq.resp <- peers

		case rpc := <-p.incoming:
			p.handleIncomingRPC(rpc)

		case msg := <-p.publish:
			p.tracer.PublishMessage(msg)
			p.pushMsg(msg)

		case msg := <-p.sendMsg:
			p.publishMessage(msg)

		case thunk := <-p.eval:
			thunk()

		case pid := <-p.blacklistPeer:
			log.Infof("Blacklisting peer %s", pid)
			p.blacklist.Add(pid)

			if ch, ok := p.peers[pid]; ok {
				close(ch)
				delete(p.peers, pid)
				for t, tmap := range p.topics {
					if _, ok := tmap[pid]; ok {
						delete(tmap, pid)
						p.notifyLeave(t, pid)
					}
				}
				p.rt.RemovePeer(pid)
			}

		case <-ctx.Done():
			log.Info("pubsub processloop shutting down")
			return
		}
	}
}

// getHelloPacket builds the subscription snapshot sent to a freshly
// connected peer so it learns our current interests without waiting for
// the next individual announce.
func (p *PubSub) getHelloPacket() *RPC {
	var subopts []*pb.RPC_SubOpts
	for t := range p.mySubs {
		subopts = append(subopts, &pb.RPC_SubOpts{
			Topicid:   stringPtr(t),
			Subscribe: boolPtr(true),
		})
	}
	return &RPC{RPC: pb.RPC{Subscriptions: subopts}}
}

func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }

// handleAddTopic adds a tracker for a particular topic. Only called from
// processLoop.
func (p *PubSub) handleAddTopic(req *addTopicReq) {
	topic := req.topic
	topicID := topic.topic

	if t, ok := p.myTopics[topicID]; ok {
		req.resp <- t
		return
	}

	p.myTopics[topicID] = topic
	req.resp <- topic
}

// handleRemoveTopic removes a Topic tracker from bookkeeping. Only called
// from processLoop.
func (p *PubSub) handleRemoveTopic(req *rmTopicReq) {
	topic := p.myTopics[req.topic.topic]
	if topic == nil {
		req.resp <- nil
		return
	}

	if len(topic.evtHandlers) == 0 && len(p.mySubs[req.topic.topic]) == 0 {
		delete(p.myTopics, topic.topic)
		req.resp <- nil
		return
	}

	req.resp <- fmt.Errorf("cannot close topic: outstanding event handlers or subscriptions")
}

// handleRemoveSubscription removes sub from bookkeeping. If this was the
// last Subscription for its topic, it announces that this node is no
// longer interested and asks the router to leave it. Only called from
// processLoop.
func (p *PubSub) handleRemoveSubscription(sub *Subscription) {
	subs := p.mySubs[sub.topic]
	if subs == nil {
		return
	}

	sub.err = fmt.Errorf("subscription cancelled by calling sub.Cancel()")
	sub.close()
	delete(subs, sub)

	if len(subs) == 0 {
		delete(p.mySubs, sub.topic)
		p.announce(sub.topic, false)
		p.rt.Leave(sub.topic)
	}
}

// handleAddSubscription adds a Subscription for a topic. If it is the
// first for that topic, it announces the new interest and joins the
// router to it. Only called from processLoop.
func (p *PubSub) handleAddSubscription(req *addSubReq) {
	sub := req.sub
	subs := p.mySubs[sub.topic]

	if len(subs) == 0 {
		p.announce(sub.topic, true)
		p.rt.Join(sub.topic)
	}

	if subs == nil {
		p.mySubs[sub.topic] = make(map[*Subscription]struct{})
	}

	sub.cancelCh = p.cancelCh
	p.mySubs[sub.topic][sub] = struct{}{}

	req.resp <- sub
}

// announce tells every connected peer whether we are, or are no longer,
// interested in topic. Only called from processLoop.
func (p *PubSub) announce(topic string, sub bool) {
	subopt := &pb.RPC_SubOpts{
		Topicid:   &topic,
		Subscribe: &sub,
	}

	out := rpcWithSubs(subopt)
	for pid, peerCh := range p.peers {
		select {
		case peerCh <- out:
			p.tracer.SendRPC(out, pid)
		default:
			log.Infof("Can't send announce message to peer %s: queue full; scheduling retry", pid)
			p.tracer.DropRPC(out, pid)
			go p.announceRetry(pid, topic, sub)
		}
	}
}

func (p *PubSub) announceRetry(pid peer.ID, topic string, sub bool) {
	time.Sleep(time.Duration(1+rand.Intn(1000)) * time.Millisecond)

	retry := func() {
		_, ok := p.mySubs[topic]
		if (ok && sub) || (!ok && !sub) {
			p.doAnnounceRetry(pid, topic, sub)
		}
	}

	select {
	case p.eval <- retry:
	case <-p.ctx.Done():
	}
}

func (p *PubSub) doAnnounceRetry(pid peer.ID, topic string, sub bool) {
	peerCh, ok := p.peers[pid]
	if !ok {
		return
	}

	subopt := &pb.RPC_SubOpts{
		Topicid:   &topic,
		Subscribe: &sub,
	}

	out := rpcWithSubs(subopt)
	select {
	case peerCh <- out:
		p.tracer.SendRPC(out, pid)
	default:
		log.Infof("Can't send announce message to peer %s: queue full; scheduling retry", pid)
		p.tracer.DropRPC(out, pid)
		go p.announceRetry(pid, topic, sub)
	}
}

// notifySubs delivers msg, in arrival order, to every local subscriber
// queue for each of its topics. Only called from processLoop.
func (p *PubSub) notifySubs(msg *Message) {
	for _, topic := range msg.GetTopicIDs() {
		for f := range p.mySubs[topic] {
			select {
			case f.ch <- msg:
			default:
				log.Infof("Can't deliver message to subscription for topic %s; subscriber too slow", topic)
			}
		}
	}
}

// seenMessage reports whether id has already passed the dedup filter.
func (p *PubSub) seenMessage(id string) bool {
	p.seenMessagesMx.Lock()
	defer p.seenMessagesMx.Unlock()
	return p.seenMessages.Has(id)
}

// markSeen marks id as seen and reports whether this call is the one that
// freshly marked it (false if an earlier call already had).
func (p *PubSub) markSeen(id string) bool {
	p.seenMessagesMx.Lock()
	defer p.seenMessagesMx.Unlock()
	if p.seenMessages.Has(id) {
		return false
	}
	p.seenMessages.Add(id)
	return true
}

// subscribedToMsg returns whether we are subscribed to one of msg's
// topics.
func (p *PubSub) subscribedToMsg(msg *pb.Message) bool {
	if len(p.mySubs) == 0 {
		return false
	}
	for _, t := range msg.GetTopicIDs() {
		if _, ok := p.mySubs[t]; ok {
			return true
		}
	}
	return false
}

func (p *PubSub) notifyLeave(topic string, pid peer.ID) {
	if t, ok := p.myTopics[topic]; ok {
		t.sendNotification(PeerEvent{PeerLeave, pid})
	}
}

// handleIncomingRPC applies an inbound frame: subscription deltas update
// peer_topics and fire local notifications; published messages are pushed
// through the dedup/delivery pipeline; the control section is handed to
// the router last, after subscriptions and payload messages have already
// been processed. Only called from processLoop.
func (p *PubSub) handleIncomingRPC(rpc *RPC) {
	p.tracer.RecvRPC(rpc)
	p.applySubscriptionDeltas(rpc)
	p.deliverPublishedMessages(rpc)
	p.rt.HandleRPC(rpc)
}

// applySubscriptionDeltas folds rpc's subscription announcements into
// peer_topics bookkeeping, one topic at a time.
func (p *PubSub) applySubscriptionDeltas(rpc *RPC) {
	for _, subopt := range rpc.GetSubscriptions() {
		topic := subopt.GetTopicid()
		if subopt.GetSubscribe() {
			p.recordPeerJoin(topic, rpc.from)
		} else {
			p.recordPeerLeave(topic, rpc.from)
		}
	}
}

// recordPeerJoin notes that pid has announced a subscription to topic,
// creating the topic's peer set on first use, and fires a PeerJoin
// notification unless pid was already recorded there.
func (p *PubSub) recordPeerJoin(topic string, pid peer.ID) {
	members, ok := p.topics[topic]
	if !ok {
		members = make(map[peer.ID]struct{})
		p.topics[topic] = members
	}

	if _, already := members[pid]; already {
		return
	}
	members[pid] = struct{}{}

	if t, subscribed := p.myTopics[topic]; subscribed {
		t.sendNotification(PeerEvent{PeerJoin, pid})
	}
}

// recordPeerLeave removes pid from topic's peer set and fires a PeerLeave
// notification, if it was recorded there at all.
func (p *PubSub) recordPeerLeave(topic string, pid peer.ID) {
	members, ok := p.topics[topic]
	if !ok {
		return
	}
	if _, present := members[pid]; !present {
		return
	}
	delete(members, pid)
	p.notifyLeave(topic, pid)
}

// deliverPublishedMessages runs every message in rpc's publish section
// through the ingress pipeline, dropping any for a topic we never
// subscribed to.
func (p *PubSub) deliverPublishedMessages(rpc *RPC) {
	for _, pmsg := range rpc.GetPublish() {
		if !p.subscribedToMsg(pmsg) {
			log.Debug("received message we didn't subscribe to. Dropping.")
			continue
		}
		p.pushMsg(&Message{pmsg, rpc.from})
	}
}

// DefaultMsgIdFn returns a unique ID for pmsg by concatenating its origin
// and sequence number.
func DefaultMsgIdFn(pmsg *pb.Message) string {
	return string(pmsg.GetFrom()) + string(pmsg.GetSeqno())
}

// pushMsg runs the ingress dedup/delivery pipeline on msg. Only called
// from processLoop.
func (p *PubSub) pushMsg(msg *Message) {
	src := msg.ReceivedFrom

	if p.blacklist.Contains(src) {
		log.Warningf("dropping message from blacklisted peer %s", src)
		p.tracer.RejectMessage(msg, rejectBlacklistedPeer)
		return
	}

	if p.blacklist.Contains(msg.GetFrom()) {
		log.Warningf("dropping message from blacklisted source %s", src)
		p.tracer.RejectMessage(msg, rejectBlacklistedSource)
		return
	}

	self := p.host.ID()
	if peer.ID(msg.GetFrom()) == self && src != self {
		log.Debugf("dropping message claiming to be from self but forwarded from %s", src)
		p.tracer.RejectMessage(msg, rejectSelfOrigin)
		return
	}

	id := p.msgID(msg.Message)
	if p.seenMessage(id) {
		p.tracer.DuplicateMessage(msg)
		return
	}

	if p.markSeen(id) {
		p.publishMessage(msg)
	}
}

func (p *PubSub) publishMessage(msg *Message) {
	p.tracer.DeliverMessage(msg)
	p.notifySubs(msg)
	p.rt.Publish(msg)
}

type addTopicReq struct {
	topic *Topic
	resp  chan *Topic
}

type rmTopicReq struct {
	topic *Topic
	resp  chan error
}

// TopicOpt configures a Topic at Join time.
type TopicOpt func(t *Topic) error

// Join joins topic and returns a Topic handle. Only one Topic handle
// should exist per topic; Join errors if one already does.
func (p *PubSub) Join(topic string, opts ...TopicOpt) (*Topic, error) {
	t, ok, err := p.tryJoin(topic, opts...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("topic already exists")
	}
	return t, nil
}

// tryJoin returns the Topic for topic, creating it if necessary. The
// second return reports whether the Topic was newly created.
func (p *PubSub) tryJoin(topic string, opts ...TopicOpt) (*Topic, bool, error) {
	t := &Topic{
		p:           p,
		topic:       topic,
		evtHandlers: make(map[*TopicEventHandler]struct{}),
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, false, err
		}
	}

	resp := make(chan *Topic, 1)
	select {
	case t.p.addTopic <- &addTopicReq{topic: t, resp: resp}:
	case <-t.p.ctx.Done():
		return nil, false, t.p.ctx.Err()
	}
	returnedTopic := <-resp

	if returnedTopic != t {
		return returnedTopic, false, nil
	}
	return t, true, nil
}

type addSubReq struct {
	sub  *Subscription
	resp chan *Subscription
}

// SubOpt configures a Subscription at Subscribe time.
type SubOpt func(sub *Subscription) error

// Subscribe returns a new Subscription for topic, joining it first if
// necessary.
func (p *PubSub) Subscribe(topic string, opts ...SubOpt) (*Subscription, error) {
	t, _, err := p.tryJoin(topic)
	if err != nil {
		return nil, err
	}
	return t.Subscribe(opts...)
}

type topicReq struct {
	resp chan []string
}

// GetTopics returns the topics this node is subscribed to.
func (p *PubSub) GetTopics() []string {
	out := make(chan []string, 1)
	select {
	case p.getTopics <- &topicReq{resp: out}:
	case <-p.ctx.Done():
		return nil
	}
	return <-out
}

// Publish publishes data to topic, joining it first if necessary.
func (p *PubSub) Publish(topic string, data []byte) error {
	t, _, err := p.tryJoin(topic)
	if err != nil {
		return err
	}
	return t.Publish(context.TODO(), data)
}

func (p *PubSub) nextSeqno() []byte {
	seqno := make([]byte, 8)
	counter := atomic.AddUint64(&p.counter, 1)
	binary.BigEndian.PutUint64(seqno, counter)
	return seqno
}

type listPeerReq struct {
	resp  chan []peer.ID
	topic string
}

// ListPeers returns the peers we are connected to in topic (or overall, if
// topic is empty).
func (p *PubSub) ListPeers(topic string) []peer.ID {
	out := make(chan []peer.ID)
	select {
	case p.getPeers <- &listPeerReq{resp: out, topic: topic}:
	case <-p.ctx.Done():
		return nil
	}
	return <-out
}

// BlacklistPeer blacklists pid; all messages from it are unconditionally
// dropped from then on.
func (p *PubSub) BlacklistPeer(pid peer.ID) {
	select {
	case p.blacklistPeer <- pid:
	case <-p.ctx.Done():
	}
}
