package pubsub

import (
	"context"
	"math/rand"
	"time"

	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/protocol"

	pb "github.com/quaylabs/meshsub/pb"
)

const (
	GossipSubID_v10 = protocol.ID("/meshsub/1.0.0")
)

var (
	// overlay parameters
	GossipSubD   = 6
	GossipSubDlo = 5
	GossipSubDhi = 12

	// gossip parameters
	GossipSubHistoryLength = 5
	GossipSubHistoryGossip = 3

	GossipSubDlazy        = 6
	GossipSubGossipFactor = 0.25

	GossipSubGossipRetransmission = 3

	// heartbeat interval
	GossipSubHeartbeatInitialDelay = 100 * time.Millisecond
	GossipSubHeartbeatInterval     = 1 * time.Second

	// fanout ttl
	GossipSubFanoutTTL = 60 * time.Second

	// backoff time for pruned peers -- resolves the open question of
	// whether PRUNE should carry an explicit backoff: it does, fixed at
	// this duration. A GRAFT received from a peer still inside its
	// backoff window is rejected with a fresh PRUNE.
	GossipSubPruneBackoff = time.Minute

	// if a GRAFT arrives before this much time has passed since the last
	// PRUNE of that peer, treat it as a flood: no PRUNE reply, just a
	// penalty backoff extension. Kept below GossipSubPruneBackoff.
	GossipSubGraftFloodThreshold = 10 * time.Second

	// backoff penalty applied to peers that flood GRAFTs
	GossipSubPruneBackoffPenalty = time.Hour

	// maximum number of message ids to accept/request via IHAVE/IWANT
	// within a single heartbeat, to bound IHAVE flood cost.
	GossipSubMaxIHaveLength = 5000

	// maximum number of IHAVE messages accepted from a peer per
	// heartbeat.
	GossipSubMaxIHaveMessages = 10
)

// NewGossipSub returns a new PubSub object using GossipSubRouter as the
// router.
func NewGossipSub(ctx context.Context, h host.Host, opts ...Option) (*PubSub, error) {
	return NewPubSub(ctx, h, newGossipSubRouter(), opts...)
}

func newGossipSubRouter() *GossipSubRouter {
	return &GossipSubRouter{
		peers:    make(map[peer.ID]protocol.ID),
		mesh:     make(map[string]map[peer.ID]struct{}),
		fanout:   make(map[string]map[peer.ID]struct{}),
		lastpub:  make(map[string]int64),
		gossip:   make(map[peer.ID][]*pb.ControlIHave),
		control:  make(map[peer.ID]*pb.ControlMessage),
		backoff:  newBackoffTable(),
		peerhave: make(map[peer.ID]int),
		iasked:   make(map[peer.ID]int),
		mcache:   NewMessageCache(GossipSubHistoryGossip, GossipSubHistoryLength),
	}
}

// GossipSubRouter implements the gossipsub mesh-maintenance protocol. For
// each topic we have joined, the mesh map holds the overlay peers messages
// flow through. For topics we publish to without joining, the fanout map
// holds a set of peers with stable routes into the overlay; those entries
// expire if nothing is published to their topic within GossipSubFanoutTTL.
type GossipSubRouter struct {
	p        *PubSub
	peers    map[peer.ID]protocol.ID
	mesh     map[string]map[peer.ID]struct{}
	fanout   map[string]map[peer.ID]struct{}
	lastpub  map[string]int64
	gossip   map[peer.ID][]*pb.ControlIHave
	control  map[peer.ID]*pb.ControlMessage
	peerhave map[peer.ID]int
	iasked   map[peer.ID]int
	backoff  *backoffTable
	mcache   *MessageCache
	tracer   *pubsubTracer

	// counts heartbeats since startup so periodic housekeeping (backoff
	// expiry) can run on a slower cadence than every tick.
	heartbeatTicks uint64
}

func (gs *GossipSubRouter) Protocols() []protocol.ID {
	return []protocol.ID{GossipSubID_v10, FloodSubID}
}

func (gs *GossipSubRouter) Attach(p *PubSub) {
	gs.p = p
	gs.tracer = p.tracer
	gs.mcache.SetMsgIdFn(p.msgID)
	go gs.heartbeatTimer()
}

func (gs *GossipSubRouter) AddPeer(p peer.ID, proto protocol.ID) {
	log.Debugf("PEERUP: Add new peer %s using %s", p, proto)
	gs.tracer.AddPeer(p, proto)
	gs.peers[p] = proto
}

func (gs *GossipSubRouter) RemovePeer(p peer.ID) {
	log.Debugf("PEERDOWN: Remove disconnected peer %s", p)
	gs.tracer.RemovePeer(p)
	delete(gs.peers, p)
	gs.forgetPeerEverywhere(p)
}

func (gs *GossipSubRouter) forgetPeerEverywhere(p peer.ID) {
	for _, members := range gs.mesh {
		delete(members, p)
	}
	for _, members := range gs.fanout {
		delete(members, p)
	}
	delete(gs.gossip, p)
	delete(gs.control, p)
}

func (gs *GossipSubRouter) HandleRPC(rpc *RPC) {
	ctl := rpc.GetControl()
	if ctl == nil {
		return
	}

	iwant := gs.handleIHave(rpc.from, ctl)
	deliverables := gs.handleIWant(rpc.from, ctl)
	prune := gs.handleGraft(rpc.from, ctl)
	gs.handlePrune(rpc.from, ctl)

	if len(iwant) == 0 && len(deliverables) == 0 && len(prune) == 0 {
		return
	}

	gs.sendRPC(rpc.from, rpcWithControl(deliverables, nil, iwant, nil, prune, nil))
}

// handleIHave answers an IHAVE control message with an IWANT for every
// advertised id this node has not seen yet, bounded by the per-heartbeat
// advertisement and request caps.
func (gs *GossipSubRouter) handleIHave(p peer.ID, ctl *pb.ControlMessage) []*pb.ControlIWant {
	if len(ctl.GetIhave()) == 0 {
		return nil
	}

	gs.peerhave[p]++
	if gs.peerhave[p] > GossipSubMaxIHaveMessages {
		log.Debugf("IHAVE: peer %s has advertised too many times (%d) within this heartbeat interval; ignoring", p, gs.peerhave[p])
		return nil
	}
	if gs.iasked[p] >= GossipSubMaxIHaveLength {
		log.Debugf("IHAVE: peer %s has already advertised too many messages (%d); ignoring", p, gs.iasked[p])
		return nil
	}

	wanted := gs.unseenAdvertisedIDs(ctl)
	if len(wanted) == 0 {
		return nil
	}

	budget := GossipSubMaxIHaveLength - gs.iasked[p]
	if budget < len(wanted) {
		wanted = wanted[:budget]
	}
	gs.iasked[p] += len(wanted)

	log.Debugf("IHAVE: Asking for %d messages from %s", len(wanted), p)
	return []*pb.ControlIWant{{MessageIDs: wanted}}
}

// unseenAdvertisedIDs collects, in random order, the message ids from
// ctl's IHAVE entries that name a topic this router has joined and that
// have not already been seen.
func (gs *GossipSubRouter) unseenAdvertisedIDs(ctl *pb.ControlMessage) []string {
	set := make(map[string]struct{})
	for _, ihave := range ctl.GetIhave() {
		if !gs.hasJoined(ihave.GetTopicID()) {
			continue
		}
		for _, mid := range ihave.GetMessageIDs() {
			if !gs.p.seenMessage(mid) {
				set[mid] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(set))
	for mid := range set {
		ids = append(ids, mid)
	}
	shuffleStrings(ids)
	return ids
}

// handleIWant answers an IWANT control message with the requested
// messages still held in the cache, refusing a peer that keeps asking for
// the same message well past the point a reply could plausibly have been
// lost.
func (gs *GossipSubRouter) handleIWant(p peer.ID, ctl *pb.ControlMessage) []*pb.Message {
	seen := make(map[string]struct{})
	var msgs []*pb.Message

	for _, iwant := range ctl.GetIwant() {
		for _, mid := range iwant.GetMessageIDs() {
			if _, already := seen[mid]; already {
				continue
			}
			msg, count, cached := gs.mcache.GetForPeer(mid, p)
			if !cached {
				continue
			}
			if count > GossipSubGossipRetransmission {
				log.Debugf("IWANT: Peer %s has asked for message %s too many times; ignoring request", p, mid)
				continue
			}
			seen[mid] = struct{}{}
			msgs = append(msgs, msg)
		}
	}

	if len(msgs) > 0 {
		log.Debugf("IWANT: Sending %d messages to %s", len(msgs), p)
	}
	return msgs
}

// graftOutcome classifies how an inbound GRAFT for a topic this node has
// joined should be handled.
type graftOutcome int

const (
	graftAccept graftOutcome = iota
	graftPenalize
	graftRefuse
)

func (gs *GossipSubRouter) evaluateGraft(topic string, p peer.ID, now time.Time) graftOutcome {
	expire, onBackoff := gs.backoff.expiry(topic, p)
	if !onBackoff || !now.Before(expire) {
		return graftAccept
	}

	floodCutoff := expire.Add(GossipSubGraftFloodThreshold - GossipSubPruneBackoff)
	if now.Before(floodCutoff) {
		return graftPenalize
	}
	return graftRefuse
}

func (gs *GossipSubRouter) handleGraft(p peer.ID, ctl *pb.ControlMessage) []*pb.ControlPrune {
	now := time.Now()
	var refused []string

	for _, graft := range ctl.GetGraft() {
		topic := graft.GetTopicID()
		if !gs.hasJoined(topic) {
			if _, known := gs.p.topics[topic]; !known {
				// spam hardening: a GRAFT for a topic nobody has even
				// announced gets no reply at all
				continue
			}
			log.Debugf("GRAFT: refusing peer %s for unjoined topic %s", p, topic)
			gs.backoff.extend(topic, p, GossipSubPruneBackoff)
			refused = append(refused, topic)
			continue
		}

		switch gs.evaluateGraft(topic, p, now) {
		case graftPenalize:
			log.Debugf("GRAFT: flooding peer %s penalized on %s", p, topic)
			gs.backoff.extend(topic, p, GossipSubPruneBackoffPenalty)
		case graftRefuse:
			log.Debugf("GRAFT: ignoring backed off peer %s", p)
			gs.backoff.extend(topic, p, GossipSubPruneBackoff)
			refused = append(refused, topic)
		default:
			log.Debugf("GRAFT: add mesh link from %s in %s", p, topic)
			gs.tracer.Graft(p, topic)
			gs.mesh[topic][p] = struct{}{}
		}
	}

	if len(refused) == 0 {
		return nil
	}
	return gs.prunesFor(refused)
}

func (gs *GossipSubRouter) handlePrune(p peer.ID, ctl *pb.ControlMessage) {
	for _, prune := range ctl.GetPrune() {
		topic := prune.GetTopicID()
		if !gs.hasJoined(topic) {
			continue
		}

		log.Debugf("PRUNE: Remove mesh link to %s in %s", p, topic)
		gs.tracer.Prune(p, topic)
		delete(gs.mesh[topic], p)
		gs.backoff.extend(topic, p, GossipSubPruneBackoff)
	}
}

func (gs *GossipSubRouter) hasJoined(topic string) bool {
	_, joined := gs.mesh[topic]
	return joined
}

// backoffTable tracks, per (topic, peer), the time before which an
// inbound GRAFT is refused with a fresh PRUNE.
type backoffTable struct {
	expiries map[string]map[peer.ID]time.Time
}

func newBackoffTable() *backoffTable {
	return &backoffTable{expiries: make(map[string]map[peer.ID]time.Time)}
}

func (b *backoffTable) expiry(topic string, p peer.ID) (time.Time, bool) {
	t, ok := b.expiries[topic][p]
	return t, ok
}

func (b *backoffTable) isActive(topic string, p peer.ID) bool {
	expire, ok := b.expiry(topic, p)
	return ok && time.Now().Before(expire)
}

func (b *backoffTable) extend(topic string, p peer.ID, d time.Duration) {
	window, ok := b.expiries[topic]
	if !ok {
		window = make(map[peer.ID]time.Time)
		b.expiries[topic] = window
	}
	if candidate := time.Now().Add(d); window[p].Before(candidate) {
		window[p] = candidate
	}
}

func (b *backoffTable) sweepExpired(now time.Time) {
	for topic, window := range b.expiries {
		for p, expire := range window {
			if !expire.After(now) {
				delete(window, p)
			}
		}
		if len(window) == 0 {
			delete(b.expiries, topic)
		}
	}
}

func (gs *GossipSubRouter) Publish(msg *Message) {
	gs.mcache.Put(msg.Message)

	recipients := make(map[peer.ID]struct{})
	for _, topic := range msg.GetTopicIDs() {
		if _, known := gs.p.topics[topic]; !known {
			continue
		}
		gs.addFloodsubTargets(topic, recipients)
		gs.addOverlayTargets(topic, recipients)
	}

	out := rpcWithMessages(msg.Message)
	origin, author := msg.ReceivedFrom, peer.ID(msg.GetFrom())
	for p := range recipients {
		if p == origin || p == author {
			continue
		}
		gs.sendRPC(p, out)
	}
}

// addFloodsubTargets adds every peer speaking the older floodsub protocol
// to into; those peers always receive every message for a topic they've
// announced, regardless of mesh/fanout membership.
func (gs *GossipSubRouter) addFloodsubTargets(topic string, into map[peer.ID]struct{}) {
	for p := range gs.p.topics[topic] {
		if gs.peers[p] == FloodSubID {
			into[p] = struct{}{}
		}
	}
}

// addOverlayTargets adds topic's mesh membership to into, or its fanout
// set (building one if needed) when this node hasn't joined the topic.
func (gs *GossipSubRouter) addOverlayTargets(topic string, into map[peer.ID]struct{}) {
	members, inMesh := gs.mesh[topic]
	if !inMesh {
		members = gs.fanoutFor(topic)
	}
	for p := range members {
		into[p] = struct{}{}
	}
}

func (gs *GossipSubRouter) fanoutFor(topic string) map[peer.ID]struct{} {
	members, ok := gs.fanout[topic]
	if !ok || len(members) == 0 {
		if candidates := gs.getPeers(topic, GossipSubD, acceptAny); len(candidates) > 0 {
			members = peerListToMap(candidates)
			gs.fanout[topic] = members
		}
	}
	gs.lastpub[topic] = time.Now().UnixNano()
	return members
}

func (gs *GossipSubRouter) Join(topic string) {
	if gs.hasJoined(topic) {
		return
	}

	log.Debugf("JOIN %s", topic)
	gs.tracer.Join(topic)

	members := gs.promoteFanout(topic)
	if members == nil {
		members = peerListToMap(gs.getPeers(topic, GossipSubD, acceptAny))
	}
	gs.mesh[topic] = members

	for p := range members {
		log.Debugf("JOIN: Add mesh link to %s in %s", p, topic)
		gs.tracer.Graft(p, topic)
		gs.sendGraft(p, topic)
	}
}

// promoteFanout turns topic's fanout set, if any, into mesh membership,
// topping it up to GossipSubD peers first. It returns nil when there was
// no fanout set to promote.
func (gs *GossipSubRouter) promoteFanout(topic string) map[peer.ID]struct{} {
	members, ok := gs.fanout[topic]
	if !ok {
		return nil
	}

	if short := GossipSubD - len(members); short > 0 {
		for _, p := range gs.getPeers(topic, short, notIn(members)) {
			members[p] = struct{}{}
		}
	}

	delete(gs.fanout, topic)
	delete(gs.lastpub, topic)
	return members
}

func (gs *GossipSubRouter) Leave(topic string) {
	members, joined := gs.mesh[topic]
	if !joined {
		return
	}

	log.Debugf("LEAVE %s", topic)
	gs.tracer.Leave(topic)
	delete(gs.mesh, topic)

	for p := range members {
		log.Debugf("LEAVE: Remove mesh link to %s in %s", p, topic)
		gs.tracer.Prune(p, topic)
		gs.sendPrune(p, topic)
	}
}

func (gs *GossipSubRouter) sendGraft(p peer.ID, topic string) {
	gs.sendRPC(p, rpcWithControl(nil, nil, nil, []*pb.ControlGraft{{TopicID: &topic}}, nil, nil))
}

func (gs *GossipSubRouter) sendPrune(p peer.ID, topic string) {
	gs.sendRPC(p, rpcWithControl(nil, nil, nil, nil, []*pb.ControlPrune{gs.makePrune(topic)}, nil))
}

func (gs *GossipSubRouter) sendRPC(p peer.ID, out *RPC) {
	copied := false
	takeCopy := func() {
		if !copied {
			out = copyRPC(out)
			copied = true
		}
	}

	if ctl, pending := gs.control[p]; pending {
		takeCopy()
		gs.piggybackControl(p, out, ctl)
		delete(gs.control, p)
	}

	if ihave, pending := gs.gossip[p]; pending {
		takeCopy()
		gs.piggybackGossip(out, ihave)
		delete(gs.gossip, p)
	}

	mch, connected := gs.p.peers[p]
	if !connected {
		return
	}

	select {
	case mch <- out:
		gs.tracer.SendRPC(out, p)
	default:
		log.Infof("dropping message to peer %s: queue full", p)
		gs.tracer.DropRPC(out, p)
		if ctl := out.GetControl(); ctl != nil {
			gs.pushControl(p, ctl)
		}
	}
}

func (gs *GossipSubRouter) heartbeatTimer() {
	time.Sleep(GossipSubHeartbeatInitialDelay)
	if !gs.runHeartbeat() {
		return
	}

	ticker := time.NewTicker(GossipSubHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !gs.runHeartbeat() {
				return
			}
		case <-gs.p.ctx.Done():
			return
		}
	}
}

func (gs *GossipSubRouter) runHeartbeat() bool {
	select {
	case gs.p.eval <- gs.heartbeat:
		return true
	case <-gs.p.ctx.Done():
		return false
	}
}

// heartbeat runs mesh maintenance: it grafts new links where a mesh is
// under-subscribed, prunes where it's over-subscribed, expires idle
// fanout, and emits gossip -- all from inside processLoop, via eval, so it
// never races inbound RPC handling.
func (gs *GossipSubRouter) heartbeat() {
	gs.heartbeatTicks++
	gs.backoff.sweepOnSchedule(gs.heartbeatTicks)
	gs.clearIHaveCounters()

	tograft := make(map[peer.ID][]string)
	toprune := make(map[peer.ID][]string)

	for topic, members := range gs.mesh {
		gs.rebalanceMesh(topic, members, tograft, toprune)
		gs.emitGossip(topic, members)
	}

	gs.expireStaleFanout()
	for topic, members := range gs.fanout {
		gs.refreshFanout(topic, members)
		gs.emitGossip(topic, members)
	}

	gs.sendGraftPrune(tograft, toprune)
	gs.flush()
	gs.mcache.Shift()
}

func (b *backoffTable) sweepOnSchedule(ticks uint64) {
	if ticks%15 == 0 {
		b.sweepExpired(time.Now())
	}
}

// rebalanceMesh grafts additional peers into a mesh that has fallen below
// GossipSubDlo, and prunes peers from one that has grown past GossipSubDhi,
// recording the resulting GRAFT/PRUNE obligations in tograft/toprune.
func (gs *GossipSubRouter) rebalanceMesh(topic string, members map[peer.ID]struct{}, tograft, toprune map[peer.ID][]string) {
	if len(members) < GossipSubDlo {
		need := GossipSubD - len(members)
		candidates := gs.getPeers(topic, need, func(p peer.ID) bool {
			_, already := members[p]
			return !already && !gs.backoff.isActive(topic, p)
		})
		for _, p := range candidates {
			log.Debugf("HEARTBEAT: Add mesh link to %s in %s", p, topic)
			gs.tracer.Graft(p, topic)
			members[p] = struct{}{}
			tograft[p] = append(tograft[p], topic)
		}
	}

	if len(members) > GossipSubDhi {
		excess := peerMapToList(members)
		shufflePeers(excess)
		for _, p := range excess[GossipSubD:] {
			log.Debugf("HEARTBEAT: Remove mesh link to %s in %s", p, topic)
			gs.tracer.Prune(p, topic)
			delete(members, p)
			gs.backoff.extend(topic, p, GossipSubPruneBackoff)
			toprune[p] = append(toprune[p], topic)
		}
	}
}

func (gs *GossipSubRouter) expireStaleFanout() {
	now := time.Now().UnixNano()
	for topic, lastpub := range gs.lastpub {
		if lastpub+int64(GossipSubFanoutTTL) < now {
			delete(gs.fanout, topic)
			delete(gs.lastpub, topic)
		}
	}
}

// refreshFanout drops fanout members that are no longer subscribed to
// topic and tops the set back up to GossipSubD.
func (gs *GossipSubRouter) refreshFanout(topic string, members map[peer.ID]struct{}) {
	for p := range members {
		if _, stillSubscribed := gs.p.topics[topic][p]; !stillSubscribed {
			delete(members, p)
		}
	}

	if short := GossipSubD - len(members); short > 0 {
		for _, p := range gs.getPeers(topic, short, notIn(members)) {
			members[p] = struct{}{}
		}
	}
}

func (gs *GossipSubRouter) clearIHaveCounters() {
	if len(gs.peerhave) > 0 {
		gs.peerhave = make(map[peer.ID]int)
	}
	if len(gs.iasked) > 0 {
		gs.iasked = make(map[peer.ID]int)
	}
}

func (gs *GossipSubRouter) sendGraftPrune(tograft, toprune map[peer.ID][]string) {
	for p, topics := range tograft {
		var prune []*pb.ControlPrune
		if pending, ok := toprune[p]; ok {
			prune = gs.prunesFor(pending)
			delete(toprune, p)
		}
		gs.sendRPC(p, rpcWithControl(nil, nil, nil, graftsFor(topics), prune, nil))
	}

	for p, topics := range toprune {
		gs.sendRPC(p, rpcWithControl(nil, nil, nil, nil, gs.prunesFor(topics), nil))
	}
}

func graftsFor(topics []string) []*pb.ControlGraft {
	out := make([]*pb.ControlGraft, len(topics))
	for i := range topics {
		t := topics[i]
		out[i] = &pb.ControlGraft{TopicID: &t}
	}
	return out
}

func (gs *GossipSubRouter) prunesFor(topics []string) []*pb.ControlPrune {
	out := make([]*pb.ControlPrune, len(topics))
	for i, topic := range topics {
		out[i] = gs.makePrune(topic)
	}
	return out
}

// emitGossip advertises items in the message cache's gossip window for
// topic to a random subset of peers outside exclude (the mesh/fanout
// peers already pushed to directly).
func (gs *GossipSubRouter) emitGossip(topic string, exclude map[peer.ID]struct{}) {
	mids := gs.mcache.GetGossipIDs(topic)
	if len(mids) == 0 {
		return
	}
	shuffleStrings(mids)

	targets := selectGossipTargets(gs.gossipCandidates(topic, exclude))
	for _, p := range targets {
		gs.enqueueGossip(p, &pb.ControlIHave{TopicID: &topic, MessageIDs: boundedIDs(mids)})
	}
}

// gossipCandidates lists every peer subscribed to topic that speaks
// GossipSubID_v10 and is not in exclude.
func (gs *GossipSubRouter) gossipCandidates(topic string, exclude map[peer.ID]struct{}) []peer.ID {
	candidates := make([]peer.ID, 0, len(gs.p.topics[topic]))
	for p := range gs.p.topics[topic] {
		if _, excluded := exclude[p]; excluded {
			continue
		}
		if gs.peers[p] == GossipSubID_v10 {
			candidates = append(candidates, p)
		}
	}
	return candidates
}

// selectGossipTargets picks a random subset of pool sized GossipSubDlazy,
// scaling up with GossipSubGossipFactor for large pools; a pool no larger
// than that size is returned whole.
func selectGossipTargets(pool []peer.ID) []peer.ID {
	target := GossipSubDlazy
	if factor := int(GossipSubGossipFactor * float64(len(pool))); factor > target {
		target = factor
	}
	if target >= len(pool) {
		return pool
	}
	shufflePeers(pool)
	return pool[:target]
}

// boundedIDs caps mids to GossipSubMaxIHaveLength entries, reshuffling
// first so repeated calls for different peers see different subsets.
func boundedIDs(mids []string) []string {
	if len(mids) <= GossipSubMaxIHaveLength {
		return mids
	}
	log.Debugf("too many messages for gossip; will truncate IHAVE list (%d messages)", len(mids))
	shuffleStrings(mids)
	capped := make([]string, GossipSubMaxIHaveLength)
	copy(capped, mids)
	return capped
}

func (gs *GossipSubRouter) flush() {
	for p, ihave := range gs.gossip {
		delete(gs.gossip, p)
		gs.sendRPC(p, rpcWithControl(nil, ihave, nil, nil, nil, nil))
	}

	for p, ctl := range gs.control {
		delete(gs.control, p)
		gs.sendRPC(p, rpcWithControl(nil, nil, nil, ctl.Graft, ctl.Prune, nil))
	}
}

func (gs *GossipSubRouter) enqueueGossip(p peer.ID, ihave *pb.ControlIHave) {
	gs.gossip[p] = append(gs.gossip[p], ihave)
}

func (gs *GossipSubRouter) piggybackGossip(out *RPC, ihave []*pb.ControlIHave) {
	ctl := out.GetControl()
	if ctl == nil {
		ctl = &pb.ControlMessage{}
		out.Control = ctl
	}
	ctl.Ihave = ihave
}

func (gs *GossipSubRouter) pushControl(p peer.ID, ctl *pb.ControlMessage) {
	ctl.Ihave = nil
	ctl.Iwant = nil
	if ctl.Graft != nil || ctl.Prune != nil {
		gs.control[p] = ctl
	}
}

// piggybackControl folds a previously-deferred control message into a
// fresh outbound RPC for p, keeping only the grafts/prunes still relevant
// to p's current mesh membership.
func (gs *GossipSubRouter) piggybackControl(p peer.ID, out *RPC, ctl *pb.ControlMessage) {
	var tograft []*pb.ControlGraft
	for _, graft := range ctl.GetGraft() {
		if members, ok := gs.mesh[graft.GetTopicID()]; ok {
			if _, stillMember := members[p]; stillMember {
				tograft = append(tograft, graft)
			}
		}
	}

	var toprune []*pb.ControlPrune
	for _, prune := range ctl.GetPrune() {
		members, ok := gs.mesh[prune.GetTopicID()]
		if !ok {
			toprune = append(toprune, prune)
			continue
		}
		if _, stillMember := members[p]; !stillMember {
			toprune = append(toprune, prune)
		}
	}

	if len(tograft) == 0 && len(toprune) == 0 {
		return
	}

	xctl := out.Control
	if xctl == nil {
		xctl = &pb.ControlMessage{}
		out.Control = xctl
	}
	xctl.Graft = append(xctl.Graft, tograft...)
	xctl.Prune = append(xctl.Prune, toprune...)
}

// makePrune builds a PRUNE for topic. Peer eXchange is out of scope, so
// unlike GossipSub v1.1 this never carries a peer list.
func (gs *GossipSubRouter) makePrune(topic string) *pb.ControlPrune {
	return &pb.ControlPrune{TopicID: &topic}
}

// getPeers lists up to count peers subscribed to topic that speak
// GossipSubID_v10 and satisfy accept, in random order.
func (gs *GossipSubRouter) getPeers(topic string, count int, accept func(peer.ID) bool) []peer.ID {
	subscribed, ok := gs.p.topics[topic]
	if !ok {
		return nil
	}

	var candidates []peer.ID
	for p := range subscribed {
		if gs.peers[p] != GossipSubID_v10 {
			continue
		}
		if !accept(p) {
			continue
		}
		candidates = append(candidates, p)
	}

	shufflePeers(candidates)
	if count > 0 && len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates
}

func acceptAny(peer.ID) bool { return true }

func notIn(set map[peer.ID]struct{}) func(peer.ID) bool {
	return func(p peer.ID) bool {
		_, present := set[p]
		return !present
	}
}

func peerListToMap(peers []peer.ID) map[peer.ID]struct{} {
	pmap := make(map[peer.ID]struct{}, len(peers))
	for _, p := range peers {
		pmap[p] = struct{}{}
	}
	return pmap
}

func peerMapToList(peers map[peer.ID]struct{}) []peer.ID {
	plst := make([]peer.ID, 0, len(peers))
	for p := range peers {
		plst = append(plst, p)
	}
	return plst
}

func shufflePeers(peers []peer.ID) {
	for i := range peers {
		j := rand.Intn(i + 1)
		peers[i], peers[j] = peers[j], peers[i]
	}
}

func shuffleStrings(lst []string) {
	for i := range lst {
		j := rand.Intn(i + 1)
		lst[i], lst[j] = lst[j], lst[i]
	}
}

func copyRPC(rpc *RPC) *RPC {
	out := &RPC{RPC: rpc.RPC, from: rpc.from}
	if rpc.Control != nil {
		ctl := *rpc.Control
		out.Control = &ctl
	}
	return out
}
