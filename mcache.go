package pubsub

import (
	"github.com/libp2p/go-libp2p-core/peer"

	"github.com/quaylabs/meshsub/pb"
)

// MessageCache holds recent messages for gossip: a ring of the last
// historyLength heartbeat "shifts", each holding the messages put during
// that interval. GetGossipIDs draws candidates for IHAVE from only the
// newest gossip shifts; Get can answer an IWANT from the full history.
// It does not filter duplicates: ingress de-dup is PubSub's seenMessages
// time cache, whose entries expire after TimeCacheDuration rather than
// with this cache's shifts.
type MessageCache struct {
	msgs    map[string]*pb.Message
	history [][]CacheEntry

	gossip int
	msgID  MsgIdFunction
}

// CacheEntry tracks, per retained message, how many times each peer has
// asked for it via IWANT while it stays in the cache (the counts are not
// reset between heartbeats) -- used by the router to cut off peers that
// re-request the same message too often.
type CacheEntry struct {
	mid   string
	peers map[string]int
}

// NewMessageCache returns a cache advertising the newest gossip shifts via
// IHAVE and retaining history shifts total for IWANT replies. history must
// be >= gossip.
func NewMessageCache(gossip, history int) *MessageCache {
	return &MessageCache{
		msgs:    make(map[string]*pb.Message),
		history: make([][]CacheEntry, history),
		gossip:  gossip,
		msgID:   DefaultMsgIdFn,
	}
}

// SetMsgIdFn lets the cache key entries by the same id function the owning
// PubSub instance uses, so mcache lookups agree with the dedup window.
func (mc *MessageCache) SetMsgIdFn(msgID MsgIdFunction) {
	mc.msgID = msgID
}

// Put inserts msg into the current (newest) shift, indexed by its id.
func (mc *MessageCache) Put(msg *pb.Message) {
	mid := mc.msgID(msg)
	mc.msgs[mid] = msg
	mc.history[0] = append(mc.history[0], CacheEntry{mid: mid, peers: make(map[string]int)})
}

// Get performs an O(1) lookup across all retained shifts.
func (mc *MessageCache) Get(mid string) (*pb.Message, bool) {
	m, ok := mc.msgs[mid]
	return m, ok
}

// GetForPeer is like Get, but also records that peer p has asked for mid
// once more, and returns how many times p has asked for it while it has
// been cached -- the router uses this to rate-limit repeat IWANT requests.
func (mc *MessageCache) GetForPeer(mid string, p peer.ID) (*pb.Message, int, bool) {
	m, ok := mc.msgs[mid]
	if !ok {
		return nil, 0, false
	}

	for _, entries := range mc.history {
		for i := range entries {
			if entries[i].mid != mid {
				continue
			}
			entries[i].peers[string(p)]++
			count := entries[i].peers[string(p)]
			return m, count, true
		}
	}

	return m, 0, true
}

// GetGossipIDs returns the MessageIDs seen in the newest gossip shifts --
// the window() operation, used to build IHAVE advertisements.
func (mc *MessageCache) GetGossipIDs(topic string) []string {
	var mids []string
	for _, entries := range mc.history[:mc.gossip] {
		for _, entry := range entries {
			m, ok := mc.msgs[entry.mid]
			if !ok {
				continue
			}
			if topicInMessage(m, topic) {
				mids = append(mids, entry.mid)
			}
		}
	}
	return mids
}

// Shift appends a new empty shift at the front and drops the oldest shift
// if that pushes the history past its configured length; MessageIDs that
// fall out of the retained window become unretrievable via Get.
func (mc *MessageCache) Shift() {
	last := mc.history[len(mc.history)-1]
	for _, entry := range last {
		delete(mc.msgs, entry.mid)
	}

	copy(mc.history[1:], mc.history[:len(mc.history)-1])
	mc.history[0] = nil
}

func topicInMessage(m *pb.Message, topic string) bool {
	for _, t := range m.GetTopicIDs() {
		if t == topic {
			return true
		}
	}
	return false
}
