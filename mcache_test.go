package pubsub

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	pb "github.com/quaylabs/meshsub/pb"
)

func mkMsg(id string, topic string) *pb.Message {
	data := []byte(id)
	from := []byte(id)
	return &pb.Message{
		Data:     data,
		From:     from,
		Seqno:    data,
		TopicIDs: []string{topic},
	}
}

func TestMessageCachePutGet(t *testing.T) {
	mc := NewMessageCache(3, 5)

	msg := mkMsg("msg1", "test")
	mc.Put(msg)

	mid := DefaultMsgIdFn(msg)
	got, ok := mc.Get(mid)
	require.True(t, ok)
	require.Equal(t, msg, got)

	_, ok = mc.Get("nonexistent")
	require.False(t, ok)
}

func TestMessageCacheGossipWindow(t *testing.T) {
	mc := NewMessageCache(2, 5)

	for i := 0; i < 3; i++ {
		mc.Put(mkMsg(fmt.Sprintf("msg%d", i), "test"))
		mc.Shift()
	}

	ids := mc.GetGossipIDs("test")
	require.LessOrEqual(t, len(ids), 2)
}

func TestMessageCacheShiftEvictsOldEntries(t *testing.T) {
	mc := NewMessageCache(1, 2)

	msg := mkMsg("old", "test")
	mc.Put(msg)
	mid := DefaultMsgIdFn(msg)

	mc.Shift()
	mc.Shift()

	_, ok := mc.Get(mid)
	require.False(t, ok)
}

func TestMessageCacheGetForPeerCountsRequests(t *testing.T) {
	mc := NewMessageCache(3, 5)

	msg := mkMsg("msg1", "test")
	mc.Put(msg)
	mid := DefaultMsgIdFn(msg)

	_, count, ok := mc.GetForPeer(mid, "peerA")
	require.True(t, ok)
	require.Equal(t, 1, count)

	_, count, ok = mc.GetForPeer(mid, "peerA")
	require.True(t, ok)
	require.Equal(t, 2, count)

	_, count, ok = mc.GetForPeer(mid, "peerB")
	require.True(t, ok)
	require.Equal(t, 1, count)
}
