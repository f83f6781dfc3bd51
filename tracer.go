package pubsub

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/protocol"
)

// pubsubTracer is a logging-only observer of the pipeline's internal
// events. It exists at every call site a pluggable EventTracer would
// occupy in the wider ecosystem, but here it only ever writes to the
// package logger -- there is no external trace sink to wire up.
type pubsubTracer struct {
	pid peer.ID
}

func (t *pubsubTracer) PublishMessage(msg *Message) {
	log.Debugf("PUBLISH %s from %s", t.pid, msg.GetFrom())
}

func (t *pubsubTracer) RejectMessage(msg *Message, reason rejectReason) {
	log.Debugf("REJECT %s from %s: %s", t.pid, msg.GetFrom(), reason)
}

func (t *pubsubTracer) DuplicateMessage(msg *Message) {
	log.Debugf("DUP %s from %s", t.pid, msg.GetFrom())
}

func (t *pubsubTracer) DeliverMessage(msg *Message) {
	log.Debugf("DELIVER %s from %s", t.pid, msg.GetFrom())
}

func (t *pubsubTracer) SendRPC(rpc *RPC, p peer.ID) {
	log.Debugf("SEND RPC %s -> %s", t.pid, p)
}

func (t *pubsubTracer) DropRPC(rpc *RPC, p peer.ID) {
	log.Debugf("DROP RPC %s -> %s", t.pid, p)
}

func (t *pubsubTracer) RecvRPC(rpc *RPC) {
	log.Debugf("RECV RPC %s <- %s", t.pid, rpc.from)
}

func (t *pubsubTracer) AddPeer(p peer.ID, proto protocol.ID) {
	log.Debugf("PEER ADD %s: %s (%s)", t.pid, p, proto)
}

func (t *pubsubTracer) RemovePeer(p peer.ID) {
	log.Debugf("PEER REMOVE %s: %s", t.pid, p)
}

func (t *pubsubTracer) Join(topic string) {
	log.Debugf("JOIN %s: %s", t.pid, topic)
}

func (t *pubsubTracer) Leave(topic string) {
	log.Debugf("LEAVE %s: %s", t.pid, topic)
}

func (t *pubsubTracer) Graft(p peer.ID, topic string) {
	log.Debugf("GRAFT %s: %s %s", t.pid, p, topic)
}

func (t *pubsubTracer) Prune(p peer.ID, topic string) {
	log.Debugf("PRUNE %s: %s %s", t.pid, p, topic)
}

func (t *pubsubTracer) ThrottlePeer(p peer.ID) {
	log.Debugf("THROTTLE %s: %s", t.pid, p)
}
