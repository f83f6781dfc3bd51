package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p-core/peer"

	pb "github.com/quaylabs/meshsub/pb"
)

// Topic is a handle on a single topic: it can be subscribed to, published
// on, and closed. Only one Topic handle should exist per topic name; use
// PubSub.Join to obtain one.
type Topic struct {
	p     *PubSub
	topic string

	evtHandlerMx sync.RWMutex
	evtHandlers  map[*TopicEventHandler]struct{}

	mux    sync.RWMutex
	closed bool
}

// String returns the topic name.
func (t *Topic) String() string {
	return t.topic
}

// Subscribe returns a new Subscription for this topic.
func (t *Topic) Subscribe(opts ...SubOpt) (*Subscription, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()
	if t.closed {
		return nil, fmt.Errorf("cannot subscribe to a closed topic")
	}

	sub := &Subscription{
		topic: t.topic,
		ch:    make(chan *Message, 32),
	}

	for _, opt := range opts {
		if err := opt(sub); err != nil {
			return nil, err
		}
	}

	resp := make(chan *Subscription, 1)
	select {
	case t.p.addSub <- &addSubReq{sub: sub, resp: resp}:
	case <-t.p.ctx.Done():
		return nil, t.p.ctx.Err()
	}
	return <-resp, nil
}

// Publish publishes data on this topic, stamping it as authored by this
// host with a fresh sequence number.
func (t *Topic) Publish(ctx context.Context, data []byte) error {
	t.mux.RLock()
	defer t.mux.RUnlock()
	if t.closed {
		return fmt.Errorf("cannot publish to a closed topic")
	}

	seqno := t.p.nextSeqno()
	id := t.p.host.ID()
	m := &pb.Message{
		Data:     data,
		TopicIDs: []string{t.topic},
		From:     []byte(id),
		Seqno:    seqno,
	}

	select {
	case t.p.publish <- &Message{Message: m, ReceivedFrom: id}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.p.ctx.Done():
		return t.p.ctx.Err()
	}
}

// Close removes this Topic's tracker from PubSub. Close errors if the
// Topic has outstanding event handlers or subscriptions.
func (t *Topic) Close() error {
	t.mux.Lock()
	defer t.mux.Unlock()

	resp := make(chan error, 1)
	select {
	case t.p.rmTopic <- &rmTopicReq{topic: t, resp: resp}:
	case <-t.p.ctx.Done():
		return t.p.ctx.Err()
	}
	err := <-resp
	if err == nil {
		t.closed = true
	}
	return err
}

// PeerEventType enumerates the kinds of peer-topic events a
// TopicEventHandler can receive.
type PeerEventType int

const (
	PeerJoin PeerEventType = iota
	PeerLeave
)

// PeerEvent describes one subscription-level peer join or leave for a
// topic, distinct from the connection-level events carried by Bus.
type PeerEvent struct {
	Type PeerEventType
	Peer peer.ID
}

// TopicEventHandler receives PeerJoin/PeerLeave notifications for one
// topic's peer set.
type TopicEventHandler struct {
	evtCh  chan PeerEvent
	cancel func()
}

// EventHandler returns a TopicEventHandler that observes peer join/leave
// events for t.
func (t *Topic) EventHandler() (*TopicEventHandler, error) {
	h := &TopicEventHandler{
		evtCh: make(chan PeerEvent, 32),
	}
	h.cancel = func() {
		t.evtHandlerMx.Lock()
		delete(t.evtHandlers, h)
		t.evtHandlerMx.Unlock()
		close(h.evtCh)
	}

	t.evtHandlerMx.Lock()
	t.evtHandlers[h] = struct{}{}
	t.evtHandlerMx.Unlock()

	return h, nil
}

// NextPeerEvent blocks until a peer joins or leaves the topic, or ctx is
// cancelled.
func (h *TopicEventHandler) NextPeerEvent(ctx context.Context) (PeerEvent, error) {
	select {
	case evt, ok := <-h.evtCh:
		if !ok {
			return PeerEvent{}, fmt.Errorf("event handler cancelled")
		}
		return evt, nil
	case <-ctx.Done():
		return PeerEvent{}, ctx.Err()
	}
}

// Cancel stops delivery to this handler.
func (h *TopicEventHandler) Cancel() {
	h.cancel()
}

// sendNotification fans evt out to every registered TopicEventHandler for
// this topic, dropping it for any handler whose buffer is full rather than
// blocking the caller (the processLoop goroutine).
func (t *Topic) sendNotification(evt PeerEvent) {
	t.evtHandlerMx.RLock()
	defer t.evtHandlerMx.RUnlock()
	for h := range t.evtHandlers {
		select {
		case h.evtCh <- evt:
		default:
		}
	}
}

// Subscription is a handle on a topic subscription: inbound delivery of
// messages published on that topic flows through Next.
type Subscription struct {
	topic    string
	ch       chan *Message
	cancelCh chan *Subscription
	err      error
}

// Topic returns the name of the topic this subscription is for.
func (sub *Subscription) Topic() string {
	return sub.topic
}

// Next blocks until a message arrives, ctx is cancelled, or the
// subscription is closed.
func (sub *Subscription) Next(ctx context.Context) (*Message, error) {
	select {
	case msg, ok := <-sub.ch:
		if !ok {
			return nil, sub.err
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel cancels this subscription. If it was the last subscription for
// its topic, PubSub stops advertising interest in the topic.
func (sub *Subscription) Cancel() {
	select {
	case sub.cancelCh <- sub:
	default:
	}
}

func (sub *Subscription) close() {
	close(sub.ch)
}
