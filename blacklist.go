package pubsub

import (
	"sync"

	"github.com/libp2p/go-libp2p-core/peer"
)

// Blacklist is checked on every inbound connection and every inbound
// message; peers it contains are unconditionally rejected.
type Blacklist interface {
	Add(peer.ID) bool
	Contains(peer.ID) bool
}

// MapBlacklist is the default Blacklist: an unbounded set kept in memory
// for the lifetime of the PubSub instance.
type MapBlacklist struct {
	mx sync.RWMutex
	m  map[peer.ID]struct{}
}

// NewMapBlacklist creates a new MapBlacklist.
func NewMapBlacklist() Blacklist {
	return &MapBlacklist{
		m: make(map[peer.ID]struct{}),
	}
}

func (b *MapBlacklist) Add(p peer.ID) bool {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.m[p] = struct{}{}
	return true
}

func (b *MapBlacklist) Contains(p peer.ID) bool {
	b.mx.RLock()
	defer b.mx.RUnlock()
	_, ok := b.m[p]
	return ok
}
