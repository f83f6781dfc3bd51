package pubsub

import (
	"context"
	"testing"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/peer"
)

// getNetHosts builds n freshly listening loopback hosts for a test to wire
// together, mirroring how the router is exercised against a real libp2p
// network rather than in-process fakes.
func getNetHosts(t *testing.T, ctx context.Context, n int) []host.Host {
	var out []host.Host
	for i := 0; i < n; i++ {
		h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
		if err != nil {
			t.Fatal(err)
		}
		go func() {
			<-ctx.Done()
			h.Close()
		}()
		out = append(out, h)
	}
	return out
}

// connect dials b from a, waiting for the handshake to complete before
// returning so callers can immediately publish or subscribe.
func connect(t *testing.T, a, b host.Host) {
	pinfo := peer.AddrInfo{ID: b.ID(), Addrs: b.Addrs()}
	if err := a.Connect(context.Background(), pinfo); err != nil {
		t.Fatal(err)
	}
}
