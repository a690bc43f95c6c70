package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nictuku/dht"

	"metatracker/peer"
	"metatracker/torrent"
)

// dhtRequestInterval is how often the lookup is repeated while waiting for
// more peers.
const dhtRequestInterval = 5 * time.Second

// DiscoverDHT looks up peers for d on the mainline DHT. It returns once want
// distinct peers are known, or when ctx is done with whatever was found so
// far. Only a done ctx with no peers at all is an error.
func (c *Client) DiscoverDHT(ctx context.Context, d *torrent.Descriptor, want int) ([]peer.Peer, error) {
	if !c.config.UseDHT {
		return nil, errors.New("dht discovery is disabled")
	}
	if d.Private {
		return nil, errors.New("private torrents must not use the dht")
	}

	config := dht.NewConfig()
	config.NumTargetPeers = want
	node, err := dht.New(config)
	if err != nil {
		return nil, err
	}
	if err := node.Start(); err != nil {
		return nil, err
	}
	defer node.Stop()

	infoHash := dht.InfoHash(d.InfoHash[:])
	request := func() {
		node.PeersRequest(string(infoHash), false)
	}
	c.log.Debug("dht lookup started", "info_hash", fmt.Sprintf("%x", d.InfoHash))

	return drainResults(ctx, node.PeersRequestResults, infoHash, want, dhtRequestInterval, request, c.log.Debug)
}

// drainResults collects compact peer addresses for infoHash from results,
// calling request at start and then every interval.
func drainResults(
	ctx context.Context,
	results <-chan map[dht.InfoHash][]string,
	infoHash dht.InfoHash,
	want int,
	interval time.Duration,
	request func(),
	debug func(msg string, args ...any),
) ([]peer.Peer, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seen := make(map[string]bool)
	var peers []peer.Peer

	request()
	for {
		select {
		case <-ctx.Done():
			if len(peers) > 0 {
				return peers, nil
			}
			return nil, ctx.Err()
		case <-ticker.C:
			request()
		case r := <-results:
			for _, x := range r[infoHash] {
				found, err := peer.Unmarshal([]byte(x))
				if err != nil {
					debug("dropping dht result", "err", err)
					continue
				}
				for _, p := range found {
					if seen[p.String()] {
						continue
					}
					seen[p.String()] = true
					peers = append(peers, p)
				}
			}
			if want > 0 && len(peers) >= want {
				return peers, nil
			}
		}
	}
}
