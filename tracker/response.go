package tracker

import (
	"fmt"
	"math"
	"net"

	"metatracker/bencode"
	"metatracker/peer"
)

// ParseResponse decodes the bencoded body of an HTTP announce reply. Bytes
// after the top-level dictionary are ignored.
func ParseResponse(body []byte) (*Response, error) {
	root, _, err := bencode.DecodeAt(body, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tracker response: %w", err)
	}

	dict, ok := root.(bencode.Dictionary)
	if !ok {
		return nil, bencode.Mismatch("response", bencode.KindDictionary, root)
	}

	reason, failed, err := dict.OptText("failure reason")
	if err != nil {
		return nil, err
	}
	if failed {
		return nil, FailureError(reason)
	}

	res := &Response{}
	interval, err := dict.Int("interval")
	if err != nil {
		return nil, err
	}
	if res.Interval, err = nonNegative("interval", interval); err != nil {
		return nil, err
	}
	if res.Interval == 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrValidation)
	}

	peersValue, ok := dict.Get("peers")
	if !ok {
		return nil, &bencode.FieldError{Field: "peers", Expected: bencode.KindByteString, Missing: true}
	}
	switch p := peersValue.(type) {
	case bencode.ByteString:
		res.Peers, err = peer.Unmarshal(p.Bytes)
	case bencode.List:
		res.Peers, err = parsePeerList(p)
	default:
		err = bencode.Mismatch("peers", bencode.KindByteString, p)
	}
	if err != nil {
		return nil, err
	}

	peers6, ok, err := dict.OptBytes("peers6")
	if err != nil {
		return nil, err
	}
	if ok {
		more, err := peer.Unmarshal6(peers6)
		if err != nil {
			return nil, err
		}
		res.Peers = append(res.Peers, more...)
	}

	if err := parseOptional(dict, res); err != nil {
		return nil, err
	}
	return res, nil
}

func parseOptional(dict bencode.Dictionary, res *Response) error {
	counts := []struct {
		key string
		dst *int
	}{
		{"min interval", &res.MinInterval},
		{"complete", &res.Complete},
		{"incomplete", &res.Incomplete},
	}
	for _, c := range counts {
		n, ok, err := dict.OptInt(c.key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if *c.dst, err = nonNegative(c.key, n); err != nil {
			return err
		}
	}

	var err error
	if res.TrackerID, _, err = dict.OptText("tracker id"); err != nil {
		return err
	}
	if res.Warning, _, err = dict.OptText("warning message"); err != nil {
		return err
	}
	return nil
}

// nonNegative narrows a tracker integer to int, rejecting negative values.
func nonNegative(field string, n int64) (int, error) {
	if n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %d out of range", ErrValidation, field, n)
	}
	return int(n), nil
}

// parsePeerList reads the dictionary model of the peers field: one
// dictionary per peer with ip and port keys.
func parsePeerList(list bencode.List) ([]peer.Peer, error) {
	peers := make([]peer.Peer, 0, list.Len())
	for i, item := range list.Items {
		dict, ok := item.(bencode.Dictionary)
		if !ok {
			return nil, fmt.Errorf("peer %d: %w", i, bencode.Mismatch("peers", bencode.KindDictionary, item))
		}

		host, err := dict.Text("ip")
		if err != nil {
			return nil, fmt.Errorf("peer %d: %w", i, err)
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, fmt.Errorf("%w: peer %d has invalid ip %q", peer.ErrMalformedPeerList, i, host)
		}
		if ip4 := ip.To4(); ip4 != nil {
			ip = ip4
		}

		port, err := dict.Int("port")
		if err != nil {
			return nil, fmt.Errorf("peer %d: %w", i, err)
		}
		if port <= 0 || port > math.MaxUint16 {
			return nil, fmt.Errorf("%w: peer %d has invalid port %d", peer.ErrMalformedPeerList, i, port)
		}

		peers = append(peers, peer.Peer{IP: ip, Port: uint16(port)})
	}
	return peers, nil
}
