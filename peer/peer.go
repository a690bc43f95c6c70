package peer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	// compact IPv4 record: 4 bytes of address, 2 of port
	compactSize = 6
	// compact IPv6 record: 16 bytes of address, 2 of port
	compactSize6 = 18
)

var ErrMalformedPeerList = errors.New("malformed peer list")

type Peer struct {
	IP   net.IP
	Port uint16
}

// Unmarshal peers list from the tracker.
//
// Each peer is 6 bytes long: 4 for IP and 2 for port number, both in network
// byte order. Hence, peers list has to be a multiple of 6.
func Unmarshal(peersBinary []byte) ([]Peer, error) {
	return unmarshal(peersBinary, net.IPv4len, compactSize)
}

// Unmarshal6 parses the IPv6 form, 18 bytes per peer.
func Unmarshal6(peersBinary []byte) ([]Peer, error) {
	return unmarshal(peersBinary, net.IPv6len, compactSize6)
}

func unmarshal(peersBinary []byte, ipLen, peerSize int) ([]Peer, error) {
	if len(peersBinary)%peerSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformedPeerList, len(peersBinary), peerSize)
	}

	numPeers := len(peersBinary) / peerSize
	peers := make([]Peer, numPeers)
	for i := 0; i < numPeers; i++ {
		offset := i * peerSize
		ip := make(net.IP, ipLen)
		copy(ip, peersBinary[offset:offset+ipLen])
		peers[i].IP = ip
		peers[i].Port = binary.BigEndian.Uint16(peersBinary[offset+ipLen : offset+peerSize])
	}

	return peers, nil
}

// Marshal is the inverse of Unmarshal; peers without an IPv4 address are
// rejected.
func Marshal(peers []Peer) ([]byte, error) {
	buf := make([]byte, 0, len(peers)*compactSize)
	for _, p := range peers {
		ip4 := p.IP.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("peer %s has no IPv4 address", p)
		}
		buf = append(buf, ip4...)
		buf = binary.BigEndian.AppendUint16(buf, p.Port)
	}
	return buf, nil
}

// Return Peer ip and port with suitable format - ip:port
func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}
