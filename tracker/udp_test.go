package tracker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"metatracker/peer"
)

var testConnectionID = []byte{1, 2, 3, 4, 5, 6, 7, 8}

// fixedRandom makes transaction ids and keys predictable.
func fixedRandom() *bytes.Reader {
	return bytes.NewReader(bytes.Repeat([]byte{7}, 64))
}

func udpAnnounceReply(transactionID []byte, interval, leechers, seeders uint32, peers []byte) []byte {
	buf := make([]byte, 20, 20+len(peers))
	binary.BigEndian.PutUint32(buf[0:4], actionAnnounce)
	copy(buf[4:8], transactionID)
	binary.BigEndian.PutUint32(buf[8:12], interval)
	binary.BigEndian.PutUint32(buf[12:16], leechers)
	binary.BigEndian.PutUint32(buf[16:20], seeders)
	return append(buf, peers...)
}

// serveUDP plays the tracker side of one connect and announce exchange.
// announceReply builds the answer to the announce packet.
func serveUDP(conn net.Conn, announceReply func(packet []byte) []byte) error {
	buf := make([]byte, maxPacketSize)

	n, err := conn.Read(buf)
	if err != nil {
		return err
	}
	if n != connectLen {
		return fmt.Errorf("connect packet is %d bytes", n)
	}
	if binary.BigEndian.Uint64(buf[0:8]) != protocolID || binary.BigEndian.Uint32(buf[8:12]) != actionConnect {
		return fmt.Errorf("bad connect packet %x", buf[:n])
	}
	reply := make([]byte, 16)
	binary.BigEndian.PutUint32(reply[0:4], actionConnect)
	copy(reply[4:8], buf[12:16])
	copy(reply[8:16], testConnectionID)
	if _, err := conn.Write(reply); err != nil {
		return err
	}

	n, err = conn.Read(buf)
	if err != nil {
		return err
	}
	if n != announceLen {
		return fmt.Errorf("announce packet is %d bytes", n)
	}
	if !bytes.Equal(buf[0:8], testConnectionID) {
		return fmt.Errorf("connection id %x not echoed", buf[0:8])
	}
	_, err = conn.Write(announceReply(bytes.Clone(buf[:n])))
	return err
}

func TestAnnounceUDP(t *testing.T) {
	d := sampleDescriptor()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- serveUDP(server, func(packet []byte) []byte {
			if binary.BigEndian.Uint32(packet[8:12]) != actionAnnounce {
				t.Errorf("action = %d, want %d", binary.BigEndian.Uint32(packet[8:12]), actionAnnounce)
			}
			if !bytes.Equal(packet[16:36], d.InfoHash[:]) {
				t.Errorf("info hash = %x, want %x", packet[16:36], d.InfoHash)
			}
			if got := binary.BigEndian.Uint64(packet[64:72]); got != 32768 {
				t.Errorf("left = %d, want 32768", got)
			}
			if got := binary.BigEndian.Uint32(packet[80:84]); got != uint32(EventStarted) {
				t.Errorf("event = %d, want %d", got, EventStarted)
			}
			if got := int32(binary.BigEndian.Uint32(packet[92:96])); got != -1 {
				t.Errorf("num want = %d, want -1", got)
			}
			if got := binary.BigEndian.Uint16(packet[96:98]); got != 6881 {
				t.Errorf("port = %d, want 6881", got)
			}
			peers := []byte{192, 168, 1, 10, 0x1F, 0x90, 10, 0, 0, 2, 0x00, 0x50}
			return udpAnnounceReply(packet[12:16], 1800, 4, 9, peers)
		})
	}()

	req := NewAnnounceRequest(d, samplePeerID(), 6881)
	res, err := AnnounceUDP(context.Background(), client, req, fixedRandom())
	if err != nil {
		t.Fatalf("AnnounceUDP() error = %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("tracker: %v", err)
	}

	if res.Interval != 1800 || res.Incomplete != 4 || res.Complete != 9 {
		t.Errorf("AnnounceUDP() = %+v", res)
	}
	if len(res.Peers) != 2 || res.Peers[0].String() != "192.168.1.10:8080" || res.Peers[1].String() != "10.0.0.2:80" {
		t.Errorf("Peers = %v", res.Peers)
	}
}

func TestAnnounceUDPErrorAction(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go serveUDP(server, func(packet []byte) []byte {
		reply := make([]byte, 8)
		binary.BigEndian.PutUint32(reply[0:4], actionError)
		copy(reply[4:8], packet[12:16])
		return append(reply, "info hash not tracked"...)
	})

	req := NewAnnounceRequest(sampleDescriptor(), samplePeerID(), 6881)
	_, err := AnnounceUDP(context.Background(), client, req, fixedRandom())

	var failure FailureError
	if !errors.As(err, &failure) || string(failure) != "info hash not tracked" {
		t.Errorf("AnnounceUDP() error = %v, want FailureError", err)
	}
}

func TestAnnounceUDPTransactionMismatch(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go serveUDP(server, func(packet []byte) []byte {
		return udpAnnounceReply([]byte{0, 0, 0, 0}, 1800, 0, 0, nil)
	})

	req := NewAnnounceRequest(sampleDescriptor(), samplePeerID(), 6881)
	_, err := AnnounceUDP(context.Background(), client, req, fixedRandom())
	if !errors.Is(err, ErrValidation) {
		t.Errorf("AnnounceUDP() error = %v, want ErrValidation", err)
	}
}

func TestAnnounceUDPBadReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply func(packet []byte) []byte
		err   error
	}{
		{
			name: "Short",
			reply: func(packet []byte) []byte {
				return udpAnnounceReply(packet[12:16], 1800, 0, 0, nil)[:15]
			},
			err: ErrValidation,
		},
		{
			name: "Zero interval",
			reply: func(packet []byte) []byte {
				return udpAnnounceReply(packet[12:16], 0, 0, 0, nil)
			},
			err: ErrValidation,
		},
		{
			name: "Partial peer",
			reply: func(packet []byte) []byte {
				return udpAnnounceReply(packet[12:16], 1800, 0, 0, []byte{1, 2, 3, 4, 5, 6, 7})
			},
			err: peer.ErrMalformedPeerList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()
			go serveUDP(server, tt.reply)

			req := NewAnnounceRequest(sampleDescriptor(), samplePeerID(), 6881)
			_, err := AnnounceUDP(context.Background(), client, req, fixedRandom())
			if !errors.Is(err, tt.err) {
				t.Errorf("AnnounceUDP() error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestAnnounceUDPTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// the tracker never reads, so the connect write blocks
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := NewAnnounceRequest(sampleDescriptor(), samplePeerID(), 6881)
	_, err := AnnounceUDP(ctx, client, req, fixedRandom())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("AnnounceUDP() error = %v, want ErrTransport", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AnnounceUDP() error = %v, want context.DeadlineExceeded in chain", err)
	}
}

func TestAnnounceUDPCancel(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		buf := make([]byte, maxPacketSize)
		server.Read(buf) // swallow the connect request and never answer
		cancel()
	}()

	req := NewAnnounceRequest(sampleDescriptor(), samplePeerID(), 6881)
	_, err := AnnounceUDP(ctx, client, req, fixedRandom())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("AnnounceUDP() error = %v, want context.Canceled", err)
	}
}

func TestAnnounceUDPRandomExhausted(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	req := NewAnnounceRequest(sampleDescriptor(), samplePeerID(), 6881)
	if _, err := AnnounceUDP(context.Background(), client, req, bytes.NewReader(nil)); err == nil {
		t.Error("AnnounceUDP() expected error from empty random source")
	}
}
