package tracker

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"metatracker/helper"
	"metatracker/peer"
)

const (
	protocolID = 0x41727101980

	actionConnect  uint32 = 0
	actionAnnounce uint32 = 1
	actionError    uint32 = 3

	connectLen        = 16
	announceLen       = 98
	announceHeaderLen = 12 // interval, leechers and seeders after the common header
	maxPacketSize     = 2048
)

type connect struct {
	ProtocolID    uint64 // request
	Action        uint32 // request & response
	TransactionID []byte // request & response

	ConnectionID []byte // response
}

func newConnect(rnd io.Reader) (*connect, error) {
	transactionID, err := helper.GenerateRandomID(rnd, 4)
	if err != nil {
		return nil, err
	}
	return &connect{
		ProtocolID:    protocolID,
		Action:        actionConnect,
		TransactionID: transactionID,
	}, nil
}

func (c *connect) serialize() []byte {
	buf := make([]byte, connectLen)
	binary.BigEndian.PutUint64(buf[0:8], c.ProtocolID)
	binary.BigEndian.PutUint32(buf[8:12], c.Action)
	copy(buf[12:16], c.TransactionID)
	return buf
}

type announce struct {
	Action        uint32 // request & response
	TransactionID []byte // request & response

	ConnectionID []byte   // request
	InfoHash     [20]byte // request
	PeerID       [20]byte // request
	Downloaded   uint64   // request
	Left         uint64   // request
	Uploaded     uint64   // request
	Event        uint32   // request
	IP           uint32   // request, 0 lets the tracker use the source address
	Key          uint32   // request
	NumWant      int32    // request, -1 for the tracker default
	Port         uint16   // request

	Interval uint32 // response
	Leechers uint32 // response
	Seeders  uint32 // response
	Peers    []byte // response
}

func newAnnounce(req *AnnounceRequest, connectionID []byte, rnd io.Reader) (*announce, error) {
	transactionID, err := helper.GenerateRandomID(rnd, 4)
	if err != nil {
		return nil, err
	}

	key := req.Key
	if key == 0 {
		random, err := helper.GenerateRandomID(rnd, 4)
		if err != nil {
			return nil, err
		}
		key = binary.BigEndian.Uint32(random)
	}

	numWant := int32(-1)
	if req.NumWant > 0 {
		numWant = int32(req.NumWant)
	}

	return &announce{
		Action:        actionAnnounce,
		TransactionID: transactionID,
		ConnectionID:  connectionID,
		InfoHash:      req.InfoHash,
		PeerID:        req.PeerID,
		Downloaded:    uint64(req.Downloaded),
		Left:          uint64(req.Left),
		Uploaded:      uint64(req.Uploaded),
		Event:         uint32(req.Event),
		Key:           key,
		NumWant:       numWant,
		Port:          req.Port,
	}, nil
}

func (a *announce) serialize() []byte {
	buf := make([]byte, announceLen)
	copy(buf[0:8], a.ConnectionID)
	binary.BigEndian.PutUint32(buf[8:12], a.Action)
	copy(buf[12:16], a.TransactionID)
	copy(buf[16:36], a.InfoHash[:])
	copy(buf[36:56], a.PeerID[:])
	binary.BigEndian.PutUint64(buf[56:64], a.Downloaded)
	binary.BigEndian.PutUint64(buf[64:72], a.Left)
	binary.BigEndian.PutUint64(buf[72:80], a.Uploaded)
	binary.BigEndian.PutUint32(buf[80:84], a.Event)
	binary.BigEndian.PutUint32(buf[84:88], a.IP)
	binary.BigEndian.PutUint32(buf[88:92], a.Key)
	binary.BigEndian.PutUint32(buf[92:96], uint32(a.NumWant))
	binary.BigEndian.PutUint16(buf[96:98], a.Port)
	return buf
}

// readAnnounce decodes the body of an announce response, the part after
// action and transaction id.
func readAnnounce(payload []byte) (*announce, error) {
	if len(payload) < announceHeaderLen {
		return nil, fmt.Errorf("%w: announce response too short (%d bytes)", ErrValidation, len(payload))
	}
	return &announce{
		Action:   actionAnnounce,
		Interval: binary.BigEndian.Uint32(payload[0:4]),
		Leechers: binary.BigEndian.Uint32(payload[4:8]),
		Seeders:  binary.BigEndian.Uint32(payload[8:12]),
		Peers:    payload[announceHeaderLen:],
	}, nil
}

// readHeader checks the action and transaction id every response starts
// with and returns the rest. An error action carries the tracker's message.
func readHeader(buf, transactionID []byte, want uint32) ([]byte, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("%w: response too short (%d bytes)", ErrValidation, len(buf))
	}
	if !bytes.Equal(buf[4:8], transactionID) {
		return nil, fmt.Errorf("%w: transaction id mismatch", ErrValidation)
	}

	action := binary.BigEndian.Uint32(buf[0:4])
	if action == actionError {
		return nil, FailureError(buf[8:])
	}
	if action != want {
		return nil, fmt.Errorf("%w: action %d, expected %d", ErrValidation, action, want)
	}
	return buf[8:], nil
}

// AnnounceUDP performs the connect and announce exchange of BEP 15 over
// conn, which must already be dialled to the tracker. Transaction ids and
// the announce key are drawn from rnd. Cancelling ctx interrupts any pending
// read or write.
func AnnounceUDP(ctx context.Context, conn net.Conn, req *AnnounceRequest, rnd io.Reader) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, &TransportError{URL: udpURL(conn), Err: err}
		}
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, maxPacketSize)

	connectReq, err := newConnect(rnd)
	if err != nil {
		return nil, err
	}
	payload, err := roundTrip(ctx, conn, buf, connectReq.serialize(), connectReq.TransactionID, actionConnect)
	if err != nil {
		return nil, err
	}
	if len(payload) < 8 {
		return nil, fmt.Errorf("%w: connect response too short (%d bytes)", ErrValidation, len(payload)+8)
	}
	connectionID := bytes.Clone(payload[:8])

	announceReq, err := newAnnounce(req, connectionID, rnd)
	if err != nil {
		return nil, err
	}
	payload, err = roundTrip(ctx, conn, buf, announceReq.serialize(), announceReq.TransactionID, actionAnnounce)
	if err != nil {
		return nil, err
	}
	announceRes, err := readAnnounce(payload)
	if err != nil {
		return nil, err
	}

	res := &Response{}
	if res.Interval, err = nonNegative("interval", int64(announceRes.Interval)); err != nil {
		return nil, err
	}
	if res.Interval == 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrValidation)
	}
	if res.Incomplete, err = nonNegative("leechers", int64(announceRes.Leechers)); err != nil {
		return nil, err
	}
	if res.Complete, err = nonNegative("seeders", int64(announceRes.Seeders)); err != nil {
		return nil, err
	}
	if res.Peers, err = peer.Unmarshal(announceRes.Peers); err != nil {
		return nil, err
	}
	return res, nil
}

func roundTrip(ctx context.Context, conn net.Conn, buf, packet, transactionID []byte, want uint32) ([]byte, error) {
	if _, err := conn.Write(packet); err != nil {
		return nil, transportError(ctx, conn, err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		return nil, transportError(ctx, conn, err)
	}
	return readHeader(buf[:n], transactionID, want)
}

// transportError prefers the context's error over the deadline error it
// caused.
func transportError(ctx context.Context, conn net.Conn, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		err = context.DeadlineExceeded
	}
	return &TransportError{URL: udpURL(conn), Err: err}
}

func udpURL(conn net.Conn) string {
	return "udp://" + conn.RemoteAddr().String()
}
