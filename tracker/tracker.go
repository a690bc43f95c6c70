// Package tracker builds announce requests and decodes tracker replies for
// HTTP (BEP 3) and UDP (BEP 15) trackers.
package tracker

import (
	"errors"
	"fmt"

	"metatracker/peer"
	"metatracker/torrent"
)

var (
	// ErrValidation marks a request or reply whose fields are well typed but
	// out of range.
	ErrValidation = errors.New("invalid tracker exchange")
	ErrTransport  = errors.New("tracker transport failed")
)

// TransportError wraps whatever the transport returned when the exchange
// could not complete. errors.Is(err, ErrTransport) holds for it.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to contact tracker %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// FailureError is the message a tracker sends instead of peers.
type FailureError string

func (e FailureError) Error() string {
	return "tracker error: " + string(e)
}

type Event int32

const (
	EventNone Event = iota // regular update
	EventCompleted
	EventStarted
	EventStopped
)

var eventNames = []string{"", "completed", "started", "stopped"}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return ""
	}
	return eventNames[e]
}

// AnnounceRequest contains the parameters for a tracker announce request
type AnnounceRequest struct {
	InfoHash   [20]byte
	PeerID     [20]byte
	Port       uint16 // port we're listening on
	Uploaded   int64
	Downloaded int64
	Left       int64
	Compact    bool
	Event      Event
	NumWant    int // 0 lets the tracker pick
	Key        uint32
	TrackerID  string // echoed back from a previous response
}

// NewAnnounceRequest returns the first announce of a download: nothing
// transferred yet, everything left.
func NewAnnounceRequest(t *torrent.Descriptor, peerID [20]byte, port uint16) *AnnounceRequest {
	return &AnnounceRequest{
		InfoHash: t.InfoHash,
		PeerID:   peerID,
		Port:     port,
		Left:     t.Length,
		Compact:  true,
		Event:    EventStarted,
	}
}

func (r *AnnounceRequest) validate() error {
	if r.Uploaded < 0 || r.Downloaded < 0 || r.Left < 0 {
		return fmt.Errorf("%w: negative transfer counters (uploaded %d, downloaded %d, left %d)",
			ErrValidation, r.Uploaded, r.Downloaded, r.Left)
	}
	return nil
}

// Response is what the tracker returns from an announce. Interval is in
// seconds. Peers keep the order the tracker sent them in.
type Response struct {
	Interval    int
	MinInterval int
	TrackerID   string
	Complete    int // seeders
	Incomplete  int // leechers
	Warning     string
	Peers       []peer.Peer
}
