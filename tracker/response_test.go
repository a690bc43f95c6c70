package tracker

import (
	"errors"
	"net"
	"reflect"
	"testing"

	"metatracker/bencode"
	"metatracker/peer"
)

func TestParseResponseCompact(t *testing.T) {
	body := "d8:completei5e10:incompletei3e8:intervali900e12:min intervali60e" +
		"5:peers12:\xc0\xa8\x01\x0a\x1f\x90\x7f\x00\x00\x01\x1a\xe1" +
		"10:tracker id3:xyz15:warning message4:slowe"

	res, err := ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}

	expected := &Response{
		Interval:    900,
		MinInterval: 60,
		TrackerID:   "xyz",
		Complete:    5,
		Incomplete:  3,
		Warning:     "slow",
		Peers: []peer.Peer{
			{IP: net.IP{192, 168, 1, 10}, Port: 8080},
			{IP: net.IP{127, 0, 0, 1}, Port: 6881},
		},
	}
	if !reflect.DeepEqual(res, expected) {
		t.Errorf("ParseResponse() = %+v, want %+v", res, expected)
	}
}

func TestParseResponseDictPeers(t *testing.T) {
	body := "d8:intervali1800e5:peersl" +
		"d2:ip8:10.0.0.17:peer id20:-XX0000-aaaaaaaaaaaa4:porti51413ee" +
		"d2:ip3:::14:porti80ee" +
		"ee"

	res, err := ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if res.Interval != 1800 {
		t.Errorf("Interval = %d, want 1800", res.Interval)
	}

	expected := []peer.Peer{
		{IP: net.IP{10, 0, 0, 1}, Port: 51413},
		{IP: net.ParseIP("::1"), Port: 80},
	}
	if !reflect.DeepEqual(res.Peers, expected) {
		t.Errorf("Peers = %v, want %v", res.Peers, expected)
	}
}

func TestParseResponsePeers6(t *testing.T) {
	body := "d8:intervali60e5:peers0:6:peers618:" +
		"\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01\x1a\xe1e"

	res, err := ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if len(res.Peers) != 1 || !res.Peers[0].IP.Equal(net.IPv6loopback) || res.Peers[0].Port != 6881 {
		t.Errorf("Peers = %v, want [[::1]:6881]", res.Peers)
	}
}

func TestParseResponseTrailingBytes(t *testing.T) {
	res, err := ParseResponse([]byte("d8:intervali60e5:peers0:e\r\n"))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if res.Interval != 60 || len(res.Peers) != 0 {
		t.Errorf("ParseResponse() = %+v", res)
	}
}

func TestParseResponseFailure(t *testing.T) {
	_, err := ParseResponse([]byte("d14:failure reason12:unregisterede"))

	var failure FailureError
	if !errors.As(err, &failure) {
		t.Fatalf("ParseResponse() error = %v, want FailureError", err)
	}
	if string(failure) != "unregistered" {
		t.Errorf("failure = %q, want %q", failure, "unregistered")
	}
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"Not bencode", "<html>", bencode.ErrMalformed},
		{"Empty", "", bencode.ErrMalformed},
		{"Not a dictionary", "li1ee", bencode.ErrFieldTypeMismatch},
		{"Missing interval", "d5:peers0:e", bencode.ErrFieldMissing},
		{"Missing peers", "d8:intervali60ee", bencode.ErrFieldMissing},
		{"Interval is a string", "d8:interval2:605:peers0:e", bencode.ErrFieldTypeMismatch},
		{"Peers is an integer", "d8:intervali60e5:peersi0ee", bencode.ErrFieldTypeMismatch},
		{"Zero interval", "d8:intervali0e5:peers0:e", ErrValidation},
		{"Negative interval", "d8:intervali-1e5:peers0:e", ErrValidation},
		{"Seven byte peer blob", "d8:intervali60e5:peers7:\xc0\xa8\x01\x0a\x1f\x90\x00e", peer.ErrMalformedPeerList},
		{"Bad peer ip", "d8:intervali60e5:peersld2:ip4:nope4:porti1eeee", peer.ErrMalformedPeerList},
		{"Zero peer port", "d8:intervali60e5:peersld2:ip7:1.2.3.44:porti0eeee", peer.ErrMalformedPeerList},
		{"Peer port too large", "d8:intervali60e5:peersld2:ip7:1.2.3.44:porti65536eeee", peer.ErrMalformedPeerList},
		{"Peer without port", "d8:intervali60e5:peersld2:ip7:1.2.3.4eee", bencode.ErrFieldMissing},
		{"Bad peers6", "d8:intervali60e5:peers0:6:peers62:xxe", peer.ErrMalformedPeerList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse([]byte(tt.body))
			if !errors.Is(err, tt.err) {
				t.Errorf("ParseResponse() error = %v, want %v", err, tt.err)
			}
		})
	}
}
