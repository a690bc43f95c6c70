package tracker

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BuildURL returns the announce URL for req on an HTTP tracker. It does no
// I/O. Query parameters already on the announce URL are kept.
func BuildURL(announce string, req *AnnounceRequest) (string, error) {
	base, err := url.Parse(announce)
	if err != nil {
		return "", fmt.Errorf("invalid tracker URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("bad or unsupported url scheme %q", base.Scheme)
	}
	if err := req.validate(); err != nil {
		return "", err
	}

	var query strings.Builder
	query.WriteString(base.RawQuery)
	add := func(key, value string) {
		if query.Len() > 0 {
			query.WriteByte('&')
		}
		query.WriteString(key)
		query.WriteByte('=')
		query.WriteString(value)
	}

	add("info_hash", escape(req.InfoHash[:]))
	add("peer_id", escape(req.PeerID[:]))
	add("port", strconv.Itoa(int(req.Port)))
	add("uploaded", strconv.FormatInt(req.Uploaded, 10))
	add("downloaded", strconv.FormatInt(req.Downloaded, 10))
	add("left", strconv.FormatInt(req.Left, 10))
	if req.Compact {
		add("compact", "1")
	} else {
		add("compact", "0")
	}
	if req.Event != EventNone {
		add("event", req.Event.String())
	}
	if req.NumWant > 0 {
		add("numwant", strconv.Itoa(req.NumWant))
	}
	if req.Key != 0 {
		add("key", fmt.Sprintf("%08x", req.Key))
	}
	if req.TrackerID != "" {
		add("trackerid", escape([]byte(req.TrackerID)))
	}

	base.RawQuery = query.String()
	base.Fragment = ""
	return base.String(), nil
}

// escape percent-encodes every byte outside the RFC 3986 unreserved set.
// url.QueryEscape would turn 0x20 into '+', which not every tracker decodes.
func escape(b []byte) string {
	const hex = "0123456789ABCDEF"

	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for _, c := range b {
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0F])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
