// Package client ties descriptor, tracker and DHT lookups together behind
// one peer identity.
package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/gosuri/uiprogress"

	"metatracker/helper"
	"metatracker/torrent"
	"metatracker/tracker"
)

// Dialer opens the connection for a UDP tracker. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Option func(*Client)

func WithTransport(t tracker.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

type Client struct {
	config    Config
	peerID    [20]byte
	rnd       io.Reader
	transport tracker.Transport
	dialer    Dialer
	log       *slog.Logger
}

// New validates config and generates the peer id from rnd, crypto/rand when
// nil. The same reader later supplies UDP transaction ids.
func New(config Config, rnd io.Reader, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = rand.Reader
	}

	peerID, err := helper.GeneratePeerID(rnd)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:    config,
		peerID:    peerID,
		rnd:       rnd,
		transport: &tracker.HTTPTransport{},
		dialer:    &net.Dialer{},
		log:       config.Logger,
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) PeerID() [20]byte {
	return c.peerID
}

func (c *Client) Config() Config {
	return c.config
}

// Announce performs one started announce against trackerURL, bounded by the
// configured timeout.
func (c *Client) Announce(ctx context.Context, d *torrent.Descriptor, trackerURL string) (*tracker.Response, error) {
	base, err := url.Parse(trackerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req := tracker.NewAnnounceRequest(d, c.peerID, c.config.Port)
	req.NumWant = c.config.NumWant

	c.log.Debug("announcing", "tracker", trackerURL, "info_hash", fmt.Sprintf("%x", d.InfoHash))

	switch base.Scheme {
	case "http", "https":
		return tracker.Announce(ctx, c.transport, trackerURL, req)
	case "udp":
		conn, err := c.dialer.DialContext(ctx, "udp", base.Host)
		if err != nil {
			return nil, &tracker.TransportError{URL: trackerURL, Err: err}
		}
		defer conn.Close()
		return tracker.AnnounceUDP(ctx, conn, req, c.rnd)
	default:
		return nil, fmt.Errorf("bad or unsupported url scheme %q", base.Scheme)
	}
}

// Result is the outcome of announcing to one tracker.
type Result struct {
	Tracker  string
	Response *tracker.Response
	Err      error
}

// AnnounceEach contacts every tracker of d once, in the order of
// d.Trackers(), and returns one Result per tracker. Failures are recorded,
// not retried. It stops early only when ctx is done.
func (c *Client) AnnounceEach(ctx context.Context, d *torrent.Descriptor) ([]Result, error) {
	if !c.config.UseTrackers {
		return nil, errors.New("tracker discovery is disabled")
	}

	trackers := d.Trackers()
	var progress *uiprogress.Progress
	var bar *uiprogress.Bar
	if c.config.ShowProgress {
		progress, bar = announceProgress(len(trackers))
		defer progress.Stop()
	}

	results := make([]Result, 0, len(trackers))
	for _, trackerURL := range trackers {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := c.Announce(ctx, d, trackerURL)
		if err != nil {
			c.log.Debug("announce failed", "tracker", trackerURL, "err", err)
		} else {
			c.log.Debug("announce succeeded", "tracker", trackerURL,
				"interval", res.Interval, "peers", len(res.Peers))
		}
		results = append(results, Result{Tracker: trackerURL, Response: res, Err: err})

		if bar != nil {
			bar.Incr()
		}
	}
	return results, nil
}

func announceProgress(total int) (*uiprogress.Progress, *uiprogress.Bar) {
	progress := uiprogress.New()
	progress.Start()
	bar := progress.AddBar(total)
	bar.AppendCompleted()
	bar.AppendFunc(func(b *uiprogress.Bar) string {
		return "trackers: " + strconv.Itoa(b.Current()) + "/" + strconv.Itoa(total)
	})
	bar.AppendElapsed()
	return progress, bar
}
