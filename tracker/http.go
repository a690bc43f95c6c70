package tracker

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxBody caps how much of a reply HTTPTransport reads.
const DefaultMaxBody = 1 << 20

// Transport performs the GET of an announce URL and returns the raw body.
// Deadlines and cancellation come from ctx.
type Transport interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type HTTPTransport struct {
	Client  *http.Client // http.DefaultClient when nil
	MaxBody int64        // DefaultMaxBody when zero
}

func (t *HTTPTransport) Get(ctx context.Context, url string) ([]byte, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxBody := t.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBody)
	}
	return body, nil
}

// Announce sends req to the HTTP tracker at announce and parses its reply.
// Failures to reach the tracker come back as *TransportError.
func Announce(ctx context.Context, t Transport, announce string, req *AnnounceRequest) (*Response, error) {
	u, err := BuildURL(announce, req)
	if err != nil {
		return nil, err
	}
	body, err := t.Get(ctx, u)
	if err != nil {
		return nil, &TransportError{URL: announce, Err: err}
	}
	return ParseResponse(body)
}
