// Package fetch is the network primitive behind installs, cache misses and
// background refreshes: one origin, whole-payload responses.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response is a whole-payload response. The body is fully read before the
// response is returned; nothing is streamed.
type Response struct {
	Status int
	Header map[string]string
	Body   []byte
}

// OK reports whether the status indicates success.
func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Fetcher fetches one identifier from the network.
// Do returns an error only for transport failures; a response with a
// non-success status is returned as-is with err == nil.
type Fetcher interface {
	Do(ctx context.Context, method, path string) (Response, error)
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, method, path string) (Response, error)

func (f Func) Do(ctx context.Context, method, path string) (Response, error) {
	return f(ctx, method, path)
}

const defaultMaxBody = 32 << 20 // 32 MiB

// Client is an http.Client-backed Fetcher bound to a single origin.
type Client struct {
	base    string
	hc      *http.Client
	maxBody int64
}

var _ Fetcher = (*Client)(nil)

type Config struct {
	// Origin is the upstream base URL, e.g. "http://127.0.0.1:3000".
	Origin string
	// Timeout bounds a whole fetch including body read. 0 => 30s.
	Timeout time.Duration
	// MaxBodyBytes rejects larger payloads. 0 => 32 MiB.
	MaxBodyBytes int64
	// HTTPClient overrides the underlying client (timeout still applies
	// through the request context).
	HTTPClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Origin) == "" {
		return nil, fmt.Errorf("fetch: origin is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = defaultMaxBody
	}
	c := &Client{
		base:    strings.TrimRight(cfg.Origin, "/"),
		hc:      hc,
		maxBody: maxBody,
	}
	c.hc.Timeout = timeout
	return c, nil
}

func (c *Client) Do(ctx context.Context, method, path string) (Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return Response{}, err
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
	if err != nil {
		return Response{}, err
	}
	if int64(len(body)) > c.maxBody {
		return Response{}, fmt.Errorf("fetch %s: body exceeds %d bytes", path, c.maxBody)
	}

	hdr := make(map[string]string, len(res.Header))
	for k := range res.Header {
		hdr[k] = res.Header.Get(k)
	}
	return Response{Status: res.StatusCode, Header: hdr, Body: body}, nil
}
