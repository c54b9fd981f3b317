// Package httpx contains the http utils shared by the market data clients.
package httpx

//go:generate mockgen -destination=httpxmock/mock_httpx.go -package=httpxmock github.com/denowallet/portfolio/httpx HTTPClient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// UserAgent identifies the service to the public APIs it calls.
const UserAgent = "DenoWallet/1.0"

// HTTPClient is the subset of *http.Client the clients need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around an HTTPClient with default headers.
type Client struct {
	HTTP      HTTPClient
	UserAgent string
	Headers   map[string]string
}

// New returns a client with a tuned transport.
func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: UserAgent,
		Headers:   map[string]string{"Accept": "application/json"},
	}
}

// WithHTTP returns a copy of c sending requests through h.
func (c *Client) WithHTTP(h HTTPClient) *Client {
	cp := *c
	cp.HTTP = h
	return &cp
}

// StatusError is returned for non 2xx responses.
type StatusError struct {
	Method string
	Code   int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	method := e.Method
	if method == "" {
		method = http.MethodGet
	}
	if e.Body == "" {
		return fmt.Sprintf("cannot http %v %v: %v %v", method, e.URL, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("cannot http %v %v: %v %v: %s", method, e.URL, e.Code, http.StatusText(e.Code), e.Body)
}

// Do sends req with the default headers.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("fetch",
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

// Get performs a GET and returns the response status, headers and body
// whatever the status.
func (c *Client) Get(ctx context.Context, addr string, header http.Header) (int, http.Header, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, addr, nil)
	if err != nil {
		return 0, nil, nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}

// GetJSON performs an HTTP GET request and unmarshals the JSON response into data.
func (c *Client) GetJSON(ctx context.Context, addr string, data any, header ...string) error {
	req, err := http.NewRequest(http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return c.doJSON(ctx, req, data)
}

// PostJSON sends in as a JSON body and unmarshals the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, addr string, in, out any, header ...string) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, addr, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return c.doJSON(ctx, req, out)
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, data any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: req.Method, Code: resp.StatusCode, URL: req.URL.Host + req.URL.Path, Body: truncate(string(body), 200)}
	}
	if err := json.Unmarshal(body, data); err != nil {
		return fmt.Errorf("cannot decode %v%v: %w", req.URL.Host, req.URL.Path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
