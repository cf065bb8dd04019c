// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"roboburn/internal/burner"
	"roboburn/pkg/logger"
)

const (
	DefaultConnectTimeout = 2500 * time.Millisecond
	DefaultReadTimeout    = 2500 * time.Millisecond

	maxBodyBytes = 4 << 20
)

var ErrInvalidEndpoint = errors.New("invalid endpoint")

// TransportError covers everything that prevents a usable response:
// dial, DNS, timeouts, cancellation and non-2xx status codes.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means the server answered 2xx with a body that is not a
// status payload.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Client talks to the burner controller. It is safe for concurrent use;
// the poll loop and edit goroutines share one instance.
type Client struct {
	base        *url.URL
	http        *http.Client
	readTimeout time.Duration
	log         *logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default transport. Timeouts configured by
// WithTimeouts still bound each request through its context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeouts sets the dial timeout and the response timeout (header and
// body). Non-positive values keep the defaults.
func WithTimeouts(connect, read time.Duration) Option {
	return func(c *Client) {
		if connect <= 0 {
			connect = DefaultConnectTimeout
		}
		if read > 0 {
			c.readTimeout = read
		}
		c.http = newHTTPClient(connect, c.readTimeout)
	}
}

func New(endpoint string, opts ...Option) (*Client, error) {
	base, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:        base,
		readTimeout: DefaultReadTimeout,
		log:         logger.New("Client"),
	}
	c.http = newHTTPClient(DefaultConnectTimeout, DefaultReadTimeout)
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ParseEndpoint normalizes a base URL: a missing scheme becomes http and
// the path always ends in a slash.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	s := strings.TrimSpace(endpoint)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newHTTPClient(connect, read time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
	tr.ResponseHeaderTimeout = read
	return &http.Client{Transport: tr}
}

// Endpoint returns the normalized base URL.
func (c *Client) Endpoint() string { return c.base.String() }

func (c *Client) GetStatus(ctx context.Context) (burner.Status, error) {
	return c.do(ctx, "get status", http.MethodGet, "status", nil)
}

func (c *Client) SetMode(ctx context.Context, mode string) (burner.Status, error) {
	return c.do(ctx, "set mode", http.MethodPost, "mode", url.Values{"mode": {mode}})
}

// SetHigh sends the high setpoint in Celsius as entered.
func (c *Client) SetHigh(ctx context.Context, tempC string) (burner.Status, error) {
	return c.do(ctx, "set high", http.MethodPost, "setpoints", url.Values{"high_temp": {tempC}})
}

// SetLow sends the low setpoint in Celsius as entered.
func (c *Client) SetLow(ctx context.Context, tempC string) (burner.Status, error) {
	return c.do(ctx, "set low", http.MethodPost, "setpoints", url.Values{"low_temp": {tempC}})
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values) (burner.Status, error) {
	u := c.base.ResolveReference(&url.URL{Path: path, RawQuery: q.Encode()})
	target := u.String()

	// the read timeout spans header and body
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return burner.Status{}, &TransportError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("%s %s", method, target)
	resp, err := c.http.Do(req)
	if err != nil {
		return burner.Status{}, &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return burner.Status{}, &TransportError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return burner.Status{}, &TransportError{
			Op:         op,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %q", resp.Status),
		}
	}
	if len(body) > maxBodyBytes {
		return burner.Status{}, &DecodeError{Op: op, Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}

	st, err := burner.Decode(body)
	if err != nil {
		return burner.Status{}, &DecodeError{Op: op, Err: err}
	}
	return st, nil
}
