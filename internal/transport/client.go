package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake performed by CheckConnection.
const checkProxyTimeout = 2 * time.Second

// DefaultUserAgent is sent with every outbound request.
const DefaultUserAgent = "floorscan"

// Client builds HTTP clients for outbound API calls.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" form, or empty for a
	// direct connection.
	proxyAddress string

	// dialer is the SOCKS5 dialer, nil for direct connections.
	dialer proxy.Dialer

	// timeout is the overall request timeout. Zero means no timeout.
	timeout time.Duration

	// userAgent is injected into every request.
	userAgent string

	// headers are extra headers injected into every request.
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// NewClient creates a Client. An empty proxyAddress selects a direct
// connection that still honors the HTTP(S)_PROXY environment variables.
// A zero timeout leaves requests unbounded apart from their context.
//
// The proxy is not contacted here; call CheckConnection to verify it.
func NewClient(proxyAddress string, timeout time.Duration, opts ...Option) (*Client, error) {
	c := &Client{
		proxyAddress: proxyAddress,
		timeout:      timeout,
		userAgent:    DefaultUserAgent,
	}

	if proxyAddress != "" {
		if !isValidProxyAddress(proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format
// with a port between 1 and 65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// CheckConnection verifies that the proxy speaks SOCKS5 and accepts clients
// without authentication. It returns ProxyStatusDirect when no proxy is set.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if c.dialer == nil {
		return ProxyStatusDirect
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Version negotiation offering "no authentication" only.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept || resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// HTTPClient returns a new HTTP client using the configured route, timeout
// and headers.
func (c *Client) HTTPClient() *http.Client {
	base, ok := http.DefaultTransport.(*http.Transport)
	var transport *http.Transport
	if ok {
		transport = base.Clone()
	} else {
		transport = &http.Transport{}
	}

	if c.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = c.dialContext
	}

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      transport,
			userAgent: c.userAgent,
			headers:   c.headers,
		},
		Timeout: c.timeout,
	}
}

// dialContext dials through the SOCKS5 proxy.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address, or an empty string.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Timeout returns the configured request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// the User-Agent and custom headers into every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
