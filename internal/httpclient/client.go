// Package httpclient provides the hardened HTTP client all outbound calls
// (portal, Telegram, Discord) go through.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/absenlab/absen/errors"
)

// Client wraps http.Client with outbound-request validation: https/http
// only, bounded redirects, and loopback/private-address blocking. The
// daemon holds plaintext credentials, so a config typo must not turn it
// into a generic internal-network prober.
type Client struct {
	*http.Client
	blockPrivate bool
	maxRedirects int
}

// New creates a hardened client with the given timeout.
func New(timeout time.Duration) *Client {
	c := &Client{
		Client:       &http.Client{Timeout: timeout},
		blockPrivate: true,
		maxRedirects: 10,
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		return c.validate(req.URL)
	}
	return c
}

// Do executes a request after validating its URL.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validate(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}

// Get fetches a URL after validation.
func (c *Client) Get(rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validate(u); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Get(rawURL)
}

func (c *Client) validate(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.Newf("scheme %q not allowed", scheme)
	}

	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}

	if c.blockPrivate {
		if isLocalhost(host) {
			return errors.New("localhost access blocked")
		}
		if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
			return errors.Newf("private address blocked: %s", host)
		}
	}
	return nil
}

func isLocalhost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" || strings.HasSuffix(host, ".localhost")
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// Wrap wraps an existing http.Client without address blocking.
// Only for tests that talk to httptest servers on localhost.
func Wrap(client *http.Client) *Client {
	return &Client{
		Client:       client,
		blockPrivate: false,
		maxRedirects: 10,
	}
}
