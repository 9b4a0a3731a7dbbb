// Package gateway is the HTTP client for the game API. One Client is bound to
// one base URL, one proxy and one header set for the lifetime of a session.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://dropee.clicker-game-api.tropee.com/api/game"
	DefaultIPCheckURL = "https://api.ipify.org?format=json"

	maxBodyBytes = 4 << 20
)

type Options struct {
	BaseURL    string
	IPCheckURL string
	// Proxy is a proxy URI; empty means a direct connection.
	Proxy   string
	Headers http.Header
	Timeout time.Duration
	// Transport overrides the HTTP transport; mainly for tests.
	Transport http.RoundTripper
	// Log, when set, receives one debug line per request.
	Log *zap.SugaredLogger
}

type Client struct {
	baseURL    string
	ipCheckURL string
	http       *http.Client
	headers    http.Header
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	ipURL := opts.IPCheckURL
	if ipURL == "" {
		ipURL = DefaultIPCheckURL
	}

	rt := opts.Transport
	if rt == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Proxy != "" {
			pu, err := url.Parse(opts.Proxy)
			if err != nil {
				return nil, fmt.Errorf("parse proxy: %w", err)
			}
			tr.Proxy = http.ProxyURL(pu)
		} else {
			tr.Proxy = nil
		}
		rt = tr
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	headers := opts.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	return &Client{
		baseURL:    base,
		ipCheckURL: ipURL,
		http:       &http.Client{Transport: withLogging(rt, opts.Log), Timeout: timeout},
		headers:    headers,
	}, nil
}

// DefaultHeaders is the browser-like header set sent with every request.
func DefaultHeaders(userAgent, platform string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Content-Type", "application/json")
	h.Set("Origin", "https://webapp.game.dropee.xyz")
	h.Set("Referer", "https://webapp.game.dropee.xyz/")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "cross-site")
	if platform != "" {
		h.Set("sec-ch-ua", fmt.Sprintf(`"Not)A;Brand";v="99", "%s WebView";v="127", "Chromium";v="127"`, platform))
		h.Set("sec-ch-ua-platform", platform)
	}
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	return h
}

type remoteMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do sends one request and decodes a 2xx body into out. Every remote failure
// comes back as *Error.
func (c *Client) do(ctx context.Context, op, method, target, token string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return invalidCall(op, "encode body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + target
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return invalidCall(op, "build request: %v", err)
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var m remoteMessage
		_ = json.Unmarshal(raw, &m)
		msg := m.Message
		if msg == "" {
			msg = m.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Op: op, Kind: classify(resp.StatusCode, msg), Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func requireToken(op, token string) error {
	if token == "" {
		return invalidCall(op, "missing credential")
	}
	return nil
}
