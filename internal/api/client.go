// Package api talks to the wallet REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bitlum/cli/pkg/util"
	"golang.org/x/oauth2"
)

// Base URLs of the wallet API.
const (
	ProductionURL  = "https://api.bitlum.io"
	DevelopmentURL = "http://lvh.me:3004"
)

// Endpoint paths, without the /api prefix the backend serves them under
// behind the gateway.
const (
	PathAuth           = "/accounts/auth"
	PathAccounts       = "/accounts"
	PathPayments       = "/payments"
	PathPaymentsSend   = "/payments/send"
	PathPaymentsRecv   = "/payments/receive"
	PathWalletsDetails = "/wallets/details"
	PathVendors        = "/vendors"
)

// Request describes one API call.
type Request struct {
	Method string
	// Path is relative to the base URL. Absolute URLs are used as-is.
	Path  string
	Query url.Values
	Body  any
	// Token, when set, is sent as a bearer token.
	Token string
}

// Client is a thin JSON client for the wallet API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New returns a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(StripAPIPrefix(baseURL), "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  "bitlum-cli",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StripAPIPrefix drops a trailing or leading /api segment the way the
// extension built its URLs.
func StripAPIPrefix(s string) string {
	s = strings.TrimRight(s, "/")
	if strings.HasSuffix(s, "/api") {
		return strings.TrimSuffix(s, "/api")
	}
	return s
}

// Do performs req and returns the data member of the response envelope.
// Failures are returned as *util.CodedError.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, util.NewCodedError(util.CodeBadRequest, err.Error())
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, util.NewCodedError(util.CodeBadRequest, fmt.Sprintf("encode request body: %v", err))
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, util.NewCodedError(util.CodeBadRequest, err.Error())
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.clientFor(req.Token).Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, util.NewCodedError(util.CodeNetwork, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, util.NewCodedError(util.CodeNetwork, fmt.Sprintf("read response: %v", err))
	}
	return decode(resp.StatusCode, raw)
}

func (c *Client) resolve(req Request) (string, error) {
	path := req.Path
	var target string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		target = path
	} else {
		path = strings.TrimPrefix(path, "/api")
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.baseURL + path
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", target, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// clientFor returns an HTTP client that adds the bearer token, sharing the
// base client's transport and timeout.
func (c *Client) clientFor(token string) *http.Client {
	if token == "" {
		return c.httpClient
	}
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout:       c.httpClient.Timeout,
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   base,
		},
	}
}

func decode(status int, raw []byte) (json.RawMessage, error) {
	var env envelope
	envErr := json.Unmarshal(raw, &env)
	if envErr == nil && env.Error != nil {
		return nil, env.Error.coded(status)
	}

	if status < 200 || status >= 300 {
		return nil, util.NewCodedError(strconv.Itoa(status), firstLine(raw, http.StatusText(status)))
	}
	if envErr == nil && len(env.Data) > 0 {
		return env.Data, nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(raw) {
		return nil, util.NewCodedError(strconv.Itoa(status), "invalid response: body is not JSON")
	}
	// Bodies without an envelope are passed through untouched.
	return json.RawMessage(raw), nil
}

func (e *apiError) coded(status int) *util.CodedError {
	code := strings.Trim(string(e.Code), `"`)
	if code == "" || code == "null" {
		code = strconv.Itoa(status)
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return util.NewCodedError(code, msg)
}

func firstLine(raw []byte, fallback string) string {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return fallback
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return util.Truncate(s, 200)
}
