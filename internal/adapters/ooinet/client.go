package ooinet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://ooinet.oceanobservatories.org/api/m2m"
	DefaultThreddsURL = "https://opendap.oceanobservatories.org/thredds/"

	sensorPath  = "12576/sensor/inv"
	vocabPath   = "12586/vocab/inv"
	deployPath  = "12587/events/deployment/inv"
	preloadPath = "12575/parameter"
)

// Config holds the endpoints and credentials of one OOINet account.
type Config struct {
	BaseURL    string
	ThreddsURL string
	Username   string
	Token      string
	Timeout    time.Duration
}

// Client talks to the M2M API and the THREDDS server. It carries its own
// credentials so several accounts can be used side by side.
type Client struct {
	baseURL    string
	threddsURL string
	username   string
	token      string
	http       *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	thredds := cfg.ThreddsURL
	if thredds == "" {
		thredds = DefaultThreddsURL
	}
	if !strings.HasSuffix(thredds, "/") {
		thredds += "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c := &Client{
		baseURL:    base,
		threddsURL: thredds,
		username:   cfg.Username,
		token:      cfg.Token,
		http:       &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// ThreddsServer is the THREDDS root, always with a trailing slash.
func (c *Client) ThreddsServer() string { return c.threddsURL }

func (c *Client) endpoint(service string, parts ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/")
	b.WriteString(service)
	for _, p := range parts {
		b.WriteString("/")
		b.WriteString(p)
	}
	return b.String()
}

func (c *Client) newRequest(ctx context.Context, url string, withAuth bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ooinet: new request: %w", err)
	}
	if withAuth {
		req.SetBasicAuth(c.username, c.token)
	}
	return req, nil
}

// getJSON issues an authenticated GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := c.newRequest(ctx, url, true)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ooinet: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return newRequestError(resp, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ooinet: decode %s: %w", url, err)
	}
	return nil
}

func newRequestError(resp *http.Response, url string) *RequestError {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return &RequestError{StatusCode: resp.StatusCode, Reason: reason, URL: url}
}
