package datatracker

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
)

// DefaultBaseURL is the public Datatracker instance.
const DefaultBaseURL = "https://datatracker.ietf.org/"

// DefaultUserAgent identifies the mirror to the API.
const DefaultUserAgent = "dtmirror/1.0"

// Record is one object from a collection page.
// Numbers are kept as json.Number so integer keys are not rounded through float64.
type Record map[string]any

// Page is one response from a list endpoint.
type Page struct {
	Meta    Meta     `json:"meta"`
	Objects []Record `json:"objects"`
}

// Meta is the pagination block of a Page.
type Meta struct {
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	TotalCount int     `json:"total_count"`
	Next       *string `json:"next"`
	Previous   *string `json:"previous"`
}

// Stats counts network requests and cache replays.
type Stats struct {
	Requests  int
	CacheHits int
}

// Client fetches resources from a Datatracker instance.
//
// List pages are cached by their exact request URI for the lifetime of the
// client, so a second pass over an endpoint with the same URI replays the
// first pass without touching the network. A Client is not safe for
// concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	auth      string
	userAgent string
	logger    *slog.Logger

	cache map[string]*Page
	stats Stats
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAuthorization sends the given value in the Authorization header.
// An empty value leaves the client anonymous.
func WithAuthorization(value string) Option {
	return func(c *Client) { c.auth = value }
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the instance at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		base:      base,
		http:      http.DefaultClient,
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
		cache:     make(map[string]*Page),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Stats returns request counters since the client was created.
func (c *Client) Stats() Stats {
	return c.stats
}

// ListURI builds the first-page URI for an endpoint.
// An empty sortBy leaves the collection unordered.
func ListURI(endpoint string, limit int, sortBy string) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if sortBy != "" {
		q.Set("order_by", sortBy)
	}
	return endpoint + "?" + q.Encode()
}

// FetchAll streams every record of a collection starting at uri, following
// meta.next until it is null. The stream stops at the first error.
func (c *Client) FetchAll(ctx context.Context, uri string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		next := uri
		for next != "" {
			page, err := c.page(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, obj := range page.Objects {
				if !yield(obj, nil) {
					return
				}
			}
			next = ""
			if page.Meta.Next != nil {
				next = *page.Meta.Next
			}
		}
	}
}

// page returns one list page, from the cache when possible.
func (c *Client) page(ctx context.Context, uri string) (*Page, error) {
	if p, ok := c.cache[uri]; ok {
		c.stats.CacheHits++
		c.logger.Debug("page replayed from cache", "uri", uri)
		return p, nil
	}

	p := &Page{}
	if err := c.getJSON(ctx, uri, p); err != nil {
		return nil, err
	}
	c.cache[uri] = p
	return p, nil
}

// resolve turns a reference from the API into a request URL. Paths are
// rooted at the base URL's path, so an instance served under a sub-path is
// reached there; a path that already carries that prefix is left alone.
func (c *Client) resolve(ref *url.URL) *url.URL {
	if ref.IsAbs() || ref.Host != "" {
		return c.base.ResolveReference(ref)
	}
	prefix := strings.TrimSuffix(c.base.Path, "/")
	target := *c.base
	target.Path = ref.Path
	if prefix != "" && !strings.HasPrefix(ref.Path, prefix+"/") {
		target.Path = prefix + "/" + strings.TrimPrefix(ref.Path, "/")
	}
	target.RawPath = ""
	target.RawQuery = ref.RawQuery
	target.Fragment = ""
	return &target
}

// getJSON performs a GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, uri string, v any) error {
	ref, err := url.Parse(uri)
	if err != nil {
		return &TransportError{URI: uri, Err: err}
	}
	target := c.resolve(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return &TransportError{URI: uri, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}

	c.stats.Requests++
	c.logger.Debug("fetching", "uri", uri)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &TransportError{URI: uri, Status: resp.StatusCode}
	}

	dec := gojson.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &TransportError{URI: uri, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
