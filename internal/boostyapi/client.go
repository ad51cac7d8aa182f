// Package boostyapi is the Platform API Client (C5, spec.md §4.5): a
// paginated, rate-limited, retrying HTTP client that returns strongly-typed
// post records and maps HTTP status codes onto the error taxonomy of
// spec.md §7.
package boostyapi

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/httpclient"
)

const baseURL = "https://api.boosty.to/v1/"

const (
	// MinRequestDelay is the floor on the inter-page delay (spec.md §5, §6).
	MinRequestDelay = 1 * time.Second
	// DefaultRequestDelay is applied when the caller configures none.
	DefaultRequestDelay = 2500 * time.Millisecond
	// DefaultPageSize is used by Iterate when the caller passes 0.
	DefaultPageSize = 5
)

// retryPolicy is shared by every request this client issues: 5 attempts,
// exponential backoff, triggered only by transient network errors (spec.md
// §4.5: "Non-transient HTTP status codes are NOT retried").
var retryPolicy = httpclient.RetryPolicy{
	MaxRetries:       4,
	RetryNetErrors:   true,
	NetErrorsBackoff: 1 * time.Second,
}

// Client talks to the platform's post-listing API.
type Client struct {
	http        *http.Client
	cookie      string
	authHeader  string
	limiter     *rate.Limiter
	requestWait time.Duration

	// baseURL defaults to the real platform API; tests override it to
	// point at an httptest server.
	baseURL string
}

// Option customizes a Client built by New. The zero-option case talks to
// the real platform; tests pass WithBaseURL/WithHTTPClient to point at an
// httptest server instead.
type Option func(*Client)

// WithBaseURL overrides the API base URL (tests only; production always
// uses the platform's real endpoint).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying *http.Client (tests only, to
// share an httptest server's client).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a Client using cookie and authHeader from the resolved config
// (spec.md §6's auth.cookie / auth.auth_header), and requestDelay as the
// inter-page sleep (clamped to MinRequestDelay).
func New(cookie, authHeader string, requestDelay time.Duration, opts ...Option) *Client {
	if requestDelay < MinRequestDelay {
		requestDelay = MinRequestDelay
	}
	c := &Client{
		http:        httpclient.Default(),
		cookie:      cookie,
		authHeader:  authHeader,
		limiter:     rate.NewLimiter(rate.Every(requestDelay), 1),
		requestWait: requestDelay,
		baseURL:     baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, endpoint string, query url.Values) (*http.Request, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	req.Header.Set("Accept-Encoding", "gzip, br")
	return req, nil
}

// do sends req, applies the retry policy, and transparently decompresses a
// br- or gzip-encoded body before handing it to the caller.
func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	resp, err := httpclient.DoWithRetry(ctx, c.http, req, retryPolicy)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			return nil, 0, fmt.Errorf("boostyapi: gzip decode: %w", gzErr)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("boostyapi: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// statusError maps a non-200 status to the error taxonomy of spec.md §7.
func statusError(author string, status int, body []byte) error {
	switch status {
	case http.StatusNotFound:
		return &NoUsernameError{Author: author}
	case http.StatusUnauthorized:
		return &UnauthorizedError{}
	default:
		return &UnknownAPIError{Status: status, Details: string(body)}
	}
}

// GetAuthorPosts fetches one page of author's posts (spec.md §4.5).
// offset is the opaque cursor from a prior page's Extra.Offset ("" for the
// first page). limit bounds the page size.
func (c *Client) GetAuthorPosts(ctx context.Context, author string, offset string, limit int) (*PostsPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if offset != "" {
		q.Set("offset", offset)
	}
	req, err := c.newRequest(ctx, "blog/"+author+"/post/", q)
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError(author, status, body)
	}

	var page PostsPage
	if err := json.Unmarshal(body, &page); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			return nil, ve
		}
		return nil, &ValidationError{Fields: []string{"<root>"}, Err: err}
	}
	return &page, nil
}

// GetPost fetches a single post by id, for --post-url mode (spec.md §3's
// supplemented single-post CLI flag). The platform exposes no documented
// single-post endpoint in the reference source this client was adapted
// from; this uses the natural singular form of the paginated listing
// endpoint (see DESIGN.md).
func (c *Client) GetPost(ctx context.Context, author, postID string) (*RawPost, error) {
	req, err := c.newRequest(ctx, "blog/"+author+"/post/"+postID+"/", nil)
	if err != nil {
		return nil, err
	}
	body, status, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError(author, status, body)
	}
	var post RawPost
	if err := json.Unmarshal(body, &post); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			return nil, ve
		}
		return nil, &ValidationError{Fields: []string{"<root>"}, Err: err}
	}
	return &post, nil
}

// Iterate drives pagination (spec.md §4.5's iterate operation), invoking fn
// once per page in order, waiting the client's configured inter-page delay
// between requests, and stopping when a page reports IsLast or fn returns an
// error. The delay is enforced by a rate.Limiter so it is cancellable via
// ctx rather than a bare time.Sleep.
func (c *Client) Iterate(ctx context.Context, author string, pageSize int, fn func(PostsPage) error) error {
	offset := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		page, err := c.GetAuthorPosts(ctx, author, offset, pageSize)
		if err != nil {
			return err
		}
		if err := fn(*page); err != nil {
			return err
		}
		if page.Extra.IsLast {
			return nil
		}
		offset = page.Extra.Offset
	}
}
