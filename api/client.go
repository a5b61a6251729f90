package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://nodejs.backend.techozon.com/api"

const maxBodyBytes = 4 << 20

// TokenSource supplies the bearer token for calls that need identity. An
// empty string means no token.
type TokenSource interface {
	Token() string
}

// Observer receives one call per completed request. endpoint is the route
// template, not the concrete path.
type Observer func(endpoint string, elapsed time.Duration, err error)

// ClientConfig configures a [Client].
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// RequestsPerSecond caps outgoing requests; zero disables the limit.
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Tokens     TokenSource
	Logger     *slog.Logger
	Observer   Observer
}

// Client calls the remote blog API.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	tokens    TokenSource
	logger    *slog.Logger
	observe   Observer
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base URL %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "goBlog"
	}

	return &Client{
		baseURL:   base,
		userAgent: ua,
		http:      hc,
		limiter:   rate.NewLimiter(limit, burst),
		tokens:    cfg.Tokens,
		logger:    logger,
		observe:   cfg.Observer,
	}, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method   string
	endpoint string // route template for logs and metrics
	path     string
	query    url.Values
	body     any
	auth     bool
}

func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	start := time.Now()
	body, err := c.roundTrip(ctx, r)
	elapsed := time.Since(start)
	if c.observe != nil {
		c.observe(r.endpoint, elapsed, err)
	}
	if err != nil {
		c.logger.Debug("api request failed",
			slog.String("method", r.method),
			slog.String("endpoint", r.endpoint),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return nil, err
	}
	c.logger.Debug("api request",
		slog.String("method", r.method),
		slog.String("endpoint", r.endpoint),
		slog.Duration("elapsed", elapsed))
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, r request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s body: %w", r.endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.auth && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", r.method, r.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("api: read %s: %w", r.endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     r.method,
			Path:       r.path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}

// decodeData decodes body into out, unwrapping a {"data": ...} envelope when
// one is present.
func decodeData(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 {
			trimmed = env.Data
		}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func isNull(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

func escape(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}

func requireID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("api: %s is required", name)
	}
	return nil
}

// Blog fetches one post.
func (c *Client) Blog(ctx context.Context, id string) (*Blog, error) {
	if err := requireID("blog id", id); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/blogs/{id}", path: "/blogs/" + escape(id)})
	if err != nil {
		return nil, err
	}
	var b Blog
	if err := decodeData(body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// BlogsByCategory lists posts filed under category and subCategory.
func (c *Client) BlogsByCategory(ctx context.Context, category, subCategory string) ([]Blog, error) {
	q := url.Values{}
	q.Set("category", strings.TrimSpace(category))
	q.Set("subCategory", strings.TrimSpace(subCategory))
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/blogs/byCategory", path: "/blogs/byCategory", query: q})
	if err != nil {
		return nil, err
	}
	var out []Blog
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestBlogs lists the newest posts.
func (c *Client) LatestBlogs(ctx context.Context) ([]Blog, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/viewer/blogs/latest", path: "/viewer/blogs/latest"})
	if err != nil {
		return nil, err
	}
	var out []Blog
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search lists posts matching q.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]Blog, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/viewer/search", path: "/viewer/search", query: q.Values()})
	if err != nil {
		return nil, err
	}
	var out []Blog
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Comments lists the comments on a blog.
func (c *Client) Comments(ctx context.Context, blogID string) ([]Comment, error) {
	if err := requireID("blog id", blogID); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/blogs/comments/{blogId}", path: "/blogs/comments/" + escape(blogID)})
	if err != nil {
		return nil, err
	}
	var out []Comment
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddComment posts a comment and returns it as stored.
func (c *Client) AddComment(ctx context.Context, in NewComment) (*Comment, error) {
	body, err := c.do(ctx, request{method: http.MethodPost, endpoint: "/blogs/comments", path: "/blogs/comments", body: in, auth: true})
	if err != nil {
		return nil, err
	}
	var out Comment
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment removes a comment by id.
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	if err := requireID("comment id", commentID); err != nil {
		return err
	}
	_, err := c.do(ctx, request{method: http.MethodDelete, endpoint: "/blogs/comments/{id}", path: "/blogs/comments/" + escape(commentID), auth: true})
	return err
}

// AverageRating returns the mean rating of a blog.
func (c *Client) AverageRating(ctx context.Context, blogID string) (float64, error) {
	if err := requireID("blog id", blogID); err != nil {
		return 0, err
	}
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/blogs/ratings/{blogId}/average", path: "/blogs/ratings/" + escape(blogID) + "/average"})
	if err != nil {
		return 0, err
	}
	var out struct {
		Average float64 `json:"average"`
	}
	if err := decodeData(body, &out); err != nil {
		return 0, err
	}
	return out.Average, nil
}

// ViewerRating returns raterID's rating of a blog, or nil when there is none.
func (c *Client) ViewerRating(ctx context.Context, blogID, raterID string) (*Rating, error) {
	if err := requireID("blog id", blogID); err != nil {
		return nil, err
	}
	if err := requireID("rater id", raterID); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: "/blogs/ratings/{blogId}/{raterId}",
		path:     "/blogs/ratings/" + escape(blogID) + "/" + escape(raterID),
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if isNull(body) {
		return nil, nil
	}
	var out Rating
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// CreateRating posts a new rating.
func (c *Client) CreateRating(ctx context.Context, in NewRating) error {
	_, err := c.do(ctx, request{method: http.MethodPost, endpoint: "/blogs/ratings", path: "/blogs/ratings", body: in, auth: true})
	return err
}

// UpdateRating changes an existing rating.
func (c *Client) UpdateRating(ctx context.Context, ratingID string, in RatingUpdate) error {
	if err := requireID("rating id", ratingID); err != nil {
		return err
	}
	_, err := c.do(ctx, request{method: http.MethodPut, endpoint: "/blogs/ratings/{id}", path: "/blogs/ratings/" + escape(ratingID), body: in, auth: true})
	return err
}

// Categories lists the top-level categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/categories", path: "/categories"})
	if err != nil {
		return nil, err
	}
	var out []Category
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Category fetches one top-level category.
func (c *Client) Category(ctx context.Context, id string) (*Category, error) {
	return c.category(ctx, "/categories/{id}", "/categories/", id)
}

// Subcategories lists the children of a category.
func (c *Client) Subcategories(ctx context.Context, parentID string) ([]Category, error) {
	if err := requireID("parent category", parentID); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("parentCategory", strings.TrimSpace(parentID))
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/subcategories", path: "/subcategories", query: q})
	if err != nil {
		return nil, err
	}
	var out []Category
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Subcategory fetches one subcategory.
func (c *Client) Subcategory(ctx context.Context, id string) (*Category, error) {
	return c.category(ctx, "/subcategories/{id}", "/subcategories/", id)
}

func (c *Client) category(ctx context.Context, endpoint, prefix, id string) (*Category, error) {
	if err := requireID("category id", id); err != nil {
		return nil, err
	}
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: endpoint, path: prefix + escape(id)})
	if err != nil {
		return nil, err
	}
	var out Category
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = strings.TrimSpace(id)
	}
	return &out, nil
}

// Login exchanges credentials for a viewer record and token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	return c.authenticate(ctx, "/viewer/login", creds)
}

// Signup registers a viewer and returns its record and token.
func (c *Client) Signup(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	return c.authenticate(ctx, "/viewer/signup", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds Credentials) (*AuthResponse, error) {
	body, err := c.do(ctx, request{method: http.MethodPost, endpoint: path, path: path, body: creds})
	if err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := json.Unmarshal(bytes.TrimSpace(body), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &out, nil
}

// ViewerDetails returns the profile of the token's owner as raw JSON.
func (c *Client) ViewerDetails(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, endpoint: "/viewer/details", path: "/viewer/details", auth: true})
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := decodeData(body, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, fmt.Errorf("%w: empty viewer", ErrDecode)
	}
	return raw, nil
}
