package apitest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goBlog/api"
	"github.com/MrEthical07/goBlog/jwt"
)

// DefaultSecret signs tokens when Options.Signer is nil.
const DefaultSecret = "apitest-secret-0123456789abcdef"

// LatestLimit caps GET /viewer/blogs/latest.
const LatestLimit = 10

var (
	errDuplicateEmail = errors.New("email already registered")
	errBadCredentials = errors.New("invalid email or password")
)

// Options configures a [Server].
type Options struct {
	Signer   *jwt.Signer
	TokenTTL time.Duration
	Logger   *slog.Logger
}

type viewerRecord struct {
	viewer api.Viewer
	hash   string
}

type blogRecord struct {
	blog api.Blog
	seq  int
}

// Server holds the stand-in API state. It is safe for concurrent use.
type Server struct {
	signer *jwt.Signer
	logger *slog.Logger

	mu         sync.RWMutex
	viewers    map[string]*viewerRecord // by email
	viewerIDs  map[string]string        // id -> email
	blogs      map[string]*blogRecord
	comments   []*api.Comment // insertion order
	ratings    map[string]*api.Rating
	categories map[string]*api.Category
	seq        int

	fault  sync.Mutex
	fails  map[string][]int
	delays map[string]time.Duration
	hits   map[string]int
}

// New returns an empty Server.
func New(opts Options) (*Server, error) {
	signer := opts.Signer
	if signer == nil {
		ttl := opts.TokenTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		var err error
		signer, err = jwt.NewSigner(jwt.SignerConfig{
			TTL:           ttl,
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    []byte(DefaultSecret),
			Issuer:        "blog-api",
		})
		if err != nil {
			return nil, fmt.Errorf("apitest: signer: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		signer:     signer,
		logger:     logger,
		viewers:    make(map[string]*viewerRecord),
		viewerIDs:  make(map[string]string),
		blogs:      make(map[string]*blogRecord),
		ratings:    make(map[string]*api.Rating),
		categories: make(map[string]*api.Category),
		fails:      make(map[string][]int),
		delays:     make(map[string]time.Duration),
		hits:       make(map[string]int),
	}, nil
}

// NewTestServer starts a Server behind httptest and returns it with the API
// base URL. The listener is closed when the test ends.
func NewTestServer(tb testing.TB, opts Options) (*Server, string) {
	tb.Helper()
	s, err := New(opts)
	if err != nil {
		tb.Fatalf("apitest: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	tb.Cleanup(ts.Close)
	return s, ts.URL + "/api"
}

// Signer returns the signer tokens are issued with.
func (s *Server) Signer() *jwt.Signer {
	return s.signer
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// RegisterViewer creates a viewer account.
func (s *Server) RegisterViewer(email, username, password string) (api.Viewer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return api.Viewer{}, errors.New("email is required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return api.Viewer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viewers[email]; ok {
		return api.Viewer{}, errDuplicateEmail
	}
	v := api.Viewer{ID: newID(), Email: email, Username: strings.TrimSpace(username)}
	s.viewers[email] = &viewerRecord{viewer: v, hash: hash}
	s.viewerIDs[v.ID] = email
	return v, nil
}

func (s *Server) authenticate(email, password string) (api.Viewer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	rec, ok := s.viewers[email]
	s.mu.RUnlock()
	if !ok {
		return api.Viewer{}, errBadCredentials
	}
	match, err := checkPassword(password, rec.hash)
	if err != nil || !match {
		return api.Viewer{}, errBadCredentials
	}
	return rec.viewer, nil
}

func (s *Server) viewerByID(id string) (api.Viewer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.viewerIDs[id]
	if !ok {
		return api.Viewer{}, false
	}
	return s.viewers[email].viewer, true
}

// IssueToken signs a token for viewer with an explicit lifetime. A negative
// ttl yields an expired token.
func (s *Server) IssueToken(v api.Viewer, ttl time.Duration) (string, error) {
	return s.signer.SignWithTTL(v.ID, v.Email, v.Username, ttl)
}

// AddCategory creates a category. A non-empty parentID makes it a
// subcategory.
func (s *Server) AddCategory(name, parentID string) api.Category {
	c := api.Category{ID: newID(), Name: name, ParentCategory: parentID}
	s.mu.Lock()
	s.categories[c.ID] = &c
	s.mu.Unlock()
	return c
}

// AddBlog stores b, assigning an id when it has none. Later blogs sort first
// in the latest list.
func (s *Server) AddBlog(b api.Blog) api.Blog {
	if b.ID == "" {
		b.ID = newID()
	}
	s.mu.Lock()
	s.seq++
	s.blogs[b.ID] = &blogRecord{blog: b, seq: s.seq}
	s.mu.Unlock()
	return b
}

// Comments returns the stored comments of a blog, oldest first.
func (s *Server) Comments(blogID string) []api.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commentsLocked(blogID)
}

func (s *Server) commentsLocked(blogID string) []api.Comment {
	out := make([]api.Comment, 0)
	for _, c := range s.comments {
		if c.BlogID == blogID {
			out = append(out, *c)
		}
	}
	return out
}

func (s *Server) averageLocked(blogID string) float64 {
	var sum, n int
	for _, r := range s.ratings {
		if r.BlogID == blogID {
			sum += r.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// Average returns the mean rating of a blog.
func (s *Server) Average(blogID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.averageLocked(blogID)
}

// view fills the derived fields of a stored blog.
func (s *Server) view(rec *blogRecord) api.Blog {
	b := rec.blog
	b.Rating = s.averageLocked(b.ID)
	b.NumComments = len(s.commentsLocked(b.ID))
	return b
}

// FailNext makes the next request to route answer with status. route is the
// pattern the handler is registered under, e.g. "GET /api/blogs/{id}".
// Repeated calls queue additional failures.
func (s *Server) FailNext(route string, status int) {
	s.fault.Lock()
	s.fails[route] = append(s.fails[route], status)
	s.fault.Unlock()
}

// Delay holds every response on route for d. Zero removes the delay.
func (s *Server) Delay(route string, d time.Duration) {
	s.fault.Lock()
	if d <= 0 {
		delete(s.delays, route)
	} else {
		s.delays[route] = d
	}
	s.fault.Unlock()
}

// Hits returns how many requests route has received.
func (s *Server) Hits(route string) int {
	s.fault.Lock()
	defer s.fault.Unlock()
	return s.hits[route]
}

func (s *Server) intercept(route string) (delay time.Duration, status int) {
	s.fault.Lock()
	defer s.fault.Unlock()
	s.hits[route]++
	if q := s.fails[route]; len(q) > 0 {
		status = q[0]
		s.fails[route] = q[1:]
	}
	return s.delays[route], status
}
