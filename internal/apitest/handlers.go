package apitest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goBlog/api"
)

// Route patterns, usable with FailNext, Delay and Hits.
const (
	RouteBlog            = "GET /api/blogs/{id}"
	RouteBlogsByCategory = "GET /api/blogs/byCategory"
	RouteComments        = "GET /api/blogs/comments/{blogId}"
	RouteAddComment      = "POST /api/blogs/comments"
	RouteDeleteComment   = "DELETE /api/blogs/comments/{id}"
	RouteAverage         = "GET /api/blogs/ratings/{blogId}/average"
	RouteViewerRating    = "GET /api/blogs/ratings/{blogId}/{raterId}"
	RouteCreateRating    = "POST /api/blogs/ratings"
	RouteUpdateRating    = "PUT /api/blogs/ratings/{id}"
	RouteCategories      = "GET /api/categories"
	RouteCategory        = "GET /api/categories/{id}"
	RouteSubcategories   = "GET /api/subcategories"
	RouteSubcategory     = "GET /api/subcategories/{id}"
	RouteLatest          = "GET /api/viewer/blogs/latest"
	RouteSearch          = "GET /api/viewer/search"
	RouteLogin           = "POST /api/viewer/login"
	RouteSignup          = "POST /api/viewer/signup"
	RouteViewerDetails   = "GET /api/viewer/details"
)

// Handler returns the API routes mounted under /api.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(route string, h http.HandlerFunc) {
		mux.Handle(route, s.wrap(route, h))
	}

	handle(RouteBlog, s.getBlog)
	handle(RouteBlogsByCategory, s.blogsByCategory)
	handle(RouteComments, s.listComments)
	handle(RouteAddComment, s.requireViewer(s.addComment))
	handle(RouteDeleteComment, s.requireViewer(s.deleteComment))
	handle(RouteAverage, s.average)
	handle(RouteViewerRating, s.viewerRating)
	handle(RouteCreateRating, s.requireViewer(s.createRating))
	handle(RouteUpdateRating, s.requireViewer(s.updateRating))
	handle(RouteCategories, s.listCategories)
	handle(RouteCategory, s.getCategory)
	handle(RouteSubcategories, s.listSubcategories)
	handle(RouteSubcategory, s.getCategory)
	handle(RouteLatest, s.latest)
	handle(RouteSearch, s.search)
	handle(RouteLogin, s.login)
	handle(RouteSignup, s.signup)
	handle(RouteViewerDetails, s.requireViewer(s.viewerDetails))
	return mux
}

func (s *Server) wrap(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delay, status := s.intercept(route)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			s.logger.Debug("apitest injected failure", slog.String("route", route), slog.Int("status", status))
			writeError(w, status, http.StatusText(status))
			return
		}
		next(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

type viewerHandler func(w http.ResponseWriter, r *http.Request, viewer api.Viewer)

func (s *Server) requireViewer(next viewerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.signer.Verify(strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		viewer, ok := s.viewerByID(id)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown viewer")
			return
		}
		next(w, r, viewer)
	}
}

func (s *Server) getBlog(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.blogs[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "blog not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.view(rec)})
}

// sortedLocked returns all blogs, newest first.
func (s *Server) sortedLocked() []*blogRecord {
	out := make([]*blogRecord, 0, len(s.blogs))
	for _, rec := range s.blogs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq > out[j].seq })
	return out
}

func (s *Server) blogsByCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	sub := strings.TrimSpace(r.URL.Query().Get("subCategory"))
	if category == "" || sub == "" {
		writeError(w, http.StatusBadRequest, "category and subCategory are required")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Blog, 0)
	for _, rec := range s.sortedLocked() {
		if rec.blog.Category == category && rec.blog.SubCategory == sub {
			out = append(out, s.view(rec))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) latest(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Blog, 0, LatestLimit)
	for _, rec := range s.sortedLocked() {
		if len(out) == LatestLimit {
			break
		}
		out = append(out, s.view(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := strings.ToLower(strings.TrimSpace(q.Get("name")))
	readTime, _ := strconv.Atoi(q.Get("readTime"))
	minRating, _ := strconv.ParseFloat(q.Get("rating"), 64)
	minComments, _ := strconv.Atoi(q.Get("numComments"))
	category := q.Get("category")
	sub := q.Get("subCategory")

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Blog, 0)
	for _, rec := range s.sortedLocked() {
		b := s.view(rec)
		switch {
		case name != "" && !strings.Contains(strings.ToLower(b.Title), name):
		case readTime > 0 && b.ReadTime.Int() > readTime:
		case minRating > 0 && b.Rating < minRating:
		case minComments > 0 && b.NumComments < minComments:
		case category != "" && b.Category != category:
		case sub != "" && b.SubCategory != sub:
		default:
			out = append(out, b)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Comments(r.PathValue("blogId")))
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request, viewer api.Viewer) {
	var in api.NewComment
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if in.Commenter != viewer.ID {
		writeError(w, http.StatusForbidden, "commenter does not match token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blogs[in.BlogID]; !ok {
		writeError(w, http.StatusNotFound, "blog not found")
		return
	}
	c := &api.Comment{
		ID:            newID(),
		Content:       in.Content,
		BlogID:        in.BlogID,
		Commenter:     viewer.ID,
		CommenterName: viewer.Username,
	}
	s.comments = append(s.comments, c)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request, viewer api.Viewer) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.comments {
		if c.ID != id {
			continue
		}
		if c.Commenter != viewer.ID {
			writeError(w, http.StatusForbidden, "not the commenter")
			return
		}
		s.comments = append(s.comments[:i], s.comments[i+1:]...)
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
		return
	}
	writeError(w, http.StatusNotFound, "comment not found")
}

func (s *Server) average(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"average": s.Average(r.PathValue("blogId"))})
}

func (s *Server) viewerRating(w http.ResponseWriter, r *http.Request) {
	blogID, raterID := r.PathValue("blogId"), r.PathValue("raterId")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rt := range s.ratings {
		if rt.BlogID == blogID && rt.Rater == raterID {
			writeJSON(w, http.StatusOK, rt)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

func validRating(v int) bool {
	return v >= 1 && v <= 5
}

func (s *Server) createRating(w http.ResponseWriter, r *http.Request, viewer api.Viewer) {
	var in api.NewRating
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !validRating(in.Value) {
		writeError(w, http.StatusBadRequest, "value must be between 1 and 5")
		return
	}
	if in.Rater != viewer.ID {
		writeError(w, http.StatusForbidden, "rater does not match token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blogs[in.BlogID]; !ok {
		writeError(w, http.StatusNotFound, "blog not found")
		return
	}
	for _, rt := range s.ratings {
		if rt.BlogID == in.BlogID && rt.Rater == viewer.ID {
			writeError(w, http.StatusConflict, "already rated")
			return
		}
	}
	rt := &api.Rating{ID: newID(), Value: in.Value, BlogID: in.BlogID, Rater: viewer.ID}
	s.ratings[rt.ID] = rt
	writeJSON(w, http.StatusCreated, rt)
}

func (s *Server) updateRating(w http.ResponseWriter, r *http.Request, viewer api.Viewer) {
	var in api.RatingUpdate
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !validRating(in.Value) {
		writeError(w, http.StatusBadRequest, "value must be between 1 and 5")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.ratings[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "rating not found")
		return
	}
	if rt.Rater != viewer.ID || in.RaterID != viewer.ID {
		writeError(w, http.StatusForbidden, "not the rater")
		return
	}
	rt.Value = in.Value
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) categoriesLocked(parent string) []api.Category {
	out := make([]api.Category, 0)
	for _, c := range s.categories {
		if c.ParentCategory == parent {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": s.categoriesLocked("")})
}

func (s *Server) listSubcategories(w http.ResponseWriter, r *http.Request) {
	parent := strings.TrimSpace(r.URL.Query().Get("parentCategory"))
	if parent == "" {
		writeError(w, http.StatusBadRequest, "parentCategory is required")
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, s.categoriesLocked(parent))
}

// getCategory answers single lookups with the category name in the data
// envelope, the shape the detail page renders.
func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": c.Name})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in api.Credentials
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	viewer, err := s.authenticate(in.Email, in.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	s.respondWithToken(w, http.StatusOK, viewer)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var in api.Credentials
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(in.Username) == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	viewer, err := s.RegisterViewer(in.Email, in.Username, in.Password)
	switch {
	case errors.Is(err, errDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondWithToken(w, http.StatusCreated, viewer)
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, viewer api.Viewer) {
	token, err := s.signer.Sign(viewer.ID, viewer.Email, viewer.Username)
	if err != nil {
		s.logger.Error("apitest sign failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeJSON(w, status, map[string]any{"viewer": viewer, "token": token})
}

func (s *Server) viewerDetails(w http.ResponseWriter, _ *http.Request, viewer api.Viewer) {
	writeJSON(w, http.StatusOK, viewer)
}
