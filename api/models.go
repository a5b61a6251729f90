package api

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Blog is one post as served by the remote API.
type Blog struct {
	ID          string   `json:"_id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Content     string   `json:"content"`
	Image       string   `json:"image,omitempty"`
	ReadTime    Flexible `json:"readTime,omitempty"`
	Category    string   `json:"category,omitempty"`
	SubCategory string   `json:"subCategory,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	NumComments int      `json:"numComments,omitempty"`
	Author      string   `json:"author,omitempty"`
}

// Comment is a viewer comment on a blog.
type Comment struct {
	ID            string `json:"_id"`
	Content       string `json:"content"`
	BlogID        string `json:"blogId"`
	Commenter     string `json:"commenter"`
	CommenterName string `json:"commenterName,omitempty"`
}

// NewComment is the body of POST /blogs/comments.
type NewComment struct {
	Content   string `json:"content"`
	BlogID    string `json:"blogId"`
	Commenter string `json:"commenter"`
}

// Rating is one viewer's rating of a blog.
type Rating struct {
	ID     string `json:"_id"`
	Value  int    `json:"value"`
	BlogID string `json:"blogId"`
	Rater  string `json:"rater"`
}

// NewRating is the body of POST /blogs/ratings.
type NewRating struct {
	Value  int    `json:"value"`
	BlogID string `json:"blogId"`
	Rater  string `json:"rater"`
}

// RatingUpdate is the body of PUT /blogs/ratings/{id}.
type RatingUpdate struct {
	Value   int    `json:"value"`
	RaterID string `json:"raterId"`
}

// Category is a top-level category or a subcategory. Subcategories carry
// their parent's id.
type Category struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	ParentCategory string `json:"parentCategory,omitempty"`
}

// UnmarshalJSON accepts a full category object or a bare name string, which
// the single-category lookups return inside their envelope.
func (c *Category) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*c = Category{Name: name}
		return nil
	}
	type plain Category
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Category(p)
	return nil
}

// Viewer is the authenticated reader's public profile.
type Viewer struct {
	ID       string `json:"_id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// Credentials is the body of the login and signup calls.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Username string `json:"username,omitempty" validate:"omitempty,max=64"`
}

// AuthResponse is what login and signup return. Viewer is kept raw so the
// session can store the record as received.
type AuthResponse struct {
	Viewer json.RawMessage `json:"viewer"`
	Token  string          `json:"token"`
}

// Complete reports whether both the viewer record and the token are present.
func (r *AuthResponse) Complete() bool {
	if r == nil || strings.TrimSpace(r.Token) == "" {
		return false
	}
	v := bytes.TrimSpace(r.Viewer)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}

// SearchQuery holds the viewer search filters. Empty fields are omitted from
// the query string.
type SearchQuery struct {
	Name        string
	ReadTime    string
	Rating      string
	NumComments string
	Category    string
	SubCategory string
}

// Values encodes the non-empty filters.
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	add := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			v.Set(key, value)
		}
	}
	add("name", q.Name)
	add("readTime", q.ReadTime)
	add("rating", q.Rating)
	add("numComments", q.NumComments)
	add("category", q.Category)
	add("subCategory", q.SubCategory)
	return v
}

// Empty reports whether no filter is set.
func (q SearchQuery) Empty() bool {
	return len(q.Values()) == 0
}

// Flexible is a scalar the API sends either as a JSON string or a number.
type Flexible string

// UnmarshalJSON stores strings as-is and numbers in their decimal form.
func (f *Flexible) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Flexible(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Flexible(n.String())
	return nil
}

// Int returns the value as an integer, or 0 when it is not one.
func (f Flexible) Int() int {
	n, err := strconv.Atoi(strings.TrimSpace(string(f)))
	if err != nil {
		return 0
	}
	return n
}
