package session

import (
	"encoding/json"
	"strings"
)

// Session is a point-in-time snapshot of the [Store].
//
// Token is empty when absent. User and Viewer are opaque profile records
// returned by the remote API and are passed through unvalidated.
type Session struct {
	Token           string
	User            json.RawMessage
	Viewer          json.RawMessage
	IsAuthenticated bool
	Categories      []json.RawMessage
	FilteredBlogs   []json.RawMessage

	// Version increases by one on every applied mutation. A ClearToken on a
	// store without token or authenticated flag is not applied.
	Version uint64
}

// HasToken reports whether the snapshot carries a usable token.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// ViewerID returns the "_id" field of the viewer record, or "" when there is no
// viewer or the record has no id.
func (s Session) ViewerID() string {
	return recordID(s.Viewer)
}

// NormalizeToken maps the values browser storage uses for "no
// token" (empty, whitespace, the literal "null" or "undefined") to "".
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	switch token {
	case "null", "undefined":
		return ""
	}
	return token
}

func recordID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var rec struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ""
	}
	return rec.ID
}

// isNullRecord reports whether raw carries no record at all.
func isNullRecord(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func (s Session) clone() Session {
	out := s
	out.User = cloneRaw(s.User)
	out.Viewer = cloneRaw(s.Viewer)
	out.Categories = cloneList(s.Categories)
	out.FilteredBlogs = cloneList(s.FilteredBlogs)
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneList(list []json.RawMessage) []json.RawMessage {
	if list == nil {
		return nil
	}
	out := make([]json.RawMessage, len(list))
	for i, item := range list {
		out[i] = cloneRaw(item)
	}
	return out
}
