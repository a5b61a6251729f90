package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goBlog/api"
	"github.com/MrEthical07/goBlog/internal/apitest"
	"github.com/MrEthical07/goBlog/internal/output"
	"github.com/MrEthical07/goBlog/session"
)

type harness struct {
	server      *apitest.Server
	viewer      api.Viewer
	sessionPath string
}

type result struct {
	code   int
	stdout string
	stderr string
}

// newHarness points the CLI at a seeded stand-in API and a session file in a
// temporary directory.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	srv, baseURL := apitest.NewTestServer(t, apitest.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	viewer, err := apitest.SeedDemo(srv)
	require.NoError(t, err)

	h := &harness{
		server:      srv,
		viewer:      viewer,
		sessionPath: filepath.Join(dir, "session.json"),
	}
	t.Setenv("BLOGPORTAL_API_BASE_URL", baseURL)
	t.Setenv("BLOGPORTAL_API_REQUESTS_PER_SECOND", "0")
	t.Setenv("BLOGPORTAL_STORAGE_BACKEND", "file")
	t.Setenv("BLOGPORTAL_STORAGE_FILE_PATH", h.sessionPath)
	return h
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), Options{
		In:    strings.NewReader(stdin),
		Out:   &stdout,
		Err:   &stderr,
		Build: BuildInfo{Version: "1.2.3", Commit: "abc1234"},
	}, append([]string{"--color", "never"}, args...))
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	res := run(t, apitest.DemoPassword+"\n", "login", "--email", "demo@example.com")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
}

func (h *harness) blogID(t *testing.T, title string) string {
	t.Helper()
	res := run(t, "", "search", "--json")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	var blogs []api.Blog
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &blogs))
	for _, b := range blogs {
		if b.Title == title {
			return b.ID
		}
	}
	t.Fatalf("blog %q not found", title)
	return ""
}

func TestVersion(t *testing.T) {
	newHarness(t)

	res := run(t, "", "version")
	require.Equal(t, output.ExitSuccess, res.code)
	for _, field := range []string{"blogportal version 1.2.3", "commit:     abc1234", "built:      unknown", "go version:"} {
		assert.Contains(t, res.stdout, field)
	}

	res = run(t, "", "version", "--short")
	assert.Equal(t, "1.2.3\n", res.stdout)

	res = run(t, "", "version", "--json")
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, "1.2.3", info["version"])
}

func TestRootHelpListsCommands(t *testing.T) {
	newHarness(t)

	res := run(t, "", "--help")
	require.Equal(t, output.ExitSuccess, res.code)
	for _, name := range []string{"login", "signup", "logout", "status", "latest", "search", "categories", "subcategories", "browse", "blog", "comment", "rate", "version"} {
		assert.Contains(t, res.stdout, name)
	}
}

func TestUsageErrors(t *testing.T) {
	newHarness(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"publish"}},
		{"unknown flag", []string{"latest", "--everything"}},
		{"missing argument", []string{"blog"}},
		{"bad color", []string{"--color", "rainbow", "status"}},
		{"non-numeric rating", []string{"rate", "some-blog", "five"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, "", tt.args...)
			assert.Equal(t, output.ExitUsageError, res.code, res.stderr)
			assert.Contains(t, res.stderr, "[ERROR]")
		})
	}
}

func TestLatestRequiresLogin(t *testing.T) {
	h := newHarness(t)

	res := run(t, "", "latest")
	assert.Equal(t, output.ExitAuthError, res.code)
	assert.Contains(t, res.stderr, "login required")
	assert.Contains(t, res.stderr, "blogportal login")
	assert.Zero(t, h.server.Hits(apitest.RouteLatest), "protected data must not be fetched")
}

func TestLoginPersistsSessionAcrossRuns(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	p, err := session.NewFilePersister(h.sessionPath)
	require.NoError(t, err)
	tok, ok, err := p.Get(context.Background(), session.KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, tok)

	res := run(t, "", "latest")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Night trains of Japan")
	assert.NotContains(t, res.stdout, "<script")
	assert.Equal(t, 1, h.server.Hits(apitest.RouteLatest))

	res = run(t, "", "status", "--json")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.Equal(t, "authenticated", report.State)
	assert.Equal(t, "allow", report.Decision)
	assert.Equal(t, "valid", report.Reason)
	assert.Equal(t, h.viewer.ID, report.ViewerID)
	require.NotNil(t, report.ExpiresAt)
	assert.True(t, report.ExpiresAt.After(time.Now()))
}

func TestLoginPasswordFlag(t *testing.T) {
	newHarness(t)

	res := run(t, "", "login", "--email", "demo@example.com", "--password", apitest.DemoPassword)
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "[OK] Signed in as demo")
	assert.Contains(t, res.stdout, "See also:")
}

func TestLoginRejected(t *testing.T) {
	newHarness(t)

	res := run(t, "wrong-password\n", "login", "--email", "demo@example.com")
	assert.Equal(t, output.ExitAuthError, res.code)
	assert.Contains(t, res.stderr, "sign-in rejected")

	res = run(t, "", "latest")
	assert.Equal(t, output.ExitAuthError, res.code)
}

func TestSignup(t *testing.T) {
	newHarness(t)

	res := run(t, "long-enough-pass\n", "signup", "--email", "new@example.com")
	assert.Equal(t, output.ExitAuthError, res.code, "username is required")

	res = run(t, "long-enough-pass\n", "signup", "--email", "new@example.com", "--username", "newbie")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Welcome, newbie")

	res = run(t, "", "latest", "--json")
	assert.Equal(t, output.ExitSuccess, res.code, res.stderr)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	res := run(t, "", "logout")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)

	res = run(t, "", "latest")
	assert.Equal(t, output.ExitAuthError, res.code)

	res = run(t, "", "logout")
	assert.Equal(t, output.ExitSuccess, res.code, "logout twice is harmless")

	res = run(t, "", "status")
	require.Equal(t, output.ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "[redirecting]")
	assert.Contains(t, res.stdout, "[no_token]")
}

func TestExpiredTokenPolicy(t *testing.T) {
	h := newHarness(t)
	tok, err := h.server.IssueToken(h.viewer, -time.Hour)
	require.NoError(t, err)
	p, err := session.NewFilePersister(h.sessionPath)
	require.NoError(t, err)
	require.NoError(t, p.Set(context.Background(), session.KeyToken, tok))

	res := run(t, "", "latest")
	assert.Equal(t, output.ExitAuthError, res.code, "expired tokens redirect by default")

	t.Setenv("BLOGPORTAL_GUARD_EXPIRED", "allow")
	res = run(t, "", "latest")
	assert.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stderr, "expired_tokens_allowed")

	res = run(t, "", "status")
	assert.Contains(t, res.stdout, "[expired]")
	assert.Contains(t, res.stderr, "Token expired")
}

// jsonLogLines decodes the structured log records written to stderr.
func jsonLogLines(t *testing.T, stderr string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(stderr, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		lines = append(lines, rec)
	}
	return lines
}

func TestWarningsLogTypedAttributes(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.sessionPath, []byte("{not json"), 0o600))
	t.Setenv("BLOGPORTAL_LOGGING_FORMAT", "json")
	t.Setenv("BLOGPORTAL_GUARD_EXPIRED", "allow")

	res := run(t, "", "categories")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)

	var sawCode, sawBootstrap bool
	for _, rec := range jsonLogLines(t, res.stderr) {
		switch {
		case rec["code"] == "expired_tokens_allowed":
			sawCode = true
		case rec["msg"] == "session: persisted storage partly unreadable":
			errText, ok := rec["error"].(string)
			require.True(t, ok, "error attribute should be a string: %v", rec)
			assert.Contains(t, errText, "persisted storage unavailable")
			sawBootstrap = true
		}
	}
	assert.True(t, sawCode, "lint warning missing from %s", res.stderr)
	assert.True(t, sawBootstrap, "bootstrap warning missing from %s", res.stderr)
}

func TestSearchAndBrowse(t *testing.T) {
	newHarness(t)

	res := run(t, "", "search", "goroutines")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Goroutines in practice")
	assert.NotContains(t, res.stdout, "Night trains")

	res = run(t, "", "search", "nothing-matches-this")
	assert.Contains(t, res.stdout, "No posts found")

	res = run(t, "", "categories")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Technology")
	assert.Contains(t, res.stdout, "Travel")
}

func TestBlogPage(t *testing.T) {
	h := newHarness(t)
	id := h.blogID(t, "Server-rendered forms")

	res := run(t, "", "blog", id)
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Server-rendered forms")
	assert.Contains(t, res.stdout, "Technology / Web")
	assert.Contains(t, res.stdout, "Forms still work.")
	assert.NotContains(t, res.stdout, "alert(1)")
	assert.Contains(t, res.stdout, "Comments (0)")

	res = run(t, "", "blog", "missing-id")
	assert.Equal(t, output.ExitAPIError, res.code)
	assert.Contains(t, res.stderr, "could not be loaded")
}

func TestCommentAndRate(t *testing.T) {
	h := newHarness(t)
	id := h.blogID(t, "Context all the way down")

	res := run(t, "", "comment", "add", id, "nice")
	assert.Equal(t, output.ExitAuthError, res.code, "commenting requires login")

	h.login(t)

	res = run(t, "", "comment", "add", id, "Clear", "and", "short.")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	comments := h.server.Comments(id)
	require.Len(t, comments, 1)
	assert.Equal(t, "Clear and short.", comments[0].Content)

	res = run(t, "", "rate", id, "4")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "average is now 4.0")

	res = run(t, "", "rate", id, "2")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "average is now 2.0")
	assert.Equal(t, 1, h.server.Hits(apitest.RouteUpdateRating))

	res = run(t, "", "rate", id, "9")
	assert.Equal(t, output.ExitUsageError, res.code)

	res = run(t, "", "comment", "delete", comments[0].ID)
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Empty(t, h.server.Comments(id))
}

func TestQuietSuppressesOutput(t *testing.T) {
	h := newHarness(t)

	res := run(t, apitest.DemoPassword+"\n", "--quiet", "login", "--email", "demo@example.com")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	res = run(t, "", "-q", "latest")
	require.Equal(t, output.ExitSuccess, res.code, res.stderr)
	assert.Empty(t, res.stdout)
	assert.Equal(t, 1, h.server.Hits(apitest.RouteLatest))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, output.ExitAPIError, classify(&api.StatusError{StatusCode: 502}).ExitCode)
	assert.Equal(t, output.ExitGeneral, classify(io.ErrUnexpectedEOF).ExitCode)

	own := &output.CLIError{Summary: "x", ExitCode: 42}
	assert.Same(t, own, classify(own))
}
