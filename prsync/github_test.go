package prsync

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHubHost(t *testing.T, mux *http.ServeMux) *GitHubHost {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	h, err := NewGitHubHost(srv.Client(), "gh-token", "acme", "site").WithBaseURL(srv.URL)
	require.NoError(t, err)
	return h
}

func TestGitHubHostListPullRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/site/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		fmt.Fprint(w, `[{"number":5,"title":"chore(l10n): sync CMS strings","state":"open",
			"html_url":"https://github.com/acme/site/pull/5","head":{"ref":"cms-l10n-1"}}]`)
	})
	prs, err := newGitHubHost(t, mux).ListPullRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []PullRequest{{
		Number: 5, Title: "chore(l10n): sync CMS strings", State: "open",
		HeadBranch: "cms-l10n-1", URL: "https://github.com/acme/site/pull/5",
	}}, prs)
}

func TestGitHubHostGetFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/site/contents/locales/en/cms.ftl", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ref") != "main" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		content := base64.StdEncoding.EncodeToString([]byte("a = \"b\"\n"))
		fmt.Fprintf(w, `{"type":"file","encoding":"base64","path":"locales/en/cms.ftl","sha":"abc","content":%q}`, content)
	})
	h := newGitHubHost(t, mux)

	f, err := h.GetFile(context.Background(), "locales/en/cms.ftl", "main")
	require.NoError(t, err)
	assert.Equal(t, File{Path: "locales/en/cms.ftl", SHA: "abc", Content: "a = \"b\"\n"}, f)

	_, err = h.GetFile(context.Background(), "locales/en/cms.ftl", "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubHostPutFile(t *testing.T) {
	var bodies []string
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/acme/site/contents/locales/en/cms.ftl", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		fmt.Fprint(w, `{"content":{"sha":"new"}}`)
	})
	h := newGitHubHost(t, mux)

	require.NoError(t, h.PutFile(context.Background(), FileChange{
		Path: "locales/en/cms.ftl", Content: "x", Branch: "b", Message: "create",
	}))
	require.NoError(t, h.PutFile(context.Background(), FileChange{
		Path: "locales/en/cms.ftl", Content: "y", Branch: "b", SHA: "old", Message: "update",
	}))

	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], `"message":"create"`)
	assert.Contains(t, bodies[0], `"branch":"b"`)
	assert.NotContains(t, bodies[0], `"sha"`)
	assert.Contains(t, bodies[1], `"sha":"old"`)
	assert.Contains(t, bodies[1], `"content":"`+base64.StdEncoding.EncodeToString([]byte("y"))+`"`)
}

func TestGitHubHostBranches(t *testing.T) {
	var created string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/site/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ref":"refs/heads/main","object":{"sha":"base-sha","type":"commit"}}`)
	})
	mux.HandleFunc("POST /repos/acme/site/git/refs", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		created = string(b)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"ref":"refs/heads/cms-l10n-1","object":{"sha":"base-sha"}}`)
	})
	h := newGitHubHost(t, mux)

	sha, err := h.GetBranchSHA(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "base-sha", sha)

	require.NoError(t, h.CreateBranch(context.Background(), "cms-l10n-1", sha))
	assert.Contains(t, created, `"ref":"refs/heads/cms-l10n-1"`)
	assert.Contains(t, created, `"sha":"base-sha"`)
}

func TestGitHubHostCreatePullRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/site/pulls", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(b), `"head":"cms-l10n-1"`)
		assert.Contains(t, string(b), `"base":"main"`)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number":9,"title":"t","state":"open","html_url":"u","head":{"ref":"cms-l10n-1"}}`)
	})
	pr, err := newGitHubHost(t, mux).CreatePullRequest(context.Background(), PullRequestInput{
		Title: "t", Body: "b", Head: "cms-l10n-1", Base: "main",
	})
	require.NoError(t, err)
	assert.Equal(t, 9, pr.Number)
	assert.Equal(t, "cms-l10n-1", pr.HeadBranch)
}

func TestGitHubHostErrorsWrapped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/site/pulls/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"oops"}`)
	})
	_, err := newGitHubHost(t, mux).GetPullRequest(context.Background(), 3)
	assert.ErrorContains(t, err, "getting pull request #3")
}
