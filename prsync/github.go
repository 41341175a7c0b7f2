package prsync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
)

// GitHubHost is a Host backed by the GitHub REST API.
type GitHubHost struct {
	client *github.Client
	owner  string
	repo   string
}

var _ Host = (*GitHubHost)(nil)

// NewGitHubHost creates a Host for owner/repo authenticated with token.
// httpClient may be nil.
func NewGitHubHost(httpClient *http.Client, token, owner, repo string) *GitHubHost {
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubHost{client: client, owner: owner, repo: repo}
}

// WithBaseURL points the host at a different API root (GitHub Enterprise
// or a test server).
func (h *GitHubHost) WithBaseURL(raw string) (*GitHubHost, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
	}
	h.client.BaseURL = u
	return h, nil
}

func (h *GitHubHost) ListPullRequests(ctx context.Context) ([]PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var out []PullRequest
	for {
		prs, resp, err := h.client.PullRequests.List(ctx, h.owner, h.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests: %w", err)
		}
		for _, pr := range prs {
			out = append(out, convertPR(pr))
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

func (h *GitHubHost) GetPullRequest(ctx context.Context, number int) (PullRequest, error) {
	pr, _, err := h.client.PullRequests.Get(ctx, h.owner, h.repo, number)
	if err != nil {
		return PullRequest{}, fmt.Errorf("getting pull request #%d: %w", number, err)
	}
	return convertPR(pr), nil
}

func (h *GitHubHost) GetFile(ctx context.Context, path, ref string) (File, error) {
	fc, _, resp, err := h.client.Repositories.GetContents(ctx, h.owner, h.repo, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return File{}, fmt.Errorf("%s@%s: %w", path, ref, ErrNotFound)
		}
		return File{}, fmt.Errorf("getting %s@%s: %w", path, ref, err)
	}
	if fc == nil {
		return File{}, fmt.Errorf("%s@%s is a directory", path, ref)
	}
	content, err := fc.GetContent()
	if err != nil {
		return File{}, fmt.Errorf("decoding %s@%s: %w", path, ref, err)
	}
	return File{Path: fc.GetPath(), SHA: fc.GetSHA(), Content: content}, nil
}

func (h *GitHubHost) PutFile(ctx context.Context, change FileChange) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(change.Message),
		Content: []byte(change.Content),
		Branch:  github.Ptr(change.Branch),
	}
	var err error
	if change.SHA == "" {
		_, _, err = h.client.Repositories.CreateFile(ctx, h.owner, h.repo, change.Path, opts)
	} else {
		opts.SHA = github.Ptr(change.SHA)
		_, _, err = h.client.Repositories.UpdateFile(ctx, h.owner, h.repo, change.Path, opts)
	}
	if err != nil {
		return fmt.Errorf("writing %s on %s: %w", change.Path, change.Branch, err)
	}
	return nil
}

func (h *GitHubHost) GetBranchSHA(ctx context.Context, branch string) (string, error) {
	ref, _, err := h.client.Git.GetRef(ctx, h.owner, h.repo, "heads/"+branch)
	if err != nil {
		return "", fmt.Errorf("getting branch %s: %w", branch, err)
	}
	return ref.GetObject().GetSHA(), nil
}

func (h *GitHubHost) CreateBranch(ctx context.Context, name, sha string) error {
	ref := &github.Reference{
		Ref:    github.Ptr("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	}
	if _, _, err := h.client.Git.CreateRef(ctx, h.owner, h.repo, ref); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

func (h *GitHubHost) CreatePullRequest(ctx context.Context, in PullRequestInput) (PullRequest, error) {
	pr, _, err := h.client.PullRequests.Create(ctx, h.owner, h.repo, &github.NewPullRequest{
		Title: github.Ptr(in.Title),
		Head:  github.Ptr(in.Head),
		Base:  github.Ptr(in.Base),
		Body:  github.Ptr(in.Body),
	})
	if err != nil {
		return PullRequest{}, fmt.Errorf("creating pull request: %w", err)
	}
	return convertPR(pr), nil
}

func convertPR(pr *github.PullRequest) PullRequest {
	return PullRequest{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		State:      pr.GetState(),
		HeadBranch: pr.GetHead().GetRef(),
		URL:        pr.GetHTMLURL(),
	}
}
