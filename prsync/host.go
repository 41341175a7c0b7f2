package prsync

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Host.GetFile when the file does not exist on
// the requested ref.
var ErrNotFound = errors.New("not found")

// PullRequest is the subset of pull request data the reconciler needs.
type PullRequest struct {
	Number     int
	Title      string
	State      string
	HeadBranch string
	URL        string
}

// File is a repository file at some ref.
type File struct {
	Path    string
	SHA     string
	Content string
}

// FileChange describes a single-file commit. SHA is the blob being
// replaced; empty creates the file.
type FileChange struct {
	Path    string
	Content string
	Branch  string
	SHA     string
	Message string
}

// PullRequestInput describes a pull request to open.
type PullRequestInput struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// Host is the repository hosting API used by the reconciler. Every
// method addresses the repository the Host was created for.
type Host interface {
	// ListPullRequests returns the open pull requests.
	ListPullRequests(ctx context.Context) ([]PullRequest, error)
	GetPullRequest(ctx context.Context, number int) (PullRequest, error)
	// GetFile returns ErrNotFound (possibly wrapped) when path does not
	// exist on ref.
	GetFile(ctx context.Context, path, ref string) (File, error)
	PutFile(ctx context.Context, change FileChange) error
	GetBranchSHA(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, name, sha string) error
	CreatePullRequest(ctx context.Context, in PullRequestInput) (PullRequest, error)
}
