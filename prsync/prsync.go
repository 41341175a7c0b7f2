// Package prsync keeps a single pull request carrying the generated
// resource file up to date.
//
// At most one open pull request whose title contains the configured
// marker is maintained. When one exists, its head branch receives a new
// commit; otherwise a fresh branch is cut from the base branch and a pull
// request is opened. Running Sync again with the same content converges on
// the same pull request and makes no commit.
package prsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/minios-linux/cmsl10n/ftl"
	"github.com/minios-linux/cmsl10n/merge"
)

// Action is the outcome of a Sync.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// Options configures the Reconciler.
type Options struct {
	Owner        string
	Repo         string
	BaseBranch   string
	FilePath     string
	BranchPrefix string
	// Title is the title of pull requests opened by Sync.
	Title string
	// TitleMarker identifies an existing pull request; it must be a
	// substring of Title.
	TitleMarker string
}

// Metadata describes what triggered a sync. It is only used for commit
// and pull request text.
type Metadata struct {
	Event      string
	Model      string
	EntryID    string
	EntryCount int
}

// Result reports what Sync did.
type Result struct {
	Action      Action        `json:"action"`
	PullRequest *PullRequest  `json:"pull_request,omitempty"`
	Branch      string        `json:"branch"`
	Changes     merge.Changes `json:"changes"`
}

// Reconciler drives a Host.
type Reconciler struct {
	host Host
	opts Options
	log  *zap.Logger

	// Now returns the current time; replaced in tests.
	Now func() time.Time

	mu sync.Mutex
}

// New creates a Reconciler.
func New(host Host, opts Options, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TitleMarker == "" {
		opts.TitleMarker = opts.Title
	}
	return &Reconciler{
		host: host,
		opts: opts,
		log: logger.With(
			zap.String("owner", opts.Owner),
			zap.String("repo", opts.Repo),
			zap.String("path", opts.FilePath),
		),
		Now: time.Now,
	}
}

// FindOpen returns the first open pull request whose title contains the
// marker, or nil when there is none.
func (r *Reconciler) FindOpen(ctx context.Context) (*PullRequest, error) {
	prs, err := r.host.ListPullRequests(ctx)
	if err != nil {
		return nil, err
	}
	for i := range prs {
		pr := prs[i]
		if pr.State != "" && pr.State != "open" {
			continue
		}
		if strings.Contains(pr.Title, r.opts.TitleMarker) {
			return &pr, nil
		}
	}
	return nil, nil
}

// Current returns the resource file as it stands on the open pull
// request branch, or on the base branch when no pull request is open.
// A missing file yields an empty File and no error.
func (r *Reconciler) Current(ctx context.Context) (File, string, error) {
	branch := r.opts.BaseBranch
	pr, err := r.FindOpen(ctx)
	if err != nil {
		return File{}, "", err
	}
	if pr != nil && pr.HeadBranch != "" {
		branch = pr.HeadBranch
	}
	f, err := r.readFile(ctx, branch)
	return f, branch, err
}

// Sync commits content and makes sure a pull request carries it.
func (r *Reconciler) Sync(ctx context.Context, content []byte, meta Metadata) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pr, err := r.FindOpen(ctx)
	if err != nil {
		r.log.Error("finding open pull request failed", zap.Error(err))
		return nil, fmt.Errorf("finding open pull request: %w", err)
	}
	if pr != nil {
		return r.update(ctx, *pr, content)
	}
	return r.create(ctx, content, meta)
}

func (r *Reconciler) update(ctx context.Context, pr PullRequest, content []byte) (*Result, error) {
	full, err := r.host.GetPullRequest(ctx, pr.Number)
	if err != nil {
		r.log.Error("resolving pull request failed", zap.Int("pr", pr.Number), zap.Error(err))
		return nil, fmt.Errorf("resolving pull request #%d: %w", pr.Number, err)
	}
	branch := full.HeadBranch
	log := r.log.With(zap.String("branch", branch), zap.Int("pr", full.Number))

	existing, err := r.readFile(ctx, branch)
	if err != nil {
		log.Error("reading resource file failed", zap.Error(err))
		return nil, err
	}
	res := &Result{PullRequest: &full, Branch: branch, Changes: changes(existing.Content, content)}

	if existing.SHA != "" && ftl.SameContent([]byte(existing.Content), content) {
		log.Info("resource file unchanged")
		res.Action = ActionUnchanged
		return res, nil
	}

	err = r.host.PutFile(ctx, FileChange{
		Path:    r.opts.FilePath,
		Content: string(content),
		Branch:  branch,
		SHA:     existing.SHA,
		Message: r.commitMessage(existing.SHA == ""),
	})
	if err != nil {
		log.Error("updating resource file failed", zap.Error(err))
		return nil, err
	}
	log.Info("updated pull request",
		zap.Int("added", len(res.Changes.Added)),
		zap.Int("removed", len(res.Changes.Removed)))
	res.Action = ActionUpdated
	return res, nil
}

func (r *Reconciler) create(ctx context.Context, content []byte, meta Metadata) (*Result, error) {
	base := r.opts.BaseBranch
	sha, err := r.host.GetBranchSHA(ctx, base)
	if err != nil {
		r.log.Error("resolving base branch failed", zap.String("branch", base), zap.Error(err))
		return nil, err
	}

	branch := r.branchName()
	log := r.log.With(zap.String("branch", branch))
	if err := r.host.CreateBranch(ctx, branch, sha); err != nil {
		log.Error("creating branch failed", zap.Error(err))
		return nil, err
	}

	existing, err := r.readFile(ctx, branch)
	if err != nil {
		log.Error("reading resource file failed", zap.Error(err))
		return nil, err
	}
	ch := changes(existing.Content, content)

	err = r.host.PutFile(ctx, FileChange{
		Path:    r.opts.FilePath,
		Content: string(content),
		Branch:  branch,
		SHA:     existing.SHA,
		Message: r.commitMessage(existing.SHA == ""),
	})
	if err != nil {
		log.Error("writing resource file failed", zap.Error(err))
		return nil, err
	}

	body, err := r.body(meta, ch)
	if err != nil {
		return nil, err
	}
	pr, err := r.host.CreatePullRequest(ctx, PullRequestInput{
		Title: r.opts.Title,
		Body:  body,
		Head:  branch,
		Base:  base,
	})
	if err != nil {
		log.Error("opening pull request failed", zap.Error(err))
		return nil, err
	}
	log.Info("opened pull request", zap.Int("pr", pr.Number), zap.String("url", pr.URL))
	return &Result{Action: ActionCreated, PullRequest: &pr, Branch: branch, Changes: ch}, nil
}

// readFile returns the resource file on branch; a missing file yields an
// empty File.
func (r *Reconciler) readFile(ctx context.Context, branch string) (File, error) {
	f, err := r.host.GetFile(ctx, r.opts.FilePath, branch)
	if errors.Is(err, ErrNotFound) {
		return File{Path: r.opts.FilePath}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("reading %s on %s: %w", r.opts.FilePath, branch, err)
	}
	return f, nil
}

func (r *Reconciler) branchName() string {
	return r.opts.BranchPrefix + "-" + r.Now().UTC().Format("20060102-150405")
}

func (r *Reconciler) commitMessage(create bool) string {
	verb := "update"
	if create {
		verb = "create"
	}
	return fmt.Sprintf("chore(l10n): %s %s from CMS", verb, r.opts.FilePath)
}

// changes compares the message ids of the old and new file contents.
func changes(old string, content []byte) merge.Changes {
	return merge.Diff(ftl.Parse([]byte(old)).IDs(), ftl.Parse(content).IDs())
}

// ---------------------------------------------------------------------------
// Pull request body
// ---------------------------------------------------------------------------

var bodyTemplate = template.Must(template.New("body").Parse(`This pull request was opened automatically from CMS content.

- File: ` + "`{{.Path}}`" + `
- Event: {{or .Meta.Event "manual"}}
{{- if .Meta.Model}}
- Model: {{.Meta.Model}}
{{- end}}
{{- if .Meta.EntryID}}
- Entry: {{.Meta.EntryID}}
{{- end}}
- Localizable entries: {{.Meta.EntryCount}}
- Strings added: {{len .Changes.Added}}, removed: {{len .Changes.Removed}}

Later CMS changes are pushed to this branch until it is merged.
`))

func (r *Reconciler) body(meta Metadata, ch merge.Changes) (string, error) {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, struct {
		Path    string
		Meta    Metadata
		Changes merge.Changes
	}{r.opts.FilePath, meta, ch})
	if err != nil {
		return "", fmt.Errorf("rendering pull request body: %w", err)
	}
	return buf.String(), nil
}
