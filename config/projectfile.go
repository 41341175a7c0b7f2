// Package config loads cmsl10n settings.
//
// Non-secret project settings live in a .cmsl10n.yaml file in the project
// root; secrets and deployment settings come from the environment
// (optionally seeded from a .env file). A missing project file is not an
// error: every field has a default except the repository owner/name and
// the CMS base URL, which commands that need them validate explicitly.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// ProjectFileName is the default project file name.
const ProjectFileName = ".cmsl10n.yaml"

// ProjectFile is the top-level .cmsl10n.yaml structure.
type ProjectFile struct {
	// CMS describes where entries are fetched from.
	CMS CMS `yaml:"cms"`
	// Repository describes where the resource file is committed.
	Repository Repository `yaml:"repository"`
	// Server tunes the webhook server.
	Server Server `yaml:"server"`
	// L10nDir holds translated resource files as <l10n_dir>/<locale>/<file>.
	L10nDir string `yaml:"l10n_dir,omitempty"`
	// SourceLocale is the locale of the CMS content (default "en").
	SourceLocale string `yaml:"source_locale,omitempty"`
}

// CMS holds the headless CMS endpoint settings.
type CMS struct {
	// BaseURL is the CMS root, e.g. https://cms.example.com.
	BaseURL string `yaml:"base_url"`
	// Collection is the REST collection holding localizable entries.
	Collection string `yaml:"collection,omitempty"`
	// PageSize is the number of entries requested per page.
	PageSize int `yaml:"page_size,omitempty"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Repository holds the pull request target settings.
type Repository struct {
	Owner        string `yaml:"owner"`
	Repo         string `yaml:"repo"`
	BaseBranch   string `yaml:"base_branch,omitempty"`
	FilePath     string `yaml:"file_path,omitempty"`
	BranchPrefix string `yaml:"branch_prefix,omitempty"`
	// PRTitle is the title of pull requests opened by cmsl10n.
	PRTitle string `yaml:"pr_title,omitempty"`
	// TitleMarker identifies an existing cmsl10n pull request by title.
	TitleMarker string `yaml:"title_marker,omitempty"`
}

// Server holds webhook server settings.
type Server struct {
	// RateLimit is the sustained number of webhook requests per second.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	// Burst is the number of webhook requests allowed at once.
	Burst int `yaml:"burst,omitempty"`
	// ResyncSchedule is a cron spec for periodic resyncs (empty = off).
	ResyncSchedule string `yaml:"resync_schedule,omitempty"`
}

// Defaults.
const (
	DefaultCollection   = "l10n-entries"
	DefaultPageSize     = 100
	DefaultTimeout      = 30 * time.Second
	DefaultBaseBranch   = "main"
	DefaultFilePath     = "locales/en/cms.ftl"
	DefaultBranchPrefix = "cms-l10n"
	DefaultPRTitle      = "chore(l10n): sync CMS strings"
	DefaultTitleMarker  = "sync CMS strings"
	DefaultRateLimit    = 1.0
	DefaultBurst        = 5
	DefaultL10nDir      = "locales"
	DefaultSourceLocale = "en"
)

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadProjectFile loads .cmsl10n.yaml from rootDir and applies defaults.
// A missing file yields a ProjectFile holding only defaults. Unknown keys
// are rejected.
func LoadProjectFile(rootDir string) (*ProjectFile, error) {
	path := filepath.Join(rootDir, ProjectFileName)
	pf := &ProjectFile{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		pf.applyDefaults()
		return pf, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	pf.applyDefaults()
	return pf, nil
}

// applyDefaults fills every unset optional field.
func (pf *ProjectFile) applyDefaults() {
	if pf.CMS.Collection == "" {
		pf.CMS.Collection = DefaultCollection
	}
	if pf.CMS.PageSize <= 0 {
		pf.CMS.PageSize = DefaultPageSize
	}
	if pf.CMS.Timeout <= 0 {
		pf.CMS.Timeout = DefaultTimeout
	}

	r := &pf.Repository
	if r.BaseBranch == "" {
		r.BaseBranch = DefaultBaseBranch
	}
	if r.FilePath == "" {
		r.FilePath = DefaultFilePath
	}
	if r.BranchPrefix == "" {
		r.BranchPrefix = DefaultBranchPrefix
	}
	if r.PRTitle == "" {
		r.PRTitle = DefaultPRTitle
	}
	if r.TitleMarker == "" {
		r.TitleMarker = DefaultTitleMarker
	}

	if pf.Server.RateLimit <= 0 {
		pf.Server.RateLimit = DefaultRateLimit
	}
	if pf.Server.Burst <= 0 {
		pf.Server.Burst = DefaultBurst
	}

	if pf.L10nDir == "" {
		pf.L10nDir = DefaultL10nDir
	}
	if pf.SourceLocale == "" {
		pf.SourceLocale = DefaultSourceLocale
	}
}
