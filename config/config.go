package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrInvalid is wrapped by every configuration validation error.
var ErrInvalid = errors.New("invalid configuration")

// Env holds settings read from environment variables.
type Env struct {
	GitHubToken   string `env:"CMSL10N_GITHUB_TOKEN"`
	CMSToken      string `env:"CMSL10N_CMS_TOKEN"`
	CMSBaseURL    string `env:"CMSL10N_CMS_URL"` // overrides cms.base_url
	WebhookSecret string `env:"CMSL10N_WEBHOOK_SECRET"`
	Environment   string `env:"CMSL10N_ENV" envDefault:"production"`
	LogLevel      string `env:"CMSL10N_LOG_LEVEL" envDefault:"info"`
	Listen        string `env:"CMSL10N_LISTEN" envDefault:":8080"`
	Proxy         string `env:"CMSL10N_HTTP_PROXY"`
}

// Config is the complete runtime configuration.
type Config struct {
	Project ProjectFile
	Env     Env
	// Root is the project root the configuration was loaded from.
	Root string
}

// Load reads rootDir/.env (if present), the environment and
// rootDir/.cmsl10n.yaml. Values already set in the environment take
// precedence over .env.
func Load(rootDir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(rootDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	pf, err := LoadProjectFile(rootDir)
	if err != nil {
		return nil, err
	}
	if e.CMSBaseURL != "" {
		pf.CMS.BaseURL = e.CMSBaseURL
	}
	pf.CMS.BaseURL = strings.TrimRight(pf.CMS.BaseURL, "/")

	return &Config{Project: *pf, Env: e, Root: rootDir}, nil
}

// ValidateCMS checks the settings needed to fetch entries.
func (c *Config) ValidateCMS() error {
	var missing []string
	if c.Project.CMS.BaseURL == "" {
		missing = append(missing, "cms.base_url (or CMSL10N_CMS_URL)")
	}
	if c.Env.CMSToken == "" {
		missing = append(missing, "CMSL10N_CMS_TOKEN")
	}
	return missingErr(missing)
}

// ValidateRepository checks the settings needed to open pull requests.
func (c *Config) ValidateRepository() error {
	var missing []string
	if c.Project.Repository.Owner == "" {
		missing = append(missing, "repository.owner")
	}
	if c.Project.Repository.Repo == "" {
		missing = append(missing, "repository.repo")
	}
	if c.Env.GitHubToken == "" {
		missing = append(missing, "CMSL10N_GITHUB_TOKEN")
	}
	return missingErr(missing)
}

// ResourceFileName is the base name of the resource file, used to locate
// translations under L10nDir.
func (c *Config) ResourceFileName() string {
	return filepath.Base(c.Project.Repository.FilePath)
}

// TranslationPath returns the path of the translated resource file for
// locale.
func (c *Config) TranslationPath(locale string) string {
	dir := c.Project.L10nDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.Root, dir)
	}
	return filepath.Join(dir, locale, c.ResourceFileName())
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
}
