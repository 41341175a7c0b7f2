// cmsl10n keeps localizable CMS strings in sync with a translation
// resource file in a GitHub repository.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minios-linux/cmsl10n/cms"
	"github.com/minios-linux/cmsl10n/config"
	"github.com/minios-linux/cmsl10n/entry"
	"github.com/minios-linux/cmsl10n/extract"
	"github.com/minios-linux/cmsl10n/ftl"
	"github.com/minios-linux/cmsl10n/i18n"
	"github.com/minios-linux/cmsl10n/logging"
	"github.com/minios-linux/cmsl10n/merge"
	"github.com/minios-linux/cmsl10n/pipeline"
	"github.com/minios-linux/cmsl10n/prsync"
	"github.com/minios-linux/cmsl10n/scheduler"
	"github.com/minios-linux/cmsl10n/webhook"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	infoLabel  = color.New(color.FgBlue).Sprint("[INFO]")
	okLabel    = color.New(color.FgGreen).Sprint("[OK]")
	warnLabel  = color.New(color.FgYellow, color.Bold).Sprint("[WARN]")
	errorLabel = color.New(color.FgRed).Sprint("[ERROR]")
	heading    = color.New(color.FgBlue).SprintFunc()
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, infoLabel+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, okLabel+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, warnLabel+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, errorLabel+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cmsl10n",
		Short: i18n.T("Sync localizable CMS strings with a translation repository"),
		Long: `cmsl10n: CMS localization pipeline.

Fetches entries from a headless CMS, extracts their localizable strings,
renders them into a resource file and keeps a single pull request carrying
that file up to date. Translated resource files are merged back onto CMS
entries to serve localized content.

Commands:
  serve     Run the webhook server (and optional scheduled resync)
  sync      Run the pipeline once
  extract   Print the resource file for the current CMS content
  localize  Merge a translated resource file onto a CMS entry
  status    Show configuration and pending changes

Configuration is read from .cmsl10n.yaml in the project root and from
CMSL10N_* environment variables (a .env file is loaded if present).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newExtractCmd(),
		newLocalizeCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Config{
		Environment: cfg.Env.Environment,
		Level:       cfg.Env.LogLevel,
		Service:     "cmsl10n",
	})
	return cfg, logger, nil
}

func newSource(cfg *config.Config, logger *zap.Logger) *cms.Client {
	return cms.New(cms.Options{
		BaseURL:    cfg.Project.CMS.BaseURL,
		Token:      cfg.Env.CMSToken,
		Collection: cfg.Project.CMS.Collection,
		PageSize:   cfg.Project.CMS.PageSize,
		Timeout:    cfg.Project.CMS.Timeout,
		Proxy:      cfg.Env.Proxy,
		Logger:     logger,
	})
}

func newReconciler(cfg *config.Config, logger *zap.Logger) *prsync.Reconciler {
	r := cfg.Project.Repository
	host := prsync.NewGitHubHost(nil, cfg.Env.GitHubToken, r.Owner, r.Repo)
	return prsync.New(host, prsync.Options{
		Owner:        r.Owner,
		Repo:         r.Repo,
		BaseBranch:   r.BaseBranch,
		FilePath:     r.FilePath,
		BranchPrefix: r.BranchPrefix,
		Title:        r.PRTitle,
		TitleMarker:  r.TitleMarker,
	}, logger)
}

// newPipeline builds the pipeline; the reconciler is only attached when
// withRepo is set.
func newPipeline(cfg *config.Config, logger *zap.Logger, withRepo bool) (*pipeline.Pipeline, error) {
	if err := cfg.ValidateCMS(); err != nil {
		return nil, err
	}
	p := &pipeline.Pipeline{Source: newSource(cfg, logger), Logger: logger}
	if withRepo {
		if err := cfg.ValidateRepository(); err != nil {
			return nil, err
		}
		p.Syncer = newReconciler(cfg, logger)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// serve (webhook server)
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: i18n.T("Run the webhook server"),
		Long: `Listen for CMS webhooks on POST /webhooks/cms and serve localized
entries on GET /entries/{l10nId}?locale=<locale>.

Every accepted webhook runs the pipeline once. When server.resync_schedule
is set, the pipeline also runs on that cron schedule to cover missed
webhooks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			p, err := newPipeline(cfg, logger, true)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.Env.Listen
			}
			if cfg.Env.WebhookSecret == "" {
				logWarning(i18n.T("CMSL10N_WEBHOOK_SECRET is not set; webhook signatures are not verified"))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if spec := cfg.Project.Server.ResyncSchedule; spec != "" {
				sched, err := scheduler.New(spec, p.Run, logger)
				if err != nil {
					return err
				}
				sched.Start()
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					sched.Stop(stopCtx)
				}()
			}

			srv := webhook.New(p, webhook.Config{
				Secret:          cfg.Env.WebhookSecret,
				RateLimit:       cfg.Project.Server.RateLimit,
				Burst:           cfg.Project.Server.Burst,
				SourceLocale:    cfg.Project.SourceLocale,
				TranslationPath: cfg.TranslationPath,
			}, logger)
			logInfo(i18n.T("Listening on %s"), listen)
			return srv.ListenAndServe(ctx, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default: CMSL10N_LISTEN or :8080)")

	return cmd
}

// ---------------------------------------------------------------------------
// sync (one pipeline run)
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: i18n.T("Run the pipeline once"),
		Long: `Fetch every CMS entry, render the resource file and create or update
the localization pull request.

With --dry-run the resource file is printed to stdout and GitHub is not
contacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			p, err := newPipeline(cfg, logger, !dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				b, err := p.Build(cmd.Context())
				if err != nil {
					return err
				}
				logInfo(i18n.N("Extracted %d string", "Extracted %d strings", len(b.Entries)), len(b.Entries))
				_, err = cmd.OutOrStdout().Write(b.Content)
				return err
			}

			res, err := p.Run(cmd.Context(), prsync.Metadata{Event: "manual"})
			if errors.Is(err, pipeline.ErrNoEntries) {
				logWarning(i18n.T("No localizable entries found; nothing to sync"))
				return nil
			}
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the resource file instead of pushing it")

	return cmd
}

func printResult(res *prsync.Result) {
	switch res.Action {
	case prsync.ActionCreated:
		logSuccess(i18n.T("Opened pull request #%d: %s"), res.PullRequest.Number, res.PullRequest.URL)
	case prsync.ActionUpdated:
		logSuccess(i18n.T("Updated pull request #%d on %s"), res.PullRequest.Number, res.Branch)
	case prsync.ActionUnchanged:
		logInfo(i18n.T("Pull request #%d is already up to date"), res.PullRequest.Number)
	}
	if res.Changes.Changed() {
		logInfo(i18n.T("Strings added: %d, removed: %d"), len(res.Changes.Added), len(res.Changes.Removed))
	}
}

// ---------------------------------------------------------------------------
// extract (print resource file)
// ---------------------------------------------------------------------------

func newExtractCmd() *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: i18n.T("Print the resource file for the current CMS content"),
		Long: `Extract localizable strings and print the rendered resource file.

Entries are fetched from the CMS unless --input names a JSON file holding
either an array of entries or a CMS list response ({"data": [...]}).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []entry.Entry
			if input != "" {
				var skipped int
				var err error
				entries, skipped, err = readEntries(input)
				if err != nil {
					return err
				}
				if skipped > 0 {
					logWarning(i18n.N("Skipped %d entry without l10nId", "Skipped %d entries without l10nId", skipped), skipped)
				}
			} else {
				cfg, logger, err := loadConfig()
				if err != nil {
					return err
				}
				defer logger.Sync() //nolint:errcheck
				if err := cfg.ValidateCMS(); err != nil {
					return err
				}
				entries, err = newSource(cfg, logger).FetchEntries(cmd.Context())
				if err != nil {
					return err
				}
			}

			res := extract.Resources(entries)
			content := ftl.Marshal(res.Entries, time.Now())

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(content)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			if err := os.WriteFile(output, content, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			logSuccess(i18n.T("Wrote %d strings from %d entries to %s"), len(res.Entries), res.Localizable, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Read entries from a JSON file instead of the CMS")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the resource file here (default: stdout)")

	return cmd
}

// readEntries loads entries from a JSON file holding an array of entries
// or a CMS list response. It returns the number of entries dropped for
// lacking an l10nId.
func readEntries(path string) ([]entry.Entry, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	root, err := entry.FromJSON(data)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	items := root
	if root.Kind == entry.KindObject {
		items = root.Get("data")
		if items.Kind == entry.KindObject {
			items = entry.Node{Kind: entry.KindArray, Items: []entry.Node{items}}
		}
	}
	if items.Kind != entry.KindArray {
		return nil, 0, fmt.Errorf("%s: expected an array of entries or {\"data\": [...]}", path)
	}

	var (
		entries []entry.Entry
		skipped int
	)
	for _, item := range items.Items {
		e, ok := entry.NewEntry(entry.FromValue(cms.Flatten(item.Interface())))
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}

// ---------------------------------------------------------------------------
// localize (merge translations onto an entry)
// ---------------------------------------------------------------------------

func newLocalizeCmd() *cobra.Command {
	var l10nID, locale, file, entryFile string

	cmd := &cobra.Command{
		Use:   "localize",
		Short: i18n.T("Merge a translated resource file onto a CMS entry"),
		Long: `Read the translated resource file for --locale (or --file), pick the
strings of --l10n-id and merge them onto the base entry, which is read
from --entry or fetched from the CMS. The localized entry is printed as
JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if l10nID == "" {
				return fmt.Errorf("--l10n-id is required")
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if file == "" {
				if locale == "" {
					return fmt.Errorf("either --locale or --file is required")
				}
				file = cfg.TranslationPath(locale)
			}
			resource, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}

			var out map[string]any
			if entryFile != "" {
				entries, _, err := readEntries(entryFile)
				if err != nil {
					return err
				}
				base, ok := findEntry(entries, l10nID)
				if !ok {
					return fmt.Errorf("entry %q not found in %s", l10nID, entryFile)
				}
				out = merge.Merge(base.Map(), ftl.Localized(resource, l10nID))
			} else {
				p, err := newPipeline(cfg, logger, false)
				if err != nil {
					return err
				}
				if out, err = p.Localize(cmd.Context(), l10nID, resource); err != nil {
					return err
				}
			}

			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&l10nID, "l10n-id", "", "l10nId of the entry to localize")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale whose resource file is read from l10n_dir")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Translated resource file (overrides --locale)")
	cmd.Flags().StringVar(&entryFile, "entry", "", "Read the base entry from a JSON file instead of the CMS")

	return cmd
}

func findEntry(entries []entry.Entry, l10nID string) (entry.Entry, bool) {
	for _, e := range entries {
		if e.L10nID == l10nID {
			return e, true
		}
	}
	return entry.Entry{}, false
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ---------------------------------------------------------------------------
// status (read-only: configuration + pending changes)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: i18n.T("Show configuration and pending changes"),
		Long: `Show the effective configuration, compare the current CMS content with
the resource file in the repository and report translation coverage per
locale. Does not modify anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			runStatus(cmd.Context(), cfg, logger)
			return nil
		},
	}

	return cmd
}

func runStatus(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	pf := cfg.Project
	absRoot, _ := filepath.Abs(cfg.Root)

	fmt.Fprintf(os.Stderr, "\n%s\n", heading(i18n.T("Project")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  Root:        %s\n", absRoot)
	fmt.Fprintf(os.Stderr, "  CMS:         %s (%s)\n", orDash(pf.CMS.BaseURL), pf.CMS.Collection)
	fmt.Fprintf(os.Stderr, "  Repository:  %s/%s@%s\n", orDash(pf.Repository.Owner), orDash(pf.Repository.Repo), pf.Repository.BaseBranch)
	fmt.Fprintf(os.Stderr, "  File:        %s\n", pf.Repository.FilePath)
	fmt.Fprintf(os.Stderr, "  L10n dir:    %s\n", pf.L10nDir)
	if pf.Server.ResyncSchedule != "" {
		fmt.Fprintf(os.Stderr, "  Resync:      %s\n", pf.Server.ResyncSchedule)
	}
	fmt.Fprintln(os.Stderr)

	if err := cfg.ValidateCMS(); err != nil {
		logWarning("%v", err)
		return
	}
	p, _ := newPipeline(cfg, logger, false)
	b, err := p.Build(ctx)
	if err != nil {
		logError("%v", err)
		return
	}
	logInfo(i18n.T("CMS: %d localizable entries, %d strings"), b.Localizable, len(b.Entries))

	if err := cfg.ValidateRepository(); err != nil {
		logWarning("%v", err)
	} else {
		current, branch, err := newReconciler(cfg, logger).Current(ctx)
		if err != nil {
			logError("%v", err)
		} else {
			ch := merge.Diff(ftl.Parse([]byte(current.Content)).IDs(), ftl.IDs(b.Entries))
			if ch.Changed() {
				logWarning(i18n.T("Pending on %s: %d added, %d removed"), branch, len(ch.Added), len(ch.Removed))
			} else {
				logSuccess(i18n.T("%s is up to date"), branch)
			}
		}
	}

	fmt.Fprintln(os.Stderr)
	showCoverage(cfg, ftl.IDs(b.Entries))
}

// showCoverage prints per-locale translation coverage of ids.
func showCoverage(cfg *config.Config, ids []string) {
	dir := cfg.Project.L10nDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.Root, dir)
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil || len(ids) == 0 {
		logInfo(i18n.T("No translations found in %s"), dir)
		return
	}

	var locales []string
	for _, de := range dirEntries {
		if de.IsDir() && de.Name() != cfg.Project.SourceLocale {
			locales = append(locales, de.Name())
		}
	}
	sort.Strings(locales)

	fmt.Fprintf(os.Stderr, "%s\n", heading(i18n.T("Translation Coverage")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "\n%-10s %-12s %-10s %s\n", "Locale", "Translated", "Stale", "Progress")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))

	for _, locale := range locales {
		f, err := ftl.ParseFile(cfg.TranslationPath(locale))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-10s %-12s %-10s %s\n", locale, "missing", "-", "-")
			continue
		}
		translated, stale := coverage(ids, f.IDs())
		fmt.Fprintf(os.Stderr, "%-10s %-12d %-10d %s\n", locale, translated, stale,
			progressBar(translated*100/len(ids), 20))
	}

	fmt.Fprintln(os.Stderr, strings.Repeat("─", 52))
	fmt.Fprintf(os.Stderr, "Total strings: %d\n\n", len(ids))
}

// coverage counts how many of ids are translated and how many translated
// ids no longer exist.
func coverage(ids, translated []string) (int, int) {
	ch := merge.Diff(translated, ids)
	return len(ch.Kept), len(ch.Removed)
}

// progressBar renders percent as a coloured bar of the given width.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100

	c := color.New(color.FgRed)
	switch {
	case percent >= 100:
		c = color.New(color.FgGreen)
	case percent >= 50:
		c = color.New(color.FgYellow)
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return c.Sprint(bar) + fmt.Sprintf(" %3d%%", percent)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cmsl10n version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:    %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:     %s\n", date)
		},
	}

	return cmd
}
