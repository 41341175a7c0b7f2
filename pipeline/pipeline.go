// Package pipeline ties the CMS source, the extractor, the resource
// serializer and the pull request reconciler together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/minios-linux/cmsl10n/cms"
	"github.com/minios-linux/cmsl10n/extract"
	"github.com/minios-linux/cmsl10n/ftl"
	"github.com/minios-linux/cmsl10n/logging"
	"github.com/minios-linux/cmsl10n/merge"
	"github.com/minios-linux/cmsl10n/prsync"
)

// ErrNoEntries is returned when the CMS yields nothing localizable. An
// empty resource file is never pushed.
var ErrNoEntries = errors.New("no localizable entries")

// Syncer is the part of prsync.Reconciler the pipeline uses.
type Syncer interface {
	Sync(ctx context.Context, content []byte, meta prsync.Metadata) (*prsync.Result, error)
}

// Pipeline runs one CMS-to-repository synchronisation.
type Pipeline struct {
	Source cms.Source
	Syncer Syncer
	Logger *zap.Logger
	// Now stamps generated files; defaults to time.Now.
	Now func() time.Time
}

// Build is the outcome of fetching and serializing the CMS content.
type Build struct {
	Entries     []ftl.Entry
	Content     []byte
	Localizable int
	Skipped     int
}

func (p *Pipeline) logger(ctx context.Context) *zap.Logger {
	l := p.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return logging.FromContext(ctx, l)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Build fetches every entry and renders the resource file.
func (p *Pipeline) Build(ctx context.Context) (*Build, error) {
	entries, err := p.Source.FetchEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching CMS entries: %w", err)
	}
	res := extract.Resources(entries)
	p.logger(ctx).Debug("extracted resources",
		zap.Int("entries", len(entries)),
		zap.Int("strings", len(res.Entries)),
		zap.Int("skipped", res.Skipped))
	return &Build{
		Entries:     res.Entries,
		Content:     ftl.Marshal(res.Entries, p.now()),
		Localizable: res.Localizable,
		Skipped:     res.Skipped,
	}, nil
}

// Run builds the resource file and hands it to the reconciler. meta's
// EntryCount is filled in from the build.
func (p *Pipeline) Run(ctx context.Context, meta prsync.Metadata) (*prsync.Result, error) {
	if logging.RunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, logging.NewRunID())
	}
	log := p.logger(ctx).With(zap.String("event", meta.Event))
	start := time.Now()

	b, err := p.Build(ctx)
	if err != nil {
		log.Error("build failed", zap.Error(err))
		return nil, err
	}
	if len(b.Entries) == 0 {
		log.Warn("nothing to sync")
		return nil, ErrNoEntries
	}
	meta.EntryCount = b.Localizable

	res, err := p.Syncer.Sync(ctx, b.Content, meta)
	if err != nil {
		log.Error("sync failed", zap.Error(err))
		return nil, fmt.Errorf("syncing resource file: %w", err)
	}
	log.Info("sync finished",
		zap.String("action", string(res.Action)),
		zap.String("branch", res.Branch),
		zap.Int("strings", len(b.Entries)),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// Localize returns the CMS entry l10nID with the translated strings of
// resource laid over it.
func (p *Pipeline) Localize(ctx context.Context, l10nID string, resource []byte) (map[string]any, error) {
	base, err := p.Source.FetchEntry(ctx, l10nID)
	if err != nil {
		return nil, fmt.Errorf("fetching entry %s: %w", l10nID, err)
	}
	return merge.Merge(base.Map(), ftl.Localized(resource, l10nID)), nil
}
