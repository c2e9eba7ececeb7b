// Package publish runs the feed pipeline: list eligible entries, render
// their bodies, mark them published and write the feed document.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/eligibility"
	"github.com/starford/pagefeed/internal/feed"
	"github.com/starford/pagefeed/internal/ledger"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/render"
	"github.com/starford/pagefeed/internal/source"
)

// CommitMode selects when entries are marked published.
type CommitMode string

const (
	// CommitImmediate marks each entry as soon as its body is rendered.
	// An abort later in the run leaves those entries published but not
	// delivered.
	CommitImmediate CommitMode = "immediate"
	// CommitDeferred marks entries only after the feed was written.
	CommitDeferred CommitMode = "deferred"
)

// Recorder keeps an audit trail of runs. Failures are logged, never fatal.
type Recorder interface {
	StartRun(ctx context.Context, r ledger.Run) error
	FinishRun(ctx context.Context, r ledger.Run) error
	RecordPublication(ctx context.Context, p ledger.Publication) error
}

// Notifier is told about every finished run.
type Notifier interface {
	NotifyRun(r ledger.Run)
}

// Result describes one pipeline pass.
type Result struct {
	RunID     string
	Document  models.FeedDocument
	Committed []string
	Skipped   int

	included []string
}

// Deps are the collaborators of a Publisher. Source, Filter and Writer are
// required; the rest have defaults.
type Deps struct {
	Source    source.Provider
	Filter    eligibility.Filter
	Writer    feed.Writer
	Registry  *render.Registry
	Committer Committer
	Assembler *feed.Assembler
	Channel   models.ChannelMeta
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithCommitMode sets the commit mode. Empty means CommitImmediate.
func WithCommitMode(m CommitMode) Option {
	return func(p *Publisher) {
		if m != "" {
			p.mode = m
		}
	}
}

// WithRecorder attaches a run ledger.
func WithRecorder(r Recorder) Option {
	return func(p *Publisher) { p.recorder = r }
}

// WithNotifier attaches a run listener.
func WithNotifier(n Notifier) Option {
	return func(p *Publisher) { p.notifier = n }
}

// WithClock overrides time.Now for run bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// Publisher runs the pipeline. Runs are serialized: a Run started while
// another is active fails with apperr.ErrRunInProgress.
type Publisher struct {
	mu sync.Mutex

	src       source.Provider
	filter    eligibility.Filter
	writer    feed.Writer
	registry  *render.Registry
	committer Committer
	assembler *feed.Assembler
	channel   models.ChannelMeta

	mode     CommitMode
	recorder Recorder
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Publisher.
func New(deps Deps, opts ...Option) (*Publisher, error) {
	if deps.Source == nil {
		return nil, errors.New("publish: source is required")
	}
	if deps.Filter == nil {
		return nil, errors.New("publish: filter is required")
	}
	if deps.Writer == nil {
		return nil, errors.New("publish: writer is required")
	}

	p := &Publisher{
		src:       deps.Source,
		filter:    deps.Filter,
		writer:    deps.Writer,
		registry:  deps.Registry,
		committer: deps.Committer,
		assembler: deps.Assembler,
		channel:   deps.Channel,
		mode:      CommitImmediate,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}

	switch p.mode {
	case CommitImmediate, CommitDeferred:
	default:
		return nil, fmt.Errorf("publish: unknown commit mode %q", p.mode)
	}
	if p.registry == nil {
		p.registry = render.NewRegistry(render.WithLogger(p.logger))
	}
	if p.committer == nil {
		p.committer = NewSourceCommitter(p.src, p.now, nil)
	}
	if p.assembler == nil {
		p.assembler = feed.NewAssembler("", p.now)
	}
	return p, nil
}

// Mode returns the configured commit mode.
func (p *Publisher) Mode() CommitMode {
	return p.mode
}

// Run executes one full pass: eligible entries are rendered, committed and
// written as a new feed document. Run is synchronous.
//
// A failure before any commit leaves no trace. A failure after at least one
// commit returns *apperr.PartialCommitError naming the committed entries.
func (p *Publisher) Run(ctx context.Context) (Result, error) {
	if !p.mu.TryLock() {
		return Result{}, apperr.ErrRunInProgress
	}
	defer p.mu.Unlock()

	started := p.now()
	run := ledger.Run{
		ID:        uuid.NewString(),
		StartedAt: started.UTC(),
		Status:    ledger.RunRunning,
		Mode:      string(p.filter.Mode()),
	}
	if p.recorder != nil {
		if err := p.recorder.StartRun(ctx, run); err != nil {
			p.logger.Warn("publish: ledger start run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
		}
	}

	res, err := p.collect(ctx, run.ID, true)
	if err == nil {
		err = p.deliver(ctx, &res)
	}

	finished := p.now().UTC()
	run.FinishedAt = &finished
	run.Items = len(res.Document.Items)
	run.Committed = len(res.Committed)
	if err != nil {
		run.Status = ledger.RunFailed
		run.Error = err.Error()
		p.logger.Error("publish: run failed",
			slog.String("run_id", run.ID),
			slog.Int("committed", run.Committed),
			slog.String("error", err.Error()),
		)
	} else {
		run.Status = ledger.RunSucceeded
		p.logger.Info("publish: run complete",
			slog.String("run_id", run.ID),
			slog.Int("items", run.Items),
			slog.Int("committed", run.Committed),
			slog.Int("skipped", res.Skipped),
			slog.Duration("took", finished.Sub(started.UTC())),
		)
	}

	if p.recorder != nil {
		// The run context may already be cancelled; the outcome is still worth keeping.
		if rerr := p.recorder.FinishRun(context.WithoutCancel(ctx), run); rerr != nil {
			p.logger.Warn("publish: ledger finish run", slog.String("run_id", run.ID), slog.String("error", rerr.Error()))
		}
	}
	if p.notifier != nil {
		p.notifier.NotifyRun(run)
	}
	return res, err
}

// Preview builds the document the next Run would produce without marking
// anything published or writing output.
func (p *Publisher) Preview(ctx context.Context) (Result, error) {
	return p.collect(ctx, "", false)
}

// Eligible lists the entries the next Run would include.
func (p *Publisher) Eligible(ctx context.Context) ([]models.Entry, error) {
	entries, err := p.src.ListEntries(ctx, p.filter.Query())
	if err != nil {
		return nil, fmt.Errorf("publish: list entries: %w", apperr.Source("list_entries", "", err))
	}
	out := entries[:0:0]
	for _, e := range entries {
		if p.filter.Eligible(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// RenderEntry fetches and flattens a single entry body.
func (p *Publisher) RenderEntry(ctx context.Context, entryID string) (string, error) {
	nodes, err := p.src.FetchBlocks(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("publish: fetch blocks: %w", apperr.Source("fetch_blocks", entryID, err))
	}
	return p.registry.Flatten(nodes), nil
}

// collect walks the eligible entries in retrieval order. With commit set
// and immediate mode, each entry is committed right after rendering.
func (p *Publisher) collect(ctx context.Context, runID string, commit bool) (Result, error) {
	res := Result{RunID: runID}

	entries, err := p.src.ListEntries(ctx, p.filter.Query())
	if err != nil {
		return res, fmt.Errorf("publish: list entries: %w", apperr.Source("list_entries", "", err))
	}

	items := make([]models.FeedItem, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, partial(res, fmt.Errorf("publish: %w", err))
		}
		if !p.filter.Eligible(e) {
			res.Skipped++
			continue
		}

		nodes, err := p.src.FetchBlocks(ctx, e.ID)
		if err != nil {
			return res, partial(res, fmt.Errorf("publish: fetch blocks: %w", apperr.Source("fetch_blocks", e.ID, err)))
		}
		body := p.registry.Flatten(nodes)

		if commit && p.mode == CommitImmediate {
			if err := p.committer.Commit(ctx, e.ID); err != nil {
				return res, partial(res, err)
			}
			res.Committed = append(res.Committed, e.ID)
		}

		item := p.assembler.Assemble(e, body)
		items = append(items, item)
		res.included = append(res.included, e.ID)
		p.logger.Debug("publish: entry rendered", slog.String("entry_id", e.ID), slog.Int("nodes", len(nodes)))

		if commit && p.mode == CommitImmediate {
			p.record(ctx, runID, e.ID, item)
		}
	}

	res.Document = feed.Build(p.channel, items)
	return res, nil
}

// deliver writes the document and, in deferred mode, commits afterwards.
func (p *Publisher) deliver(ctx context.Context, res *Result) error {
	if err := p.writer.WriteFeed(ctx, res.Document); err != nil {
		return partial(*res, fmt.Errorf("publish: write feed: %w", err))
	}
	if p.mode != CommitDeferred {
		return nil
	}

	for i, id := range res.included {
		if err := p.committer.Commit(ctx, id); err != nil {
			return partial(*res, err)
		}
		res.Committed = append(res.Committed, id)
		p.record(ctx, res.RunID, id, res.Document.Items[i])
	}
	return nil
}

func (p *Publisher) record(ctx context.Context, runID, entryID string, item models.FeedItem) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.RecordPublication(ctx, ledger.Publication{
		EntryID:     entryID,
		Title:       item.Title,
		Link:        item.Link,
		GUID:        item.GUID,
		RunID:       runID,
		PublishedAt: item.PublishedAt,
	})
	if err != nil {
		p.logger.Warn("publish: ledger record publication", slog.String("entry_id", entryID), slog.String("error", err.Error()))
	}
}

// partial upgrades err to a PartialCommitError once anything was committed.
func partial(res Result, err error) error {
	if len(res.Committed) == 0 {
		return err
	}
	return &apperr.PartialCommitError{
		Committed: append([]string(nil), res.Committed...),
		Err:       err,
	}
}
