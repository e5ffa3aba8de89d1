// Package pipeline runs the two resumable stages: enrich and classify every
// speaker, then draft emails for the eligible ones. Each stage works through
// fixed-size chunks and overwrites its checkpoint after every chunk, so an
// interrupted run loses at most the chunk in flight.
package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/checkpoint"
	"github.com/ppiankov/speakerpipe/internal/extract"
	"github.com/ppiankov/speakerpipe/internal/model"
)

// ErrStage1Missing is returned by Generate when classification output does
// not exist yet.
var ErrStage1Missing = eris.New("stage 1 output not found: run classify first")

// Output file names inside the output directory
const (
	ClassifyCheckpointFile = "checkpoint_classify.json"
	GenerateCheckpointFile = "checkpoint_emails.json"
	ClassifiedFile         = "speakers_classified.json"
	WithEmailsFile         = "speakers_with_emails.json"
)

// Enricher attaches search context to a batch of speakers.
type Enricher interface {
	EnrichBatch(ctx context.Context, speakers []model.Speaker) ([]model.Speaker, error)
}

// Classifier assigns a category. It never fails; errors become the degraded
// classification.
type Classifier interface {
	Classify(ctx context.Context, s model.Speaker) model.Classification
}

// Generator drafts an email. It never fails; errors become an empty draft.
type Generator interface {
	Generate(ctx context.Context, s model.Speaker) model.EmailDraft
}

// Stores holds the documents the runner reads and writes.
type Stores struct {
	ClassifyCheckpoint checkpoint.Store[checkpoint.ClassifyState]
	GenerateCheckpoint checkpoint.Store[checkpoint.GenerateState]
	Classified         checkpoint.Store[[]model.Speaker]
	WithEmails         checkpoint.Store[[]model.Speaker]
}

// FileStores returns the JSON file stores under outDir.
func FileStores(outDir string) Stores {
	return Stores{
		ClassifyCheckpoint: checkpoint.NewFileStore[checkpoint.ClassifyState](filepath.Join(outDir, ClassifyCheckpointFile)),
		GenerateCheckpoint: checkpoint.NewFileStore[checkpoint.GenerateState](filepath.Join(outDir, GenerateCheckpointFile)),
		Classified:         checkpoint.NewFileStore[[]model.Speaker](filepath.Join(outDir, ClassifiedFile)),
		WithEmails:         checkpoint.NewFileStore[[]model.Speaker](filepath.Join(outDir, WithEmailsFile)),
	}
}

// MemoryStores returns in-memory stores, used by tests.
func MemoryStores() Stores {
	return Stores{
		ClassifyCheckpoint: checkpoint.NewMemoryStore[checkpoint.ClassifyState](),
		GenerateCheckpoint: checkpoint.NewMemoryStore[checkpoint.GenerateState](),
		Classified:         checkpoint.NewMemoryStore[[]model.Speaker](),
		WithEmails:         checkpoint.NewMemoryStore[[]model.Speaker](),
	}
}

// Options tunes chunking and concurrency.
type Options struct {
	ClassifyInterval    int
	GenerateInterval    int
	ClassifyConcurrency int
	GenerateConcurrency int
	Eligible            map[model.Category]bool
}

// DefaultOptions mirrors the built-in configuration.
func DefaultOptions() Options {
	return Options{
		ClassifyInterval:    10,
		GenerateInterval:    20,
		ClassifyConcurrency: 10,
		GenerateConcurrency: 15,
		Eligible:            map[model.Category]bool{model.CategoryBuilder: true, model.CategoryOwner: true},
	}
}

// OptionsFromConfig builds Options from the application config.
func OptionsFromConfig(cfg model.PipelineConfig) Options {
	return Options{
		ClassifyInterval:    cfg.ClassifyCheckpointInterval,
		GenerateInterval:    cfg.GenerateCheckpointInterval,
		ClassifyConcurrency: cfg.ClassifyConcurrency,
		GenerateConcurrency: cfg.GenerateConcurrency,
		Eligible:            cfg.EligibleSet(),
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.ClassifyInterval <= 0 {
		o.ClassifyInterval = d.ClassifyInterval
	}
	if o.GenerateInterval <= 0 {
		o.GenerateInterval = d.GenerateInterval
	}
	if o.ClassifyConcurrency <= 0 {
		o.ClassifyConcurrency = d.ClassifyConcurrency
	}
	if o.GenerateConcurrency <= 0 {
		o.GenerateConcurrency = d.GenerateConcurrency
	}
	if o.Eligible == nil {
		o.Eligible = d.Eligible
	}
	return o
}

// Runner orchestrates both stages.
type Runner struct {
	source     extract.Source
	enricher   Enricher
	classifier Classifier
	generator  Generator
	stores     Stores
	opts       Options
	reporter   Reporter
	logger     *zap.Logger
	now        func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithReporter sets the progress sink.
func WithReporter(r Reporter) RunnerOption {
	return func(rn *Runner) { rn.reporter = r }
}

// WithLogger overrides the global logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(rn *Runner) { rn.logger = l }
}

// NewRunner wires the collaborators together.
func NewRunner(source extract.Source, enricher Enricher, classifier Classifier, generator Generator, stores Stores, opts Options, ropts ...RunnerOption) *Runner {
	r := &Runner{
		source:     source,
		enricher:   enricher,
		classifier: classifier,
		generator:  generator,
		stores:     stores,
		opts:       opts.normalized(),
		logger:     zap.L(),
		now:        time.Now,
	}
	for _, o := range ropts {
		o(r)
	}
	if r.reporter == nil {
		r.reporter = LogReporter{Logger: r.logger}
	}
	return r
}

func newRunID() string {
	return uuid.NewString()
}

// uniqueByIdentity keeps the first record of each identity, in input order.
func uniqueByIdentity(speakers []model.Speaker) []model.Speaker {
	seen := make(map[string]bool, len(speakers))
	out := make([]model.Speaker, 0, len(speakers))
	for _, s := range speakers {
		k := s.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func draftKeys(emails map[string]model.EmailDraft) []string {
	keys := make([]string, 0, len(emails))
	for k := range emails {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
