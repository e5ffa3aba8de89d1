package cli

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/cache"
	"github.com/ppiankov/speakerpipe/internal/classify"
	"github.com/ppiankov/speakerpipe/internal/email"
	"github.com/ppiankov/speakerpipe/internal/enrich"
	"github.com/ppiankov/speakerpipe/internal/extract"
	"github.com/ppiankov/speakerpipe/internal/llm"
	"github.com/ppiankov/speakerpipe/internal/model"
	"github.com/ppiankov/speakerpipe/internal/pipeline"
	"github.com/ppiankov/speakerpipe/internal/search"
	"github.com/ppiankov/speakerpipe/internal/util"
	"github.com/ppiankov/speakerpipe/internal/worker"
)

// stageFlags are shared by run, classify and generate.
type stageFlags struct {
	resume      bool
	concurrency int
}

func newProvider(ctx context.Context, c *model.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(ctx, llm.ConfigFromModel(c.LLM, c.Fetch))
	if err != nil {
		return nil, eris.Wrap(err, "create LLM provider")
	}
	limiter := worker.NewLimiter(c.Rate.LLMRequestsPerSecond, c.Rate.LLMBurst)
	return llm.WithLimiter(p, limiter), nil
}

func newEnricher(c *model.Config) *enrich.Enricher {
	client := search.NewClient(c.Search.APIKey,
		search.WithBaseURL(c.Search.BaseURL),
		search.WithDepth(c.Search.Depth),
		search.WithMaxResults(c.Search.MaxResults),
		search.WithHTTPClient(&http.Client{
			Timeout: time.Duration(c.Search.Timeout) * time.Second,
			Transport: &http.Transport{
				Proxy:               util.NewProxyFunc(c.Fetch.HTTPProxy, c.Fetch.HTTPSProxy),
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}),
	)

	return enrich.New(client,
		enrich.WithCache(cache.NewPermanent(c.Paths.CacheDir)),
		enrich.WithLimiter(worker.NewLimiter(c.Rate.SearchRequestsPerSecond, c.Rate.SearchBurst)),
		enrich.WithBatching(c.Enrichment.BatchSize, c.Enrichment.Pause),
	)
}

// newRunner wires every collaborator from the loaded config. The provider is
// built once and shared by the classifier and the generator.
func newRunner(ctx context.Context, c *model.Config, flags stageFlags) (*pipeline.Runner, error) {
	provider, err := newProvider(ctx, c)
	if err != nil {
		return nil, err
	}

	opts := pipeline.OptionsFromConfig(c.Pipeline)
	if flags.concurrency > 0 {
		opts.ClassifyConcurrency = flags.concurrency
		opts.GenerateConcurrency = flags.concurrency
	}

	logger := zap.L()
	return pipeline.NewRunner(
		extract.NewSpeakerParser(c.Paths.PagesDir),
		newEnricher(c),
		classify.New(provider, c.LLM.Model),
		email.New(provider, c.LLM.Model, opts.Eligible),
		pipeline.FileStores(c.Paths.OutDir),
		opts,
		pipeline.WithLogger(logger),
		pipeline.WithReporter(pipeline.TextReporter{W: os.Stderr, Log: &pipeline.LogReporter{Logger: logger}}),
	), nil
}
