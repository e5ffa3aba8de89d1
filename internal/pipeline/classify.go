package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/checkpoint"
	"github.com/ppiankov/speakerpipe/internal/model"
	"github.com/ppiankov/speakerpipe/internal/worker"
)

// Classify runs stage 1. With resume, identities already present in the
// checkpoint's results are skipped. The returned slice holds every
// classified record, resumed ones first.
func (r *Runner) Classify(ctx context.Context, resume bool) ([]model.Speaker, error) {
	runID := newRunID()
	log := r.logger.With(zap.String("stage", "classify"), zap.String("run_id", runID))
	start := r.now()

	var results []model.Speaker
	processed := make(map[string]bool)

	if resume {
		state, ok, err := r.stores.ClassifyCheckpoint.Load(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load classify checkpoint")
		}
		if ok {
			results = state.Results
			processed = state.ProcessedSet()
			log.Info("resuming from checkpoint", zap.Int("classified", len(results)))
		}
	}

	all, err := r.source.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load speakers")
	}

	var todo []model.Speaker
	for _, s := range uniqueByIdentity(all) {
		if !processed[s.Key()] {
			todo = append(todo, s)
		}
	}

	total := len(processed) + len(todo)
	log.Info("speakers loaded",
		zap.Int("total", len(all)),
		zap.Int("to_process", len(todo)),
		zap.Int("already_done", len(processed)),
	)

	if len(todo) == 0 {
		log.Info("all speakers already classified")
		if err := r.stores.Classified.Save(ctx, results); err != nil {
			return nil, eris.Wrap(err, "write classified output")
		}
		return results, nil
	}

	tally := model.NewTally()
	for _, s := range results {
		tally.Add(s.Category)
	}

	done := 0
	for i, chunk := range worker.Chunk(todo, r.opts.ClassifyInterval) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		enriched, err := r.enricher.EnrichBatch(ctx, chunk)
		if err != nil {
			return nil, eris.Wrap(err, "enrich chunk")
		}

		classified := worker.ForkJoin(ctx, enriched, r.opts.ClassifyConcurrency,
			func(ctx context.Context, s model.Speaker) model.Speaker {
				s.ApplyClassification(r.classifier.Classify(ctx, s))
				return s
			})

		// Results produced under a cancelled context are degraded by the
		// cancellation itself and must not be persisted.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, s := range classified {
			results = append(results, s)
			processed[s.Key()] = true
			tally.Add(s.Category)
		}
		done += len(classified)

		state := checkpoint.ClassifyState{
			Results:   results,
			Processed: sortedKeys(processed),
			RunID:     runID,
			Timestamp: checkpoint.Stamp(r.now()),
		}
		if err := r.stores.ClassifyCheckpoint.Save(ctx, state); err != nil {
			return nil, eris.Wrap(err, "write classify checkpoint")
		}

		r.reporter.Progress(newProgress("classify", runID, i+1, len(results), total, done, r.now().Sub(start), tally))
	}

	if err := r.stores.Classified.Save(ctx, results); err != nil {
		return nil, eris.Wrap(err, "write classified output")
	}

	r.reporter.Summary(model.StageSummary{
		Stage:     "classify",
		RunID:     runID,
		Total:     len(results),
		Processed: done,
		Elapsed:   r.now().Sub(start),
		Tally:     tally,
	})
	return results, nil
}
