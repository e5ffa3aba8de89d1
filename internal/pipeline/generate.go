package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/checkpoint"
	"github.com/ppiankov/speakerpipe/internal/model"
	"github.com/ppiankov/speakerpipe/internal/worker"
)

// Generate runs stage 2 over the stage 1 output. Only eligible records reach
// the generator; every other record keeps an empty subject and body. The
// returned slice holds every record from stage 1.
func (r *Runner) Generate(ctx context.Context, resume bool) ([]model.Speaker, error) {
	runID := newRunID()
	log := r.logger.With(zap.String("stage", "generate"), zap.String("run_id", runID))
	start := r.now()

	all, ok, err := r.stores.Classified.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load classified output")
	}
	if !ok {
		return nil, ErrStage1Missing
	}

	// Index every record by identity so one draft lands on all duplicates.
	index := make(map[string][]int, len(all))
	for i := range all {
		if !r.opts.Eligible[all[i].Category] {
			all[i].ApplyEmail(model.EmailDraft{})
		}
		index[all[i].Key()] = append(index[all[i].Key()], i)
	}

	var resumed checkpoint.GenerateState
	if resume {
		state, ok, err := r.stores.GenerateCheckpoint.Load(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load generate checkpoint")
		}
		if ok {
			resumed = state
			log.Info("resuming from checkpoint", zap.Int("attempted", len(state.Emails)))
		}
	}
	emails := resumed.Emails
	if emails == nil {
		emails = make(map[string]model.EmailDraft)
	}
	processed := resumed.ProcessedSet()
	for key, draft := range emails {
		for _, i := range index[key] {
			if r.opts.Eligible[all[i].Category] {
				all[i].ApplyEmail(draft)
			}
		}
	}

	var eligible []model.Speaker
	for _, s := range all {
		if r.opts.Eligible[s.Category] {
			eligible = append(eligible, s)
		}
	}
	eligible = uniqueByIdentity(eligible)

	var todo []model.Speaker
	for _, s := range eligible {
		if !processed[s.Key()] {
			todo = append(todo, s)
		}
	}

	log.Info("classified speakers loaded",
		zap.Int("total", len(all)),
		zap.Int("eligible", len(eligible)),
		zap.Int("to_generate", len(todo)),
	)

	if len(todo) == 0 {
		if len(eligible) == 0 {
			log.Warn("no eligible speakers to email")
		} else {
			log.Info("all emails already generated")
		}
		if err := r.stores.WithEmails.Save(ctx, all); err != nil {
			return nil, eris.Wrap(err, "write email output")
		}
		return all, nil
	}

	done := 0
	for i, chunk := range worker.Chunk(todo, r.opts.GenerateInterval) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		drafts := worker.ForkJoin(ctx, chunk, r.opts.GenerateConcurrency,
			func(ctx context.Context, s model.Speaker) model.EmailDraft {
				return r.generator.Generate(ctx, s)
			})

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for j, s := range chunk {
			key := s.Key()
			emails[key] = drafts[j]
			for _, idx := range index[key] {
				all[idx].ApplyEmail(drafts[j])
			}
		}
		done += len(chunk)

		state := checkpoint.GenerateState{
			Emails:    emails,
			Processed: draftKeys(emails),
			RunID:     runID,
			Timestamp: checkpoint.Stamp(r.now()),
		}
		if err := r.stores.GenerateCheckpoint.Save(ctx, state); err != nil {
			return nil, eris.Wrap(err, "write generate checkpoint")
		}

		r.reporter.Progress(newProgress("generate", runID, i+1, len(emails), len(eligible), done, r.now().Sub(start), nil))
	}

	if err := r.stores.WithEmails.Save(ctx, all); err != nil {
		return nil, eris.Wrap(err, "write email output")
	}

	generated := 0
	tally := model.NewTally()
	for _, s := range all {
		if s.EmailSubject != "" {
			generated++
			tally.Add(s.Category)
		}
	}

	log.Info("email generation complete",
		zap.Int("generated", generated),
		zap.Int("skipped", len(all)-generated),
	)
	r.reporter.Summary(model.StageSummary{
		Stage:     "generate",
		RunID:     runID,
		Total:     len(all),
		Processed: done,
		Elapsed:   r.now().Sub(start),
		Tally:     tally,
	})
	return all, nil
}
