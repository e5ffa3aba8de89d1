package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/model"
)

// Progress is reported after every durable chunk.
type Progress struct {
	Stage   string
	RunID   string
	Chunk   int
	Done    int // Records durable so far, including resumed ones
	Total   int
	Rate    float64 // Records per second during this run
	ETA     time.Duration
	Elapsed time.Duration
	Tally   model.Tally // Nil when the stage does not classify
}

func newProgress(stage, runID string, chunk, done, total, doneThisRun int, elapsed time.Duration, tally model.Tally) Progress {
	p := Progress{
		Stage:   stage,
		RunID:   runID,
		Chunk:   chunk,
		Done:    done,
		Total:   total,
		Elapsed: elapsed,
		Tally:   tally,
	}
	if elapsed > 0 {
		p.Rate = float64(doneThisRun) / elapsed.Seconds()
	}
	if p.Rate > 0 && total > done {
		p.ETA = time.Duration(float64(total-done) / p.Rate * float64(time.Second))
	}
	return p
}

// Percent returns completion as a whole percentage.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return p.Done * 100 / p.Total
}

// Reporter receives progress and the final stage summary.
type Reporter interface {
	Progress(p Progress)
	Summary(s model.StageSummary)
}

// LogReporter writes structured log lines.
type LogReporter struct {
	Logger *zap.Logger
}

func (r LogReporter) Progress(p Progress) {
	fields := []zap.Field{
		zap.String("stage", p.Stage),
		zap.String("run_id", p.RunID),
		zap.Int("chunk", p.Chunk),
		zap.Int("done", p.Done),
		zap.Int("total", p.Total),
		zap.Float64("rate_per_sec", p.Rate),
		zap.Duration("eta", p.ETA),
	}
	for _, c := range p.Tally.Sorted() {
		fields = append(fields, zap.Int(strings.ToLower(string(c)), p.Tally[c]))
	}
	r.Logger.Info("checkpoint saved", fields...)
}

func (r LogReporter) Summary(s model.StageSummary) {
	fields := []zap.Field{
		zap.String("stage", s.Stage),
		zap.String("run_id", s.RunID),
		zap.Int("total", s.Total),
		zap.Int("processed", s.Processed),
		zap.Duration("elapsed", s.Elapsed),
		zap.Float64("rate_per_sec", s.Throughput()),
	}
	for _, c := range s.Tally.Sorted() {
		fields = append(fields, zap.Int(strings.ToLower(string(c)), s.Tally[c]))
	}
	r.Logger.Info("stage complete", fields...)
}

// TextReporter prints human-readable progress, and also logs through Log
// when set.
type TextReporter struct {
	W   io.Writer
	Log *LogReporter
}

func (r TextReporter) Progress(p Progress) {
	if r.Log != nil {
		r.Log.Progress(p)
	}
	fmt.Fprintf(r.W, "\n📊 Progress: %d/%d (%d%%)\n", p.Done, p.Total, p.Percent())
	fmt.Fprintf(r.W, "   Speed: %.1f/sec | ETA: %.1f minutes\n", p.Rate, p.ETA.Minutes())
	if p.Tally != nil {
		fmt.Fprintf(r.W, "   Builders: %d | Owners: %d | Customers: %d\n",
			p.Tally[model.CategoryBuilder], p.Tally[model.CategoryOwner], p.Tally[model.CategoryCustomer])
	}
	fmt.Fprintln(r.W, "   💾 Checkpoint saved")
}

func (r TextReporter) Summary(s model.StageSummary) {
	if r.Log != nil {
		r.Log.Summary(s)
	}
	line := strings.Repeat("=", 70)
	fmt.Fprintln(r.W, "\n"+line)
	fmt.Fprintf(r.W, "✅ %s COMPLETE\n", strings.ToUpper(s.Stage))
	fmt.Fprintf(r.W, "   Time: %.1f seconds (%.1f minutes)\n", s.Elapsed.Seconds(), s.Elapsed.Minutes())
	fmt.Fprintf(r.W, "   Processed this run: %d of %d (%.2f/sec)\n", s.Processed, s.Total, s.Throughput())
	if len(s.Tally) > 0 {
		fmt.Fprintln(r.W, "\n📊 Categories:")
		for _, c := range s.Tally.Sorted() {
			fmt.Fprintf(r.W, "   %-12s %d\n", c+":", s.Tally[c])
		}
	}
	fmt.Fprintln(r.W, line)
}
