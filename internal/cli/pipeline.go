package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/speakerpipe/internal/export"
	"github.com/ppiankov/speakerpipe/internal/pipeline"
)

var (
	classifyFlags stageFlags
	generateFlags stageFlags
	runFlags      stageFlags
	runFormat     string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Stage 1: enrich and classify every speaker",
	Long: `Parse the scraped speaker pages, look up each company through the web
search API (cached permanently), and classify it with the configured LLM.

A checkpoint is written after every chunk. With --resume, speakers already
in the checkpoint are skipped.

Example:
  speakerpipe classify
  speakerpipe classify --resume --concurrency 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		runner, err := newRunner(ctx, cfg, classifyFlags)
		if err != nil {
			return err
		}

		banner("Stage 1: Classify", classifyFlags.resume)
		if _, err := runner.Classify(ctx, classifyFlags.resume); err != nil {
			return eris.Wrap(err, "classify")
		}
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Stage 2: draft emails for eligible speakers",
	Long: `Read the stage 1 output and draft a personalized email for every speaker
whose category is eligible (Builder and Owner by default). Other speakers
keep empty email fields.

Example:
  speakerpipe generate
  speakerpipe generate --resume`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if !pipeline.FileStores(cfg.Paths.OutDir).Classified.Exists() {
			return stageError("generate", pipeline.ErrStage1Missing)
		}

		runner, err := newRunner(ctx, cfg, generateFlags)
		if err != nil {
			return err
		}

		banner("Stage 2: Generate emails", generateFlags.resume)
		_, err = runner.Generate(ctx, generateFlags.resume)
		return stageError("generate", err)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run classify, generate and export in sequence",
	Long: `Run all stages. Without --resume every stage starts from scratch.

Example:
  speakerpipe run
  speakerpipe run --resume --format xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(runFormat)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		runner, err := newRunner(ctx, cfg, runFlags)
		if err != nil {
			return err
		}

		banner("Stage 1: Classify", runFlags.resume)
		if _, err := runner.Classify(ctx, runFlags.resume); err != nil {
			return eris.Wrap(err, "classify")
		}

		banner("Stage 2: Generate emails", runFlags.resume)
		if _, err := runner.Generate(ctx, runFlags.resume); err != nil {
			return stageError("generate", err)
		}

		path := filepath.Join(cfg.Paths.OutDir, export.DefaultFileName(format))
		return runExport(ctx, format, path)
	},
}

func init() {
	for _, c := range []struct {
		cmd   *cobra.Command
		flags *stageFlags
	}{
		{classifyCmd, &classifyFlags},
		{generateCmd, &generateFlags},
		{runCmd, &runFlags},
	} {
		c.cmd.Flags().BoolVar(&c.flags.resume, "resume", false, "resume from the last checkpoint")
		c.cmd.Flags().IntVar(&c.flags.concurrency, "concurrency", 0, "max concurrent LLM calls (default from config)")
		rootCmd.AddCommand(c.cmd)
	}

	runCmd.Flags().StringVar(&runFormat, "format", string(export.FormatCSV), "export format (csv, xlsx)")
}

func banner(title string, resume bool) {
	line := strings.Repeat("=", 70)
	fmt.Fprintln(os.Stderr, line)
	fmt.Fprintf(os.Stderr, "  %s\n", title)
	fmt.Fprintf(os.Stderr, "  Pages:  %s\n", cfg.Paths.PagesDir)
	fmt.Fprintf(os.Stderr, "  Output: %s\n", cfg.Paths.OutDir)
	fmt.Fprintf(os.Stderr, "  LLM:    %s/%s\n", cfg.LLM.Provider, displayModel(cfg.LLM.Model))
	fmt.Fprintf(os.Stderr, "  Resume: %v\n", resume)
	fmt.Fprintln(os.Stderr, line)
}

func displayModel(m string) string {
	if m == "" {
		return "(provider default)"
	}
	return m
}

// stageError turns a missing stage 1 output into a user-facing message.
func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pipeline.ErrStage1Missing) {
		fmt.Fprintf(os.Stderr, "❌ %s not found in %s\n", pipeline.ClassifiedFile, cfg.Paths.OutDir)
		fmt.Fprintln(os.Stderr, "   Run 'speakerpipe classify' first.")
		return err
	}
	return eris.Wrap(err, stage)
}
