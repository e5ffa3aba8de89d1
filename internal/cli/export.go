package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/speakerpipe/internal/checkpoint"
	"github.com/ppiankov/speakerpipe/internal/export"
	"github.com/ppiankov/speakerpipe/internal/model"
	"github.com/ppiankov/speakerpipe/internal/pipeline"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Stage 3: write the sorted outreach table",
	Long: `Export speakers to CSV or XLSX, sorted by category priority
(Builder, Owner, Customer, Partner, Competitor, Other), then company and name.

Reads the stage 2 output, or the stage 1 output when stage 2 has not run.

Example:
  speakerpipe export
  speakerpipe export --format xlsx --out out/speakers.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		path := exportOut
		if path == "" {
			path = filepath.Join(cfg.Paths.OutDir, export.DefaultFileName(format))
		}
		return runExport(cmd.Context(), format, path)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", string(export.FormatCSV), "output format (csv, xlsx)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default: <out_dir>/email_list.<format>)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, format export.Format, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	exporter := export.NewExporter(
		export.Source{
			Name:  pipeline.WithEmailsFile,
			Store: checkpoint.NewFileStore[[]model.Speaker](filepath.Join(cfg.Paths.OutDir, pipeline.WithEmailsFile)),
		},
		export.Source{
			Name:  pipeline.ClassifiedFile,
			Store: checkpoint.NewFileStore[[]model.Speaker](filepath.Join(cfg.Paths.OutDir, pipeline.ClassifiedFile)),
		},
	)

	summary, err := exporter.Export(ctx, format, path)
	if err != nil {
		return err
	}

	line := strings.Repeat("=", 70)
	fmt.Fprintln(os.Stderr, "\n"+line)
	fmt.Fprintln(os.Stderr, "✅ EXPORT COMPLETE")
	fmt.Fprintf(os.Stderr, "   Source:           %s\n", summary.Source)
	fmt.Fprintf(os.Stderr, "   Output:           %s\n", summary.Path)
	fmt.Fprintf(os.Stderr, "   Total speakers:   %d\n", summary.Rows)
	fmt.Fprintf(os.Stderr, "   Emails generated: %d\n", summary.Emails)
	fmt.Fprintln(os.Stderr, "\n📊 Categories:")
	for _, c := range summary.SortedCategories() {
		fmt.Fprintf(os.Stderr, "   %-12s %d\n", c+":", summary.Categories[c])
	}
	fmt.Fprintln(os.Stderr, line)
	return nil
}
