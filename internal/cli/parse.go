package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/speakerpipe/internal/extract"
)

var parseJSON string

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse scraped speaker pages and print statistics",
	Long: `Parse every <pages_dir>/speakers/<slug>/index.html and report field
coverage. With --json the parsed records are written to a file.

Example:
  speakerpipe parse
  speakerpipe parse --json out/speakers.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		speakers, err := extract.NewSpeakerParser(cfg.Paths.PagesDir).List(cmd.Context())
		if err != nil {
			return err
		}

		stats := extract.ComputeStats(speakers)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Speakers:               %d\n", stats.Total)
		fmt.Fprintf(out, "  with bio:             %d\n", stats.WithBio)
		fmt.Fprintf(out, "  with sessions:        %d\n", stats.WithSessions)
		fmt.Fprintf(out, "  with image:           %d\n", stats.WithImage)
		fmt.Fprintf(out, "  empty job title:      %d\n", stats.EmptyJobTitles)
		fmt.Fprintf(out, "  multi-session:        %d\n", stats.MultiSessionSpeakers)
		fmt.Fprintf(out, "Sessions:               %d\n", stats.TotalSessions)
		fmt.Fprintf(out, "Companies:              %d\n", stats.Companies)

		if parseJSON == "" {
			return nil
		}

		data, err := json.MarshalIndent(speakers, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal speakers")
		}
		if err := os.WriteFile(parseJSON, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", parseJSON)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %d speakers to %s\n", len(speakers), parseJSON)
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseJSON, "json", "", "write parsed speakers to this JSON file")
	rootCmd.AddCommand(parseCmd)
}
