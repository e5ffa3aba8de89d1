package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/speakerpipe/internal/fetch"
	"github.com/ppiankov/speakerpipe/internal/worker"
)

var (
	fetchConcurrency int
	fetchNoRobots    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <urls-file>",
	Short: "Download speaker pages listed in a file",
	Long: `Fetch speaker pages (one URL per line) into
<pages_dir>/speakers/<slug>/index.html, where slug is the last URL path
segment. robots.txt is honoured and requests are rate limited per host.

Example:
  speakerpipe fetch speaker_urls.txt
  speakerpipe fetch speaker_urls.txt --concurrency 4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		urls, err := fetch.ReadURLs(f)
		_ = f.Close()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		fc := cfg.Fetch
		var robots *fetch.RobotsChecker
		if !fetchNoRobots {
			robots = fetch.NewRobotsChecker(fc.UserAgent, fc.Timeout)
		}
		d := fetch.NewDownloader(
			fetch.NewFetcher(fc.Timeout, fc.UserAgent, fc.MaxBodyBytes, fc.HTTPProxy, fc.HTTPSProxy),
			robots,
			worker.NewLimiter(fc.RequestsPerSecond, 1),
			cfg.Paths.PagesDir,
			fetchConcurrency,
		)

		fmt.Fprintf(os.Stderr, "⚙️  Fetching %d pages with %d workers...\n", len(urls), fetchConcurrency)
		report, err := d.Download(ctx, urls)

		for _, o := range report.Outcomes {
			switch o.Status {
			case fetch.StatusSaved:
				fmt.Fprintf(os.Stderr, "✓ %s\n", o.Slug)
			case fetch.StatusBlocked:
				fmt.Fprintf(os.Stderr, "⊘ %s (robots.txt)\n", o.URL)
			default:
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", o.URL, o.Err)
			}
		}

		line := strings.Repeat("=", 70)
		fmt.Fprintln(os.Stderr, "\n"+line)
		fmt.Fprintf(os.Stderr, "  Total:    %d URLs\n", len(report.Outcomes))
		fmt.Fprintf(os.Stderr, "  Saved:    %d\n", report.Count(fetch.StatusSaved))
		fmt.Fprintf(os.Stderr, "  Blocked:  %d\n", report.Count(fetch.StatusBlocked))
		fmt.Fprintf(os.Stderr, "  Failed:   %d\n", report.Count(fetch.StatusFailed))
		fmt.Fprintf(os.Stderr, "  Elapsed:  %s\n", report.Elapsed.Round(time.Millisecond))
		fmt.Fprintln(os.Stderr, line)

		return err
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 2, "number of concurrent downloads")
	fetchCmd.Flags().BoolVar(&fetchNoRobots, "no-robots", false, "skip robots.txt checks")
	rootCmd.AddCommand(fetchCmd)
}
