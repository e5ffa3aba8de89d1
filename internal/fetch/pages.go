package fetch

import (
	"bufio"
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/extract"
	"github.com/ppiankov/speakerpipe/internal/worker"
)

// ReadURLs reads one URL per line, skipping blank lines and # comments.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, eris.Wrap(sc.Err(), "read url list")
}

// Slug derives the page directory name from the last path segment of a
// speaker URL, without any file extension. A trailing index page names its
// parent directory.
func Slug(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "parse %s", rawURL)
	}

	p := strings.Trim(u.Path, "/")
	last := path.Base(p)
	if ext := path.Ext(last); ext != "" && ext != last {
		last = strings.TrimSuffix(last, ext)
	}
	if last == "index" {
		last = path.Base(path.Dir(p))
	}
	if last == "" || last == "." || last == "/" {
		return "", eris.Errorf("no speaker slug in %s", rawURL)
	}
	return last, nil
}

// Status is the outcome for one URL.
type Status string

const (
	StatusSaved   Status = "saved"
	StatusBlocked Status = "blocked"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to one URL.
type Outcome struct {
	URL    string
	Slug   string
	Path   string
	Status Status
	Err    error
}

// Report summarises a download run.
type Report struct {
	Outcomes []Outcome
	Elapsed  time.Duration
}

// Count returns the number of outcomes with status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Downloader saves pages to <pagesDir>/speakers/<slug>/index.html.
type Downloader struct {
	fetcher     *Fetcher
	robots      *RobotsChecker
	limiter     *worker.Limiter
	pagesDir    string
	concurrency int
}

// NewDownloader builds a downloader. A nil robots checker skips robots.txt
// and a nil limiter disables per-host throttling.
func NewDownloader(fetcher *Fetcher, robots *RobotsChecker, limiter *worker.Limiter, pagesDir string, concurrency int) *Downloader {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Downloader{
		fetcher:     fetcher,
		robots:      robots,
		limiter:     limiter,
		pagesDir:    pagesDir,
		concurrency: concurrency,
	}
}

// Download fetches every URL. Per-URL failures are recorded in the report;
// only cancellation is returned as an error.
func (d *Downloader) Download(ctx context.Context, urls []string) (Report, error) {
	start := time.Now()
	outcomes := worker.ForkJoin(ctx, urls, d.concurrency, d.one)
	report := Report{Outcomes: outcomes, Elapsed: time.Since(start)}
	return report, ctx.Err()
}

func (d *Downloader) one(ctx context.Context, rawURL string) Outcome {
	out := Outcome{URL: rawURL, Status: StatusFailed}

	slug, err := Slug(rawURL)
	if err != nil {
		out.Err = err
		return out
	}
	out.Slug = slug

	var delay time.Duration
	if d.robots != nil {
		allowed, crawlDelay, err := d.robots.CanFetch(ctx, rawURL)
		if err != nil {
			out.Err = err
			return out
		}
		if !allowed {
			out.Status = StatusBlocked
			zap.L().Info("blocked by robots.txt", zap.String("url", rawURL))
			return out
		}
		delay = crawlDelay
	}

	if d.limiter != nil {
		host, _ := url.Parse(rawURL)
		if err := d.limiter.WaitWithDelay(ctx, host.Host, delay); err != nil {
			out.Err = err
			return out
		}
	}

	result, err := d.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		out.Err = err
		zap.L().Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return out
	}

	dir := filepath.Join(d.pagesDir, extract.SpeakersDir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		out.Err = eris.Wrapf(err, "create %s", dir)
		return out
	}
	out.Path = filepath.Join(dir, extract.PageFile)
	if err := os.WriteFile(out.Path, []byte(result.HTML), 0o644); err != nil {
		out.Err = eris.Wrapf(err, "write %s", out.Path)
		return out
	}

	out.Status = StatusSaved
	return out
}
