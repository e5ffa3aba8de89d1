package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/speakerpipe/internal/worker"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"https://conf.example.com/speakers/jane-doe":            "jane-doe",
		"https://conf.example.com/speakers/jane-doe/":           "jane-doe",
		"https://conf.example.com/speakers/jane-doe/index.html": "jane-doe",
		"https://conf.example.com/speakers/john.html":           "john",
	}
	for in, want := range tests {
		got, err := Slug(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Slug("https://conf.example.com/")
	assert.Error(t, err)
}

func TestReadURLs(t *testing.T) {
	urls, err := ReadURLs(strings.NewReader("# speakers\nhttps://a/x\n\n  https://a/y  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/x", "https://a/y"}, urls)
}

func TestDownloader_SavesAndHonoursRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
		case "/speakers/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = fmt.Fprintf(w, "<html>%s</html>", r.URL.Path)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	d := NewDownloader(
		newTestFetcher(),
		NewRobotsChecker("test-agent/1.0", 5*time.Second),
		worker.NewLimiter(0, 1),
		dir,
		2,
	)

	report, err := d.Download(context.Background(), []string{
		server.URL + "/speakers/jane-doe",
		server.URL + "/private/bob",
		server.URL + "/speakers/missing",
	})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)

	assert.Equal(t, StatusSaved, report.Outcomes[0].Status)
	assert.Equal(t, StatusBlocked, report.Outcomes[1].Status)
	assert.Equal(t, StatusFailed, report.Outcomes[2].Status)
	assert.Equal(t, 1, report.Count(StatusSaved))

	data, err := os.ReadFile(filepath.Join(dir, "speakers", "jane-doe", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>/speakers/jane-doe</html>", string(data))

	_, err = os.Stat(filepath.Join(dir, "speakers", "bob"))
	assert.True(t, os.IsNotExist(err))
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "speakerpipe", NormalizeUserAgent("speakerpipe/0.1 (+https://x)"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}
