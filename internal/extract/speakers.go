// Package extract turns scraped conference pages into speaker records.
package extract

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/speakerpipe/internal/model"
)

// Source yields the full list of raw speaker records.
type Source interface {
	List(ctx context.Context) ([]model.Speaker, error)
}

// SpeakersDir is the directory under the pages root holding one
// sub-directory per speaker.
const SpeakersDir = "speakers"

// PageFile is the file name of a speaker page inside its directory.
const PageFile = "index.html"

// SpeakerParser reads speaker pages laid out as
// <root>/speakers/<slug>/index.html.
type SpeakerParser struct {
	root string
}

// NewSpeakerParser creates a parser rooted at the scraped pages directory
func NewSpeakerParser(root string) *SpeakerParser {
	return &SpeakerParser{root: root}
}

// List parses every speaker page in slug order. A missing speakers
// directory is an error; individual unreadable or empty pages are skipped.
func (p *SpeakerParser) List(ctx context.Context) ([]model.Speaker, error) {
	dir := filepath.Join(p.root, SpeakersDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read speakers directory %s", dir)
	}

	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)

	speakers := make([]model.Speaker, 0, len(slugs))
	for _, slug := range slugs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, slug, PageFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		speaker, ok, err := p.parseFile(path)
		if err != nil {
			zap.L().Warn("speaker page unreadable", zap.String("slug", slug), zap.Error(err))
			continue
		}
		if !ok {
			zap.L().Warn("could not parse speaker", zap.String("slug", slug))
			continue
		}

		speaker.SpeakerID = slug
		speakers = append(speakers, speaker)
	}

	return speakers, nil
}

func (p *SpeakerParser) parseFile(path string) (model.Speaker, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Speaker{}, false, eris.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	return ParsePage(f)
}

// ParsePage extracts one speaker from a page. ok is false when the page has
// neither a name nor a company.
func ParsePage(r io.Reader) (speaker model.Speaker, ok bool, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return model.Speaker{}, false, eris.Wrap(err, "parse html")
	}

	speaker = model.Speaker{Sessions: []model.Session{}}

	if details := findFirst(doc, tagWithClass("div", "speaker-details")); details != nil {
		for _, p := range findAll(details, tag("p")) {
			text := nodeText(p)
			switch {
			case strings.Contains(text, "Name:"):
				speaker.Name = labelValue(text, "Name:")
			case strings.Contains(text, "Company:"):
				speaker.Company = labelValue(text, "Company:")
			case strings.Contains(text, "Job Title:"):
				speaker.JobTitle = labelValue(text, "Job Title:")
			}
		}
	}

	speaker.Bio = parseBio(doc)

	if sessions := findFirst(doc, tagWithClass("div", "speaker-sessions")); sessions != nil {
		for _, a := range findAll(sessions, tag("a")) {
			title := nodeText(a)
			if title == "" {
				continue
			}
			speaker.Sessions = append(speaker.Sessions, model.Session{
				Title: title,
				URL:   attr(a, "href"),
			})
		}
	}

	meta := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attr(n, "property") == "og:image"
	})
	if meta != nil {
		speaker.ImageURL = attr(meta, "content")
	}

	if speaker.Name == "" && speaker.Company == "" {
		return speaker, false, nil
	}
	return speaker, true, nil
}

// parseBio joins the bio paragraphs with blank lines. Without paragraphs the
// whole block is used unless it is only the section heading.
func parseBio(doc *html.Node) string {
	bio := findFirst(doc, tagWithClass("div", "speaker-bio"))
	if bio == nil {
		return ""
	}
	content := findFirst(bio, tagWithClass("div", "bio-content"))
	if content == nil {
		return ""
	}

	paragraphs := findAll(content, tag("p"))
	if len(paragraphs) == 0 {
		text := nodeText(content)
		if text == "Biography" {
			return ""
		}
		return text
	}

	var parts []string
	for _, p := range paragraphs {
		if text := nodeText(p); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func labelValue(text, label string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, label, ""))
}
