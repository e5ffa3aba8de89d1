// Package export writes the final outreach table.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/ppiankov/speakerpipe/internal/checkpoint"
	"github.com/ppiankov/speakerpipe/internal/model"
)

// ErrNoData is returned when neither stage has produced output.
var ErrNoData = eris.New("no data to export: run stage 1 (classify) first")

// Header is the column order of every export format.
var Header = []string{
	"Speaker Name",
	"Speaker Title",
	"Speaker Company",
	"Company Category",
	"Email Subject",
	"Email Body",
}

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("unsupported export format %q (supported: csv, xlsx)", s)
	}
}

// DefaultFileName returns the output file name for a format.
func DefaultFileName(f Format) string {
	return "email_list." + string(f)
}

// Row is one line of the export.
type Row struct {
	Name         string
	Title        string
	Company      string
	Category     string
	EmailSubject string
	EmailBody    string
}

func (r Row) values() []string {
	return []string{r.Name, r.Title, r.Company, r.Category, r.EmailSubject, r.EmailBody}
}

func rank(category string) int {
	return model.CategoryRank(model.Category(category))
}

// Rows converts speakers to rows sorted by category precedence, then
// company, then name. The sort is stable.
func Rows(speakers []model.Speaker) []Row {
	rows := make([]Row, 0, len(speakers))
	for _, s := range speakers {
		category := string(s.Category)
		if category == "" {
			category = string(model.CategoryOther)
		}
		rows = append(rows, Row{
			Name:         s.Name,
			Title:        s.JobTitle,
			Company:      s.Company,
			Category:     category,
			EmailSubject: s.EmailSubject,
			EmailBody:    s.EmailBody,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rank(rows[i].Category), rank(rows[j].Category)
		if ri != rj {
			return ri < rj
		}
		if rows[i].Company != rows[j].Company {
			return rows[i].Company < rows[j].Company
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// WriteCSV writes the header and rows.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flush csv")
}

// WriteXLSX writes the header and rows to a single "Speakers" sheet.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Speakers")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	addRow := func(values []string) {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}

	addRow(Header)
	for _, r := range rows {
		addRow(r.values())
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write")
	}
	return nil
}

// Summary reports what was exported.
type Summary struct {
	Path       string
	Source     string
	Rows       int
	Emails     int
	Categories map[string]int
}

// SortedCategories returns the categories present in export order.
func (s Summary) SortedCategories() []string {
	out := make([]string, 0, len(s.Categories))
	for c := range s.Categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

func summarize(rows []Row) Summary {
	s := Summary{Rows: len(rows), Categories: make(map[string]int)}
	for _, r := range rows {
		if r.EmailSubject != "" {
			s.Emails++
		}
		s.Categories[r.Category]++
	}
	return s
}

// Source is a named speaker document.
type Source struct {
	Name  string
	Store checkpoint.Store[[]model.Speaker]
}

// Exporter loads the most complete stage output and writes it out.
type Exporter struct {
	sources []Source
}

// NewExporter tries sources in order and uses the first that exists.
func NewExporter(sources ...Source) *Exporter {
	return &Exporter{sources: sources}
}

// Load returns the first available source document.
func (e *Exporter) Load(ctx context.Context) ([]model.Speaker, string, error) {
	for _, src := range e.sources {
		speakers, ok, err := src.Store.Load(ctx)
		if err != nil {
			return nil, src.Name, eris.Wrapf(err, "load %s", src.Name)
		}
		if ok {
			return speakers, src.Name, nil
		}
	}
	return nil, "", ErrNoData
}

// Export writes the table to path in format.
func (e *Exporter) Export(ctx context.Context, format Format, path string) (Summary, error) {
	speakers, source, err := e.Load(ctx)
	if err != nil {
		return Summary{}, err
	}

	rows := Rows(speakers)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Summary{}, eris.Wrapf(err, "create output dir %s", dir)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return Summary{}, eris.Wrapf(err, "create %s", path)
	}

	switch format {
	case FormatXLSX:
		err = WriteXLSX(f, rows)
	default:
		err = WriteCSV(f, rows)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrapf(cerr, "close %s", path)
	}
	if err != nil {
		return Summary{}, err
	}

	s := summarize(rows)
	s.Path = path
	s.Source = source
	return s, nil
}
