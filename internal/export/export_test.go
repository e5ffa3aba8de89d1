package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ppiankov/speakerpipe/internal/checkpoint"
	"github.com/ppiankov/speakerpipe/internal/model"
)

func sample() []model.Speaker {
	return []model.Speaker{
		{Name: "Zoe", Company: "Other Co", Category: model.CategoryOther},
		{Name: "Ann", Company: "Rival", Category: model.CategoryCompetitor},
		{Name: "Bob", Company: "Beta Build", Category: model.CategoryBuilder, EmailSubject: "Hi Bob", EmailBody: "Booth #42"},
		{Name: "Al", Company: "Alpha Build", Category: model.CategoryBuilder, EmailSubject: "Hi Al", EmailBody: "Booth #42"},
		{Name: "Cy", Company: "Client", Category: model.CategoryCustomer},
		{Name: "Ola", Company: "City", Category: model.CategoryOwner, EmailSubject: "Hi Ola", EmailBody: "Gift"},
		{Name: "Pam", Company: "Vendor", Category: model.CategoryPartner},
		{Name: "Uma", Company: "Mystery", Category: model.Category("Supplier")},
		{Name: "Ned", Company: "Blank", Category: ""},
		{Name: "Aba", Company: "Beta Build", Category: model.CategoryBuilder},
	}
}

func TestRows_Ordering(t *testing.T) {
	rows := Rows(sample())

	var got []string
	for _, r := range rows {
		got = append(got, r.Category+"/"+r.Company+"/"+r.Name)
	}

	assert.Equal(t, []string{
		"Builder/Alpha Build/Al",
		"Builder/Beta Build/Aba",
		"Builder/Beta Build/Bob",
		"Owner/City/Ola",
		"Customer/Client/Cy",
		"Partner/Vendor/Pam",
		"Competitor/Rival/Ann",
		"Other/Blank/Ned",
		"Other/Other Co/Zoe",
		"Supplier/Mystery/Uma",
	}, got)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := Rows([]model.Speaker{{
		Name: "Jane", JobTitle: "VP", Company: "Acme, Inc.", Category: model.CategoryBuilder,
		EmailSubject: "Hello", EmailBody: "Line one\nLine \"two\"",
	}})
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"Jane", "VP", "Acme, Inc.", "Builder", "Hello", "Line one\nLine \"two\""}, records[1])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteXLSX(f, Rows(sample()[:2])))
	require.NoError(t, f.Close())

	book, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, book.Sheets, 1)

	sheet := book.Sheets[0]
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Speaker Name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Ann", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Competitor", sheet.Rows[1].Cells[3].String())
}

func TestExporter_PrefersEmailsThenFallsBack(t *testing.T) {
	ctx := context.Background()
	withEmails := checkpoint.NewMemoryStore[[]model.Speaker]()
	classified := checkpoint.NewMemoryStore[[]model.Speaker]()
	require.NoError(t, classified.Save(ctx, sample()[:3]))

	e := NewExporter(
		Source{Name: "speakers_with_emails.json", Store: withEmails},
		Source{Name: "speakers_classified.json", Store: classified},
	)

	path := filepath.Join(t.TempDir(), "out", "email_list.csv")
	summary, err := e.Export(ctx, FormatCSV, path)
	require.NoError(t, err)
	assert.Equal(t, "speakers_classified.json", summary.Source)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 1, summary.Emails)

	require.NoError(t, withEmails.Save(ctx, sample()))
	summary, err = e.Export(ctx, FormatCSV, path)
	require.NoError(t, err)
	assert.Equal(t, "speakers_with_emails.json", summary.Source)
	assert.Equal(t, 10, summary.Rows)
	assert.Equal(t, 3, summary.Emails)
	assert.Equal(t, 2, summary.Categories["Other"])
	assert.Equal(t, []string{"Builder", "Owner", "Customer", "Partner", "Competitor", "Other", "Supplier"}, summary.SortedCategories())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Speaker Name,Speaker Title")
}

func TestExporter_NoData(t *testing.T) {
	e := NewExporter(Source{Name: "x", Store: checkpoint.NewMemoryStore[[]model.Speaker]()})
	_, err := e.Export(context.Background(), FormatCSV, filepath.Join(t.TempDir(), "x.csv"))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
