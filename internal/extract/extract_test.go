package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		mime string
		want string
	}{
		{"sow.pdf", "", "pdf"},
		{"SOW.PDF", "", "pdf"},
		{"attachment.docx", "", "docx"},
		{"notes.txt", "", "txt"},
		{"legacy.rtf", "", "rtf"},
		{"pricing.xlsx", "", "xlsx"},
		{"download", "application/pdf", "pdf"},
		{"download", "text/plain; charset=utf-8", "txt"},
		{"download", "application/octet-stream", ""},
		{"archive.bin", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectFormat(tt.path, tt.mime), "%s / %s", tt.path, tt.mime)
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	e := New("")
	_, err := e.Extract(context.Background(), "mystery.bin", "")
	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonUnsupportedFormat, exErr.Reason)
	assert.Equal(t, "mystery.bin", exErr.Path)
}

func TestExtract_TXT(t *testing.T) {
	path := writeTempFile(t, "notes.txt", []byte("\uFEFFline one\r\nline two\r\n"))

	e := New("")
	got, err := e.Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", got.Text)
	assert.Equal(t, "txt", got.Format)
}

func TestExtract_TXT_EmptyIsError(t *testing.T) {
	path := writeTempFile(t, "empty.txt", []byte("   \n\t\n"))

	e := New("")
	_, err := e.Extract(context.Background(), path, "")
	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonEmptyOutput, exErr.Reason)
}

func TestExtract_CorruptPDF(t *testing.T) {
	path := writeTempFile(t, "bad.pdf", []byte("not a pdf at all"))

	// Point pdftotext at a binary that does not exist so the pure-Go
	// reader handles it, and fails on the garbage input.
	e := New(filepath.Join(t.TempDir(), "no-such-pdftotext"))
	_, err := e.Extract(context.Background(), path, "")
	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonCorruptFile, exErr.Reason)
	assert.NotNil(t, exErr.Err)
}

func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtract_DOCX(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hotel shall provide </w:t></w:r><w:r><w:t>no fewer than 70 rooms</w:t></w:r></w:p>
    <w:p><w:r><w:t>Column A</w:t></w:r><w:r><w:tab/></w:r><w:r><w:t>Column B</w:t></w:r></w:p>
  </w:body>
</w:document>`
	path := writeDOCX(t, doc)

	e := New("")
	got, err := e.Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Contains(t, got.Text, "Hotel shall provide no fewer than 70 rooms")
	assert.Contains(t, got.Text, "Column A\tColumn B")
	assert.Equal(t, "docx", got.Format)
}

func TestExtract_DOCX_MissingDocumentXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hollow.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	e := New("")
	_, err = e.Extract(context.Background(), path, "")
	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonCorruptFile, exErr.Reason)
}

func TestExtract_DOCX_NotAZip(t *testing.T) {
	path := writeTempFile(t, "fake.docx", []byte("plain bytes"))

	e := New("")
	_, err := e.Extract(context.Background(), path, "")
	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonCorruptFile, exErr.Reason)
}

func TestStripRTF(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"plain with formatting",
			`{\rtf1\ansi{\fonttbl{\f0 Times New Roman;}}Hello \b bold\b0  world\par}`,
			"Hello bold world\n",
		},
		{
			"paragraphs and tabs",
			`{\rtf1 First\par Second\tab Indented\par}`,
			"First\nSecond\tIndented\n",
		},
		{
			"hex escape",
			`{\rtf1 Caf\'41}`,
			"CafA",
		},
		{
			"unicode escape",
			`{\rtf1 Na\u239?ve}`,
			"Naïve",
		},
		{
			"escaped braces",
			`{\rtf1 a \{literal\} b}`,
			"a {literal} b",
		},
		{
			"skips color table",
			`{\rtf1{\colortbl;\red0\green0\blue0;}visible}`,
			"visible",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripRTF([]byte(tt.in)))
		})
	}
}

func TestExtract_RTF(t *testing.T) {
	content := `{\rtf1\ansi Setup must be complete\par no later than 6:00 AM\par}`
	path := writeTempFile(t, "req.rtf", []byte(content))

	e := New("")
	got, err := e.Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Contains(t, got.Text, "Setup must be complete")
	assert.Contains(t, got.Text, "no later than 6:00 AM")
}

func TestExtract_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Pricing")
	require.NoError(t, err)

	header := sheet.AddRow()
	header.AddCell().Value = "Item"
	header.AddCell().Value = "Unit Price"
	row := sheet.AddRow()
	row.AddCell().Value = "AM Refreshments"
	row.AddCell().Value = "12.50"

	path := filepath.Join(t.TempDir(), "pricing.xlsx")
	require.NoError(t, f.Save(path))

	e := New("")
	got, err := e.Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Contains(t, got.Text, "Item\tUnit Price")
	assert.Contains(t, got.Text, "AM Refreshments\t12.50")
	assert.Equal(t, 1, got.PageCount)
}

func TestExtract_XLSX_Corrupt(t *testing.T) {
	path := writeTempFile(t, "bad.xlsx", []byte("zip? no"))

	e := New("")
	_, err := e.Extract(context.Background(), path, "")
	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, ReasonCorruptFile, exErr.Reason)
}
