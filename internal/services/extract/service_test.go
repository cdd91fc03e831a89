package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(10, arbor.NewLogger())
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestExtract_PlainText(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "notes.txt", []byte("Employees accrue 12 sick days per year."))
	result := service.Extract(path)

	assert.False(t, result.Sentinel)
	assert.Equal(t, "Employees accrue 12 sick days per year.", result.Text)
}

func TestExtract_TextEncodingFallback(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{
			name:    "UTF8 With BOM",
			content: append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...),
			want:    "hello",
		},
		{
			name:    "Windows1252 Smart Quote",
			content: []byte{0x93, 'h', 'i', 0x94}, // curly quotes in cp1252
			want:    "“hi”",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, strings.ReplaceAll(tt.name, " ", "")+".txt", tt.content)
			result := service.Extract(path)
			assert.False(t, result.Sentinel)
			assert.Equal(t, tt.want, result.Text)
		})
	}
}

func TestExtract_EmptyFileSentinel(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "empty.txt", []byte("   \n  "))
	result := service.Extract(path)

	assert.True(t, result.Sentinel)
	assert.Equal(t, ReasonEmpty, result.Reason)
	assert.Contains(t, result.Text, "[EMPTY")
}

func TestExtract_MissingFileSentinel(t *testing.T) {
	service := newTestService(t)

	result := service.Extract("/nonexistent/file.txt")
	assert.True(t, result.Sentinel)
	assert.Equal(t, ReasonError, result.Reason)
	assert.Contains(t, result.Text, "[ERROR")
}

func TestExtract_OversizedSentinel(t *testing.T) {
	service := NewService(1, arbor.NewLogger()) // 1MB limit
	dir := t.TempDir()

	path := writeFile(t, dir, "big.txt", make([]byte, 2*1024*1024))
	result := service.Extract(path)

	assert.True(t, result.Sentinel)
	assert.Equal(t, ReasonOversized, result.Reason)
}

func TestExtract_ImageOCRUnavailable(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "scan.png", []byte{0x89, 0x50, 0x4E, 0x47})
	result := service.Extract(path)

	assert.True(t, result.Sentinel)
	assert.Equal(t, ReasonUnavailable, result.Reason)
	assert.Contains(t, result.Text, "OCR unavailable")
}

func TestExtract_CorruptPDFSentinel(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "broken.pdf", []byte("not a pdf at all"))
	result := service.Extract(path)

	assert.True(t, result.Sentinel)
	assert.Equal(t, ReasonError, result.Reason)
}

func TestExtract_PDF(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.pdf")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(40, 10, "Leave policy overview")
	pdf.Ln(12)
	pdf.Cell(40, 10, "Twelve sick days per year.")
	require.NoError(t, pdf.OutputFileAndClose(path))

	result := service.Extract(path)
	require.False(t, result.Sentinel)
	assert.Contains(t, result.Text, "Leave policy overview")
	assert.Contains(t, result.Text, "Twelve sick days per year.")

	// Content-stream operators never leak into the extracted text
	assert.NotContains(t, result.Text, "Tj")
	assert.NotContains(t, result.Text, "BT")
}

func TestPageText(t *testing.T) {
	stream := "BT /F1 12.00 Tf 28.35 793.71 Td (Leave \\(policy\\) overview) Tj ET\n" +
		"BT [(Twelve ) -12 (sick ) -8 (days)] TJ ET\n" +
		"0.57 w 0 G"

	text := pageText(stream)
	assert.Equal(t, "Leave (policy) overview\nTwelve sick days", text)
}

func TestExtract_Markdown(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	content := "# Leave Policy\n\nEmployees get **12** sick days.\n\n- Carry over allowed\n- [Details](https://example.com/policy)\n"
	path := writeFile(t, dir, "policy.md", []byte(content))

	result := service.Extract(path)
	require.False(t, result.Sentinel)
	assert.Contains(t, result.Text, "Leave Policy")
	assert.Contains(t, result.Text, "12")
	assert.Contains(t, result.Text, "Carry over allowed")
	assert.NotContains(t, result.Text, "https://example.com/policy")
}

func TestExtract_HTML(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	content := "<html><body><h1>Benefits</h1><p>Dental coverage included.</p></body></html>"
	path := writeFile(t, dir, "benefits.html", []byte(content))

	result := service.Extract(path)
	require.False(t, result.Sentinel)
	assert.Contains(t, result.Text, "Benefits")
	assert.Contains(t, result.Text, "Dental coverage included.")
}

func TestExtract_Docx(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "handbook.docx")

	document := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Employee handbook</w:t></w:r></w:p>
    <w:p><w:r><w:t>Working hours are 9 to 5.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	writeZip(t, path, map[string]string{"word/document.xml": document})

	result := service.Extract(path)
	require.False(t, result.Sentinel)
	assert.Contains(t, result.Text, "Employee handbook")
	assert.Contains(t, result.Text, "Working hours are 9 to 5.")
}

func TestExtract_Xlsx(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.xlsx")

	shared := `<?xml version="1.0"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <si><t>Overtime rate</t></si>
  <si><t>1.5x</t></si>
</sst>`
	writeZip(t, path, map[string]string{"xl/sharedStrings.xml": shared})

	result := service.Extract(path)
	require.False(t, result.Sentinel)
	assert.Contains(t, result.Text, "Overtime rate")
	assert.Contains(t, result.Text, "1.5x")
}

func TestExtract_Email(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	raw := "From: HR <hr@example.com>\r\n" +
		"To: all@example.com\r\n" +
		"Subject: Updated travel policy\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"The travel policy now covers rail bookings.\r\n"
	path := writeFile(t, dir, "announce.eml", []byte(raw))

	result := service.Extract(path)
	require.False(t, result.Sentinel)
	assert.Contains(t, result.Text, "Subject: Updated travel policy")
	assert.Contains(t, result.Text, "rail bookings")
}

func TestExtract_UnsupportedFallsBackToText(t *testing.T) {
	service := newTestService(t)
	dir := t.TempDir()

	path := writeFile(t, dir, "config.ini", []byte("key=value"))
	assert.False(t, service.Supported(path))

	result := service.Extract(path)
	assert.False(t, result.Sentinel)
	assert.Equal(t, "key=value", result.Text)
}

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range members {
		member, err := w.Create(name)
		require.NoError(t, err)
		_, err = member.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}
