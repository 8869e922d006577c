package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a valid single-page PDF with a correct xref table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 1, PageCount(minimalPDF()))
	assert.Equal(t, 0, PageCount([]byte("plain text")))
	assert.Equal(t, 0, PageCount([]byte("%PDF-1.4 truncated")))
	assert.Equal(t, 0, PageCount(nil))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF(), 0644))

	file, err := New().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", file.Name)
	assert.Equal(t, minimalPDF(), file.Bytes)
	assert.Equal(t, 1, file.Pages)
}

func TestLoadFileTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	_, err := NewWithConfig(LoaderConfig{MaxBytes: 5}).LoadFile(path)
	assert.ErrorContains(t, err, "larger than")
}

func TestLoadExpandsDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0755))

	files, err := New().Load(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.PDF", files[0].Name)
	assert.Equal(t, "b.pdf", files[1].Name)
}

func TestLoadReportsMissingButKeepsOthers(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pdf")
	require.NoError(t, os.WriteFile(good, []byte("%PDF-1.4"), 0644))

	files, err := New().Load(filepath.Join(dir, "missing.pdf"), good)
	assert.Error(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "good.pdf", files[0].Name)
}

func TestAccepts(t *testing.T) {
	l := NewWithConfig(LoaderConfig{Extensions: []string{".pdf", ".PDFA"}})
	assert.True(t, l.Accepts("x.pdf"))
	assert.True(t, l.Accepts("x.Pdf"))
	assert.True(t, l.Accepts("x.pdfa"))
	assert.False(t, l.Accepts("x.txt"))
	assert.False(t, l.Accepts("pdf"))
}
