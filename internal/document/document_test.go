package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		kind     Kind
		want     Extractor
		wantErr  bool
	}{
		{"notes.txt", Generic, TextExtractor{}, false},
		{"README.md", Generic, TextExtractor{}, false},
		{"lecture.PDF", Generic, PDFExtractor{}, false},
		{"lecture.pdf", StructuredPDF, PDFExtractor{Paginated: true}, false},
		{"essay.docx", Generic, DocxExtractor{}, false},
		{"essay.docx", StructuredPDF, nil, true},
		{"slides.pptx", Generic, nil, true},
	}
	for _, tt := range tests {
		got, err := ForFile(tt.filename, tt.kind)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedFormat, tt.filename)
			continue
		}
		require.NoError(t, err, tt.filename)
		assert.Equal(t, tt.want, got, tt.filename)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("structured-pdf")
	require.NoError(t, err)
	assert.Equal(t, StructuredPDF, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, Generic, k)

	_, err = ParseKind("scanned")
	assert.Error(t, err)
}

func TestTextExtractor_Normalizes(t *testing.T) {
	secs, err := Extract("n.txt", Generic, []byte("  Title  \r\n\r\n\r\n\r\nBody line\r\n  "))
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, "Title\n\nBody line", secs[0].Text)
	assert.Equal(t, 0, secs[0].Page)
}

func TestTextExtractor_Empty(t *testing.T) {
	_, err := Extract("n.txt", Generic, []byte(" \n\t\n"))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestDocxExtractor(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Photosynthesis</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Plants turn </w:t></w:r><w:r><w:t>light &amp; water</w:t></w:r><w:r><w:br/><w:t>into sugar.</w:t></w:r></w:p>
</w:body>
</w:document>`
	secs, err := Extract("bio.docx", Generic, buildDocx(t, body))
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, "Photosynthesis\nPlants turn light & water\ninto sugar.", secs[0].Text)
}

func TestDocxExtractor_Corrupt(t *testing.T) {
	_, err := Extract("bad.docx", Generic, []byte("not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	require.NoError(t, zw.Close())
	_, err = Extract("empty.docx", Generic, buf.Bytes())
	assert.Error(t, err)
}

func TestPDFExtractor_Corrupt(t *testing.T) {
	_, err := Extract("bad.pdf", Generic, []byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	chunks := DefaultSplitter().Split("Mitochondria produce ATP. Ribosomes build proteins.")
	assert.Equal(t, []string{"Mitochondria produce ATP. Ribosomes build proteins."}, chunks)
}

func TestSplit_DropsTinyChunks(t *testing.T) {
	assert.Empty(t, DefaultSplitter().Split("Hi."))
	assert.Empty(t, DefaultSplitter().Split("   "))
}

func TestSplit_RespectsChunkSize(t *testing.T) {
	words := strings.Repeat("alpha beta gamma delta ", 100)
	s := Splitter{ChunkSize: 40, MinChunkChars: 0, MinEmbedLength: 5, MaxChunks: 100}
	chunks := s.Split(words)
	require.Len(t, chunks, 10)
	for _, c := range chunks {
		assert.LessOrEqual(t, Tokens(c), 40)
	}
	assert.Equal(t, strings.TrimSpace(words), strings.Join(chunks, " "))
}

func TestSplit_CutsAtSentenceBoundary(t *testing.T) {
	text := "one two three four five. six seven eight nine ten eleven twelve"
	s := Splitter{ChunkSize: 10, MinChunkChars: 5, MinEmbedLength: 1, MaxChunks: 10}
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "one two three four five.", chunks[0])
	assert.Equal(t, "six seven eight nine ten eleven twelve", strings.Join(chunks[1:], " "))
}

func TestSplit_BoundaryBelowMinChunkCharsIgnored(t *testing.T) {
	text := "Hi. one two three four five six seven eight"
	s := Splitter{ChunkSize: 6, MinChunkChars: 50, MinEmbedLength: 1, MaxChunks: 10}
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "Hi. one two three four", chunks[0])
}

func TestSplit_Overlap(t *testing.T) {
	text := "a1 a2 a3 a4 a5 a6 a7 a8"
	s := Splitter{ChunkSize: 4, Overlap: 1, MinChunkChars: 0, MinEmbedLength: 1, MaxChunks: 10}
	chunks := s.Split(text)
	assert.Equal(t, []string{"a1 a2 a3 a4", "a4 a5 a6 a7", "a7 a8"}, chunks)
}

func TestSplit_MaxChunks(t *testing.T) {
	text := strings.Repeat("word ", 50)
	s := Splitter{ChunkSize: 5, MinEmbedLength: 1, MaxChunks: 3}
	assert.Len(t, s.Split(text), 3)
}

func TestSplitSections_CarriesPage(t *testing.T) {
	s := Splitter{ChunkSize: 3, MinEmbedLength: 1, MaxChunks: 3}
	chunks := s.SplitSections([]Section{
		{Text: "p1 one two", Page: 1},
		{Text: "p2 one two p2 three four", Page: 2},
	})
	require.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[1].Page)
	assert.Equal(t, 2, chunks[2].Page)
}

func TestExtract_UnsupportedWrapsSentinel(t *testing.T) {
	_, err := Extract("movie.mp4", Generic, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
