// Package document turns uploaded files into plain text sections and splits
// those sections into chunks sized for embedding.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrNoText            = errors.New("no extractable text")
)

// Kind selects how a document is read.
type Kind int

const (
	// Generic reads any supported format as one section.
	Generic Kind = iota
	// StructuredPDF reads a PDF page by page, one section per page.
	StructuredPDF
)

func (k Kind) String() string {
	if k == StructuredPDF {
		return "structured-pdf"
	}
	return "generic"
}

// ParseKind maps a flag value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "generic":
		return Generic, nil
	case "structured-pdf", "pdf-pages", "paged":
		return StructuredPDF, nil
	}
	return Generic, fmt.Errorf("unknown document kind %q", s)
}

// Section is a span of extracted text. Page is 1-based for paginated
// extraction and 0 otherwise.
type Section struct {
	Text string
	Page int
}

// Extractor reads the raw bytes of one file format.
type Extractor interface {
	Extract(data []byte) ([]Section, error)
}

// ForFile picks the extractor for filename's extension.
func ForFile(filename string, kind Kind) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind == StructuredPDF && ext != ".pdf" {
		return nil, fmt.Errorf("%w: structured reading needs a pdf, got %q", ErrUnsupportedFormat, ext)
	}
	switch ext {
	case ".pdf":
		return PDFExtractor{Paginated: kind == StructuredPDF}, nil
	case ".docx":
		return DocxExtractor{}, nil
	case ".txt", ".md", ".markdown", ".text", "":
		return TextExtractor{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Extract reads data with the extractor chosen for filename.
func Extract(filename string, kind Kind, data []byte) ([]Section, error) {
	ex, err := ForFile(filename, kind)
	if err != nil {
		return nil, err
	}
	return ex.Extract(data)
}

// TextExtractor reads UTF-8 plain text.
type TextExtractor struct{}

func (TextExtractor) Extract(data []byte) ([]Section, error) {
	text := normalize(string(data))
	if text == "" {
		return nil, ErrNoText
	}
	return []Section{{Text: text}}, nil
}

// PDFExtractor reads PDFs with ledongthuc/pdf. Pages without a text layer
// are skipped.
type PDFExtractor struct {
	Paginated bool
}

func (e PDFExtractor) Extract(data []byte) ([]Section, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var (
		sections []Section
		whole    strings.Builder
	)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if !e.Paginated {
			whole.WriteString(content)
			whole.WriteString("\n")
			continue
		}
		if text := normalize(content); text != "" {
			sections = append(sections, Section{Text: text, Page: i})
		}
	}

	if !e.Paginated {
		if text := normalize(whole.String()); text != "" {
			sections = append(sections, Section{Text: text})
		}
	}
	if len(sections) == 0 {
		return nil, ErrNoText
	}
	return sections, nil
}

// DocxExtractor reads the body text of an Office Open XML document.
type DocxExtractor struct{}

func (DocxExtractor) Extract(data []byte) ([]Section, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("open docx: word/document.xml not found")
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("open docx body: %w", err)
	}
	defer rc.Close()

	text, err := docxText(rc)
	if err != nil {
		return nil, fmt.Errorf("read docx body: %w", err)
	}
	text = normalize(text)
	if text == "" {
		return nil, ErrNoText
	}
	return []Section{{Text: text}}, nil
}

// docxText walks the WordprocessingML stream keeping run text, tabs and
// breaks, and ending each paragraph with a newline.
func docxText(r io.Reader) (string, error) {
	var (
		b     strings.Builder
		inRun bool
	)
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inRun = true
			case "tab":
				b.WriteString("\t")
			case "br", "cr":
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inRun = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inRun {
				b.Write(el)
			}
		}
	}
}

// normalize unifies line endings, trims each line and collapses runs of
// blank lines to one.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blank++
			if blank > 1 {
				continue
			}
			b.WriteString("\n")
			continue
		}
		blank = 0
		b.WriteString(trimmed)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
