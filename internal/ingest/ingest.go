// Package ingest extracts, chunks and embeds the learner's documents into the
// vector store, and removes them again.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/document"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/rs/zerolog"
)

// Document is an uploaded file to index. Filename is the stored name; when
// empty one is derived from OriginalFilename and ID.
type Document struct {
	ID               string
	Filename         string
	OriginalFilename string
	Kind             document.Kind
	Open             func() (io.ReadCloser, error)
	FlashcardSetID   uuid.UUID
}

// FileDocument describes a file on disk.
func FileDocument(path string, kind document.Kind) Document {
	return Document{
		ID:               uuid.NewString(),
		OriginalFilename: filepath.Base(path),
		Kind:             kind,
		Open:             func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// StoredFilename returns the name chunks are recorded under.
func (d Document) StoredFilename() string {
	if d.Filename != "" {
		return d.Filename
	}
	name := d.OriginalFilename
	ext := strings.ToLower(filepath.Ext(name))
	base := slug.Make(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "document"
	}
	id := d.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if id != "" {
		base += "-" + id
	}
	return base + ext
}

// Config tunes ingestion.
type Config struct {
	Splitter  document.Splitter
	BatchSize int   // texts per embedding call
	MaxBytes  int64 // largest accepted upload
}

// DefaultConfig returns the default ingestion settings.
func DefaultConfig() Config {
	return Config{
		Splitter:  document.DefaultSplitter(),
		BatchSize: 64,
		MaxBytes:  50 << 20,
	}
}

// Ingestor implements the chunk and embed stage.
type Ingestor struct {
	store    vectorstore.Store
	embedder llm.Embedder
	config   Config
	log      zerolog.Logger
}

// New creates an Ingestor.
func New(store vectorstore.Store, embedder llm.Embedder, cfg Config, log zerolog.Logger) *Ingestor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Ingestor{store: store, embedder: embedder, config: cfg, log: log}
}

// Read extracts and splits a document without embedding it.
func (in *Ingestor) Read(doc Document) ([]document.Chunk, error) {
	name := doc.OriginalFilename
	if name == "" {
		name = doc.Filename
	}
	fail := func(err error) ([]document.Chunk, error) {
		return nil, &study.IngestionError{Filename: name, Err: err}
	}

	if doc.Open == nil {
		return fail(errors.New("document has no content"))
	}
	rc, err := doc.Open()
	if err != nil {
		return fail(fmt.Errorf("open: %w", err))
	}
	defer rc.Close()

	var r io.Reader = rc
	if in.config.MaxBytes > 0 {
		r = io.LimitReader(rc, in.config.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fail(fmt.Errorf("read: %w", err))
	}
	if in.config.MaxBytes > 0 && int64(len(data)) > in.config.MaxBytes {
		return fail(fmt.Errorf("document exceeds %d bytes", in.config.MaxBytes))
	}

	sections, err := document.Extract(name, doc.Kind, data)
	if err != nil {
		return fail(err)
	}
	chunks := in.config.Splitter.SplitSections(sections)
	if len(chunks) == 0 {
		return fail(document.ErrNoText)
	}
	return chunks, nil
}

// EmbedDocument indexes doc for the current user and returns its original
// filename, or the stored filename when it has none. Chunk IDs derive from the document ID and chunk index, so
// re-running an ingestion overwrites rather than duplicates.
func (in *Ingestor) EmbedDocument(ctx context.Context, doc Document) (string, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	filename := doc.StoredFilename()
	display := doc.OriginalFilename
	if display == "" {
		display = filename
	}

	parts, err := in.Read(doc)
	if err != nil {
		return "", err
	}

	chunks := make([]vectorstore.Chunk, len(parts))
	for i, p := range parts {
		md := map[string]string{
			vectorstore.KeyOwner:     owner.String(),
			vectorstore.KeySourceDoc: doc.ID,
			vectorstore.KeyFilename:  filename,
		}
		if doc.OriginalFilename != "" {
			md[vectorstore.KeyOriginalFilename] = doc.OriginalFilename
		}
		if doc.FlashcardSetID != uuid.Nil {
			md[vectorstore.KeyFlashcardSet] = doc.FlashcardSetID.String()
		}
		if p.Page > 0 {
			md[vectorstore.KeyPage] = strconv.Itoa(p.Page)
		}
		chunks[i] = vectorstore.Chunk{
			ID:       chunkID(doc.ID, i),
			Text:     p.Text,
			Metadata: md,
		}
	}

	for start := 0; start < len(chunks); start += in.config.BatchSize {
		end := min(start+in.config.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			return "", &study.IngestionError{Filename: display, Err: fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)}
		}
		if len(vecs) != len(batch) {
			return "", &study.IngestionError{Filename: display, Err: fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(batch))}
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}

		if err := in.store.Upsert(ctx, batch); err != nil {
			return "", &study.IngestionError{Filename: display, Err: fmt.Errorf("store chunks %d-%d: %w", start, end-1, err)}
		}
	}

	in.log.Info().
		Str("doc", doc.ID).
		Str("filename", filename).
		Str("kind", doc.Kind.String()).
		Int("chunks", len(chunks)).
		Msg("document embedded")
	return display, nil
}

// DeleteDocumentEmbedding removes every chunk of docID owned by the current
// user and reports how many were removed. Removing nothing is not an error.
func (in *Ingestor) DeleteDocumentEmbedding(ctx context.Context, docID string) (int, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return 0, err
	}
	if docID == "" {
		return 0, errors.New("document id is required")
	}

	n, err := in.store.Delete(ctx, vectorstore.And(
		vectorstore.Eq(vectorstore.KeyOwner, owner.String()),
		vectorstore.Eq(vectorstore.KeySourceDoc, docID),
	))
	if err != nil {
		return 0, fmt.Errorf("delete embeddings of %s: %w", docID, err)
	}
	in.log.Info().Str("doc", docID).Int("chunks", n).Msg("document embeddings deleted")
	return n, nil
}

var chunkNamespace = uuid.MustParse("6f1c3a52-9d0e-4b8e-a7d4-3c1e2b5f9a10")

func chunkID(docID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(docID+"#"+strconv.Itoa(index))).String()
}
