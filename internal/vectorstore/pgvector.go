package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is the table PGVector uses when none is configured.
const DefaultTable = "moneta_vector_store"

// pgxConn is the subset of *pgxpool.Pool the store uses.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PGVector is a Store backed by PostgreSQL with the pgvector extension.
// Metadata lives in a jsonb column; similarity is 1 - cosine distance.
type PGVector struct {
	conn       pgxConn
	table      string
	dimensions int
}

// PGConfig configures a PGVector store.
type PGConfig struct {
	URL        string
	Table      string
	Dimensions int
	// MaxConns bounds the pool. Zero keeps the pgxpool default.
	MaxConns int32
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// OpenPGVector connects a pool, creates the extension and table when
// missing, and returns the store with its pool so the caller can close it.
func OpenPGVector(ctx context.Context, cfg PGConfig) (*PGVector, *pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse vector store URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create vector store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping vector store: %w", err)
	}

	s, err := NewPGVector(pool, cfg.Table, cfg.Dimensions)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// NewPGVector wraps an existing connection or pool.
func NewPGVector(conn pgxConn, table string, dimensions int) (*PGVector, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid vector store table name %q", table)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("vector store dimensions must be positive, got %d", dimensions)
	}
	return &PGVector{conn: conn, table: table, dimensions: dimensions}, nil
}

// Migrate creates the pgvector extension, the table and its indexes.
func (s *PGVector) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id        TEXT PRIMARY KEY,
			content   TEXT NOT NULL,
			metadata  JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, s.table, s.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_metadata_idx ON %s USING gin (metadata)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate vector store: %w", err)
		}
	}
	return nil
}

func (s *PGVector) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	stmt := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4::vector)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content,
			metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, s.table)
	for _, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			return fmt.Errorf("chunk %s: embedding has %d dimensions, store expects %d", c.ID, len(c.Embedding), s.dimensions)
		}
		md, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("chunk %s: encode metadata: %w", c.ID, err)
		}
		batch.Queue(stmt, c.ID, c.Text, md, vectorLiteral(c.Embedding))
	}

	br := s.conn.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert chunks: %w", err)
		}
	}
	return nil
}

func (s *PGVector) Query(ctx context.Context, q Query) ([]Chunk, error) {
	args := []any{vectorLiteral(q.Embedding), q.Threshold}
	where := []string{"1 - (embedding <=> $1::vector) > $2"}
	if cond, fargs := filterSQL(q.Filter, len(args)+1); cond != "" {
		where = append(where, cond)
		args = append(args, fargs...)
	}

	sql := fmt.Sprintf(`SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS score
		FROM %s WHERE %s ORDER BY embedding <=> $1::vector`, s.table, strings.Join(where, " AND "))
	if q.TopK > 0 {
		args = append(args, q.TopK)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			c  Chunk
			md []byte
		)
		if err := rows.Scan(&c.ID, &c.Text, &md, &c.Score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(md) > 0 {
			if err := json.Unmarshal(md, &c.Metadata); err != nil {
				return nil, fmt.Errorf("chunk %s: decode metadata: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGVector) Delete(ctx context.Context, f Filter) (int, error) {
	cond, args := filterSQL(f, 1)
	if cond == "" {
		return 0, ErrNoFilter
	}
	tag, err := s.conn.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, s.table, cond), args...)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// filterSQL renders f as equality tests on jsonb text values, numbering
// parameters from first.
func filterSQL(f Filter, first int) (string, []any) {
	if f == nil {
		return "", nil
	}
	terms := f.terms()
	if len(terms) == 0 {
		return "", nil
	}

	conds := make([]string, len(terms))
	args := make([]any, 0, len(terms)*2)
	for i, t := range terms {
		n := first + 2*i
		conds[i] = fmt.Sprintf("metadata->>$%d = $%d", n, n+1)
		args = append(args, t.key, t.value)
	}
	return strings.Join(conds, " AND "), args
}

// vectorLiteral formats v in pgvector's text input form, e.g. [0.1,0.2].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*8 + 2)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
