package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/monetadev/moneta/internal/vectorstore"
)

// VectorRepo is a vectorstore.Store kept in SQLite for single-machine use.
// Metadata terms are pushed down to json_extract; similarity is computed in
// process.
type VectorRepo struct {
	db *sql.DB
}

var _ vectorstore.Store = (*VectorRepo)(nil)

var metadataKey = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func (r *VectorRepo) Upsert(ctx context.Context, chunks []vectorstore.Chunk) error {
	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("upsert chunk: empty id")
		}
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, c := range chunks {
			md, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata of %s: %w", c.ID, err)
			}
			del := sqlite.Delete(tableVectors).Where(entsql.EQ("id", c.ID))
			if _, err := execB(ctx, tx, del); err != nil {
				return fmt.Errorf("replace chunk %s: %w", c.ID, err)
			}
			ins := sqlite.Insert(tableVectors).
				Columns("id", "text", "embedding", "metadata").
				Values(c.ID, c.Text, encodeVector(c.Embedding), string(md))
			if _, err := execB(ctx, tx, ins); err != nil {
				return fmt.Errorf("insert chunk %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (r *VectorRepo) Query(ctx context.Context, q vectorstore.Query) ([]vectorstore.Chunk, error) {
	sel := sqlite.Select("id", "text", "embedding", "metadata").From(entsql.Table(tableVectors))
	if pred := metadataPredicate(q.Filter); pred != nil {
		sel.Where(pred)
	}
	sel.OrderBy("rowid")

	rows, err := queryB(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []vectorstore.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		if q.Filter != nil && !q.Filter.Match(c.Metadata) {
			continue
		}
		c.Score = vectorstore.Cosine(q.Embedding, c.Embedding)
		if c.Score <= q.Threshold {
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if q.TopK > 0 && len(out) > q.TopK {
		out = out[:q.TopK]
	}
	return out, nil
}

func (r *VectorRepo) Delete(ctx context.Context, f vectorstore.Filter) (int, error) {
	if f == nil || len(vectorstore.Terms(f)) == 0 {
		return 0, vectorstore.ErrNoFilter
	}

	sel := sqlite.Select("id", "metadata").From(entsql.Table(tableVectors))
	if pred := metadataPredicate(f); pred != nil {
		sel.Where(pred)
	}
	rows, err := queryB(ctx, r.db, sel)
	if err != nil {
		return 0, fmt.Errorf("find chunks to delete: %w", err)
	}
	var ids []any
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return 0, err
		}
		var md map[string]string
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			rows.Close()
			return 0, fmt.Errorf("decode metadata of %s: %w", id, err)
		}
		if f.Match(md) {
			ids = append(ids, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	del := sqlite.Delete(tableVectors).Where(entsql.In("id", ids...))
	res, err := execB(ctx, r.db, del)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// metadataPredicate narrows the scan by the filter's equality terms whose
// keys are plain identifiers. The filter is still applied to every row read.
func metadataPredicate(f vectorstore.Filter) *entsql.Predicate {
	if f == nil {
		return nil
	}
	var preds []*entsql.Predicate
	for _, t := range vectorstore.Terms(f) {
		if !metadataKey.MatchString(t.Key) {
			continue
		}
		preds = append(preds, entsql.ExprP("json_extract(metadata, ?) = ?", "$."+t.Key, t.Value))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return entsql.And(preds...)
}

func scanChunk(row rowScanner) (vectorstore.Chunk, error) {
	var (
		c   vectorstore.Chunk
		vec []byte
		raw string
	)
	if err := row.Scan(&c.ID, &c.Text, &vec, &raw); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(raw), &c.Metadata); err != nil {
		return c, fmt.Errorf("decode metadata of %s: %w", c.ID, err)
	}
	c.Embedding = decodeVector(vec)
	return c, nil
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
