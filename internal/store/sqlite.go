package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	ferrors "github.com/feedwise/feedwise/internal/errors"
	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/vector"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	source       TEXT NOT NULL,
	url          TEXT NOT NULL,
	published_at INTEGER NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	relevance    REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_items_published ON items(published_at);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);

CREATE TABLE IF NOT EXISTS embeddings (
	item_id    TEXT PRIMARY KEY,
	vector     BLOB NOT NULL,
	model      TEXT NOT NULL,
	dimensions INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS selections (
	id         TEXT PRIMARY KEY,
	context    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS selection_entries (
	selection_id TEXT NOT NULL REFERENCES selections(id) ON DELETE CASCADE,
	item_id      TEXT NOT NULL,
	position     INTEGER NOT NULL,
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (selection_id, item_id)
);
`

// SQLite implements ItemStore, VectorCache, and SelectionStore on one
// database file.
type SQLite struct {
	db   *sql.DB
	dims int
	sb   sq.StatementBuilderType
}

var (
	_ ItemStore      = (*SQLite)(nil)
	_ VectorCache    = (*SQLite)(nil)
	_ SelectionStore = (*SQLite)(nil)
)

// OpenSQLite opens (or creates) the store at path. Empty path opens an
// in-memory database. dims is the target embedding dimension applied at
// the cache read boundary.
func OpenSQLite(path string, dims int) (*SQLite, error) {
	if dims <= 0 {
		return nil, ferrors.ValidationError("store dimensions must be positive", nil)
	}

	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}

	// WAL enables concurrent readers during ingestion writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreCorrupt, err)
	}

	return &SQLite{
		db:   db,
		dims: dims,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveItems upserts items.
func (s *SQLite) SaveItems(ctx context.Context, items []*feed.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, title, source, url, published_at, summary, body, category, relevance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, source=excluded.source, url=excluded.url,
			published_at=excluded.published_at, summary=excluded.summary,
			body=excluded.body, category=excluded.category, relevance=excluded.relevance`)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, it := range items {
		if it.ID == "" {
			return ferrors.ValidationError("item id must not be empty", nil)
		}
		if _, err := stmt.ExecContext(ctx,
			it.ID, it.Title, it.Source, it.URL, it.PublishedAt.UnixMilli(),
			it.Summary, it.Body, it.Category, it.Relevance); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
		}
	}

	return tx.Commit()
}

// Items returns items inside the window, newest first.
func (s *SQLite) Items(ctx context.Context, w feed.Window) ([]*feed.Item, error) {
	q := s.sb.Select("id", "title", "source", "url", "published_at",
		"summary", "body", "category", "relevance").
		From("items").
		OrderBy("published_at DESC, id ASC")

	if !w.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"published_at": w.Since.UnixMilli()})
	}
	if !w.Until.IsZero() {
		q = q.Where(sq.Lt{"published_at": w.Until.UnixMilli()})
	}
	if w.Category != "" {
		q = q.Where(sq.Eq{"category": w.Category})
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanItems(rows)
}

// GetItems returns items by id, omitting unknown ids.
func (s *SQLite) GetItems(ctx context.Context, ids []string) ([]*feed.Item, error) {
	if len(ids) == 0 {
		return []*feed.Item{}, nil
	}

	sqlStr, args, err := s.sb.Select("id", "title", "source", "url", "published_at",
		"summary", "body", "category", "relevance").
		From("items").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]*feed.Item, error) {
	var items []*feed.Item
	for rows.Next() {
		var it feed.Item
		var publishedMs int64
		if err := rows.Scan(&it.ID, &it.Title, &it.Source, &it.URL, &publishedMs,
			&it.Summary, &it.Body, &it.Category, &it.Relevance); err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeStoreCorrupt, err)
		}
		it.PublishedAt = time.UnixMilli(publishedMs).UTC()
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	return items, nil
}

// Get returns cached vectors for ids, reprojected to the store's target
// dimension at this boundary. Entries that cannot be reprojected are
// omitted so the caller re-embeds them.
func (s *SQLite) Get(ctx context.Context, ids []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	sqlStr, args, err := s.sb.Select("item_id", "vector", "dimensions").
		From("embeddings").
		Where(sq.Eq{"item_id": ids}).
		ToSql()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var blob []byte
		var dims int
		if err := rows.Scan(&id, &blob, &dims); err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeStoreCorrupt, err)
		}

		vec := decodeVector(blob, dims)
		if vec == nil {
			continue // truncated blob, treat as miss
		}

		projected, err := vector.Reproject(vec, s.dims)
		if err != nil {
			// Incompatible dimension: reject the entry so it gets
			// re-embedded rather than silently compared.
			continue
		}
		result[id] = projected
	}
	return result, rows.Err()
}

// Put stores one vector, replacing any previous entry for the id.
func (s *SQLite) Put(ctx context.Context, id string, vec []float32, model string) error {
	return s.PutBatch(ctx, []VectorEntry{{
		ID: id, Vector: vec, Model: model,
		Dimensions: len(vec), CreatedAt: time.Now().UTC(),
	}})
}

// PutBatch stores entries, replacing previous entries per id.
func (s *SQLite) PutBatch(ctx context.Context, entries []VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (item_id, vector, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			vector=excluded.vector, model=excluded.model,
			dimensions=excluded.dimensions, created_at=excluded.created_at`)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			return ferrors.ValidationError("vector entry needs id and vector", nil)
		}
		dims := e.Dimensions
		if dims == 0 {
			dims = len(e.Vector)
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, encodeVector(e.Vector), e.Model, dims, createdAt.UnixMilli()); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
		}
	}

	return tx.Commit()
}

// SaveSelection persists a selection record. A missing ID gets a fresh
// uuid.
func (s *SQLite) SaveSelection(ctx context.Context, rec *SelectionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO selections (id, context, created_at) VALUES (?, ?, ?)`,
		rec.ID, rec.Context, rec.CreatedAt.UnixMilli()); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}

	for i, itemID := range rec.Selected {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO selection_entries (selection_id, item_id, position, status) VALUES (?, ?, ?, 'selected')`,
			rec.ID, itemID, i); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
		}
	}
	for i, rej := range rec.Rejected {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO selection_entries (selection_id, item_id, position, status, reason) VALUES (?, ?, ?, 'rejected', ?)`,
			rec.ID, rej.ItemID, len(rec.Selected)+i, string(rej.Reason)); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
		}
	}

	return tx.Commit()
}

// ListSelections returns records created at or after since, newest first.
func (s *SQLite) ListSelections(ctx context.Context, since time.Time, limit int) ([]*SelectionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	sqlStr, args, err := s.sb.Select("id", "context", "created_at").
		From("selections").
		Where(sq.GtOrEq{"created_at": since.UnixMilli()}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*SelectionRecord
	for rows.Next() {
		var rec SelectionRecord
		var createdMs int64
		if err := rows.Scan(&rec.ID, &rec.Context, &createdMs); err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeStoreCorrupt, err)
		}
		rec.CreatedAt = time.UnixMilli(createdMs).UTC()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		if err := s.loadEntries(ctx, rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *SQLite) loadEntries(ctx context.Context, rec *SelectionRecord) error {
	sqlStr, args, err := s.sb.Select("item_id", "status", "reason").
		From("selection_entries").
		Where(sq.Eq{"selection_id": rec.ID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeInternal, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var itemID, status, reason string
		if err := rows.Scan(&itemID, &status, &reason); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeStoreCorrupt, err)
		}
		if status == "selected" {
			rec.Selected = append(rec.Selected, itemID)
		} else {
			rec.Rejected = append(rec.Rejected, Rejection{ItemID: itemID, Reason: RejectionReason(reason)})
		}
	}
	return rows.Err()
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector unpacks a vector, returning nil on a size mismatch.
func decodeVector(buf []byte, dims int) []float32 {
	if dims <= 0 || len(buf) != 4*dims {
		return nil
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
