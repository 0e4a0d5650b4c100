package store

import (
	"context"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	ferrors "github.com/feedwise/feedwise/internal/errors"
	"github.com/feedwise/feedwise/internal/feed"
)

// titleBoost mirrors the heuristic scorer's title weighting so the two
// keyword backends rank comparably.
const titleBoost = 3.0

// bleveDoc is the indexed representation of an item.
type bleveDoc struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// BleveIndex implements KeywordIndex on a bleve full-text index. It is
// the indexed backend for large corpora; the heuristic scorer stays the
// default because it needs no index build and no stored state.
type BleveIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

var _ KeywordIndex = (*BleveIndex)(nil)

func bleveMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", textField)
	doc.AddFieldMappingsAt("text", textField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// BleveIndexPath derives the full-text index location from the SQLite
// store path. An in-memory store gets an in-memory index.
func BleveIndexPath(storePath string) string {
	if storePath == "" {
		return ""
	}
	return storePath + ".bleve"
}

// NewBleveIndex creates an index at path, or in memory when path is
// empty.
func NewBleveIndex(path string) (*BleveIndex, error) {
	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(bleveMapping())
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, bleveMapping())
		}
	}
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}

	return &BleveIndex{index: idx}, nil
}

// Index adds items to the index, replacing existing entries per id.
func (b *BleveIndex) Index(ctx context.Context, items []*feed.Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := bleveDoc{Title: it.Title, Text: it.Text()}
		if err := batch.Index(it.ID, doc); err != nil {
			return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	return nil
}

// Search returns up to limit items matching query, scored by bleve's
// BM25-style scoring with the title field boosted.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(titleBoost)

	textQuery := bleve.NewMatchQuery(query)
	textQuery.SetField("text")

	req := bleve.NewSearchRequestOptions(
		bleve.NewDisjunctionQuery(titleQuery, textQuery), limit, 0, false)

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}

	results := make([]KeywordResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, KeywordResult{ItemID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Delete removes items from the index.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	return nil
}

// Count returns the number of indexed items.
func (b *BleveIndex) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, err := b.index.DocCount()
	if err != nil {
		return 0, ferrors.Wrap(ferrors.ErrCodeStoreUnavailable, err)
	}
	return int(n), nil
}

// Close releases index resources.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
