// Package search keeps an in-memory full-text index over conversation turns
// so users can find old exchanges. The index is rebuilt from storage at
// startup and updated as turns are written or deleted.
package search

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"

	"github.com/charlabot/charla/internal/store"
)

type turnDoc struct {
	UserID      string `json:"user_id"`
	UserMessage string `json:"user_message"`
	AIResponse  string `json:"ai_response"`
}

type Hit struct {
	TurnID int64
	Score  float64
}

type Index struct {
	idx bleve.Index
}

// NewMemIndex builds an in-memory index. user_id is indexed verbatim so the
// ownership filter is exact, not analyzed.
func NewMemIndex() (*Index, error) {
	mapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()
	uid := bleve.NewTextFieldMapping()
	uid.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("user_id", uid)
	mapping.DefaultMapping = doc

	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func (s *Index) IndexTurn(t store.Turn) error {
	return s.idx.Index(strconv.FormatInt(t.ID, 10), turnDoc{
		UserID:      t.UserID,
		UserMessage: t.UserMessage,
		AIResponse:  t.AIResponse,
	})
}

func (s *Index) DeleteTurn(id int64) error {
	return s.idx.Delete(strconv.FormatInt(id, 10))
}

// Rebuild indexes every turn in one batch.
func (s *Index) Rebuild(turns []store.Turn) error {
	batch := s.idx.NewBatch()
	for _, t := range turns {
		if err := batch.Index(strconv.FormatInt(t.ID, 10), turnDoc{
			UserID:      t.UserID,
			UserMessage: t.UserMessage,
			AIResponse:  t.AIResponse,
		}); err != nil {
			return err
		}
	}
	return s.idx.Batch(batch)
}

// Search runs a query string scoped to the given user's turns.
func (s *Index) Search(userID, query string, limit int) ([]Hit, error) {
	owner := bleve.NewTermQuery(userID)
	owner.SetField("user_id")
	q := bleve.NewConjunctionQuery(owner, bleve.NewQueryStringQuery(query))

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{TurnID: id, Score: h.Score})
	}
	return hits, nil
}

func (s *Index) Close() error { return s.idx.Close() }
