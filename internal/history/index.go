package history

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/kiku/internal/models"
)

// SearchOptions tunes history search. Nil means defaults.
type SearchOptions struct {
	// QueryBoost multiplies matches in the saved question over matches in the answer.
	QueryBoost float64
	// Fuzziness is the maximum edit distance per term; 0 disables fuzzy matching.
	Fuzziness int
}

// Hit is a single full-text match.
type Hit struct {
	ID    string
	Score float64
}

// Index is a full-text index over history entries.
type Index interface {
	Index(ctx context.Context, entry *models.HistoryEntry) error
	Search(ctx context.Context, userID, query string, limit int, opts *SearchOptions) ([]Hit, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

type indexedEntry struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// Remove the directory after changing the mapping so it is rebuilt.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemBleveIndex creates an in-memory index.
func NewMemBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer lowercases and tokenizes without stemming, so a query matches the word as typed.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("query", textFieldMapping)
	docMapping.AddFieldMappingsAt("answer", textFieldMapping)

	userFieldMapping := bleve.NewKeywordFieldMapping()
	userFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("user_id", userFieldMapping)

	im.AddDocumentMapping("entry", docMapping)
	im.DefaultType = "entry"
	im.DefaultMapping = docMapping
	return im
}

// Index adds or replaces entry in the index.
func (b *BleveIndex) Index(ctx context.Context, entry *models.HistoryEntry) error {
	return b.index.Index(entry.ID, indexedEntry{
		UserID: entry.UserID,
		Query:  entry.Query,
		Answer: entry.Answer,
	})
}

// Search returns up to limit of the user's entries matching query, best first.
func (b *BleveIndex) Search(ctx context.Context, userID, query string, limit int, opts *SearchOptions) ([]Hit, error) {
	queryBoost := 2.0
	fuzziness := 0
	if opts != nil {
		if opts.QueryBoost > 0 {
			queryBoost = opts.QueryBoost
		}
		fuzziness = opts.Fuzziness
	}

	text := bleve.NewDisjunctionQuery(
		fieldQuery(query, "query", fuzziness, queryBoost),
		fieldQuery(query, "answer", fuzziness, 1),
	)
	owner := bleve.NewTermQuery(userID)
	owner.SetField("user_id")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(owner, text))
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make([]Hit, len(results.Hits))
	for i, hit := range results.Hits {
		hits[i] = Hit{ID: hit.ID, Score: hit.Score}
	}
	return hits, nil
}

// fieldQuery matches query against field, as a disjunction of fuzzy terms when fuzziness > 0.
func fieldQuery(query, field string, fuzziness int, boost float64) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if fuzziness <= 0 || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes an entry from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed entries.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
