package match

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/rotisserie/eris"
)

// Suggestion pairs an unmatched holding name with its nearest industry
// member names. Diagnostic output only: suggestions never feed resolution.
type Suggestion struct {
	ItemName   string       `json:"item_name"`
	Normalized string       `json:"normalized"`
	Nearest    []ScoredName `json:"nearest"`
}

// ScoredName is one near-miss candidate with its relevance score.
type ScoredName struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Suggester finds near-miss industry member names for holdings the exact
// join left unmatched. Backed by an in-memory bleve index over the raw and
// normalized member names.
type Suggester struct {
	index bleve.Index
	norm  *Normalizer
}

type suggestDoc struct {
	Name       string `json:"name"`
	Normalized string `json:"normalized"`
}

// NewSuggester indexes the industry dataset's member names.
func NewSuggester(names []string, norm *Normalizer) (*Suggester, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, eris.Wrap(err, "match: create suggestion index")
	}

	batch := index.NewBatch()
	for _, name := range names {
		doc := suggestDoc{Name: name, Normalized: norm.Normalize(name)}
		if err := batch.Index(name, doc); err != nil {
			return nil, eris.Wrapf(err, "match: index member name %q", name)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, eris.Wrap(err, "match: commit suggestion batch")
	}

	return &Suggester{index: index, norm: norm}, nil
}

// Nearest returns up to k member names ranked by closeness to the holding
// name. Exact normalized hits rank first, then prefix, token, and substring
// matches.
func (s *Suggester) Nearest(itemName string, k int) ([]ScoredName, error) {
	normalized := s.norm.Normalize(itemName)
	lower := strings.ToLower(normalized)

	exact := bleve.NewTermQuery(lower)
	exact.SetField("normalized")
	exact.SetBoost(10.0)

	prefix := bleve.NewPrefixQuery(lower)
	prefix.SetField("normalized")
	prefix.SetBoost(5.0)

	tokens := bleve.NewMatchQuery(itemName)
	tokens.SetField("name")
	tokens.SetBoost(3.0)

	contains := bleve.NewWildcardQuery("*" + lower + "*")
	contains.SetField("normalized")
	contains.SetBoost(1.5)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(exact, prefix, tokens, contains))
	req.Fields = []string{"name"}
	req.Size = k

	res, err := s.index.Search(req)
	if err != nil {
		return nil, eris.Wrapf(err, "match: suggestion search for %q", itemName)
	}

	out := make([]ScoredName, 0, len(res.Hits))
	for _, hit := range res.Hits {
		name, _ := hit.Fields["name"].(string)
		if name == "" {
			name = hit.ID
		}
		out = append(out, ScoredName{Name: name, Score: hit.Score})
	}
	return out, nil
}

// Close releases the in-memory index.
func (s *Suggester) Close() error {
	return s.index.Close()
}
