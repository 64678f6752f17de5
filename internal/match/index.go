package match

import (
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/model"
)

// Candidate is one (industry entry, member company) pair reachable from a
// normalized company name. An entry with N member companies contributes N
// candidates; a company belonging to M entries appears under its key M times.
type Candidate struct {
	Entry       *model.IndustryEntry
	CompanyName string
	CompanyCode string
	ord         int
}

// Index maps normalized company names to their candidates, in dataset order.
type Index struct {
	byName map[string][]Candidate
	names  []string
	// Skipped counts industry entries dropped for an unparseable company list.
	Skipped int
}

// BuildIndex makes one pass over the industry dataset and files every member
// company under its normalized name. Entries whose companies cell fails to
// parse are skipped with a warning; a bad row never aborts the build.
func BuildIndex(entries []model.IndustryEntry, norm *Normalizer) *Index {
	log := zap.L().With(zap.String("component", "match_index"))

	idx := &Index{byName: make(map[string][]Candidate)}
	seen := make(map[string]struct{})
	ord := 0

	for i := range entries {
		e := &entries[i]
		refs, err := model.ParseCompanies(e.CompaniesJSON)
		if err != nil {
			idx.Skipped++
			log.Warn("skipping industry entry with malformed companies",
				zap.String("sub_code", e.SubCode),
				zap.String("data_code", e.DataCode),
				zap.Error(err),
			)
			continue
		}
		for _, ref := range refs {
			key := norm.Normalize(ref.Name)
			if key == "" {
				continue
			}
			idx.byName[key] = append(idx.byName[key], Candidate{
				Entry:       e,
				CompanyName: ref.Name,
				CompanyCode: ref.Code,
				ord:         ord,
			})
			ord++
			if _, ok := seen[ref.Name]; !ok {
				seen[ref.Name] = struct{}{}
				idx.names = append(idx.names, ref.Name)
			}
		}
	}

	log.Debug("industry index built",
		zap.Int("entries", len(entries)),
		zap.Int("keys", len(idx.byName)),
		zap.Int("skipped", idx.Skipped),
	)
	return idx
}

// Lookup returns the candidates filed under a normalized name, in insertion
// order. Nil when the name is unknown.
func (idx *Index) Lookup(normalized string) []Candidate {
	return idx.byName[normalized]
}

// Len reports the number of distinct normalized names in the index.
func (idx *Index) Len() int {
	return len(idx.byName)
}

// CompanyNames returns the distinct raw member names seen during the build,
// in first-seen order. Feeds the near-miss suggester.
func (idx *Index) CompanyNames() []string {
	return idx.names
}
