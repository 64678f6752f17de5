package match

import (
	"github.com/bigrise-data/bigrise/internal/model"
)

// Resolver joins holdings to industry entries by exact lookup on the
// normalized name. Ambiguity is resolved here, deterministically, so the
// same inputs always produce the same output rows.
type Resolver struct {
	idx  *Index
	norm *Normalizer
}

// NewResolver creates a resolver over a built index.
func NewResolver(idx *Index, norm *Normalizer) *Resolver {
	return &Resolver{idx: idx, norm: norm}
}

// Resolve annotates one holding with its industry fields. No candidates
// leaves the industry fields empty; multiple candidates pick the freshest
// entry (ties: smallest sub_code, then data_code, then index order).
// Never fails: a holding always comes back, matched or not.
func (r *Resolver) Resolve(h model.Holding) model.ResolvedHolding {
	out := model.ResolvedHolding{Holding: h}

	cands := r.idx.Lookup(r.norm.Normalize(h.ItemName))
	out.Candidates = len(cands)
	if len(cands) == 0 {
		return out
	}

	best := pickCandidate(cands)
	e := best.Entry
	out.Matched = true
	out.IndustryInfo = e.Info()
	out.IndustryFrequency = e.Frequency
	out.IndustrySource = e.Source
	if _, raw, ok := e.EffectiveUpdateDate(); ok {
		out.IndustryUpdate = raw
	} else {
		out.IndustryUpdate = firstNonEmpty(e.UpdateDate, e.HeaderUpdateDate, e.LastUpdate)
	}
	return out
}

// pickCandidate applies the tie-break order: most recent effective update
// date first (a parseable date always beats an unparseable one), then
// lexicographically smallest sub_code, then data_code, then the candidate
// filed earliest.
func pickCandidate(cands []Candidate) Candidate {
	best := cands[0]
	bestT, _, bestOK := best.Entry.EffectiveUpdateDate()

	for _, c := range cands[1:] {
		t, _, ok := c.Entry.EffectiveUpdateDate()
		switch {
		case ok && !bestOK:
			best, bestT, bestOK = c, t, true
		case !ok && bestOK:
			// keep best
		case ok && bestOK && !t.Equal(bestT):
			if t.After(bestT) {
				best, bestT = c, t
			}
		default:
			if candidateLess(c, best) {
				best, bestT, bestOK = c, t, ok
			}
		}
	}
	return best
}

// candidateLess orders equally-dated candidates: sub_code, data_code, then
// insertion order.
func candidateLess(a, b Candidate) bool {
	if a.Entry.SubCode != b.Entry.SubCode {
		return a.Entry.SubCode < b.Entry.SubCode
	}
	if a.Entry.DataCode != b.Entry.DataCode {
		return a.Entry.DataCode < b.Entry.DataCode
	}
	return a.ord < b.ord
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
