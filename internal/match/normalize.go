package match

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// punctReplacer strips the punctuation that varies between fund disclosures
// and the industry membership lists. "(주)" goes first so the corporate
// abbreviation disappears as a unit instead of leaving a stray 주 token.
var punctReplacer = strings.NewReplacer(
	"(주)", " ",
	",", "",
	".", "",
	"'", "",
	"\"", "",
	"(", " ",
	")", " ",
	"·", " ",
	"&", " AND ",
	"-", " ",
)

// Normalizer folds company names into the canonical form both sides of the
// holdings/industry join are keyed on.
type Normalizer struct {
	rules Rules
}

// NewNormalizer builds a Normalizer from strip rules. Rule tokens are folded
// through the same width/case pipeline as input names and ordered longest
// first so compound forms win.
func NewNormalizer(rules Rules) *Normalizer {
	return &Normalizer{rules: rules.canonical()}
}

// Normalize maps a raw company name to its canonical form: width-fold,
// uppercase, punctuation strip, whitespace collapse, then trailing
// corporate-suffix and share-class tokens removed to a fixed point. Total
// and idempotent; empty input stays empty.
func (n *Normalizer) Normalize(raw string) string {
	s := width.Fold.String(raw)
	s = strings.ToUpper(s)
	s = punctReplacer.Replace(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for {
		next := n.stripOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

// stripOnce removes at most one leading or trailing token. Suffix tokens
// require a space boundary; share-class markers attach directly to the name
// (삼성전자보통주) so they strip without one. A name consisting solely of a
// token is left alone rather than reduced to nothing.
func (n *Normalizer) stripOnce(s string) string {
	for _, t := range n.rules.Leading {
		if strings.HasPrefix(s, t+" ") {
			return strings.TrimSpace(strings.TrimPrefix(s, t))
		}
	}
	for _, t := range n.rules.Suffixes {
		if strings.HasSuffix(s, " "+t) {
			return strings.TrimSpace(strings.TrimSuffix(s, " "+t))
		}
	}
	for _, t := range n.rules.Markers {
		if strings.HasSuffix(s, t) && len(s) > len(t) {
			return strings.TrimSpace(strings.TrimSuffix(s, t))
		}
	}
	return s
}
