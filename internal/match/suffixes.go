package match

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"
)

// Rules are the normalizer's strip tokens, a versioned configuration surface:
// the defaults ship with the binary and an operator can override the whole
// set from a YAML file when upstream naming drifts.
//
// Leading tokens strip from the front ("주식회사 삼성전자"), Suffixes strip
// from the end across a space boundary ("ACME CO LTD"), Markers are Korean
// share-class designators that attach with no boundary at all
// ("삼성전자보통주").
type Rules struct {
	Leading  []string `yaml:"leading"`
	Suffixes []string `yaml:"suffixes"`
	Markers  []string `yaml:"markers"`
}

// DefaultRules returns the built-in strip tokens. Bare 우/우B class tails are
// deliberately absent: stripping them would mangle names that legitimately
// end in 우 (대우). Override via the rules file if a dataset needs them.
func DefaultRules() Rules {
	return Rules{
		Leading: []string{"주식회사"},
		Suffixes: []string{
			"주식회사", "홀딩스",
			"COMPANY LIMITED", "INCORPORATED", "CORPORATION", "HOLDINGS",
			"CO LTD", "LIMITED", "CORP", "INC", "LLC", "LTD", "PLC", "CO",
		},
		Markers: []string{"보통주", "우선주", "1우선주", "2우선주", "3우선주"},
	}
}

// LoadRules reads a strip-rules YAML file. Absent sections fall back to the
// defaults so an override file can adjust one list without restating the rest.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "match: read rules file %s", path)
	}
	rules := Rules{}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, eris.Wrapf(err, "match: parse rules file %s", path)
	}
	def := DefaultRules()
	if rules.Leading == nil {
		rules.Leading = def.Leading
	}
	if rules.Suffixes == nil {
		rules.Suffixes = def.Suffixes
	}
	if rules.Markers == nil {
		rules.Markers = def.Markers
	}
	return rules, nil
}

// canonical folds every token through the name pipeline's width/case stages
// and orders each list longest first, so lookups see tokens in the same form
// as normalized input and compound tokens win over their tails.
func (r Rules) canonical() Rules {
	fold := func(tokens []string) []string {
		out := make([]string, 0, len(tokens))
		for _, t := range tokens {
			t = strings.ToUpper(width.Fold.String(strings.TrimSpace(t)))
			if t != "" {
				out = append(out, t)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
		return out
	}
	return Rules{
		Leading:  fold(r.Leading),
		Suffixes: fold(r.Suffixes),
		Markers:  fold(r.Markers),
	}
}
