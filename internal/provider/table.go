package provider

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// MatchKind selects how a rule's pattern is applied to the cleaned input.
type MatchKind string

const (
	// MatchPrefix matches when the cleaned input starts with the pattern.
	MatchPrefix MatchKind = "prefix"
	// MatchContains matches when the cleaned input contains the pattern.
	MatchContains MatchKind = "contains"
	// MatchFuzzy scores the cleaned input against the pattern with an
	// edit-distance ratio; the single best-scoring rule above the
	// threshold wins.
	MatchFuzzy MatchKind = "fuzzy"
)

// Rule is one entry of the ordered canonical-provider table. Rule order is
// the tie-break for equal fuzzy scores, so the table is a slice, not a map.
type Rule struct {
	Match     MatchKind `yaml:"match"`
	Pattern   string    `yaml:"pattern"`
	Canonical string    `yaml:"canonical"`
	// SkipDSR disables the rule for DSR-sourced text. Order records name
	// the billed product, so they are never downgraded to a cellular label.
	SkipDSR bool `yaml:"skip_dsr,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

//go:embed providers.yaml
var defaultTable []byte

// DefaultRules returns the embedded canonical-provider table.
func DefaultRules() ([]Rule, error) {
	return parseRules(defaultTable)
}

// LoadRules reads a rule table from a YAML file, replacing the defaults.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: read rule table %s", path)
	}
	return parseRules(data)
}

func parseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "provider: parse rule table")
	}
	if len(f.Rules) == 0 {
		return nil, eris.New("provider: rule table is empty")
	}
	for i, r := range f.Rules {
		switch r.Match {
		case MatchPrefix, MatchContains, MatchFuzzy:
		default:
			return nil, eris.Errorf("provider: rule %d: unknown match kind %q", i, r.Match)
		}
		if r.Pattern == "" || r.Canonical == "" {
			return nil, eris.Errorf("provider: rule %d: pattern and canonical are required", i)
		}
	}
	return f.Rules, nil
}
