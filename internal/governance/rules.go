package governance

import (
	"gopkg.in/yaml.v3"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// ruleDoc mirrors Rule's fields with YAML tags; decoding a rule-set out of
// caller-supplied bytes never does any file I/O of its own (no config
// loading is in scope — the caller owns fetching those bytes however it
// wants), it only decodes them.
type ruleDoc struct {
	ID      string `yaml:"id"`
	Pattern string `yaml:"pattern"`
	Action  string `yaml:"action"`
	Reason  string `yaml:"reason"`
}

var actionByName = map[string]Action{
	"allow":            ActionAllow,
	"deny":             ActionDeny,
	"require_approval": ActionRequireApproval,
}

// LoadRulesYAML decodes a YAML document of the form:
//
//	- id: deny-secrets
//	  pattern: "ccos.secrets.*"
//	  action: deny
//	  reason: "no automated secret writes"
//
// into an ordered []Rule suitable for NewConstitution, preserving document
// order as match priority.
func LoadRulesYAML(data []byte) ([]Rule, error) {
	var docs []ruleDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindParse, "decode constitution rule-set failed", err)
	}
	rules := make([]Rule, 0, len(docs))
	for _, d := range docs {
		action, ok := actionByName[d.Action]
		if !ok {
			return nil, ccoserr.Newf(ccoserr.KindParse, "unknown constitution rule action %q for rule %q", d.Action, d.ID)
		}
		rules = append(rules, Rule{ID: d.ID, Pattern: d.Pattern, Action: action, Reason: d.Reason})
	}
	return rules, nil
}
