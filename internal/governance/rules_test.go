package governance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRulesYAMLPreservesOrderAndFields(t *testing.T) {
	doc := []byte(`
- id: deny-secrets
  pattern: "ccos.secrets.*"
  action: deny
  reason: "no automated secret writes"
- id: approve-net
  pattern: "ccos.network.*"
  action: require_approval
`)
	rules, err := LoadRulesYAML(doc)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "deny-secrets", rules[0].ID)
	require.Equal(t, ActionDeny, rules[0].Action)
	require.Equal(t, ActionRequireApproval, rules[1].Action)
}

func TestLoadRulesYAMLRejectsUnknownAction(t *testing.T) {
	_, err := LoadRulesYAML([]byte(`- id: bad
  pattern: "x"
  action: maybe
`))
	require.Error(t, err)
}
