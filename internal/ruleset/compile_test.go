package ruleset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-eng/statecore/internal/trigger"
)

func TestDecodeJSON_Valid(t *testing.T) {
	data := []byte(`{
		"rules": [
			{"event": "checkout_view", "page": "/checkout*", "trigger": "pageload"},
			{
				"event": "checkout_click",
				"page": "/cart",
				"exclude": ["*preview=1*"],
				"trigger": "click",
				"selector": ".checkout-btn",
				"prevent_default": true,
				"resume_delay_ms": 100
			}
		]
	}`)

	rs, err := DecodeJSON(data)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 2)
	assert.Equal(t, "checkout_view", rs.Rules[0].Event)
	assert.Equal(t, ".checkout-btn", rs.Rules[1].Selector)
}

func TestDecodeJSON_EmptyRules(t *testing.T) {
	rs, err := DecodeJSON([]byte(`{"rules": []}`))
	require.NoError(t, err)
	assert.Empty(t, rs.Rules)
}

func TestDecodeJSON_SchemaRejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"click without selector", `{"rules":[{"event":"e","trigger":"click"}]}`},
		{"empty event", `{"rules":[{"event":"","trigger":"pageload"}]}`},
		{"unknown trigger kind", `{"rules":[{"event":"e","trigger":"hover"}]}`},
		{"negative delay", `{"rules":[{"event":"e","trigger":"pageload","resume_delay_ms":-1}]}`},
		{"missing rules key", `{}`},
		{"not json", `{nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeYAML_Valid(t *testing.T) {
	data := []byte(`
rules:
  - event: checkout_view
    page: "/checkout*"
    trigger: pageload
  - event: checkout_click
    trigger: click
    selector: ".checkout-btn"
    prevent_default: true
    resume_delay_ms: 250
`)

	rs, err := DecodeYAML(data)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 2)
	assert.True(t, rs.Rules[1].PreventDefault)
}

func TestDecodeYAML_SchemaApplies(t *testing.T) {
	data := []byte(`
rules:
  - event: broken
    trigger: click
`)

	_, err := DecodeYAML(data)
	assert.Error(t, err, "YAML goes through the same schema as JSON")
}

func TestToRules(t *testing.T) {
	rs := RuleSet{Rules: []RuleSpec{
		{
			Event:          "checkout_click",
			Page:           "/cart",
			Exclude:        []string{"/admin*"},
			Trigger:        "click",
			Selector:       ".checkout-btn",
			PreventDefault: true,
			ResumeDelayMs:  100,
		},
	}}

	rules := rs.ToRules()
	require.Len(t, rules, 1)
	assert.Equal(t, trigger.KindClick, rules[0].Kind)
	assert.Equal(t, 100*time.Millisecond, rules[0].ResumeDelay)
	assert.Equal(t, []string{"/admin*"}, rules[0].Exclude)
	assert.NoError(t, rules[0].Validate())
}
