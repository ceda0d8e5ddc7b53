package ruleset

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
	"gopkg.in/yaml.v3"

	"github.com/halcyon-eng/statecore/internal/trigger"
)

//go:embed schema.cue
var schemaCUE string

// RuleSet is the wire shape of a trigger rule set, as fetched from the
// network (JSON) or loaded from a local file (JSON or YAML).
type RuleSet struct {
	Rules []RuleSpec `json:"rules" yaml:"rules"`
}

// RuleSpec is one declarative rule in wire form.
type RuleSpec struct {
	Event          string   `json:"event" yaml:"event"`
	Page           string   `json:"page,omitempty" yaml:"page"`
	Exclude        []string `json:"exclude,omitempty" yaml:"exclude"`
	Trigger        string   `json:"trigger" yaml:"trigger"`
	Selector       string   `json:"selector,omitempty" yaml:"selector"`
	PreventDefault bool     `json:"prevent_default,omitempty" yaml:"prevent_default"`
	ResumeDelayMs  int      `json:"resume_delay_ms,omitempty" yaml:"resume_delay_ms"`
}

// ToRules converts the wire form into engine rules, in declaration order.
func (rs RuleSet) ToRules() []trigger.Rule {
	rules := make([]trigger.Rule, len(rs.Rules))
	for i, spec := range rs.Rules {
		rules[i] = trigger.Rule{
			Event:          spec.Event,
			Page:           spec.Page,
			Exclude:        spec.Exclude,
			Kind:           trigger.Kind(spec.Trigger),
			Selector:       spec.Selector,
			PreventDefault: spec.PreventDefault,
			ResumeDelay:    time.Duration(spec.ResumeDelayMs) * time.Millisecond,
		}
	}
	return rules
}

// DecodeJSON validates data against the embedded CUE schema and decodes it.
func DecodeJSON(data []byte) (RuleSet, error) {
	if err := validate(data); err != nil {
		return RuleSet{}, err
	}

	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("decode rule set: %w", err)
	}
	return rs, nil
}

// DecodeYAML decodes a local YAML rule-set file and validates it against the
// same schema as fetched JSON (via a JSON round trip).
func DecodeYAML(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("decode rule set yaml: %w", err)
	}

	normalized, err := json.Marshal(rs)
	if err != nil {
		return RuleSet{}, fmt.Errorf("normalize rule set: %w", err)
	}
	if err := validate(normalized); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// validate unifies the rule-set JSON with the #RuleSet schema definition and
// requires the result to be concrete.
func validate(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile rule-set schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#RuleSet"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #RuleSet: %w", err)
	}

	expr, err := cuejson.Extract("ruleset.json", data)
	if err != nil {
		return fmt.Errorf("parse rule set: %w", err)
	}
	val := ctx.BuildExpr(expr)
	if err := val.Err(); err != nil {
		return fmt.Errorf("build rule set value: %w", err)
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("rule set rejected by schema: %w", err)
	}
	return nil
}
