package attendance

import "fmt"

// Field selects one end of a Boundary.
type Field string

const (
	FieldStart Field = "start"
	FieldStop  Field = "stop"
)

// FieldRef points at one end of one program's boundary.
type FieldRef struct {
	Program string `json:"program" yaml:"program"`
	Field   Field  `json:"field" yaml:"field"`
}

// RepairRule sets Target.Field to Reference.ReferenceField + Offset. The rule only
// fires when the reference end and every Require end are present; otherwise the
// target keeps its value.
type RepairRule struct {
	Target         string     `json:"target" yaml:"target"`
	Field          Field      `json:"field" yaml:"field"`
	Reference      string     `json:"reference" yaml:"reference"`
	ReferenceField Field      `json:"reference_field" yaml:"reference_field"`
	Offset         int        `json:"offset" yaml:"offset"`
	Require        []FieldRef `json:"require,omitempty" yaml:"require,omitempty"`
}

func (r RepairRule) String() string {
	return fmt.Sprintf("%s.%s = %s.%s%+d", r.Target, r.Field, r.Reference, r.ReferenceField, r.Offset)
}

// ChainRules ends each program one row before the next one in codes starts. A link
// only fires when both starts are present.
func ChainRules(codes ...string) []RepairRule {
	var rules []RepairRule
	for i := 0; i+1 < len(codes); i++ {
		rules = append(rules, RepairRule{
			Target:         codes[i],
			Field:          FieldStop,
			Reference:      codes[i+1],
			ReferenceField: FieldStart,
			Offset:         -1,
			Require:        []FieldRef{{Program: codes[i], Field: FieldStart}},
		})
	}
	return rules
}

// DefaultRepairRules returns the overlap repairs for the reference program layout.
// Program blocks follow a fixed top-to-bottom order with no delimiter, so each
// block ends one row before its successor begins.
func DefaultRepairRules() []RepairRule {
	rules := []RepairRule{
		{
			Target: ProgC, Field: FieldStop,
			Reference: ProgCTK, ReferenceField: FieldStart, Offset: -1,
			Require: []FieldRef{{Program: ProgN, Field: FieldStart}},
		},
		{Target: ProgCTK, Field: FieldStop, Reference: ProgN, ReferenceField: FieldStart, Offset: -1},
		{Target: ProgN, Field: FieldStop, Reference: ProgNTK, ReferenceField: FieldStart, Offset: -1},
	}
	return append(rules, ChainRules(ProgNTK, ProgJ, ProgK)...)
}

// Repair applies rules in order to a copy of b and returns the copy. Rules that
// only read start ends and only write stop ends, like the defaults, are idempotent.
func Repair(b Boundaries, rules []RepairRule) Boundaries {
	out := b.Clone()
	for _, r := range rules {
		ref := out.end(r.Reference, r.ReferenceField)
		if ref == nil {
			continue
		}
		ready := true
		for _, req := range r.Require {
			if out.end(req.Program, req.Field) == nil {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		out.set(r.Target, r.Field, Row(*ref+r.Offset))
	}
	return out
}

func (b Boundaries) end(code string, f Field) *int {
	v, ok := b[code]
	if !ok {
		return nil
	}
	if f == FieldStart {
		return v.Start
	}
	return v.Stop
}

func (b Boundaries) set(code string, f Field, n *int) {
	v := b[code]
	if f == FieldStart {
		v.Start = n
	} else {
		v.Stop = n
	}
	b[code] = v
}
