package rules

import "invoicehandler/internal/errors"

// RuleSet is an ordered, immutable list of rules evaluated first-match-wins
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet compiles specs in order. A rule whose replacement references a
// missing capture group is dropped and reported in rejected; the remaining
// rules still load. An invalid pattern is returned as err, since a set that
// silently lost a pattern would rename files differently than configured.
func NewRuleSet(specs []Spec) (set *RuleSet, rejected []error, err error) {
	set = &RuleSet{rules: make([]*Rule, 0, len(specs))}
	for _, spec := range specs {
		r, cerr := Compile(spec.Pattern, spec.Replacement)
		if cerr == nil {
			set.rules = append(set.rules, r)
			continue
		}
		if errors.KindOf(cerr) == errors.InvalidReplacement {
			rejected = append(rejected, cerr)
			continue
		}
		return nil, rejected, cerr
	}
	return set, rejected, nil
}

// Len returns the number of rules
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Rules returns a copy of the rules in evaluation order
func (s *RuleSet) Rules() []*Rule {
	if s == nil {
		return nil
	}
	return append([]*Rule(nil), s.rules...)
}

// MatchAndRender evaluates name against each rule in order and renders the
// first match. Later rules are not consulted once one matches.
func (s *RuleSet) MatchAndRender(name string) (rendered string, rule *Rule, ok bool) {
	if s == nil {
		return "", nil, false
	}
	for _, r := range s.rules {
		if out, matched := r.Render(name); matched {
			return out, r, true
		}
	}
	return "", nil, false
}
