// Package rules compiles and evaluates the ordered regex-to-template rename
// rules. Everything here is pure: no filesystem access, no logging.
package rules

import (
	"fmt"
	"regexp"

	"invoicehandler/internal/errors"
)

// Spec is the uncompiled form of a rule as read from configuration
type Spec struct {
	Pattern     string `yaml:"pattern" toml:"pattern"`
	Replacement string `yaml:"replacement" toml:"replacement"`
}

// Rule is one compiled pattern plus its replacement template. Immutable.
type Rule struct {
	spec     Spec
	pattern  *regexp.Regexp
	template Template
}

// Compile builds a Rule, rejecting invalid patterns and replacements that
// reference a capture group the pattern does not declare.
func Compile(pattern, replacement string) (*Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.NewRuleError("invalid pattern", pattern, errors.InvalidRule, err)
	}

	tmpl, err := ParseTemplate(replacement)
	if err != nil {
		return nil, errors.NewRuleError("invalid replacement", pattern, errors.InvalidReplacement, err)
	}

	if max := tmpl.MaxGroup(); max > re.NumSubexp() {
		return nil, errors.NewRuleError("invalid replacement", pattern, errors.InvalidReplacement,
			fmt.Errorf("%q references group %d but the pattern has %d", replacement, max, re.NumSubexp()))
	}

	return &Rule{
		spec:     Spec{Pattern: pattern, Replacement: replacement},
		pattern:  re,
		template: tmpl,
	}, nil
}

// Pattern returns the source pattern
func (r *Rule) Pattern() string {
	return r.spec.Pattern
}

// Replacement returns the source replacement
func (r *Rule) Replacement() string {
	return r.spec.Replacement
}

// Render substitutes the template for the leftmost match of the pattern in
// name. Text outside the match is kept. ok is false when nothing matched.
func (r *Rule) Render(name string) (rendered string, ok bool) {
	m := r.pattern.FindStringSubmatchIndex(name)
	if m == nil {
		return "", false
	}
	return name[:m[0]] + r.template.Expand(name, m) + name[m[1]:], true
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s -> %s", r.spec.Pattern, r.spec.Replacement)
}
