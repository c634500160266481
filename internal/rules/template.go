package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one piece of a parsed replacement template: either literal
// text or a reference to a capture group.
type Segment struct {
	Literal string
	// Group is the referenced capture index, or -1 for a literal segment.
	Group int
}

// IsRef reports whether the segment references a capture group
func (s Segment) IsRef() bool {
	return s.Group >= 0
}

func literal(s string) Segment { return Segment{Literal: s, Group: -1} }
func ref(i int) Segment        { return Segment{Group: i} }

// Template is a parsed replacement
type Template []Segment

// ParseTemplate splits a replacement string into segments. `$N` and `${N}`
// reference capture group N, `$$` is a literal dollar sign, and any other `$`
// is kept as written.
func ParseTemplate(replacement string) (Template, error) {
	var (
		tmpl Template
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			tmpl = append(tmpl, literal(lit.String()))
			lit.Reset()
		}
	}

	for i := 0; i < len(replacement); {
		c := replacement[i]
		if c != '$' || i+1 >= len(replacement) {
			lit.WriteByte(c)
			i++
			continue
		}

		next := replacement[i+1]
		switch {
		case next == '$':
			lit.WriteByte('$')
			i += 2

		case isDigit(next):
			j := i + 1
			for j < len(replacement) && isDigit(replacement[j]) {
				j++
			}
			n, err := strconv.Atoi(replacement[i+1 : j])
			if err != nil {
				return nil, fmt.Errorf("capture reference %q: %w", replacement[i:j], err)
			}
			flush()
			tmpl = append(tmpl, ref(n))
			i = j

		case next == '{':
			end := strings.IndexByte(replacement[i+2:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated capture reference at offset %d", i)
			}
			name := replacement[i+2 : i+2+end]
			n, err := strconv.Atoi(name)
			if err != nil || n < 0 || !allDigits(name) {
				return nil, fmt.Errorf("capture reference ${%s}: only numeric groups are supported", name)
			}
			flush()
			tmpl = append(tmpl, ref(n))
			i += 3 + end

		default:
			lit.WriteByte('$')
			i++
		}
	}
	flush()
	return tmpl, nil
}

// MaxGroup returns the highest capture index referenced, or -1 if none
func (t Template) MaxGroup() int {
	max := -1
	for _, s := range t {
		if s.IsRef() && s.Group > max {
			max = s.Group
		}
	}
	return max
}

// Expand renders the template against the submatch index pairs returned by
// regexp.FindStringSubmatchIndex on src. Groups that did not participate in
// the match expand to the empty string.
func (t Template) Expand(src string, match []int) string {
	var b strings.Builder
	for _, s := range t {
		if !s.IsRef() {
			b.WriteString(s.Literal)
			continue
		}
		lo, hi := 2*s.Group, 2*s.Group+1
		if hi >= len(match) || match[lo] < 0 {
			continue
		}
		b.WriteString(src[match[lo]:match[hi]])
	}
	return b.String()
}

// String reassembles the template in canonical `${N}` form
func (t Template) String() string {
	var b strings.Builder
	for _, s := range t {
		if s.IsRef() {
			fmt.Fprintf(&b, "${%d}", s.Group)
			continue
		}
		b.WriteString(strings.ReplaceAll(s.Literal, "$", "$$"))
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
