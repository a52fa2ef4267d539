// Package match decides which configured skills a job title mentions.
package match

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// A skill must be delimited by something that is not a letter, digit or
// underscore, or by the edges of the title.
const (
	leftBoundary  = `(?:^|[^\p{L}\p{N}_])`
	rightBoundary = `(?:$|[^\p{L}\p{N}_])`
)

// Matcher holds precompiled patterns for a fixed skill list.
type Matcher struct {
	skills   []string
	patterns []*regexp.Regexp
}

// New normalizes skills (trim, lowercase, drop blanks and duplicates) and
// compiles one pattern per skill, keeping the configured order.
func New(skills []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = Normalize(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		m.skills = append(m.skills, s)
		m.patterns = append(m.patterns, compile(s))
	}
	return m
}

// Skills returns the normalized skill list.
func (m *Matcher) Skills() []string {
	return append([]string(nil), m.skills...)
}

// Match returns the skills found in title as whole words or phrases, in
// configured order. The result is empty when nothing matches.
func (m *Matcher) Match(title string) []string {
	text := Normalize(title)
	var matched []string
	for i, p := range m.patterns {
		if p.MatchString(text) {
			matched = append(matched, m.skills[i])
		}
	}
	return matched
}

// Match is the one-shot form of (*Matcher).Match.
func Match(title string, skills []string) []string {
	return New(skills).Match(title)
}

// Normalize folds compatibility characters and lowercases s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

func compile(skill string) *regexp.Regexp {
	words := strings.Fields(skill)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(leftBoundary + strings.Join(words, `\s+`) + rightBoundary)
}
