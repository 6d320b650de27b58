package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Expander replaces whole-word abbreviations in questions before they are
// embedded. Matching is case-sensitive so "IT" expands but "it" does not.
type Expander struct {
	rules []expansion
}

type expansion struct {
	re          *regexp.Regexp
	replacement string
}

// NewExpander builds an expander. Longer abbreviations are applied first.
func NewExpander(abbreviations map[string]string) *Expander {
	keys := make([]string, 0, len(abbreviations))
	for k := range abbreviations {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	e := &Expander{rules: make([]expansion, 0, len(keys))}
	for _, k := range keys {
		e.rules = append(e.rules, expansion{
			re:          regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`),
			replacement: abbreviations[k],
		})
	}
	return e
}

// Expand returns question with every abbreviation replaced.
func (e *Expander) Expand(question string) string {
	if e == nil {
		return question
	}
	for _, r := range e.rules {
		question = r.re.ReplaceAllLiteralString(question, r.replacement)
	}
	return question
}

// Question categories.
const (
	CategoryHRPolicy  = "hr_policy"
	CategoryITSupport = "it_support"
	CategoryFinance   = "finance"
	CategoryGeneral   = "general"
)

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryHRPolicy, []string{"vacation", "leave", "benefits", "policy", "hr"}},
	{CategoryITSupport, []string{"password", "login", "computer", "software", "it", "technical"}},
	{CategoryFinance, []string{"expense", "reimburse", "budget", "cost", "payment"}},
}

// Categorize assigns question to the first category with a matching keyword.
// Keywords of three letters or fewer must match a whole word; longer ones
// match any word they prefix, so "reimburse" covers "reimbursement".
func Categorize(question string) string {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			for _, w := range words {
				if w == kw || (len(kw) > 3 && strings.HasPrefix(w, kw)) {
					return c.category
				}
			}
		}
	}
	return CategoryGeneral
}
