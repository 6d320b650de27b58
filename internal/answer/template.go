package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
)

const (
	topicExcerptLen    = 400
	fallbackExcerptLen = 300
)

// topicRule answers questions about one topic. It fires when the question
// mentions any of triggers; the answer uses the context only when the
// context mentions any of evidence, otherwise it reports missing.
type topicRule struct {
	triggers []string
	evidence []string
	heading  string
	missing  string
}

var topicRules = []topicRule{
	{
		triggers: []string{"vacation", "time off", "pto"},
		evidence: []string{"vacation", "time off", "pto"},
		heading:  "Vacation Policy",
		missing:  "Vacation policy information was not clearly found in the current documents.",
	},
	{
		triggers: []string{"expense", "reimburse", "travel", "cost"},
		evidence: []string{"expense", "reimburse", "travel"},
		heading:  "Expense Policy",
		missing:  "Expense policy details were not located in the context.",
	},
	{
		triggers: []string{"it", "tech", "support", "help", "technical", "computer"},
		evidence: []string{"support", "help", "tech", "it", "portal"},
		heading:  "IT Support",
		missing:  "No IT support details found in the matched content.",
	},
	{
		triggers: []string{"remote", "work from home", "telework"},
		evidence: []string{"remote", "work from home", "telework"},
		heading:  "Remote Work Policy",
		missing:  "Remote work information is missing in the current search result.",
	},
	{
		triggers: []string{"holiday", "public holiday", "office closed"},
		evidence: []string{"holiday", "new year's day", "thanksgiving"},
		heading:  "Company Holidays",
		missing:  "Couldn't find holiday details in the current documents.",
	},
	{
		triggers: []string{"dress code", "attire", "what to wear"},
		evidence: []string{"dress", "attire", "jeans", "business casual"},
		heading:  "Dress Code Policy",
		missing:  "Dress code policy was not clearly found. Please verify the documents include this section.",
	},
	{
		triggers: []string{"sick leave", "sick days", "illness", "health"},
		evidence: []string{"sick", "illness", "doctor"},
		heading:  "Sick Leave Policy",
		missing:  "Sick leave details were not located in the current content.",
	},
	{
		triggers: []string{"performance review", "appraisal", "evaluation", "check-in"},
		evidence: []string{"review", "check-in", "evaluation", "goal setting"},
		heading:  "Performance Reviews",
		missing:  "No performance review information found in the matched content.",
	},
	{
		triggers: []string{"who", "contact", "call", "email"},
		evidence: []string{"email", "contact", "call", "@", "phone"},
		heading:  "Contact Info",
		missing:  "Contact details not found in the current document sections.",
	},
}

// TemplateComposer answers with keyword topic rules over the retrieved
// context and falls back to the top chunk. It never calls a model.
type TemplateComposer struct{}

// NewTemplateComposer returns a TemplateComposer.
func NewTemplateComposer() *TemplateComposer {
	return &TemplateComposer{}
}

// Compose implements Composer. The returned text ends with the source list.
func (c *TemplateComposer) Compose(_ context.Context, question string, chunks []*models.SearchResult) (string, error) {
	return c.compose(question, chunks), nil
}

func (c *TemplateComposer) compose(question string, chunks []*models.SearchResult) string {
	if len(chunks) == 0 {
		return NoAnswerMessage
	}
	joined := joinContext(chunks)
	questionLower := strings.ToLower(question)
	contextLower := strings.ToLower(joined)

	var text string
	if rule, ok := matchRule(questionLower); ok {
		if containsAny(contextLower, rule.evidence) {
			text = fmt.Sprintf("%s:\n%s", rule.heading, excerpt(joined, topicExcerptLen))
		} else {
			text = rule.missing
		}
	} else {
		top := chunks[0]
		text = fmt.Sprintf("%s\n\nSource: %s", excerpt(top.Text, fallbackExcerptLen), SourceNames(chunks[:1])[0])
	}
	return withSources(text, SourceNames(chunks))
}

func matchRule(questionLower string) (topicRule, bool) {
	words := wordSet(questionLower)
	for _, r := range topicRules {
		for _, t := range r.triggers {
			if mentions(questionLower, words, t) {
				return r, true
			}
		}
	}
	return topicRule{}, false
}

// mentions matches single-word triggers against whole words and phrases
// against the raw text, so "it" does not fire on "with".
func mentions(text string, words map[string]struct{}, trigger string) bool {
	if strings.ContainsAny(trigger, " -'@") {
		return strings.Contains(text, trigger)
	}
	if _, ok := words[trigger]; ok {
		return true
	}
	// stems such as "reimburse" cover "reimbursement"
	if len(trigger) > 3 {
		for w := range words {
			if strings.HasPrefix(w, trigger) {
				return true
			}
		}
	}
	return false
}

func containsAny(textLower string, keys []string) bool {
	words := wordSet(textLower)
	for _, k := range keys {
		if mentions(textLower, words, k) {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
