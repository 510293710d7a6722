package service

import (
	"regexp"
	"strings"
)

// Guardrail categories reported when the consolidated narrative is blocked.
const (
	CategoryReligious             = "religious"
	CategoryPolitical             = "political"
	CategoryInvestmentInstruction = "investment_instruction"
)

// RefusalMessage replaces a narrative that matched a blocked category.
const RefusalMessage = "I'm sorry, but I can't provide guidance on that topic. " +
	"Below is a plain summary of the data gathered for your request."

// guardrailPatterns maps each blocked category to the patterns that trigger
// it. Matching is case-insensitive on word boundaries.
var guardrailPatterns = map[string][]*regexp.Regexp{
	CategoryReligious: compilePatterns(
		`god`, `allah`, `jesus`, `bible`, `quran`, `church`, `mosque`, `prayer`, `religio\w*`,
	),
	CategoryPolitical: compilePatterns(
		`politic\w*`, `election\w*`, `democrat\w*`, `republican\w*`, `government policy`, `vote for`,
	),
	CategoryInvestmentInstruction: compilePatterns(
		`buy (?:more )?(?:bitcoin|crypto\w*|stocks?|shares?|gold|bonds?)`,
		`sell (?:your |all )?(?:bitcoin|crypto\w*|stocks?|shares?|gold|bonds?)`,
		`bitcoin`, `cryptocurrenc\w*`, `invest in`, `short sell\w*`,
	),
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)\b`+e+`\b`))
	}
	return out
}

// Guardrail screens synthesized narratives against a fixed set of
// disallowed-topic categories. It applies only to generated text, never to
// raw worker data.
type Guardrail struct{}

// NewGuardrail creates the content guardrail.
func NewGuardrail() *Guardrail {
	return &Guardrail{}
}

// Check returns the blocked categories the text matches, in stable order.
// An empty result means the text passes through unchanged.
func (g *Guardrail) Check(text string) []string {
	lowered := strings.ToLower(text)

	var matched []string
	for _, category := range []string{CategoryReligious, CategoryPolitical, CategoryInvestmentInstruction} {
		for _, re := range guardrailPatterns[category] {
			if re.MatchString(lowered) {
				matched = append(matched, category)
				break
			}
		}
	}
	return matched
}
