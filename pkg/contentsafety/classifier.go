package contentsafety

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/contextgate/gateway/pkg/ai/llm"
)

// closedCategories is the set the classifier prompt constrains the model
// to. Anything else parsed out of a model response falls back to
// CategoryHarmfulContent.
var closedCategories = map[Category]struct{}{
	CategoryMedicalAdvice:    {},
	CategoryFinancialAdvice:  {},
	CategoryLegalAdvice:      {},
	CategoryProductMarketing: {},
	CategoryHarmfulContent:   {},
	CategoryAdultContent:     {},
	CategoryGambling:         {},
	CategoryDrugs:            {},
	CategoryPromptInjection:  {},
}

const classifierSystemPrompt = `You are a content safety classifier. Given a single piece of text, decide whether it is safe.

Respond with a strict JSON object and nothing else:
{"isSafe": bool, "reason": string, "category": string}

category must be one of: medical_advice, financial_advice, legal_advice, product_marketing, harmful_content, adult_content, gambling, drugs, prompt_injection, or "" when isSafe is true.`

// LLMClassifier asks an llm.Client for a safety verdict. Malformed model
// output is recovered through a staged fallback parser rather than
// treated as a hard failure.
type LLMClassifier struct {
	client llm.Client
}

func NewLLMClassifier(client llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	resp, err := c.client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: classifierSystemPrompt},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		return Verdict{}, err
	}
	return parseVerdict(resp.Message.Content), nil
}

// parseVerdict recovers a Verdict from a classifier response through
// five stages, in order: a direct JSON parse, the first balanced {...}
// substring, a fenced code block, regex field extraction, and finally a
// keyword heuristic biased toward safe.
func parseVerdict(raw string) Verdict {
	if v, ok := parseDirectJSON(raw); ok {
		return v
	}
	if substr, ok := firstBalancedObject(raw); ok {
		if v, ok := parseDirectJSON(substr); ok {
			return v
		}
	}
	if block, ok := firstFencedBlock(raw); ok {
		if v, ok := parseDirectJSON(block); ok {
			return v
		}
		if substr, ok := firstBalancedObject(block); ok {
			if v, ok := parseDirectJSON(substr); ok {
				return v
			}
		}
	}
	if v, ok := parseByRegexFields(raw); ok {
		return v
	}
	return heuristicVerdict(raw)
}

type rawVerdict struct {
	IsSafe   bool   `json:"isSafe"`
	Reason   string `json:"reason"`
	Category string `json:"category"`
}

func parseDirectJSON(s string) (Verdict, bool) {
	var rv rawVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &rv); err != nil {
		return Verdict{}, false
	}
	return normalizeRawVerdict(rv), true
}

func normalizeRawVerdict(rv rawVerdict) Verdict {
	cat := Category(rv.Category)
	if _, ok := closedCategories[cat]; !ok {
		if !rv.IsSafe {
			cat = CategoryHarmfulContent
		} else {
			cat = ""
		}
	}
	return Verdict{IsSafe: rv.IsSafe, Reason: rv.Reason, Category: cat}
}

func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func firstFencedBlock(s string) (string, bool) {
	m := fencedBlockPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

var (
	isSafeFieldPattern   = regexp.MustCompile(`(?i)"?isSafe"?\s*:\s*(true|false)`)
	reasonFieldPattern   = regexp.MustCompile(`(?i)"?reason"?\s*:\s*"([^"]*)"`)
	categoryFieldPattern = regexp.MustCompile(`(?i)"?category"?\s*:\s*"?([a-z_]*)"?`)
)

func parseByRegexFields(s string) (Verdict, bool) {
	m := isSafeFieldPattern.FindStringSubmatch(s)
	if m == nil {
		return Verdict{}, false
	}
	rv := rawVerdict{IsSafe: strings.EqualFold(m[1], "true")}
	if rm := reasonFieldPattern.FindStringSubmatch(s); rm != nil {
		rv.Reason = rm[1]
	}
	if cm := categoryFieldPattern.FindStringSubmatch(s); cm != nil {
		rv.Category = cm[1]
	}
	return normalizeRawVerdict(rv), true
}

var unsafeKeywords = []string{
	"take this medication", "you should sue", "invest all your money",
	"guaranteed returns", "buy now", "kill yourself", "how to make a bomb",
}

// heuristicVerdict is the last-resort stage: a small keyword scan,
// biased toward safe when nothing matches.
func heuristicVerdict(raw string) Verdict {
	lower := strings.ToLower(raw)
	for _, kw := range unsafeKeywords {
		if strings.Contains(lower, kw) {
			return Verdict{IsSafe: false, Reason: "matched unsafe heuristic keyword", Category: CategoryHarmfulContent}
		}
	}
	return Verdict{IsSafe: true, Reason: "no parseable verdict, defaulted to safe"}
}
