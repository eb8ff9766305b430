package contentsafety

import (
	"regexp"
	"strings"
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$\{[^}]*\}`),
	regexp.MustCompile(`(?i)\{\{[^}]*\}\}`),
	regexp.MustCompile(`(?i)process\.env\.\w+`),
	regexp.MustCompile(`(?i)\bos\.environ\b`),
	regexp.MustCompile(`(?i)ignore (all|the) (previous|prior|above) (instructions|prompts?)`),
	regexp.MustCompile(`(?i)reveal (your|the) (system prompt|instructions)`),
	regexp.MustCompile(`(?i)what (is|are) your (system prompt|instructions)`),
	regexp.MustCompile(`(?i)(print|show|dump|output) (the|your) (tool|function) schema`),
	regexp.MustCompile(`(?i)(print|show|dump|output|repeat) (the|your|this) (conversation|chat) history`),
	regexp.MustCompile(`(?i)you are now (in )?(developer|debug|admin) mode`),
}

// patternCheck runs the dependency-free fallback checks: prompt-injection
// phrasing, suspicious repetition, and suspicious Unicode ranges. Used
// when AI classification is disabled or unavailable.
func patternCheck(text string) Verdict {
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			return Verdict{IsSafe: false, Reason: "matched prompt-injection pattern", Category: CategoryPromptInjection}
		}
	}
	if hasSuspiciousRepetition(text) {
		return Verdict{IsSafe: false, Reason: "low unique-token ratio over a long sequence", Category: CategorySuspiciousRepetition}
	}
	if hasSuspiciousUnicode(text) {
		return Verdict{IsSafe: false, Reason: "contains control or invisible characters", Category: CategorySuspiciousUnicode}
	}
	return Verdict{IsSafe: true}
}

// hasSuspiciousRepetition flags sequences longer than 20 tokens whose
// unique-token ratio falls below 30%, a crude signal for repeated-token
// padding attacks.
func hasSuspiciousRepetition(text string) bool {
	tokens := strings.Fields(text)
	if len(tokens) <= 20 {
		return false
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		seen[strings.ToLower(tok)] = struct{}{}
	}
	ratio := float64(len(seen)) / float64(len(tokens))
	return ratio < 0.30
}

func hasSuspiciousUnicode(text string) bool {
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			continue
		case r < 0x20:
			return true
		case r == 0x00A0, r == 0x200B, r == 0x200C, r == 0x200D, r == 0xFEFF:
			return true
		case r >= 0x2028 && r <= 0x2029:
			return true
		case r >= 0x202A && r <= 0x202E:
			return true
		}
	}
	return false
}
