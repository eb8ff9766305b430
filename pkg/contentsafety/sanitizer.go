package contentsafety

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	htmlTagPattern     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>|<style\b[^>]*>.*?</style>|<[^>]+>`)
	fencedCodePattern  = regexp.MustCompile("(?s)```.*?```")
	latexBlockPattern  = regexp.MustCompile(`(?s)\$\$.*?\$\$`)
	latexInlinePattern = regexp.MustCompile(`\$[^$\n]+\$`)
	backtickPattern    = regexp.MustCompile("`")
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// SanitizeContent normalizes and strips text of constructs the pipeline
// does not want persisted or rendered verbatim: flagged Unicode, markup,
// fenced code, LaTeX delimiters, and redundant whitespace. Sanitizing
// already-sanitized text is a no-op: Sanitize(Sanitize(s)) == Sanitize(s).
func (p *Pipeline) SanitizeContent(text string) string {
	return Sanitize(text)
}

// Sanitize is the standalone sanitizer, usable without a Pipeline.
func Sanitize(text string) string {
	out := norm.NFKC.String(text)
	out = stripFlaggedUnicode(out)
	out = fencedCodePattern.ReplaceAllString(out, " ")
	out = htmlTagPattern.ReplaceAllString(out, " ")
	out = latexBlockPattern.ReplaceAllString(out, " ")
	out = latexInlinePattern.ReplaceAllString(out, " ")
	out = backtickPattern.ReplaceAllString(out, "")
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func stripFlaggedUnicode(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t' || r == '\r' || r == ' ':
			b.WriteRune(r)
		case r < 0x20:
			continue
		case r == 0x00A0, r == 0x200B, r == 0x200C, r == 0x200D, r == 0xFEFF:
			continue
		case r >= 0x2028 && r <= 0x2029:
			continue
		case r >= 0x202A && r <= 0x202E:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
