package contextengine

import (
	"strings"

	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
)

var decisionVerbs = []string{
	"will", "decided", "decide", "agreed", "agree", "commit", "committed",
	"promise", "promised", "plan to", "going to",
}

var urgencyMarkers = []string{
	"urgent", "asap", "immediately", "right away", "critical", "emergency",
}

// computeImportance derives a base importance score from cheap lexical
// cues when the caller doesn't supply one explicitly: a question mark
// (+0.1), a decision/commitment verb (+0.2), an urgency marker (+0.15),
// and the user role itself (+0.1), added to a 0.5 base and clamped to 1.
func computeImportance(role chatmodel.Role, content string) float64 {
	score := 0.5
	lower := strings.ToLower(content)

	if strings.Contains(content, "?") {
		score += 0.1
	}
	for _, v := range decisionVerbs {
		if strings.Contains(lower, v) {
			score += 0.2
			break
		}
	}
	for _, m := range urgencyMarkers {
		if strings.Contains(lower, m) {
			score += 0.15
			break
		}
	}
	if role == chatmodel.RoleUser {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// estimateTokens is a cheap character-based heuristic (~4 characters per
// token) plus a small per-message overhead, mirroring the estimator the
// chat memory layer uses for provider-bound messages.
func estimateTokens(content string) int {
	return len(content)/4 + 3
}
