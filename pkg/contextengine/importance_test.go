package contextengine

import (
	"testing"

	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
)

func TestComputeImportance_ClampsAtOne(t *testing.T) {
	got := computeImportance(chatmodel.RoleUser, "Is this urgent? We decided to commit immediately?")
	if got != 1.0 {
		t.Fatalf("expected clamping to 1.0 when every cue fires, got %v", got)
	}
}

func TestComputeImportance_AssistantBaseline(t *testing.T) {
	got := computeImportance(chatmodel.RoleAssistant, "Here is the answer.")
	if got != 0.5 {
		t.Fatalf("expected base 0.5 with no cues, got %v", got)
	}
}

func TestEstimateTokens_GrowsWithLength(t *testing.T) {
	short := estimateTokens("hi")
	long := estimateTokens("this is a considerably longer message body")
	if long <= short {
		t.Fatalf("expected longer content to estimate more tokens: short=%d long=%d", short, long)
	}
}
