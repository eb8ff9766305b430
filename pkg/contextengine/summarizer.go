package contextengine

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
)

// Summarizer compacts a contiguous run of messages into a single Summary.
// The default implementation is deterministic and extractive; an
// LLM-backed implementation can be swapped in by satisfying this
// interface with anything that calls out to a provider client.
type Summarizer interface {
	Summarize(ctx context.Context, chatID string, messages []chatmodel.Message) (chatmodel.Summary, error)
}

// ExtractiveSummarizer builds a Summary out of the first sentence of the
// first message and the last sentence of the last message in the run,
// without calling out to any model. Key facts are not part of the summary.
type ExtractiveSummarizer struct {
	idSeq func() string
}

// NewExtractiveSummarizer creates the default deterministic summarizer.
func NewExtractiveSummarizer() *ExtractiveSummarizer {
	return &ExtractiveSummarizer{idSeq: randomID}
}

// Summarize joins the first sentence of the first message and the last
// sentence of the last message with " ... ". Key facts stay on the
// conversation and reach the context window on their own.
func (s *ExtractiveSummarizer) Summarize(_ context.Context, chatID string, messages []chatmodel.Message) (chatmodel.Summary, error) {
	if len(messages) == 0 {
		return chatmodel.Summary{}, nil
	}

	first := messages[0]
	last := messages[len(messages)-1]

	var b strings.Builder
	b.WriteString(firstSentence(first.Content))
	if len(messages) > 1 && last.ID != first.ID {
		b.WriteString(" ... ")
		b.WriteString(lastSentence(last.Content))
	}

	return chatmodel.Summary{
		ID:               s.idSeq(),
		Text:             b.String(),
		MessageRangeFrom: first.ID,
		MessageRangeTo:   last.ID,
		TimeRangeFrom:    first.Timestamp,
		TimeRangeTo:      last.Timestamp,
	}, nil
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i >= 0 && i+1 < len(text) {
		return text[:i+1]
	}
	return text
}

func lastSentence(text string) string {
	text = strings.TrimSpace(text)
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	if len(parts) == 0 {
		return text
	}
	return strings.TrimSpace(parts[len(parts)-1])
}

var randomIDCounter int64

// randomID produces a stable, non-random id derived from an internal
// counter. Math/rand and time-based ids are avoided here so summaries
// stay reproducible in tests.
func randomID() string {
	n := atomic.AddInt64(&randomIDCounter, 1)
	return "sum-" + itoa64(n)
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
