// Package vectorizer enriches raw messages with embeddings, extracted
// entities/topics, and query intent, and indexes them into the Vector
// Store so the Bayesian Memory Manager can later pull similar candidates.
package vectorizer

import (
	"context"
	"net/http"
	"strings"

	"github.com/contextgate/gateway/pkg/ai/embedding"
	"github.com/contextgate/gateway/pkg/ai/vstore"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/errx"
	"github.com/contextgate/gateway/pkg/logx"
)

var errorRegistry = errx.NewRegistry("VECTORIZER")

var ErrVectorStore = errorRegistry.Register(
	"VECTOR_STORE_FAILED",
	errx.TypeTransient,
	http.StatusServiceUnavailable,
	"Vector store operation failed",
)

// MessageStore reloads a message by id so FindSimilarMessages can return
// full messages rather than bare vector-store matches.
type MessageStore interface {
	GetMessage(ctx context.Context, chatID string, msgID int64) (*chatmodel.Message, error)
}

// Intent is the deterministic classification of a query's purpose.
type Intent string

const (
	IntentQuestion      Intent = "question"
	IntentRequest       Intent = "request"
	IntentClarification Intent = "clarification"
	IntentContinuation  Intent = "continuation"
	IntentNewTopic      Intent = "new-topic"
)

// QueryAnalysis is the result of AnalyzeQuery.
type QueryAnalysis struct {
	Text            string
	Embedding       []float32
	Entities        []string
	Topics          []string
	Intent          Intent
	TemporalContext string
	HasTemporal     bool
}

// SimilarMessage pairs a reloaded message with its vector-store similarity.
type SimilarMessage struct {
	Message    chatmodel.Message
	Similarity float64
}

// Vectorizer computes embeddings, extracts structured fields, and keeps the
// Vector Store in sync with message content.
type Vectorizer struct {
	store     *vstore.Client
	embedder  embedding.Embedder
	fallback  embedding.Embedder
	messages  MessageStore
	dimension int
}

// New creates a Vectorizer. dimension sizes the deterministic fallback
// embedder used when embedder itself fails (degraded mode).
func New(store *vstore.Client, embedder embedding.Embedder, messages MessageStore, dimension int) *Vectorizer {
	return &Vectorizer{
		store:     store,
		embedder:  embedder,
		fallback:  embedding.NewDeterministicEmbedder(dimension),
		messages:  messages,
		dimension: dimension,
	}
}

func (v *Vectorizer) embed(ctx context.Context, text string) []float32 {
	emb, err := v.embedder.EmbedQuery(ctx, text)
	if err != nil {
		logx.WithError(err).Warn("vectorizer: embedding call failed, using deterministic fallback")
		emb, _ = v.fallback.EmbedQuery(ctx, text)
	}
	return emb.Vector
}

// VectorizeMessage computes msg's embedding, extracts entities and topics,
// upserts the vector, and updates msg.Metadata in place.
func (v *Vectorizer) VectorizeMessage(ctx context.Context, msg *chatmodel.Message) error {
	vec := v.embed(ctx, msg.Content)

	entities := ExtractEntities(msg.Content)
	topics := ExtractTopics(msg.Content)

	msg.Metadata.Entities = entities
	msg.Metadata.Topics = topics
	msg.Metadata.SemanticFingerprint = fingerprint(vec)

	err := v.store.Upsert(ctx, []vstore.Vector{{
		ID:     vectorID(msg.ChatID, msg.ID),
		Values: vec,
		Metadata: map[string]any{
			"ref_id":     msg.ID,
			"chat_id":    msg.ChatID,
			"type":       "message",
			"role":       string(msg.Role),
			"tokens":     msg.TokenCount,
			"entities":   entities,
			"topics":     topics,
			"created_at": msg.Timestamp.Unix(),
		},
	}})
	if err != nil {
		return errorRegistry.NewWithCause(ErrVectorStore, err)
	}
	return nil
}

// AnalyzeQuery embeds text, extracts entities/topics, classifies intent by
// deterministic lexical rules, and pulls out a temporal phrase if present.
func (v *Vectorizer) AnalyzeQuery(ctx context.Context, text string) (QueryAnalysis, error) {
	qa := QueryAnalysis{
		Text:     text,
		Entities: ExtractEntities(text),
		Topics:   ExtractTopics(text),
		Intent:   classifyIntent(text),
	}
	qa.Embedding = v.embed(ctx, text)
	if temporal, ok := extractTemporal(text); ok {
		qa.TemporalContext = temporal
		qa.HasTemporal = true
	}
	return qa, nil
}

// FindSimilarMessages queries the Vector Store for candidates similar to
// qa, filters to chatID, reloads each message, and returns at most limit
// results.
func (v *Vectorizer) FindSimilarMessages(ctx context.Context, chatID string, qa QueryAnalysis, limit int) ([]SimilarMessage, error) {
	result, err := v.store.Query(ctx, qa.Embedding,
		vstore.WithTopK(limit*3+5),
		vstore.WithMinScore(-1),
		vstore.WithIncludeMetadata(true),
	)
	if err != nil {
		return nil, errorRegistry.NewWithCause(ErrVectorStore, err)
	}

	out := make([]SimilarMessage, 0, limit)
	for _, m := range result.Matches {
		mChat, _ := m.Metadata["chat_id"].(string)
		if mChat != chatID {
			continue
		}
		refID, ok := toInt64(m.Metadata["ref_id"])
		if !ok {
			continue
		}
		msg, err := v.messages.GetMessage(ctx, chatID, refID)
		if err != nil || msg == nil {
			continue
		}
		out = append(out, SimilarMessage{
			Message:    *msg,
			Similarity: clampSimilarity(float64(m.Score)),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// EntityOverlap is the Jaccard index of two entity sets; 0 if either is
// empty.
func EntityOverlap(a, b []string) float64 {
	return jaccard(a, b)
}

// TopicSimilarity is intersection-over-max(|a|,|b|); 0 if either is empty.
func TopicSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := intersectionSize(a, b)
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	return float64(inter) / float64(max)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := intersectionSize(a, b)
	union := len(toSet(a))
	for _, x := range b {
		if !contains(a, x) {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func intersectionSize(a, b []string) int {
	set := toSet(a)
	n := 0
	for _, x := range b {
		if set[x] {
			n++
		}
	}
	return n
}

func toSet(a []string) map[string]bool {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	return set
}

func contains(a []string, x string) bool {
	for _, v := range a {
		if v == x {
			return true
		}
	}
	return false
}

func clampSimilarity(s float64) float64 {
	// cosine similarity is in [-1,1]; consumers treat it as [0,1].
	v := (s + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func vectorID(chatID string, msgID int64) string {
	return chatID + ":" + itoa(msgID)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func fingerprint(vec []float32) string {
	var sb strings.Builder
	step := len(vec) / 8
	if step == 0 {
		step = 1
	}
	for i := 0; i < len(vec); i += step {
		sb.WriteString(quantize(vec[i]))
	}
	return sb.String()
}

func quantize(f float32) string {
	switch {
	case f > 0.33:
		return "+"
	case f < -0.33:
		return "-"
	default:
		return "0"
	}
}

func extractTemporal(text string) (string, bool) {
	lower := strings.ToLower(text)
	phrases := []string{
		"yesterday", "tomorrow", "today", "last week", "next week",
		"last month", "next month", "this morning", "this afternoon",
		"this evening", "tonight", "right now", "earlier today",
	}
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	if loc := timePattern.FindString(text); loc != "" {
		return loc, true
	}
	if loc := agoPattern.FindString(lower); loc != "" {
		return loc, true
	}
	return "", false
}

func classifyIntent(text string) Intent {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	clarificationPhrases := []string{"what do you mean", "clarify", "i don't understand", "i dont understand", "could you explain", "not sure what you mean"}
	for _, p := range clarificationPhrases {
		if strings.Contains(lower, p) {
			return IntentClarification
		}
	}

	continuationStarters := []string{"and ", "also ", "then ", "what about", "and also"}
	for _, p := range continuationStarters {
		if strings.HasPrefix(lower, p) {
			return IntentContinuation
		}
	}

	requestStarters := []string{"please ", "can you ", "could you ", "would you ", "i need you to ", "help me "}
	for _, p := range requestStarters {
		if strings.HasPrefix(lower, p) {
			return IntentRequest
		}
	}

	if strings.HasSuffix(trimmed, "?") {
		return IntentQuestion
	}
	for _, w := range []string{"what ", "why ", "how ", "when ", "where ", "who ", "which "} {
		if strings.HasPrefix(lower, w) {
			return IntentQuestion
		}
	}

	return IntentNewTopic
}
