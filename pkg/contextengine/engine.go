// Package contextengine composes the History Vectorizer and the Bayesian
// Memory Manager into the conversation-facing operations a chat loop
// calls directly: recording messages and facts, and assembling a
// token-bounded context window for the next provider call.
package contextengine

import (
	"context"
	"net/http"
	"time"

	"github.com/contextgate/gateway/pkg/asyncx"
	"github.com/contextgate/gateway/pkg/contextengine/bayesian"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/contextengine/vectorizer"
	"github.com/contextgate/gateway/pkg/errx"
	"github.com/contextgate/gateway/pkg/logx"
)

var ErrEmptyChatID = errorRegistry.Register(
	"EMPTY_CHAT_ID",
	errx.TypeValidation,
	http.StatusBadRequest,
	"chat id must not be empty",
)

// Config tunes how an Engine builds context windows.
type Config struct {
	MaxRecentMessages      int
	SummarizationThreshold int
	MaxContextTokens       int
}

// DefaultConfig returns sane defaults: keep the last 20 messages verbatim,
// summarize once 40 messages have accumulated unsummarized, and cap a
// context window at roughly 4k tokens.
func DefaultConfig() Config {
	return Config{
		MaxRecentMessages:      20,
		SummarizationThreshold: 40,
		MaxContextTokens:       4000,
	}
}

// Engine is the Context Engine: the owner of conversation state and the
// single entry point a chat loop uses to record turns and request an
// optimized context window.
type Engine struct {
	store      *Store
	vectorizer *vectorizer.Vectorizer
	bayesian   *bayesian.Manager
	summarizer Summarizer
	cfg        Config
}

// New wires a ready-to-use Engine around a store, vectorizer, bayesian
// manager, and summarizer. Pass nil for summarizer to use the default
// deterministic extractive implementation.
func New(store *Store, v *vectorizer.Vectorizer, b *bayesian.Manager, summarizer Summarizer, cfg Config) *Engine {
	if summarizer == nil {
		summarizer = NewExtractiveSummarizer()
	}
	return &Engine{store: store, vectorizer: v, bayesian: b, summarizer: summarizer, cfg: cfg}
}

// CreateConversation registers a new conversation.
func (e *Engine) CreateConversation(_ context.Context, chatID, ownerID, title string) (*chatmodel.Conversation, error) {
	if chatID == "" {
		return nil, errorRegistry.New(ErrEmptyChatID)
	}
	return e.store.createConversation(chatID, ownerID, title), nil
}

// AddMessage records a message, computing its token count and importance
// (unless importance is explicitly supplied), kicking off asynchronous
// vectorization, and summarizing older history once the unsummarized
// count crosses the configured threshold.
func (e *Engine) AddMessage(ctx context.Context, chatID string, role chatmodel.Role, content string, importance *float64) (chatmodel.Message, error) {
	if _, ok := e.store.getConversation(chatID); !ok {
		return chatmodel.Message{}, errorRegistry.New(ErrConversationNotFound).WithDetail("chat_id", chatID)
	}

	imp := computeImportance(role, content)
	if importance != nil {
		imp = clamp01Local(*importance)
	}

	msg := chatmodel.Message{
		Role:       role,
		Content:    content,
		Timestamp:  time.Now(),
		TokenCount: estimateTokens(content),
		Importance: imp,
	}
	stored := e.store.appendMessage(chatID, msg)

	if e.vectorizer != nil {
		asyncx.DoCtx(context.WithoutCancel(ctx), func(bg context.Context) {
			toIndex := stored
			if err := e.vectorizer.VectorizeMessage(bg, &toIndex); err != nil {
				logx.WithError(err).Warn("contextengine: background vectorization failed")
				return
			}
			_ = e.store.updateMessage(chatID, toIndex.ID, func(m *chatmodel.Message) {
				m.Metadata.Entities = toIndex.Metadata.Entities
				m.Metadata.Topics = toIndex.Metadata.Topics
				m.Metadata.SemanticFingerprint = toIndex.Metadata.SemanticFingerprint
			})
		})
	}

	if e.store.unsummarizedCount(chatID) > e.cfg.SummarizationThreshold {
		e.summarizeOlder(ctx, chatID)
	}

	return stored, nil
}

// Messages returns every message recorded for a conversation, in order.
// Used by callers that need the full transcript rather than an optimized
// window — publishing a conversation to the Shared-Conversation Cache,
// for instance.
func (e *Engine) Messages(_ context.Context, chatID string) ([]chatmodel.Message, error) {
	if _, ok := e.store.getConversation(chatID); !ok {
		return nil, errorRegistry.New(ErrConversationNotFound).WithDetail("chat_id", chatID)
	}
	return e.store.allMessages(chatID), nil
}

// MarkMessageImportant flags or unflags a message as user-marked,
// adjusting its importance score: marking pulls importance up to at
// least 0.8, unmarking halves it.
func (e *Engine) MarkMessageImportant(_ context.Context, chatID string, msgID int64, marked bool) error {
	return e.store.updateMessage(chatID, msgID, func(m *chatmodel.Message) {
		m.Metadata.UserMarked = marked
		if marked {
			if m.Importance < 0.8 {
				m.Importance = 0.8
			}
		} else {
			m.Importance *= 0.5
		}
	})
}

// AddKeyFact records a durable fact about the conversation that should
// survive context compression.
func (e *Engine) AddKeyFact(_ context.Context, chatID, text string, kind chatmodel.KeyFactKind, sourceMsgID *int64) (chatmodel.KeyFact, error) {
	if _, ok := e.store.getConversation(chatID); !ok {
		return chatmodel.KeyFact{}, errorRegistry.New(ErrConversationNotFound).WithDetail("chat_id", chatID)
	}
	fact := chatmodel.KeyFact{
		ID:         randomID(),
		ChatID:     chatID,
		Text:       text,
		Kind:       kind,
		Confidence: 0.7,
	}
	if sourceMsgID != nil {
		fact.SourceMsgID = *sourceMsgID
		fact.HasSourceMsg = true
	}
	return e.store.addKeyFact(fact), nil
}

func (e *Engine) summarizeOlder(ctx context.Context, chatID string) {
	unsummarized := e.store.unsummarizedMessages(chatID)
	if len(unsummarized) <= e.cfg.MaxRecentMessages {
		return
	}
	toSummarize := unsummarized[:len(unsummarized)-e.cfg.MaxRecentMessages]
	summary, err := e.summarizer.Summarize(ctx, chatID, toSummarize)
	if err != nil {
		logx.WithError(err).Warn("contextengine: summarization failed")
		return
	}
	e.store.addSummary(chatID, summary)
}

// GetOptimizedContext assembles a token-bounded window: the most recent
// messages (always present), a Bayesian top-K selection from the rest of
// history when query is non-empty, running summaries, and key facts —
// shed in that priority order (oldest summary, then lowest-probability
// pick, then oldest key fact) whenever the assembled window would exceed
// MaxContextTokens. Recent messages are never shed.
func (e *Engine) GetOptimizedContext(ctx context.Context, chatID, query string) (chatmodel.ContextWindow, error) {
	if _, ok := e.store.getConversation(chatID); !ok {
		return chatmodel.ContextWindow{}, errorRegistry.New(ErrConversationNotFound).WithDetail("chat_id", chatID)
	}

	all := e.store.allMessages(chatID)
	recentN := e.cfg.MaxRecentMessages
	if recentN > len(all) {
		recentN = len(all)
	}
	recent := all[len(all)-recentN:]
	recentIDs := make(map[int64]bool, len(recent))
	for _, m := range recent {
		recentIDs[m.ID] = true
	}

	var selected []chatmodel.HistoricalPick
	var note string
	if query != "" && e.bayesian != nil {
		analysis := e.bayesian.Analyze(ctx, chatID, query)
		note = analysis.Note
		for _, p := range analysis.Selected {
			if !recentIDs[p.Message.ID] {
				selected = append(selected, p)
			}
		}
	}

	summaries := e.store.allSummaries(chatID)
	keyFacts := e.store.allKeyFacts(chatID)

	recentTokens := sumTokens(recent)
	summaryTokens := make([]int, len(summaries))
	for i, s := range summaries {
		summaryTokens[i] = estimateTokens(s.Text)
	}
	factTokens := make([]int, len(keyFacts))
	for i, f := range keyFacts {
		factTokens[i] = estimateTokens(f.Text)
	}
	pickTokens := make([]int, len(selected))
	for i, p := range selected {
		pickTokens[i] = p.Message.TokenCount
	}

	total := recentTokens + sumInts(summaryTokens) + sumInts(factTokens) + sumInts(pickTokens)

	for total > e.cfg.MaxContextTokens {
		switch {
		case len(summaries) > 0:
			total -= summaryTokens[0]
			summaries = summaries[1:]
			summaryTokens = summaryTokens[1:]
		case len(selected) > 0:
			worst := lowestProbabilityIndex(selected)
			total -= pickTokens[worst]
			selected = removeAt(selected, worst)
			pickTokens = removeIntAt(pickTokens, worst)
		case len(keyFacts) > 0:
			total -= factTokens[0]
			keyFacts = keyFacts[1:]
			factTokens = factTokens[1:]
		default:
			total = e.cfg.MaxContextTokens
		}
	}

	fullHistoryTokens := sumTokens(all)
	stats := chatmodel.Statistics{
		TotalTokens:       total,
		FullHistoryTokens: fullHistoryTokens,
	}
	if fullHistoryTokens > 0 {
		stats.CompressionRatio = float64(stats.TotalTokens) / float64(fullHistoryTokens)
	}
	if stats.TotalTokens > 0 {
		stats.BayesianShare = float64(sumInts(pickTokens)) / float64(stats.TotalTokens)
	}

	return chatmodel.ContextWindow{
		RecentMessages:     recent,
		SelectedHistory:    selected,
		Summaries:          summaries,
		KeyFacts:           keyFacts,
		Statistics:         stats,
		ContextExplanation: note,
	}, nil
}

func sumTokens(msgs []chatmodel.Message) int {
	n := 0
	for _, m := range msgs {
		n += m.TokenCount
	}
	return n
}

func sumInts(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}

func lowestProbabilityIndex(picks []chatmodel.HistoricalPick) int {
	idx := 0
	for i := 1; i < len(picks); i++ {
		if picks[i].Probability < picks[idx].Probability {
			idx = i
		}
	}
	return idx
}

func removeAt(picks []chatmodel.HistoricalPick, i int) []chatmodel.HistoricalPick {
	return append(picks[:i:i], picks[i+1:]...)
}

func removeIntAt(xs []int, i int) []int {
	return append(xs[:i:i], xs[i+1:]...)
}

func clamp01Local(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
