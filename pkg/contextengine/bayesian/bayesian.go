// Package bayesian scores historical messages for relevance to a current
// query using a Bayesian combination of evidence and priors, and selects
// the top-K most relevant (§4.3).
package bayesian

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/contextgate/gateway/pkg/asyncx"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/contextengine/vectorizer"
	"github.com/contextgate/gateway/pkg/logx"
)

// EvidenceWeights must sum to 1; zero-value uses DefaultEvidenceWeights.
type EvidenceWeights struct {
	Semantic    float64
	Temporal    float64
	Entity      float64
	Topic       float64
	Interaction float64
	Continuity  float64
}

// DefaultEvidenceWeights is the baseline weighting over the six evidence
// channels.
func DefaultEvidenceWeights() EvidenceWeights {
	return EvidenceWeights{
		Semantic:    0.35,
		Temporal:    0.15,
		Entity:      0.15,
		Topic:       0.15,
		Interaction: 0.10,
		Continuity:  0.10,
	}
}

// PriorWeights must sum to 1; zero-value uses DefaultPriorWeights.
type PriorWeights struct {
	BaseImportance float64
	MessageType    float64
	Length         float64
	Position       float64
	UserMarked     float64
}

// DefaultPriorWeights is the baseline weighting over the five prior
// channels.
func DefaultPriorWeights() PriorWeights {
	return PriorWeights{
		BaseImportance: 0.35,
		MessageType:    0.20,
		Length:         0.15,
		Position:       0.10,
		UserMarked:     0.20,
	}
}

// EvidenceFunc computes a pluggable evidence channel given the candidate
// and the query it's being scored against. Continuity ships as a
// constant-0.5 stub until a dialog-flow graph exists.
type EvidenceFunc func(candidate chatmodel.Message, qa vectorizer.QueryAnalysis, similarity float64) float64

// PriorFunc computes a pluggable prior channel. Position ships as a
// constant-0.5 stub.
type PriorFunc func(candidate chatmodel.Message, index, total int) float64

// Config tunes the manager's thresholds and weights.
type Config struct {
	MaxHistorySize          int
	TopK                    int
	MinRelevanceProbability float64
	MinRelevance            float64 // floor for the temporal evidence component
	HalfLifeHours           float64

	EvidenceWeights EvidenceWeights
	PriorWeights    PriorWeights

	ContinuityFunc EvidenceFunc
	PositionFunc   PriorFunc
}

// DefaultConfig returns sane defaults sized for a few hundred messages
// of history.
func DefaultConfig() Config {
	return Config{
		MaxHistorySize:          200,
		TopK:                    5,
		MinRelevanceProbability: 0.3,
		MinRelevance:            0.05,
		HalfLifeHours:           12,
		EvidenceWeights:         DefaultEvidenceWeights(),
		PriorWeights:            DefaultPriorWeights(),
	}
}

// MessageUpdater lets the manager increment times-referenced on a selected
// message without owning conversation storage itself.
type MessageUpdater interface {
	IncrementTimesReferenced(ctx context.Context, chatID string, msgID int64) error
}

// Analysis is the manager's output for one query.
type Analysis struct {
	Selected   []chatmodel.HistoricalPick
	AverageProb float64
	Note       string
	Degraded   bool
}

// Manager implements the Bayesian Memory Manager.
type Manager struct {
	vectorizer *vectorizer.Vectorizer
	updater    MessageUpdater
	cfg        Config
}

// New creates a Manager bound to a Vectorizer (for query analysis and
// candidate retrieval) and a MessageUpdater (for times-referenced bumps).
func New(v *vectorizer.Vectorizer, updater MessageUpdater, cfg Config) *Manager {
	if cfg.ContinuityFunc == nil {
		cfg.ContinuityFunc = func(chatmodel.Message, vectorizer.QueryAnalysis, float64) float64 { return 0.5 }
	}
	if cfg.PositionFunc == nil {
		cfg.PositionFunc = func(chatmodel.Message, int, int) float64 { return 0.5 }
	}
	if cfg.EvidenceWeights == (EvidenceWeights{}) {
		cfg.EvidenceWeights = DefaultEvidenceWeights()
	}
	if cfg.PriorWeights == (PriorWeights{}) {
		cfg.PriorWeights = DefaultPriorWeights()
	}
	return &Manager{vectorizer: v, updater: updater, cfg: cfg}
}

// Analyze scores history for chatID against query and returns the top-K
// most relevant messages. A failed Vector Store call degrades gracefully
// to an empty selection rather than failing the request (§4.3, §4.4).
func (m *Manager) Analyze(ctx context.Context, chatID, query string) Analysis {
	qa, err := m.vectorizer.AnalyzeQuery(ctx, query)
	if err != nil {
		logx.WithError(err).Warn("bayesian: query analysis failed")
		return Analysis{Note: "No context was available: query analysis failed.", Degraded: true}
	}

	candidates, err := m.vectorizer.FindSimilarMessages(ctx, chatID, qa, m.cfg.MaxHistorySize)
	if err != nil {
		logx.WithError(err).Warn("bayesian: vector store lookup failed")
		return Analysis{Note: "No context was available: the history index could not be reached.", Degraded: true}
	}
	if len(candidates) == 0 {
		return Analysis{Note: "No relevant history was found for this query."}
	}

	picks := m.scoreConcurrently(ctx, candidates, qa)

	filtered := make([]chatmodel.HistoricalPick, 0, len(picks))
	for _, p := range picks {
		if p.Probability >= m.cfg.MinRelevanceProbability {
			filtered = append(filtered, p)
		}
	}
	sortDescending(filtered)
	if len(filtered) > m.cfg.TopK {
		filtered = filtered[:m.cfg.TopK]
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}

	for _, p := range filtered {
		if p.Probability > 0.7 && m.updater != nil {
			if err := m.updater.IncrementTimesReferenced(ctx, chatID, p.Message.ID); err != nil {
				logx.WithError(err).Warn("bayesian: failed to bump times-referenced")
			}
		}
	}

	avg := averageProbability(filtered)
	return Analysis{
		Selected:    filtered,
		AverageProb: avg,
		Note:        buildNote(filtered, avg, qa.Intent),
	}
}

func (m *Manager) scoreConcurrently(ctx context.Context, candidates []vectorizer.SimilarMessage, qa vectorizer.QueryAnalysis) []chatmodel.HistoricalPick {
	picks, err := asyncx.Pool(ctx, 8, candidates, func(_ context.Context, c vectorizer.SimilarMessage) (chatmodel.HistoricalPick, error) {
		return m.score(c, qa, 0, len(candidates)), nil
	})
	if err != nil {
		logx.WithError(err).Warn("bayesian: concurrent scoring aborted")
		return nil
	}
	return picks
}

func (m *Manager) score(c vectorizer.SimilarMessage, qa vectorizer.QueryAnalysis, index, total int) chatmodel.HistoricalPick {
	msg := c.Message

	evidence := chatmodel.Evidence{
		Semantic:    clamp01(c.Similarity),
		Temporal:    temporalDecay(msg.Timestamp, m.cfg.HalfLifeHours, m.cfg.MinRelevance),
		Entity:      vectorizer.EntityOverlap(msg.Metadata.Entities, qa.Entities),
		Topic:       vectorizer.TopicSimilarity(msg.Metadata.Topics, qa.Topics),
		Interaction: interactionScore(msg),
		Continuity:  m.cfg.ContinuityFunc(msg, qa, c.Similarity),
	}

	priors := chatmodel.Priors{
		BaseImportance: clamp01(msg.Importance),
		MessageType:    messageTypeScore(msg.Role),
		Length:         clamp01(float64(msg.TokenCount) / 100),
		Position:       m.cfg.PositionFunc(msg, index, total),
		UserMarked:     userMarkedScore(msg.Metadata.UserMarked),
	}

	w := m.cfg.EvidenceWeights
	likelihood := w.Semantic*evidence.Semantic + w.Temporal*evidence.Temporal +
		w.Entity*evidence.Entity + w.Topic*evidence.Topic +
		w.Interaction*evidence.Interaction + w.Continuity*evidence.Continuity

	pw := m.cfg.PriorWeights
	prior := pw.BaseImportance*priors.BaseImportance + pw.MessageType*priors.MessageType +
		pw.Length*priors.Length + pw.Position*priors.Position + pw.UserMarked*priors.UserMarked

	posterior := clamp01(likelihood * prior)
	confidence := clamp01(evidence.Mean() * 1.2)

	return chatmodel.HistoricalPick{
		Message:     msg,
		Probability: posterior,
		Confidence:  confidence,
		Evidence:    evidence,
		Priors:      priors,
	}
}

func temporalDecay(ts time.Time, halfLifeHours, floor float64) float64 {
	if ts.IsZero() {
		return floor
	}
	ageHours := time.Since(ts).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	if halfLifeHours <= 0 {
		halfLifeHours = 12
	}
	decayed := math.Exp(-math.Ln2 * ageHours / halfLifeHours)
	if decayed < floor {
		return floor
	}
	return decayed
}

func interactionScore(msg chatmodel.Message) float64 {
	score := 0.5
	if msg.Metadata.UserMarked {
		score += 0.3
	}
	// Saturating contribution from times-referenced, capped at +0.2.
	refBoost := float64(msg.Metadata.TimesReferenced) * 0.04
	if refBoost > 0.2 {
		refBoost = 0.2
	}
	score += refBoost
	return clamp01(score)
}

func messageTypeScore(role chatmodel.Role) float64 {
	if role == chatmodel.RoleUser {
		return 0.8
	}
	return 0.5
}

func userMarkedScore(marked bool) float64 {
	if marked {
		return 0.9
	}
	return 0.5
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortDescending(picks []chatmodel.HistoricalPick) {
	for i := 1; i < len(picks); i++ {
		for j := i; j > 0 && picks[j].Probability > picks[j-1].Probability; j-- {
			picks[j], picks[j-1] = picks[j-1], picks[j]
		}
	}
}

func averageProbability(picks []chatmodel.HistoricalPick) float64 {
	if len(picks) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range picks {
		sum += p.Probability
	}
	return sum / float64(len(picks))
}

func buildNote(picks []chatmodel.HistoricalPick, avg float64, intent vectorizer.Intent) string {
	if len(picks) == 0 {
		return "No historical messages met the relevance threshold."
	}
	lead := picks[0]
	adaptedSentence := intentSentence(intent)
	return fmt.Sprintf(
		"Selected %d relevant message(s) with average probability %.2f. %s",
		len(picks), avg, adaptedSentence(lead),
	)
}

func intentSentence(intent vectorizer.Intent) func(chatmodel.HistoricalPick) string {
	switch intent {
	case vectorizer.IntentQuestion:
		return func(p chatmodel.HistoricalPick) string {
			return fmt.Sprintf("The top match (message %d) likely answers the question asked.", p.Message.ID)
		}
	case vectorizer.IntentRequest:
		return func(p chatmodel.HistoricalPick) string {
			return fmt.Sprintf("The top match (message %d) relates to the action requested.", p.Message.ID)
		}
	case vectorizer.IntentClarification:
		return func(p chatmodel.HistoricalPick) string {
			return fmt.Sprintf("The top match (message %d) is the prior turn this clarification refers back to.", p.Message.ID)
		}
	case vectorizer.IntentContinuation:
		return func(p chatmodel.HistoricalPick) string {
			return fmt.Sprintf("The top match (message %d) continues the same thread.", p.Message.ID)
		}
	default:
		return func(p chatmodel.HistoricalPick) string {
			return fmt.Sprintf("The top match (message %d) is the closest prior reference found.", p.Message.ID)
		}
	}
}
