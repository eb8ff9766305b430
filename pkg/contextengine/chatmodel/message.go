// Package chatmodel holds the conversation domain types shared by the
// History Vectorizer, the Bayesian Memory Manager, and the Context Engine
// that composes them — kept in its own leaf package so none of the three
// needs to import another to see a Message.
package chatmodel

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn in a conversation. ID is monotonically increasing
// within ChatID; Timestamp is non-decreasing within ChatID.
type Message struct {
	ID           int64
	ChatID       string
	Role         Role
	Content      string
	Timestamp    time.Time
	TokenCount   int
	Importance   float64
	ModelVersion string

	Metadata MessageMetadata
}

// MessageMetadata holds the fields the Vectorizer and Bayesian Manager
// mutate after a message is created: entities and topics are sets
// represented as sorted, deduplicated slices; TimesReferenced only ever
// increments (see Open Question decisions).
type MessageMetadata struct {
	Entities          []string
	Topics            []string
	SemanticFingerprint string
	TimesReferenced   int
	UserMarked        bool
}

// Conversation is the owning container for a run of messages.
type Conversation struct {
	ChatID     string
	OwnerID    string
	Title      string
	PersonaID  string
	CreatedAt  time.Time
	LastActive time.Time
}

// KeyFactKind classifies a recorded fact.
type KeyFactKind string

const (
	KeyFactDecision   KeyFactKind = "decision"
	KeyFactPreference KeyFactKind = "preference"
	KeyFactFact       KeyFactKind = "fact"
	KeyFactGoal       KeyFactKind = "goal"
)

// KeyFact is a short, durable statement about a conversation that should
// survive context compression regardless of recency.
type KeyFact struct {
	ID            string
	ChatID        string
	Text          string
	Kind          KeyFactKind
	Confidence    float64
	SourceMsgID   int64
	HasSourceMsg  bool
	CreatedAt     time.Time
}

// Summary covers a contiguous, already-compressed range of messages.
type Summary struct {
	ID               string
	Text             string
	MessageRangeFrom int64
	MessageRangeTo   int64
	TimeRangeFrom    time.Time
	TimeRangeTo      time.Time
}

// Evidence is the six-component Bayesian evidence breakdown for one
// candidate historical message (§4.3).
type Evidence struct {
	Semantic    float64
	Temporal    float64
	Entity      float64
	Topic       float64
	Interaction float64
	Continuity  float64
}

// Mean returns the unweighted mean of the six evidence components, used to
// derive Confidence.
func (e Evidence) Mean() float64 {
	return (e.Semantic + e.Temporal + e.Entity + e.Topic + e.Interaction + e.Continuity) / 6
}

// Priors is the five-component prior breakdown (§4.3).
type Priors struct {
	BaseImportance float64
	MessageType    float64
	Length         float64
	Position       float64
	UserMarked     float64
}

// HistoricalPick is one Bayesian-selected historical message, with its
// posterior probability and the evidence/prior inputs that produced it.
type HistoricalPick struct {
	Message     Message
	Rank        int
	Probability float64
	Confidence  float64
	Evidence    Evidence
	Priors      Priors
}

// Statistics summarizes how a ContextWindow was assembled.
type Statistics struct {
	TotalTokens       int
	FullHistoryTokens int
	CompressionRatio  float64
	BayesianShare     float64
}

// ContextWindow is the ephemeral, per-request output of GetOptimizedContext.
type ContextWindow struct {
	RecentMessages    []Message
	SelectedHistory   []HistoricalPick
	Summaries         []Summary
	KeyFacts          []KeyFact
	Statistics        Statistics
	ContextExplanation string
}
