package contextengine

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/errx"
)

var errorRegistry = errx.NewRegistry("CONTEXTENGINE")

var (
	ErrConversationNotFound = errorRegistry.Register(
		"CONVERSATION_NOT_FOUND",
		errx.TypeNotFound,
		http.StatusNotFound,
		"Conversation not found",
	)

	ErrMessageNotFound = errorRegistry.Register(
		"MESSAGE_NOT_FOUND",
		errx.TypeNotFound,
		http.StatusNotFound,
		"Message not found",
	)
)

// Store holds conversations, their messages, key facts, and summaries
// in-process. It satisfies vectorizer.MessageStore and
// bayesian.MessageUpdater so the Engine can hand it to both subsystems
// without either depending on the Engine package.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*chatmodel.Conversation
	messages      map[string][]chatmodel.Message
	keyFacts      map[string][]chatmodel.KeyFact
	summaries     map[string][]chatmodel.Summary
	nextID        map[string]int64
}

// NewStore creates an empty in-process conversation store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*chatmodel.Conversation),
		messages:      make(map[string][]chatmodel.Message),
		keyFacts:      make(map[string][]chatmodel.KeyFact),
		summaries:     make(map[string][]chatmodel.Summary),
		nextID:        make(map[string]int64),
	}
}

func (s *Store) createConversation(chatID, ownerID, title string) *chatmodel.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	conv := &chatmodel.Conversation{
		ChatID:     chatID,
		OwnerID:    ownerID,
		Title:      title,
		CreatedAt:  now,
		LastActive: now,
	}
	s.conversations[chatID] = conv
	return conv
}

func (s *Store) getConversation(chatID string) (*chatmodel.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[chatID]
	return c, ok
}

// appendMessage assigns a strictly increasing id and a non-decreasing
// timestamp within chatID, then stores the message.
func (s *Store) appendMessage(chatID string, msg chatmodel.Message) chatmodel.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID[chatID]++
	msg.ID = s.nextID[chatID]
	msg.ChatID = chatID

	if existing := s.messages[chatID]; len(existing) > 0 {
		last := existing[len(existing)-1].Timestamp
		if msg.Timestamp.Before(last) {
			msg.Timestamp = last
		}
	}

	s.messages[chatID] = append(s.messages[chatID], msg)
	if conv, ok := s.conversations[chatID]; ok {
		conv.LastActive = msg.Timestamp
	}
	return msg
}

func (s *Store) allMessages(chatID string) []chatmodel.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chatmodel.Message, len(s.messages[chatID]))
	copy(out, s.messages[chatID])
	return out
}

func (s *Store) updateMessage(chatID string, msgID int64, mutate func(*chatmodel.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].ID == msgID {
			mutate(&msgs[i])
			return nil
		}
	}
	return errorRegistry.New(ErrMessageNotFound).WithDetail("chat_id", chatID).WithDetail("message_id", fmt.Sprint(msgID))
}

// GetMessage implements vectorizer.MessageStore.
func (s *Store) GetMessage(_ context.Context, chatID string, msgID int64) (*chatmodel.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages[chatID] {
		if m.ID == msgID {
			cp := m
			return &cp, nil
		}
	}
	return nil, errorRegistry.New(ErrMessageNotFound)
}

// IncrementTimesReferenced implements bayesian.MessageUpdater. It only
// ever increments — removal never decrements (Open Question 1).
func (s *Store) IncrementTimesReferenced(_ context.Context, chatID string, msgID int64) error {
	return s.updateMessage(chatID, msgID, func(m *chatmodel.Message) {
		m.Metadata.TimesReferenced++
	})
}

func (s *Store) addKeyFact(fact chatmodel.KeyFact) chatmodel.KeyFact {
	s.mu.Lock()
	defer s.mu.Unlock()
	fact.CreatedAt = time.Now()
	s.keyFacts[fact.ChatID] = append(s.keyFacts[fact.ChatID], fact)
	return fact
}

func (s *Store) allKeyFacts(chatID string) []chatmodel.KeyFact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chatmodel.KeyFact, len(s.keyFacts[chatID]))
	copy(out, s.keyFacts[chatID])
	return out
}

func (s *Store) addSummary(chatID string, sum chatmodel.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[chatID] = append(s.summaries[chatID], sum)
}

func (s *Store) allSummaries(chatID string) []chatmodel.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chatmodel.Summary, len(s.summaries[chatID]))
	copy(out, s.summaries[chatID])
	return out
}

// unsummarizedCount is the number of messages after the last summary's
// MessageRangeTo — the count AddMessage compares against the
// summarization threshold.
func (s *Store) unsummarizedCount(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[chatID]
	sums := s.summaries[chatID]
	if len(sums) == 0 {
		return len(msgs)
	}
	lastCovered := sums[len(sums)-1].MessageRangeTo
	n := 0
	for _, m := range msgs {
		if m.ID > lastCovered {
			n++
		}
	}
	return n
}

func (s *Store) unsummarizedMessages(chatID string) []chatmodel.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[chatID]
	sums := s.summaries[chatID]
	var lastCovered int64
	if len(sums) > 0 {
		lastCovered = sums[len(sums)-1].MessageRangeTo
	}
	out := make([]chatmodel.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID > lastCovered {
			out = append(out, m)
		}
	}
	return out
}
