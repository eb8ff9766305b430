package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contextgate/gateway/pkg/jobx"
	"github.com/contextgate/gateway/pkg/sharedcache"
	"github.com/google/uuid"
)

const jobTypePublishConversation = "publish_conversation"

type publishConversationPayload struct {
	ShareID string        `json:"share_id"`
	ChatID  string        `json:"chat_id"`
	Title   string        `json:"title"`
	TTL     time.Duration `json:"ttl"`
}

// PublishConversation enqueues a background job that snapshots a
// conversation's full transcript into the Shared-Conversation Cache
// under a freshly minted share id, which is returned immediately. The
// snapshot itself happens asynchronously via handlePublishConversation.
func (c *Container) PublishConversation(ctx context.Context, chatID, title string, ttl time.Duration) (string, error) {
	shareID := uuid.New().String()
	payload, err := json.Marshal(publishConversationPayload{ShareID: shareID, ChatID: chatID, Title: title, TTL: ttl})
	if err != nil {
		return "", err
	}
	if _, err := c.Jobs.Enqueue(ctx, jobx.Job{
		Type:    jobTypePublishConversation,
		Queue:   "vectorize",
		Payload: payload,
	}); err != nil {
		return "", err
	}
	return shareID, nil
}

func (c *Container) handlePublishConversation(ctx context.Context, job *jobx.JobInfo) error {
	var p publishConversationPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("publish_conversation: bad payload: %w", err)
	}

	messages, err := c.Engine.Messages(ctx, p.ChatID)
	if err != nil {
		return fmt.Errorf("publish_conversation: %w", err)
	}

	return c.Cache.Set(ctx, p.ShareID, sharedcache.PublishedConversation{
		ShareID:     p.ShareID,
		ChatID:      p.ChatID,
		Title:       p.Title,
		Messages:    messages,
		PublishedAt: time.Now(),
	}, p.TTL)
}
