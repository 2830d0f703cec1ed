package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

// NewPubSub opens a client for projectID using ambient Google credentials.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project not configured")
	}
	return pubsub.NewClient(ctx, projectID)
}

// PostEventPublisher sends post lifecycle events to a Pub/Sub topic.
type PostEventPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPostEventPublisher(client *pubsub.Client, topicID string) *PostEventPublisher {
	p := &PostEventPublisher{client: client}
	if client != nil {
		p.topic = client.Topic(topicID)
	}
	return p
}

// EnsureTopic creates the topic when it does not exist yet.
func (p *PostEventPublisher) EnsureTopic(ctx context.Context) error {
	if p.topic == nil {
		return nil
	}
	exists, err := p.topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topic.ID()).Info("Topic doesn't exist - creating it")
		if _, err := p.client.CreateTopic(ctx, p.topic.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Publish blocks until the server acknowledges the message.
func (p *PostEventPublisher) Publish(ctx context.Context, event model.PostEvent) error {
	if p.topic == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"post_id": event.PostID,
			"user_id": event.UserID,
			"status":  string(event.Status),
		},
	}
	serverID, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithField("server ID", serverID).WithField("post_id", event.PostID).Debug("Post event published")
	return nil
}

// Stop flushes pending messages.
func (p *PostEventPublisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}

var _ repository.IEventPublisher = (*PostEventPublisher)(nil)
