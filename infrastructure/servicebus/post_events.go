package servicebus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// NewServiceBus connects with a connection string when one is given, and with
// DefaultAzureCredential against a fully qualified namespace otherwise.
func NewServiceBus(namespace string) (*azservicebus.Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("service bus namespace not configured")
	}
	if strings.HasPrefix(namespace, "Endpoint=") {
		return azservicebus.NewClientFromConnectionString(namespace, nil)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

// PostEventSender forwards post lifecycle events to a Service Bus queue.
type PostEventSender struct {
	client *azservicebus.Client
	queue  string
}

func NewPostEventSender(client *azservicebus.Client, queue string) *PostEventSender {
	return &PostEventSender{client: client, queue: queue}
}

func (s *PostEventSender) Publish(ctx context.Context, event model.PostEvent) error {
	if s.client == nil {
		return nil
	}
	msg, err := NewPostEventMessage(event)
	if err != nil {
		return err
	}
	sender, err := s.client.NewSender(s.queue, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender, ctx context.Context) {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing sender.")
		}
	}(sender, context.Background())

	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).WithField("post_id", event.PostID).Error("Error while sending message.")
		return err
	}
	return nil
}

// NewPostEventMessage encodes event as a JSON message. The message id makes
// redelivery of the same status change detectable downstream.
func NewPostEventMessage(event model.PostEvent) (*azservicebus.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	contentType := "application/json"
	subject := string(event.Status)
	messageID := fmt.Sprintf("%s:%s:%d", event.PostID, event.Status, event.OccurredAt.UnixNano())
	return &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		MessageID:   &messageID,
		ApplicationProperties: map[string]any{
			"post_id": event.PostID,
			"user_id": event.UserID,
		},
	}, nil
}

var _ repository.IEventPublisher = (*PostEventSender)(nil)
