package events

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Publisher announces completed work to other services. Publishing is
// fire-and-forget: the originating write has already committed when
// Publish runs, so transport failures are logged and swallowed, never
// propagated to the caller.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes enriched events to an SNS topic which fans out
// to the subscriber queues of each interested service.
type SNSPublisher struct {
	client       snsAPI
	topicARN     string
	microservice string
	logger       *slog.Logger
}

// NewSNSPublisher constructs a publisher for the given topic.
func NewSNSPublisher(client snsAPI, topicARN, microservice string, logger *slog.Logger) *SNSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SNSPublisher{
		client:       client,
		topicARN:     topicARN,
		microservice: microservice,
		logger:       logger,
	}
}

// Publish enriches the payload, serializes it, and sends it to the topic.
// Routing attributes mirror event_type and microservice so subscriptions
// can filter without parsing the body.
func (p *SNSPublisher) Publish(ctx context.Context, eventType string, payload map[string]any) {
	envelope := NewEnvelope(eventType, p.microservice, payload)

	body, err := envelope.MarshalJSON()
	if err != nil {
		p.logger.Error("event serialization failed",
			"event_type", eventType, "event_id", envelope.EventID, "error", err)
		return
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventType),
			},
			"microservice": {
				DataType:    aws.String("String"),
				StringValue: aws.String(p.microservice),
			},
		},
	})
	if err != nil {
		attrs := []any{
			"event_type", eventType,
			"event_id", envelope.EventID,
			"error", err,
		}
		attrs = append(attrs, domainIDs(payload)...)
		p.logger.Error("event publish failed", attrs...)
		return
	}

	p.logger.Info("event published",
		"event_type", eventType, "event_id", envelope.EventID)
}

// domainIDs extracts the identifier fields from a payload so a swallowed
// publish failure is still traceable to the aggregate it concerned.
func domainIDs(payload map[string]any) []any {
	ids := make([]any, 0, 4)
	for k, v := range payload {
		if strings.HasSuffix(k, "_id") {
			ids = append(ids, k, v)
		}
	}
	return ids
}
