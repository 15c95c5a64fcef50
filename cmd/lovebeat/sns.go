package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/function61/gokit/envvar"
	"github.com/function61/gokit/stringutils"
)

// publishes to ALERT_TOPIC. recipients travel as a message attribute, so subscriptions
// can pick their share with a filter policy.
func newSnsPublisher() (notificationPublisherFn, error) {
	alertTopic, err := envvar.Required("ALERT_TOPIC")
	if err != nil {
		return nil, err
	}

	awsSession, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	snsSvc := sns.New(awsSession, aws.NewConfig().WithRegion(envOr("AWS_REGION", "us-east-1")))

	return func(ctx context.Context, n notification) error {
		input, err := snsPublishInput(alertTopic, n)
		if err != nil {
			return err
		}

		_, err = snsSvc.PublishWithContext(ctx, input)
		return err
	}, nil
}

func snsPublishInput(topic string, n notification) (*sns.PublishInput, error) {
	messagePerProtocol := struct {
		Default string `json:"default"` // email etc.
		Sms     string `json:"sms"`
	}{
		Default: stringutils.Truncate(n.Message, 4*1024),
		Sms:     stringutils.Truncate(n.Subject, 160-7), // -7 for "ALERT >" prefix in SMS messages
	}

	messagePerProtocolJson, err := json.Marshal(&messagePerProtocol)
	if err != nil {
		return nil, err
	}

	recipientsJson, err := json.Marshal(n.Recipients)
	if err != nil {
		return nil, err
	}

	return &sns.PublishInput{
		TopicArn:         aws.String(topic),
		Subject:          aws.String(stringutils.Truncate(n.Subject, 100)), // SNS limit
		Message:          aws.String(string(messagePerProtocolJson)),
		MessageStructure: aws.String("json"),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"recipients": {
				DataType:    aws.String("String.Array"),
				StringValue: aws.String(string(recipientsJson)),
			},
		},
	}, nil
}
