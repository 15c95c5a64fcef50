package main

// Heartbeats can also be published to an SNS topic the Lambda function is subscribed to.
// Subject is the service id, message is optionally a JSON trigger request.

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/function61/lovebeat/pkg/lbtypes"
)

func handleSnsIngest(ctx context.Context, event events.SNSEvent, logger *log.Logger) error {
	app, err := getApp(ctx, nil, logger)
	if err != nil {
		return err
	}
	defer app.Store.Close()

	return ingestHeartbeats(ctx, app, event)
}

// one bad message doesn't stop the rest, but the first error is reported so SNS retries
func ingestHeartbeats(ctx context.Context, app *lbstate.App, event events.SNSEvent) error {
	var firstErr error

	for _, record := range event.Records {
		msg := record.SNS

		req, err := parseHeartbeatMessage(msg.Message)
		if err == nil {
			err = app.Trigger(ctx, strings.TrimSpace(msg.Subject), req, msg.Timestamp)
		}

		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("message %s: %w", msg.MessageID, err)
		}
	}

	return firstErr
}

func parseHeartbeatMessage(message string) (lbstate.TriggerRequest, error) {
	if !strings.HasPrefix(strings.TrimSpace(message), "{") {
		return lbstate.TriggerRequest{}, nil // plain "I'm alive"
	}

	req := lbtypes.TriggerRequest{}
	if err := json.Unmarshal([]byte(message), &req); err != nil {
		return lbstate.TriggerRequest{}, fmt.Errorf("%w: %v", lbdomain.ErrValidation, err)
	}

	return req.AsInput(), nil
}
