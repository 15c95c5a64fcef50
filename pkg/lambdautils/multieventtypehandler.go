package lambdautils

// Lambda gives one handler per function, so we sniff the payload to find out which
// kind of event we got

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

var ErrUnknownEventType = errors.New("cannot identify type of request")

type multiEventTypeHandlerFn func(ctx context.Context, polymorphicEvent interface{}) ([]byte, error)

type multiEventTypeHandler struct {
	fn multiEventTypeHandlerFn
}

func NewMultiEventTypeHandler(fn multiEventTypeHandlerFn) lambda.Handler {
	return &multiEventTypeHandler{fn}
}

func (m *multiEventTypeHandler) Invoke(ctx context.Context, reqRaw []byte) ([]byte, error) {
	polymorphicEvent, err := IdentifyAndUnmarshal(reqRaw)
	if err != nil {
		return nil, err
	}

	return m.fn(ctx, polymorphicEvent)
}

// just enough fields to tell the event types apart
type eventTypeProbe struct {
	HttpMethod string `json:"httpMethod"`  // APIGatewayProxyRequest
	DetailType string `json:"detail-type"` // CloudWatchEvent
	Records    []struct {
		EventSource string `json:"EventSource"` // "aws:sns"
	} `json:"Records"`
}

// events we handle:
// - API Gateway (REST API)
// - CloudWatch scheduled event (reconcile + notify)
// - SNS (heartbeats published to a topic)
func (e *eventTypeProbe) identify() (interface{}, error) {
	switch {
	case e.HttpMethod != "":
		return &events.APIGatewayProxyRequest{}, nil
	case e.DetailType == "Scheduled Event":
		return &events.CloudWatchEvent{}, nil
	case len(e.Records) > 0 && e.Records[0].EventSource == "aws:sns":
		return &events.SNSEvent{}, nil
	default:
		return nil, ErrUnknownEventType
	}
}

// returns one of *events.APIGatewayProxyRequest, *events.CloudWatchEvent or *events.SNSEvent
func IdentifyAndUnmarshal(reqRaw []byte) (interface{}, error) {
	probe := &eventTypeProbe{}
	if err := json.Unmarshal(reqRaw, probe); err != nil {
		return nil, err
	}

	typeOfRequest, err := probe.identify()
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(reqRaw, typeOfRequest); err != nil {
		return nil, fmt.Errorf("request unmarshal: %w", err)
	}

	return typeOfRequest, nil
}
