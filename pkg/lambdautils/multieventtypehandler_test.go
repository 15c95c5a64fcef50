package lambdautils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/function61/gokit/assert"
)

func TestIdentifyAndUnmarshal(t *testing.T) {
	tcs := []struct {
		input        string
		expectedType string
	}{
		{
			`{"httpMethod": "POST", "path": "/s/web/trigger"}`,
			"*events.APIGatewayProxyRequest",
		},
		{
			`{"detail-type": "Scheduled Event", "source": "aws.events", "time": "2020-03-01T12:00:00Z"}`,
			"*events.CloudWatchEvent",
		},
		{
			`{"Records": [{"EventSource": "aws:sns", "Sns": {"Subject": "web", "Message": "{}"}}]}`,
			"*events.SNSEvent",
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.expectedType, func(t *testing.T) {
			event, err := IdentifyAndUnmarshal([]byte(tc.input))
			assert.Ok(t, err)
			assert.EqualString(t, fmt.Sprintf("%T", event), tc.expectedType)
		})
	}
}

func TestIdentifySnsFields(t *testing.T) {
	event, err := IdentifyAndUnmarshal([]byte(`{"Records": [{"EventSource": "aws:sns", "Sns": {"Subject": "web", "Message": "hello"}}]}`))
	assert.Ok(t, err)

	sns := event.(*events.SNSEvent)
	assert.EqualString(t, sns.Records[0].SNS.Subject, "web")
	assert.EqualString(t, sns.Records[0].SNS.Message, "hello")
}

func TestIdentifyUnknown(t *testing.T) {
	for _, input := range []string{`{}`, `{"Records": []}`, `{"Records": [{"eventSource": "aws:dynamodb"}]}`} {
		_, err := IdentifyAndUnmarshal([]byte(input))
		assert.Assert(t, errors.Is(err, ErrUnknownEventType))
	}

	_, err := IdentifyAndUnmarshal([]byte(`not json`))
	assert.Assert(t, err != nil)
}

func TestMultiEventTypeHandler(t *testing.T) {
	handler := NewMultiEventTypeHandler(func(ctx context.Context, event interface{}) ([]byte, error) {
		return []byte(fmt.Sprintf("%T", event)), nil
	})

	out, err := handler.Invoke(context.Background(), []byte(`{"detail-type": "Scheduled Event"}`))
	assert.Ok(t, err)
	assert.EqualString(t, string(out), "*events.CloudWatchEvent")
}
