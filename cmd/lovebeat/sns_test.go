package main

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/function61/gokit/assert"
)

func TestSnsPublishInput(t *testing.T) {
	input, err := snsPublishInput("arn:aws:sns:us-east-1:123456789012:alerts", notification{
		Subject:    "DOWN alert: db is DOWN [#3]",
		Message:    "db is down with error status.",
		Recipients: []string{"email:ops@example.com", "sms:0015551234"},
	})
	assert.Ok(t, err)

	assert.EqualString(t, aws.StringValue(input.TopicArn), "arn:aws:sns:us-east-1:123456789012:alerts")
	assert.EqualString(t, aws.StringValue(input.Subject), "DOWN alert: db is DOWN [#3]")
	assert.EqualString(t, aws.StringValue(input.MessageStructure), "json")
	assert.EqualString(
		t,
		aws.StringValue(input.Message),
		`{"default":"db is down with error status.","sms":"DOWN alert: db is DOWN [#3]"}`)

	recipients := input.MessageAttributes["recipients"]
	assert.EqualString(t, aws.StringValue(recipients.DataType), "String.Array")
	assert.EqualString(t, aws.StringValue(recipients.StringValue), `["email:ops@example.com","sms:0015551234"]`)
}

func TestSnsPublishInputTruncatesSubject(t *testing.T) {
	subject := "DOWN alert: " + strings.Repeat("x", 200) + " is DOWN [#1]"

	input, err := snsPublishInput("topic", notification{Subject: subject})
	assert.Ok(t, err)

	assert.Assert(t, len(aws.StringValue(input.Subject)) < len(subject))
	assert.Assert(t, strings.HasPrefix(aws.StringValue(input.Subject), "DOWN alert: xxx"))
}
