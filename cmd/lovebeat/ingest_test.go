package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/function61/gokit/assert"
	"github.com/function61/lovebeat/pkg/lbdomain"
)

func TestParseHeartbeatMessage(t *testing.T) {
	req, err := parseHeartbeatMessage("I'm alive")
	assert.Ok(t, err)
	assert.Assert(t, req.Labels == nil && req.Warning == nil && req.Error == nil)

	req, err = parseHeartbeatMessage(`{"labels": ["db"], "heartbeat": {"warning": null, "error": 60}}`)
	assert.Ok(t, err)
	assert.EqualString(t, strings.Join(req.Labels, ","), "db")
	assert.Assert(t, req.Warning == nil)
	assert.Assert(t, *req.Error == 60)

	_, err = parseHeartbeatMessage(`{"labels": "db"}`)
	assert.Assert(t, errors.Is(err, lbdomain.ErrValidation))
}

func TestIngestHeartbeats(t *testing.T) {
	srv := newTestServer(t)

	record := func(id string, subject string, message string, ts int) events.SNSEventRecord {
		return events.SNSEventRecord{
			SNS: events.SNSEntity{
				MessageID: id,
				Subject:   subject,
				Message:   message,
				Timestamp: epoch.Add(time.Duration(ts) * time.Second),
			},
		}
	}

	err := ingestHeartbeats(context.Background(), srv.app, events.SNSEvent{
		Records: []events.SNSEventRecord{
			record("m1", "backup", "done", 5),
			record("m2", "Invalid Id!", "", 5),
			record("m3", "db", `{"labels": ["db"], "heartbeat": {"warning": 30, "error": 60}}`, 10),
		},
	})
	assert.Assert(t, errors.Is(err, lbdomain.ErrValidation))
	assert.Assert(t, strings.HasPrefix(err.Error(), "message m2: "))

	srv.at(10)
	assert.EqualString(t, strings.Join(srv.serviceIds("all"), ","), "backup,db")

	assert.Assert(t, srv.service("backup").State.Last.Delta == 5)

	db := srv.service("db")
	assert.EqualString(t, strings.Join(db.Config.Labels, ","), "db")
	assert.Assert(t, *db.Config.Heartbeat.Warning == 30)
	assert.Assert(t, db.State.Last.Delta == 0)
}
