package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/lovebeat/pkg/lbdomain"
)

func TestParseTriggerRequestForm(t *testing.T) {
	req, err := parseTriggerRequest(formRequest("heartbeat=warning:20&heartbeat=45&labels=a,+b,,c&labels=d"))
	assert.Ok(t, err)

	assert.Assert(t, *req.Warning == 20)
	assert.Assert(t, *req.Error == 45)
	assert.EqualString(t, strings.Join(req.Labels, ","), "a,b,c,d")

	plain, err := parseTriggerRequest(formRequest(""))
	assert.Ok(t, err)
	assert.Assert(t, plain.Warning == nil && plain.Error == nil && len(plain.Labels) == 0)
}

func TestParseTriggerRequestFormErrors(t *testing.T) {
	for _, body := range []string{"heartbeat=soon", "heartbeat=critical:10", "heartbeat=warning:"} {
		_, err := parseTriggerRequest(formRequest(body))
		assert.Assert(t, errors.Is(err, lbdomain.ErrValidation))
	}
}

func TestParseTriggerRequestJson(t *testing.T) {
	req, err := parseTriggerRequest(jsonRequest(`{"labels": ["x"], "heartbeat": {"error": 60}}`))
	assert.Ok(t, err)
	assert.Assert(t, req.Warning == nil)
	assert.Assert(t, *req.Error == 60)
	assert.EqualString(t, req.Labels[0], "x")

	_, err = parseTriggerRequest(jsonRequest(`{"labelz": []}`))
	assert.Assert(t, errors.Is(err, lbdomain.ErrValidation))
}

func TestParseMaintRequest(t *testing.T) {
	defaults, err := parseMaintRequest(formRequest(""))
	assert.Ok(t, err)
	assert.Assert(t, defaults.TypeOrDefault() == lbdomain.MaintSoft)
	assert.Assert(t, defaults.ExpiryOrDefault() == lbdomain.DefaultMaintDuration)

	hard, err := parseMaintRequest(formRequest("type=hard&expiry=20"))
	assert.Ok(t, err)
	assert.Assert(t, hard.TypeOrDefault() == lbdomain.MaintHard)
	assert.Assert(t, hard.ExpiryOrDefault() == 20)

	fromJson, err := parseMaintRequest(jsonRequest(`{"expiry": 5}`))
	assert.Ok(t, err)
	assert.Assert(t, fromJson.TypeOrDefault() == lbdomain.MaintSoft)
	assert.Assert(t, fromJson.ExpiryOrDefault() == 5)

	_, err = parseMaintRequest(formRequest("expiry=tomorrow"))
	assert.Assert(t, errors.Is(err, lbdomain.ErrValidation))
}

func TestParseLabelConfig(t *testing.T) {
	conf, err := parseLabelConfig(formRequest("alert=warning:gtalk:foo@example.com&alert=error:sms:0015551234"))
	assert.Ok(t, err)
	assert.EqualJson(t, conf, `{
  "alerts": {
    "warning": [
      "gtalk:foo@example.com"
    ],
    "error": [
      "sms:0015551234"
    ]
  }
}`)

	for _, body := range []string{"alert=warning", "alert=warning:", "alert=page:me"} {
		_, err := parseLabelConfig(formRequest(body))
		assert.Assert(t, errors.Is(err, lbdomain.ErrValidation))
	}
}

func TestSplitLabels(t *testing.T) {
	assert.EqualString(t, strings.Join(splitLabels(" a, b,,c ,"), "|"), "a|b|c")
	assert.Assert(t, len(splitLabels("")) == 0)
}

func formRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", formContentType)
	return req
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
