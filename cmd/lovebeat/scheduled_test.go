package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
	"github.com/function61/lovebeat/pkg/lbdomain"
)

func TestRunAgentPass(t *testing.T) {
	ctx := context.Background()

	srv := newAlertTestServer(t)

	published := []notification{}
	capture := func(_ context.Context, n notification) error {
		published = append(published, n)
		return nil
	}

	pass := func(ts int) []string {
		t.Helper()

		published = []notification{}
		srv.at(ts)

		assert.Ok(t, runAgentPass(ctx, srv.app, "sns", capture, srv.now))

		summary := []string{}
		for _, n := range published {
			summary = append(summary, n.Subject+" => "+strings.Join(n.Recipients, ","))
		}

		return summary
	}

	assert.Assert(t, len(pass(0)) == 0)

	assert.EqualString(t, strings.Join(pass(20), "\n"), "DOWN alert: test.one is DOWN [#1] => gtalk:foo@example.com")
	srv.expectAlert("test.one", 1, "warning", "confirmed", 20)
	assert.EqualString(t, srv.service("test.one").State.Alert.Confirmed.Agent, "sns")

	// nothing new
	assert.Assert(t, len(pass(24)) == 0)

	assert.EqualString(t, strings.Join(pass(30), "\n"), strings.Join([]string{
		"DOWN alert: test.one is DOWN [#1] => email:foo@example.com,sms:0015551234,sms:0015559999",
		"DOWN alert: test.two is DOWN [#1] => gtalk:foo@example.com",
	}, "\n"))

	srv.at(35)
	srv.post("/s/test.one", nil)

	assert.EqualString(t, strings.Join(pass(40), "\n"), strings.Join([]string{
		"UP alert: test.one is UP again [#1] => gtalk:foo@example.com,email:foo@example.com,sms:0015551234,sms:0015559999",
		"DOWN alert: test.two is DOWN [#1] => email:foo@example.com,sms:0015551234,sms:0015559999",
	}, "\n"))

	// recovery confirmed => the next outage is a new incident
	srv.expectAlert("test.one", 1, "ok", "confirmed", 40)

	srv.at(70)
	srv.expectAlert("test.one", 2, "error", "new", 70)
}

// the recovery was opened by somebody looking at the dashboard, and the service went
// down again before the next pass
func TestRunAgentPassDownAgainBeforeRecoveryWasSent(t *testing.T) {
	ctx := context.Background()

	srv := newAlertTestServer(t)

	published := []notification{}
	capture := func(_ context.Context, n notification) error {
		published = append(published, n)
		return nil
	}

	subjects := func() string {
		lines := []string{}
		for _, n := range published {
			lines = append(lines, n.Subject)
		}
		return strings.Join(lines, "\n")
	}

	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", capture, epoch.Add(20*time.Second)))
	assert.EqualString(t, subjects(), "DOWN alert: test.one is DOWN [#1]")

	srv.at(35)
	srv.post("/s/test.one", nil)

	srv.at(40)
	srv.expectAlert("test.one", 1, "ok", "new", 40)

	published = []notification{}
	srv.at(70)
	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", capture, srv.now))

	assert.EqualString(t, subjects(), strings.Join([]string{
		"UP alert: test.one is UP again [#1]",
		"DOWN alert: test.one is DOWN [#2]",
		"DOWN alert: test.two is DOWN [#1]",
	}, "\n"))
	assert.Assert(t, strings.HasPrefix(published[0].Message, "test.one is ok again."))

	srv.expectAlert("test.one", 2, "error", "confirmed", 70)

	// one outage, one page
	published = []notification{}
	srv.at(71)
	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", capture, srv.now))
	assert.EqualString(t, subjects(), "")
}

func TestRunAgentPassDoesNotPageUnderUnsentRecovery(t *testing.T) {
	ctx := context.Background()

	srv := newAlertTestServer(t)

	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", func(_ context.Context, _ notification) error {
		return nil
	}, epoch.Add(20*time.Second)))

	srv.at(35)
	srv.post("/s/test.one", nil)

	srv.at(40)
	srv.expectAlert("test.one", 1, "ok", "new", 40)

	attempted := []string{}
	failing := func(_ context.Context, n notification) error {
		attempted = append(attempted, n.Subject)
		return errors.New("SNS is down")
	}

	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", failing, epoch.Add(70*time.Second)))

	assert.EqualString(t, strings.Join(attempted, "\n"), strings.Join([]string{
		"UP alert: test.one is UP again [#1]",
		"DOWN alert: test.two is DOWN [#1]",
	}, "\n"))

	srv.at(70)
	srv.expectAlert("test.one", 1, "ok", "claimed", 40)
}

func TestRunAgentPassRetriesFailedPublish(t *testing.T) {
	ctx := context.Background()

	srv := newAlertTestServer(t)

	failing := func(_ context.Context, _ notification) error {
		return errors.New("SNS is down")
	}

	at20 := epoch.Add(20 * time.Second)

	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", failing, at20))

	srv.at(20)
	srv.expectAlert("test.one", 1, "warning", "claimed", 20)

	// still ours to send
	attempts := 0
	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", func(_ context.Context, _ notification) error {
		attempts++
		return nil
	}, at20))

	assert.Assert(t, attempts == 1)
	srv.expectAlert("test.one", 1, "warning", "confirmed", 20)
}

func TestRunAgentPassSkipsOthersClaims(t *testing.T) {
	ctx := context.Background()

	srv := newAlertTestServer(t)

	srv.at(20)
	srv.expectAlert("test.one", 1, "warning", "new", 20)

	result, err := srv.app.Claim(ctx, "pager", "test.one", 1, lbdomain.StatusWarning)
	assert.Ok(t, err)
	assert.Assert(t, result == lbdomain.AgentOk)

	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", func(_ context.Context, n notification) error {
		t.Fatalf("unexpected publish: %s", n.Subject)
		return nil
	}, srv.now))

	assert.EqualString(t, srv.service("test.one").State.Alert.Claim.Agent, "pager")
}

func TestRecoveryWithoutRecipientsIsConfirmed(t *testing.T) {
	ctx := context.Background()

	srv := newTestServer(t)
	srv.post("/s/lonely", nil) // default thresholds, no labels => no recipients

	srv.at(15)
	srv.expectAlert("lonely", 1, "warning", "new", 15)

	_, err := srv.app.Confirm(ctx, "human", "lonely", 1, lbdomain.StatusWarning)
	assert.Ok(t, err)

	srv.post("/s/lonely", nil)
	srv.expectAlert("lonely", 1, "ok", "new", 15)

	assert.Ok(t, runAgentPass(ctx, srv.app, "sns", func(_ context.Context, n notification) error {
		t.Fatalf("unexpected publish: %s", n.Subject)
		return nil
	}, srv.now))

	srv.expectAlert("lonely", 1, "ok", "confirmed", 15)
}
