package main

import (
	"context"
	"log"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
)

type notification struct {
	Subject    string
	Message    string
	Recipients []string
}

type notificationPublisherFn func(ctx context.Context, n notification) error

// runs every minute
func handleCloudwatchScheduledEvent(ctx context.Context, now time.Time, logger *log.Logger) error {
	app, err := getApp(ctx, nil, logger)
	if err != nil {
		return err
	}
	defer app.Store.Close()

	publisher, err := newSnsPublisher()
	if err != nil {
		return err
	}

	return runAgentPass(ctx, app, agentName(), publisher, now)
}

// runAgentPass is what an alerting agent does: for each open incident claim it, notify
// and confirm. A claim we lose means another agent is handling it. A failed notification
// leaves the incident claimed by us, so the next pass retries it.
//
// Recoveries go first. A recovery phase that is still open pins the incident to "ok" even
// if the service went down again, and only confirming it lets the new outage open its own
// incident. That's why the alert feed is read only after the recoveries are handled.
func runAgentPass(
	ctx context.Context,
	app *lbstate.App,
	agent string,
	publish notificationPublisherFn,
	now time.Time,
) error {
	logl := logex.Levels(app.Logger)

	// these reconcile every service first
	recoveries, err := app.RecoveryFeed(ctx, agent, now)
	if err != nil {
		return err
	}

	for _, item := range recoveries {
		if err := deliver(ctx, app, agent, item, notification{
			Subject:    recoverySubject(item),
			Message:    recoveryMessage(item),
			Recipients: item.Recipients,
		}, publish); err != nil {
			return err
		}
	}

	alerts, err := app.AlertFeed(ctx, agent, now)
	if err != nil {
		return err
	}

	paged := 0

	for _, item := range alerts {
		// an unconfirmed recovery (its notification failed or another agent holds it).
		// paging it would announce the outage under the previous incident.
		if item.IncidentStatus == lbdomain.StatusOk {
			continue
		}

		if err := deliver(ctx, app, agent, item, notification{
			Subject:    alertSubject(item),
			Message:    alertMessage(item),
			Recipients: item.Recipients,
		}, publish); err != nil {
			return err
		}

		paged++
	}

	if paged+len(recoveries) > 0 {
		logl.Info.Printf("agent %s: %d alert(s), %d recovery(s)", agent, paged, len(recoveries))
	}

	return nil
}

func deliver(
	ctx context.Context,
	app *lbstate.App,
	agent string,
	item lbstate.FeedItem,
	n notification,
	publish notificationPublisherFn,
) error {
	logl := logex.Levels(app.Logger)

	claimed, err := app.Claim(ctx, agent, item.Service, item.IncidentId, item.IncidentStatus)
	if err != nil {
		return err
	}

	if claimed != lbdomain.AgentOk {
		logl.Debug.Printf("%s #%d: %s", item.Service, item.IncidentId, claimed)
		return nil
	}

	// nobody to tell, but the phase still has to be closed
	if len(n.Recipients) > 0 {
		if err := publish(ctx, n); err != nil {
			logl.Error.Printf("%s #%d: publish: %v", item.Service, item.IncidentId, err)
			return nil
		}
	}

	confirmed, err := app.Confirm(ctx, agent, item.Service, item.IncidentId, item.IncidentStatus)
	if err != nil {
		return err
	}

	if confirmed != lbdomain.AgentOk {
		logl.Info.Printf("%s #%d: moved on before confirm: %s", item.Service, item.IncidentId, confirmed)
	}

	return nil
}
