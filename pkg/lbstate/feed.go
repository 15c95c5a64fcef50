package lbstate

import (
	"context"
	"sort"
	"time"

	"github.com/function61/lovebeat/pkg/lbdomain"
)

type FeedItem struct {
	Service    string          `json:"service"`
	IncidentId int64           `json:"incident_id"`
	Severity   lbdomain.Status `json:"severity"` // what the service is now
	// the status the incident is pinned to. claims and confirms must quote this.
	IncidentStatus lbdomain.Status `json:"incident_status"`
	Recipients     []string        `json:"recipients"`
}

// AlertFeed reconciles every service and returns the open incidents agent should act on
func (a *App) AlertFeed(ctx context.Context, agent string, now time.Time) ([]FeedItem, error) {
	services, labelConfigs, err := a.servicesWithRouting(ctx, now)
	if err != nil {
		return nil, err
	}

	return GenerateAlertFeed(agent, services, labelConfigs), nil
}

// RecoveryFeed lists incidents whose open phase is a return to ok. Until one is confirmed
// the incident stays pinned to it, so a later outage would not open a new incident.
func (a *App) RecoveryFeed(ctx context.Context, agent string, now time.Time) ([]FeedItem, error) {
	services, labelConfigs, err := a.servicesWithRouting(ctx, now)
	if err != nil {
		return nil, err
	}

	return GenerateRecoveryFeed(agent, services, labelConfigs), nil
}

func (a *App) servicesWithRouting(ctx context.Context, now time.Time) ([]ServiceView, map[string]lbdomain.LabelConfig, error) {
	services, err := a.ListServices(ctx, lbdomain.LabelAll, now)
	if err != nil {
		return nil, nil, err
	}

	labelConfigs := map[string]lbdomain.LabelConfig{}

	resolve := func(label string) error {
		if _, cached := labelConfigs[label]; cached {
			return nil
		}

		conf, err := a.Store.LabelConfig(ctx, label)
		if err != nil {
			return err
		}

		labelConfigs[label] = *conf

		return nil
	}

	if err := resolve(lbdomain.LabelAll); err != nil {
		return nil, nil, err
	}

	for _, service := range services {
		for _, label := range service.Config.Labels {
			if err := resolve(label); err != nil {
				return nil, nil, err
			}
		}
	}

	return services, labelConfigs, nil
}

// GenerateAlertFeed is the pure part of AlertFeed. An item is produced for every service in
// warning or error whose incident is still open (not confirmed) and is not claimed by
// another agent. Recipients are the severity's recipients of "all" followed by those of
// the service's labels, without duplicates. Services nobody is to be told about are omitted.
func GenerateAlertFeed(agent string, services []ServiceView, labelConfigs map[string]lbdomain.LabelConfig) []FeedItem {
	items := []FeedItem{}

	for _, service := range services {
		severity := lbdomain.EffectiveStatus(service.State.Status)
		if !severity.IsProblem() {
			continue
		}

		if !openForAgent(service.State.Alert, agent) {
			continue
		}

		recipients := routeTo(service, labelConfigs, severity)
		if len(recipients) == 0 {
			continue
		}

		items = append(items, FeedItem{
			Service:        service.Id,
			IncidentId:     service.State.Alert.Id,
			Severity:       severity,
			IncidentStatus: service.State.Alert.Status,
			Recipients:     recipients,
		})
	}

	sortFeed(items)

	return items
}

// recipients of a recovery are everybody who could have been paged
func GenerateRecoveryFeed(agent string, services []ServiceView, labelConfigs map[string]lbdomain.LabelConfig) []FeedItem {
	items := []FeedItem{}

	for _, service := range services {
		alert := service.State.Alert

		if alert.Status != lbdomain.StatusOk || !openForAgent(alert, agent) {
			continue
		}

		items = append(items, FeedItem{
			Service:        service.Id,
			IncidentId:     alert.Id,
			Severity:       lbdomain.EffectiveStatus(service.State.Status),
			IncidentStatus: alert.Status,
			Recipients: union(
				routeTo(service, labelConfigs, lbdomain.StatusWarning),
				routeTo(service, labelConfigs, lbdomain.StatusError)),
		})
	}

	sortFeed(items)

	return items
}

func openForAgent(alert lbdomain.Alert, agent string) bool {
	switch alert.Workflow {
	case lbdomain.WorkflowNew:
		return true
	case lbdomain.WorkflowClaimed:
		return alert.Claim != nil && alert.Claim.Agent == agent
	default:
		return false
	}
}

func routeTo(service ServiceView, labelConfigs map[string]lbdomain.LabelConfig, severity lbdomain.Status) []string {
	lists := [][]string{labelConfigs[lbdomain.LabelAll].RecipientsFor(severity)}

	for _, label := range service.Config.Labels {
		lists = append(lists, labelConfigs[label].RecipientsFor(severity))
	}

	return union(lists...)
}

// order-preserving
func union(lists ...[]string) []string {
	seen := map[string]bool{}
	result := []string{}

	for _, list := range lists {
		for _, item := range list {
			if seen[item] {
				continue
			}

			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}

func sortFeed(items []FeedItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Service < items[j].Service })
}
