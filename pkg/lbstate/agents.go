package lbstate

import (
	"context"
	"fmt"

	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstore"
)

type agentTransition func(state lbdomain.State, agent string, incidentId int64, status lbdomain.Status) (lbdomain.State, lbdomain.AgentResult)

func (a *App) Claim(ctx context.Context, agent string, id string, incidentId int64, status lbdomain.Status) (lbdomain.AgentResult, error) {
	return a.agentAction(ctx, "claim", lbdomain.State.Claim, agent, id, incidentId, status)
}

func (a *App) Confirm(ctx context.Context, agent string, id string, incidentId int64, status lbdomain.Status) (lbdomain.AgentResult, error) {
	return a.agentAction(ctx, "confirm", lbdomain.State.Confirm, agent, id, incidentId, status)
}

func (a *App) agentAction(
	ctx context.Context,
	action string,
	transition agentTransition,
	agent string,
	id string,
	incidentId int64,
	status lbdomain.Status,
) (lbdomain.AgentResult, error) {
	if agent == "" {
		return "", fmt.Errorf("%w: empty agent name", lbdomain.ErrValidation)
	}

	if err := lbdomain.ValidateServiceId(id); err != nil {
		return "", err
	}

	if _, err := lbdomain.ParseStatus(string(status)); err != nil {
		return "", err
	}

	var result lbdomain.AgentResult

	if err := a.Tx.Run(ctx, id, func(current *lbdomain.Service) (*lbstore.Change, error) {
		if current == nil {
			return nil, fmt.Errorf("%s: %w", id, lbdomain.ErrNotFound)
		}

		nextState, res := transition(current.State, agent, incidentId, status)
		result = res

		if nextState.Equal(current.State) {
			return nil, nil
		}

		next := *current
		next.State = nextState

		return &lbstore.Change{Put: &next}, nil
	}); err != nil {
		return "", fmt.Errorf("%s %s: %w", action, id, err)
	}

	a.Metrics.AgentResultsTotal.WithLabelValues(action, string(result)).Inc()

	a.logl.Debug.Printf("%s %s #%d %s by %s: %s", action, id, incidentId, status, agent, result)

	return result, nil
}
