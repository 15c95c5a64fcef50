package lbstate

import (
	"context"
	"fmt"
	"time"

	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstore"
)

// nil/empty fields keep what is stored
type TriggerRequest struct {
	Labels  []string
	Warning *int64
	Error   *int64
}

// Trigger registers a heartbeat, creating the service with the default config if it
// doesn't exist. It does not re-evaluate status; that happens when services are listed.
func (a *App) Trigger(ctx context.Context, id string, req TriggerRequest, now time.Time) error {
	if err := lbdomain.ValidateServiceId(id); err != nil {
		return err
	}

	input, err := lbdomain.NewTriggerInput(req.Labels, req.Warning, req.Error)
	if err != nil {
		return err
	}

	ts := unix(now)

	if err := a.Tx.Run(ctx, id, func(current *lbdomain.Service) (*lbstore.Change, error) {
		service := lbdomain.Service{
			Id:     id,
			Config: lbdomain.DefaultConfig(),
			State:  lbdomain.NewState(ts),
		}
		if current != nil {
			service = *current
			service.State = service.State.Beat(ts)
		}

		nextConfig := service.Config.ApplyTrigger(input)
		added, removed := service.Config.LabelDiff(nextConfig)
		service.Config = nextConfig

		return &lbstore.Change{
			Put:           &service,
			Beat:          &lbdomain.Beat{Ts: ts, Val: 1},
			LabelsAdded:   added,
			LabelsRemoved: removed,
		}, nil
	}); err != nil {
		return fmt.Errorf("Trigger %s: %w", id, err)
	}

	a.Metrics.TriggersTotal.WithLabelValues(id).Inc()

	return nil
}

func (a *App) Maint(ctx context.Context, id string, typ lbdomain.MaintType, durationSeconds int64, now time.Time) error {
	if _, err := lbdomain.ParseMaintType(string(typ)); err != nil {
		return err
	}

	if durationSeconds < 0 {
		return fmt.Errorf("%w: negative maintenance duration: %d", lbdomain.ErrValidation, durationSeconds)
	}

	ts := unix(now)

	return a.updateState(ctx, id, func(state lbdomain.State) lbdomain.State {
		return state.WithMaint(typ, durationSeconds, ts)
	})
}

func (a *App) Unmaint(ctx context.Context, id string) error {
	return a.updateState(ctx, id, func(state lbdomain.State) lbdomain.State {
		return state.WithoutMaint()
	})
}

// deleting a service that doesn't exist is not an error
func (a *App) Delete(ctx context.Context, id string) error {
	if err := lbdomain.ValidateServiceId(id); err != nil {
		return err
	}

	if err := a.Tx.Run(ctx, id, func(current *lbdomain.Service) (*lbstore.Change, error) {
		if current == nil {
			return nil, nil
		}

		return &lbstore.Change{
			Delete:        true,
			LabelsRemoved: current.Config.Labels,
		}, nil
	}); err != nil {
		return fmt.Errorf("Delete %s: %w", id, err)
	}

	a.Metrics.ForgetService(id)

	a.logl.Info.Printf("deleted %s", id)

	return nil
}

// ListServices re-evaluates every service with the label (each in its own transaction,
// writing only when something changed) and returns them sorted by id.
func (a *App) ListServices(ctx context.Context, label string, now time.Time) ([]ServiceView, error) {
	ids, err := a.Store.Members(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("ListServices %s: %w", label, err)
	}

	ts := unix(now)

	views := []ServiceView{}

	for _, id := range ids {
		service, err := a.reconcile(ctx, id, ts)
		if err != nil {
			return nil, fmt.Errorf("ListServices %s: %w", label, err)
		}

		// deleted while we were listing, or a stale index entry
		if service == nil {
			continue
		}

		views = append(views, newServiceView(*service, ts))
	}

	return views, nil
}

func (a *App) Get(ctx context.Context, id string, now time.Time) (*ServiceView, error) {
	if err := lbdomain.ValidateServiceId(id); err != nil {
		return nil, err
	}

	ts := unix(now)

	service, err := a.reconcile(ctx, id, ts)
	if err != nil {
		return nil, err
	}

	if service == nil {
		return nil, fmt.Errorf("%s: %w", id, lbdomain.ErrNotFound)
	}

	view := newServiceView(*service, ts)

	return &view, nil
}

// newest first
func (a *App) History(ctx context.Context, id string) ([]lbdomain.Beat, error) {
	if err := lbdomain.ValidateServiceId(id); err != nil {
		return nil, err
	}

	return a.Store.History(ctx, id)
}

// returns the service as committed (nil if it doesn't exist)
func (a *App) reconcile(ctx context.Context, id string, now int64) (*lbdomain.Service, error) {
	var result *lbdomain.Service
	var openedPhase *lbdomain.Alert

	if err := a.Tx.Run(ctx, id, func(current *lbdomain.Service) (*lbstore.Change, error) {
		result, openedPhase = current, nil

		if current == nil {
			return nil, nil
		}

		nextState := current.State.Reconcile(current.Config, now)
		if nextState.Equal(current.State) {
			return nil, nil
		}

		next := *current
		next.State = nextState
		result = &next

		if !nextState.Alert.Equal(current.State.Alert) {
			openedPhase = &nextState.Alert
		}

		return &lbstore.Change{Put: &next}, nil
	}); err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", id, err)
	}

	if result != nil {
		a.Metrics.ObserveStatus(id, string(result.State.Status))
	}

	if openedPhase != nil {
		a.Metrics.IncidentsOpenedTotal.WithLabelValues(string(openedPhase.Status)).Inc()

		a.logl.Info.Printf(
			"%s: incident #%d is now %s",
			id,
			openedPhase.Id,
			openedPhase.Status)
	}

	return result, nil
}

// runs fn over the state of an existing service
func (a *App) updateState(ctx context.Context, id string, fn func(lbdomain.State) lbdomain.State) error {
	if err := lbdomain.ValidateServiceId(id); err != nil {
		return err
	}

	return a.Tx.Run(ctx, id, func(current *lbdomain.Service) (*lbstore.Change, error) {
		if current == nil {
			return nil, fmt.Errorf("%s: %w", id, lbdomain.ErrNotFound)
		}

		next := *current
		next.State = fn(current.State)

		return &lbstore.Change{Put: &next}, nil
	})
}
