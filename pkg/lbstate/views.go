package lbstate

import (
	"github.com/function61/lovebeat/pkg/lbdomain"
)

type ServiceView struct {
	Id     string          `json:"id"`
	Config lbdomain.Config `json:"config"`
	State  StateView       `json:"state"`
}

// state with the "last" field extended by delta
type StateView struct {
	lbdomain.State
	Last LastView `json:"last"`
}

type LastView struct {
	lbdomain.Last
	Delta int64 `json:"delta"` // seconds since last heartbeat
}

func newServiceView(service lbdomain.Service, now int64) ServiceView {
	return ServiceView{
		Id:     service.Id,
		Config: service.Config,
		State: StateView{
			State: service.State,
			Last: LastView{
				Last:  service.State.Last,
				Delta: now - service.State.Last.Ts,
			},
		},
	}
}

// summary for simple uptime checkers: up+flawless, up, down+warning or down+error
func AggregateStatus(services []ServiceView) string {
	hasWarnings, hasErrors, hasMaint := false, false, false

	for _, service := range services {
		switch service.State.Status {
		case lbdomain.StatusWarning:
			hasWarnings = true
		case lbdomain.StatusError:
			hasErrors = true
		case lbdomain.StatusMaint:
			hasMaint = true
		}
	}

	switch {
	case hasErrors:
		return "down+error"
	case hasWarnings:
		return "down+warning"
	case hasMaint:
		return "up"
	default:
		return "up+flawless"
	}
}
