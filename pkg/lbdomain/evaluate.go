package lbdomain

// Evaluate derives the status from thresholds, last heartbeat and maintenance. Pure.
// Thresholds are independent: error overrides warning, and an active maintenance window
// overrides both.
func Evaluate(cfg Config, state State, now int64) Status {
	elapsed := now - state.Last.Ts

	status := StatusOk

	if cfg.Heartbeat.Warning != nil && elapsed >= *cfg.Heartbeat.Warning {
		status = StatusWarning
	}

	if cfg.Heartbeat.Error != nil && elapsed >= *cfg.Heartbeat.Error {
		status = StatusError
	}

	if state.Maint != nil && state.Maint.Expiry >= now {
		status = StatusMaint
	}

	return status
}

// maintenance suppresses paging, so for alerting purposes it counts as ok
func EffectiveStatus(status Status) Status {
	if status == StatusMaint {
		return StatusOk
	}

	return status
}

func (s Status) IsProblem() bool {
	return s == StatusWarning || s == StatusError
}
