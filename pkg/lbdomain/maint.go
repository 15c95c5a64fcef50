package lbdomain

// state of a service seen for the first time
func NewState(now int64) State {
	return State{
		Last:   Last{Ts: now, Val: 1},
		Status: StatusOk,
		Alert: Alert{
			Id:       0,
			Status:   StatusOk,
			Workflow: WorkflowConfirmed,
			Ts:       now,
		},
	}
}

// Beat registers a heartbeat. Soft maintenance means "mute until next heartbeat or
// timeout", so a beat ends it. Hard maintenance survives.
func (s State) Beat(now int64) State {
	next := s
	next.Last = Last{Ts: now, Val: 1}

	if s.Maint != nil && s.Maint.Type == MaintSoft {
		next.Maint = nil
	}

	return next
}

func (s State) WithMaint(typ MaintType, durationSeconds int64, now int64) State {
	next := s
	next.Maint = &MaintWindow{
		Type:   typ,
		Expiry: now + durationSeconds,
	}

	return next
}

func (s State) WithoutMaint() State {
	next := s
	next.Maint = nil
	return next
}

func (s State) InMaint(now int64) bool {
	return s.Maint != nil && s.Maint.Expiry >= now
}
