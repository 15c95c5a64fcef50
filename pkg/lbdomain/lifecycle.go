package lbdomain

// Reconcile moves the persisted status and the alert record to reflect the status at now.
//
// The alert only changes when its current phase has been confirmed. While the incident is
// new or claimed it stays pinned to the status it was opened with, even if the displayed
// status moves on. A new incident id is allocated only when leaving ok.
func (s State) Reconcile(cfg Config, now int64) State {
	raw := Evaluate(cfg, s, now)
	effective := EffectiveStatus(raw)

	next := s
	next.Status = raw

	if effective == s.Alert.Status || s.Alert.Workflow != WorkflowConfirmed {
		return next
	}

	id := s.Alert.Id
	if s.Alert.Status == StatusOk {
		id++
	}

	next.Alert = Alert{
		Id:       id,
		Status:   effective,
		Workflow: WorkflowNew,
		Ts:       now,
	}

	return next
}

func (s State) Equal(other State) bool {
	if s.Last != other.Last || s.Status != other.Status {
		return false
	}

	if (s.Maint == nil) != (other.Maint == nil) {
		return false
	}
	if s.Maint != nil && *s.Maint != *other.Maint {
		return false
	}

	return s.Alert.Equal(other.Alert)
}

func (a Alert) Equal(other Alert) bool {
	return a.Id == other.Id &&
		a.Status == other.Status &&
		a.Workflow == other.Workflow &&
		a.Ts == other.Ts &&
		agentRefEqual(a.Claim, other.Claim) &&
		agentRefEqual(a.Confirmed, other.Confirmed)
}

// whether (incidentId, status) still names the current incident phase
func (a Alert) Matches(incidentId int64, status Status) bool {
	return a.Id == incidentId && a.Status == status
}

// Claim marks the incident as being worked on by agent. Only a new incident can be
// claimed. A repeated claim by the agent holding it succeeds without a change.
func (s State) Claim(agent string, incidentId int64, status Status) (State, AgentResult) {
	if !s.Alert.Matches(incidentId, status) {
		return s, AgentAlreadyClaimed
	}

	if s.Alert.Workflow == WorkflowClaimed && s.Alert.Claim != nil && s.Alert.Claim.Agent == agent {
		return s, AgentOk
	}

	if s.Alert.Workflow != WorkflowNew {
		return s, AgentAlreadyClaimed
	}

	next := s
	next.Alert.Workflow = WorkflowClaimed
	next.Alert.Claim = &AgentRef{Agent: agent}

	return next, AgentOk
}

// Confirm closes the current incident phase. Claiming first is optional. Any change of
// incident id or status since the agent looked invalidates the confirm.
func (s State) Confirm(agent string, incidentId int64, status Status) (State, AgentResult) {
	if !s.Alert.Matches(incidentId, status) {
		return s, AgentAlreadyConfirmed
	}

	switch s.Alert.Workflow {
	case WorkflowNew, WorkflowClaimed:
		next := s
		next.Alert.Workflow = WorkflowConfirmed
		next.Alert.Confirmed = &AgentRef{Agent: agent}

		return next, AgentOk
	case WorkflowConfirmed:
		// retry of our own confirm
		if s.Alert.Confirmed != nil && s.Alert.Confirmed.Agent == agent {
			return s, AgentOk
		}

		return s, AgentAlreadyConfirmed
	default:
		return s, AgentAlreadyConfirmed
	}
}

func agentRefEqual(a, b *AgentRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Agent == b.Agent
}
