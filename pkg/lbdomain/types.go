// Structure of services, their state and the alert lifecycle
package lbdomain

import (
	"errors"
)

var (
	ErrNotFound   = errors.New("service not found")
	ErrValidation = errors.New("validation failed")
)

const (
	// pseudo-label that contains every service
	LabelAll = "all"

	MaxSavedBeats = 100
	MaxLabels     = 10

	DefaultWarning       = 10
	DefaultError         = 20
	DefaultMaintDuration = 10 * 60
)

type Status string

const (
	StatusOk      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusMaint   Status = "maint"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOk, StatusWarning, StatusError, StatusMaint:
		return Status(s), nil
	default:
		return "", validationErrorf("unknown status: %s", s)
	}
}

type Workflow string

const (
	WorkflowNew       Workflow = "new"
	WorkflowClaimed   Workflow = "claimed"
	WorkflowConfirmed Workflow = "confirmed"
)

type MaintType string

const (
	MaintSoft MaintType = "soft"
	MaintHard MaintType = "hard"
)

func ParseMaintType(s string) (MaintType, error) {
	switch MaintType(s) {
	case MaintSoft, MaintHard:
		return MaintType(s), nil
	default:
		return "", validationErrorf("unknown maintenance type: %s", s)
	}
}

// outcome of a claim/confirm. these are expected outcomes, not errors.
type AgentResult string

const (
	AgentOk               AgentResult = "ok"
	AgentAlreadyClaimed   AgentResult = "already_claimed"
	AgentAlreadyConfirmed AgentResult = "already_confirmed"
)

// nil threshold = not monitored
type Heartbeat struct {
	Warning *int64 `json:"warning"`
	Error   *int64 `json:"error"`
}

type Config struct {
	Heartbeat Heartbeat `json:"heartbeat"`
	Labels    []string  `json:"labels"`
}

type Last struct {
	Ts  int64 `json:"ts"`
	Val int64 `json:"val"`
}

type MaintWindow struct {
	Type   MaintType `json:"type"`
	Expiry int64     `json:"expiry"`
}

type AgentRef struct {
	Agent string `json:"agent"`
}

// the incident. exactly one exists per service.
type Alert struct {
	Id        int64     `json:"id"`
	Status    Status    `json:"status"`
	Workflow  Workflow  `json:"workflow"`
	Ts        int64     `json:"ts"`
	Claim     *AgentRef `json:"claim,omitempty"`
	Confirmed *AgentRef `json:"confirmed,omitempty"`
}

// State is treated as an immutable value: transitions return a new State and never write
// through the pointers of the receiver.
type State struct {
	Last   Last         `json:"last"`
	Status Status       `json:"status"`
	Maint  *MaintWindow `json:"maint,omitempty"`
	Alert  Alert        `json:"alert"`
}

type Service struct {
	Id     string `json:"id"`
	Config Config `json:"config"`
	State  State  `json:"state"`
}

// one entry of the heartbeat history
type Beat struct {
	Ts  int64 `json:"ts"`
	Val int64 `json:"val"`
}

type Recipients struct {
	Warning []string `json:"warning" yaml:"warning"`
	Error   []string `json:"error" yaml:"error"`
}

type LabelConfig struct {
	Alerts Recipients `json:"alerts" yaml:"alerts"`
}

func (l LabelConfig) RecipientsFor(severity Status) []string {
	switch severity {
	case StatusWarning:
		return l.Alerts.Warning
	case StatusError:
		return l.Alerts.Error
	default:
		return nil
	}
}

func Int64(val int64) *int64 {
	return &val
}
