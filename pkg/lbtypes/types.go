// Request and response bodies of the REST API
package lbtypes

import (
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
)

// nil/empty fields keep what's stored
type TriggerRequest struct {
	Labels    []string            `json:"labels,omitempty"`
	Heartbeat *lbdomain.Heartbeat `json:"heartbeat,omitempty"`
}

func NewTriggerRequest(labels []string, warning *int64, errorAfter *int64) TriggerRequest {
	req := TriggerRequest{Labels: labels}

	if warning != nil || errorAfter != nil {
		req.Heartbeat = &lbdomain.Heartbeat{
			Warning: warning,
			Error:   errorAfter,
		}
	}

	return req
}

func (t TriggerRequest) AsInput() lbstate.TriggerRequest {
	input := lbstate.TriggerRequest{Labels: t.Labels}

	if t.Heartbeat != nil {
		input.Warning = t.Heartbeat.Warning
		input.Error = t.Heartbeat.Error
	}

	return input
}

// zero values mean the defaults (soft, ten minutes)
type MaintRequest struct {
	Type   lbdomain.MaintType `json:"type,omitempty"`
	Expiry *int64             `json:"expiry,omitempty"` // seconds from now
}

func (m MaintRequest) TypeOrDefault() lbdomain.MaintType {
	if m.Type == "" {
		return lbdomain.MaintSoft
	}

	return m.Type
}

func (m MaintRequest) ExpiryOrDefault() int64 {
	if m.Expiry == nil {
		return lbdomain.DefaultMaintDuration
	}

	return *m.Expiry
}

type LabelsResponse struct {
	Labels []string `json:"labels"`
}

type ServicesResponse struct {
	Services []lbstate.ServiceView `json:"services"`
}

// JSON clients get "{}" where form clients get "ok"
type OkResponse struct{}
