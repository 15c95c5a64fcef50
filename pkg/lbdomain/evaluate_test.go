package lbdomain

import (
	"fmt"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestEvaluateThresholds(t *testing.T) {
	cfg := Config{Heartbeat: Heartbeat{Warning: Int64(20), Error: Int64(30)}}
	state := NewState(0)

	tcs := []struct {
		elapsed int64
		status  Status
	}{
		{0, StatusOk},
		{19, StatusOk},
		{20, StatusWarning},
		{29, StatusWarning},
		{30, StatusError},
		{10000, StatusError},
	}

	for _, tc := range tcs {
		tc := tc // pin
		t.Run(fmt.Sprintf("%d", tc.elapsed), func(t *testing.T) {
			assert.EqualString(t, string(Evaluate(cfg, state, tc.elapsed)), string(tc.status))
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	cfg := Config{Heartbeat: Heartbeat{Warning: Int64(20), Error: Int64(30)}}
	state := NewState(100).WithMaint(MaintHard, 5, 110)

	for now := int64(100); now < 200; now++ {
		assert.Assert(t, Evaluate(cfg, state, now) == Evaluate(cfg, state, now))
	}
}

func TestEvaluateOnlyWarning(t *testing.T) {
	cfg := Config{Heartbeat: Heartbeat{Warning: Int64(20)}}
	state := NewState(0)

	assert.EqualString(t, string(Evaluate(cfg, state, 19)), "ok")
	assert.EqualString(t, string(Evaluate(cfg, state, 20)), "warning")
	assert.EqualString(t, string(Evaluate(cfg, state, 10000)), "warning")
}

func TestEvaluateNoThresholds(t *testing.T) {
	assert.EqualString(t, string(Evaluate(Config{}, NewState(0), 1000000)), "ok")
}

func TestMaintOverridesError(t *testing.T) {
	cfg := Config{Heartbeat: Heartbeat{Error: Int64(15)}}
	state := NewState(0).WithMaint(MaintHard, 20, 10)

	assert.EqualString(t, string(Evaluate(cfg, state, 10)), "maint")
	assert.EqualString(t, string(Evaluate(cfg, state, 30)), "maint")
	assert.EqualString(t, string(Evaluate(cfg, state, 31)), "error")
}

func TestEffectiveStatus(t *testing.T) {
	assert.EqualString(t, string(EffectiveStatus(StatusMaint)), "ok")
	assert.EqualString(t, string(EffectiveStatus(StatusWarning)), "warning")
	assert.Assert(t, StatusError.IsProblem())
	assert.Assert(t, !StatusMaint.IsProblem())
}
