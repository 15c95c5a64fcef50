package lbdomain

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestSoftMaintClearedByBeat(t *testing.T) {
	cfg := Config{Heartbeat: Heartbeat{Error: Int64(15)}}

	state := NewState(0).WithMaint(MaintSoft, 20, 10)
	assert.EqualString(t, string(Evaluate(cfg, state, 10)), "maint")

	state = state.Beat(20)
	assert.Assert(t, state.Maint == nil)
	assert.EqualString(t, string(Evaluate(cfg, state, 20)), "ok")
	assert.EqualString(t, string(Evaluate(cfg, state, 20+15-1)), "ok")
	assert.EqualString(t, string(Evaluate(cfg, state, 20+15)), "error")
}

func TestHardMaintSurvivesBeat(t *testing.T) {
	cfg := Config{Heartbeat: Heartbeat{Error: Int64(15)}}

	state := NewState(0).WithMaint(MaintHard, 20, 10).Beat(20)
	assert.Assert(t, state.Maint != nil)
	assert.Assert(t, state.Last.Ts == 20)

	assert.EqualString(t, string(Evaluate(cfg, state, 10+20)), "maint")
	assert.EqualString(t, string(Evaluate(cfg, state, 10+20+1)), "ok")
	assert.EqualString(t, string(Evaluate(cfg, state, 20+15)), "error")
}

func TestWithoutMaint(t *testing.T) {
	withMaint := NewState(0).WithMaint(MaintHard, 600, 0)
	without := withMaint.WithoutMaint()

	assert.Assert(t, without.Maint == nil)
	// original value untouched
	assert.Assert(t, withMaint.Maint != nil)
	assert.Assert(t, withMaint.InMaint(600))
	assert.Assert(t, !withMaint.InMaint(601))
}

func TestParseMaintType(t *testing.T) {
	typ, err := ParseMaintType("hard")
	assert.Ok(t, err)
	assert.EqualString(t, string(typ), "hard")

	_, err = ParseMaintType("sort-of")
	assert.EqualString(t, err.Error(), "validation failed: unknown maintenance type: sort-of")
}
