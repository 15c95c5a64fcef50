package lbstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/lovebeat/pkg/lbdomain"
)

// runs the same behaviour checks against every Store implementation
func testStore(t *testing.T, store Store) {
	t.Helper()

	t.Run("roundtrip", func(t *testing.T) { testRoundtrip(t, store) })
	t.Run("conflict", func(t *testing.T) { testConflict(t, store) })
	t.Run("history is capped", func(t *testing.T) { testHistoryCap(t, store) })
	t.Run("label index", func(t *testing.T) { testLabelIndex(t, store) })
	t.Run("label config", func(t *testing.T) { testLabelConfig(t, store) })
}

func testRoundtrip(t *testing.T, store Store) {
	ctx := context.Background()

	missing, err := store.Get(ctx, "roundtrip")
	assert.Ok(t, err)
	assert.Assert(t, missing == nil)

	assert.Ok(t, store.Transact(ctx, "roundtrip", func(current *lbdomain.Service) (*Change, error) {
		assert.Assert(t, current == nil)

		return putChange(newService("roundtrip", 100), 100), nil
	}))

	service, err := store.Get(ctx, "roundtrip")
	assert.Ok(t, err)
	assert.EqualJson(t, service, `{
  "id": "roundtrip",
  "config": {
    "heartbeat": {
      "warning": 10,
      "error": 20
    },
    "labels": []
  },
  "state": {
    "last": {
      "ts": 100,
      "val": 1
    },
    "status": "ok",
    "alert": {
      "id": 0,
      "status": "ok",
      "workflow": "confirmed",
      "ts": 100
    }
  }
}`)

	// nil change commits nothing
	assert.Ok(t, store.Transact(ctx, "roundtrip", func(current *lbdomain.Service) (*Change, error) {
		return nil, nil
	}))

	errFromFn := errors.New("nope")
	assert.Assert(t, errors.Is(store.Transact(ctx, "roundtrip", func(current *lbdomain.Service) (*Change, error) {
		return nil, errFromFn
	}), errFromFn))
}

func testConflict(t *testing.T, store Store) {
	ctx := context.Background()

	assert.Ok(t, store.Transact(ctx, "contended", func(_ *lbdomain.Service) (*Change, error) {
		return putChange(newService("contended", 100), 100), nil
	}))

	err := store.Transact(ctx, "contended", func(current *lbdomain.Service) (*Change, error) {
		// someone else commits between our read and our commit
		assert.Ok(t, store.Transact(ctx, "contended", func(current *lbdomain.Service) (*Change, error) {
			sneaky := *current
			sneaky.State = sneaky.State.Beat(150)
			return putChange(sneaky, 150), nil
		}))

		ours := *current
		ours.State = ours.State.Beat(200)
		return putChange(ours, 200), nil
	})
	assert.Assert(t, errors.Is(err, ErrConflict))

	// the interleaved write won, ours left nothing behind
	service, err := store.Get(ctx, "contended")
	assert.Ok(t, err)
	assert.Assert(t, service.State.Last.Ts == 150)

	history, err := store.History(ctx, "contended")
	assert.Ok(t, err)
	assert.Assert(t, len(history) == 2)
	assert.Assert(t, history[0].Ts == 150)
}

func testHistoryCap(t *testing.T, store Store) {
	ctx := context.Background()

	for ts := int64(1); ts <= lbdomain.MaxSavedBeats+5; ts++ {
		assert.Ok(t, store.Transact(ctx, "chatty", func(current *lbdomain.Service) (*Change, error) {
			if current == nil {
				return putChange(newService("chatty", ts), ts), nil
			}

			next := *current
			next.State = next.State.Beat(ts)
			return putChange(next, ts), nil
		}))
	}

	history, err := store.History(ctx, "chatty")
	assert.Ok(t, err)
	assert.Assert(t, len(history) == lbdomain.MaxSavedBeats)
	assert.Assert(t, history[0].Ts == lbdomain.MaxSavedBeats+5) // newest first
	assert.Assert(t, history[len(history)-1].Ts == 6)

	none, err := store.History(ctx, "never-seen")
	assert.Ok(t, err)
	assert.Assert(t, len(none) == 0)
}

func testLabelIndex(t *testing.T, store Store) {
	ctx := context.Background()

	create := func(id string, labels ...string) {
		t.Helper()

		service := newService(id, 100)
		service.Config.Labels = labels

		change := putChange(service, 100)
		change.LabelsAdded = labels

		assert.Ok(t, store.Transact(ctx, id, func(_ *lbdomain.Service) (*Change, error) {
			return change, nil
		}))
	}

	create("web1", "prod", "web")
	create("web2", "web")

	members := func(label string) []string {
		t.Helper()

		ids, err := store.Members(ctx, label)
		assert.Ok(t, err)
		return ids
	}

	assert.EqualString(t, strings.Join(members("web"), ","), "web1,web2")
	assert.EqualString(t, strings.Join(members("prod"), ","), "web1")

	labels, err := store.Labels(ctx)
	assert.Ok(t, err)
	assert.EqualString(t, strings.Join(labels, ","), "prod,web")

	// relabel web1: prod,web -> db
	assert.Ok(t, store.Transact(ctx, "web1", func(current *lbdomain.Service) (*Change, error) {
		next := *current
		next.Config.Labels = []string{"db"}

		return &Change{
			Put:           &next,
			LabelsAdded:   []string{"db"},
			LabelsRemoved: []string{"prod", "web"},
		}, nil
	}))

	assert.EqualString(t, strings.Join(members("web"), ","), "web2")
	assert.Assert(t, len(members("prod")) == 0)
	assert.EqualString(t, strings.Join(members("db"), ","), "web1")

	assert.Ok(t, store.Transact(ctx, "web2", func(current *lbdomain.Service) (*Change, error) {
		return &Change{
			Delete:        true,
			LabelsRemoved: current.Config.Labels,
		}, nil
	}))

	gone, err := store.Get(ctx, "web2")
	assert.Ok(t, err)
	assert.Assert(t, gone == nil)

	assert.Assert(t, len(members("web")) == 0)
	assert.Assert(t, !contains(members(lbdomain.LabelAll), "web2"))
	assert.Assert(t, contains(members(lbdomain.LabelAll), "web1"))

	history, err := store.History(ctx, "web2")
	assert.Ok(t, err)
	assert.Assert(t, len(history) == 0)
}

func testLabelConfig(t *testing.T, store Store) {
	ctx := context.Background()

	unconfigured, err := store.LabelConfig(ctx, "ops")
	assert.Ok(t, err)
	assert.Assert(t, len(unconfigured.Alerts.Warning) == 0)

	assert.Ok(t, store.SetLabelConfig(ctx, "ops", lbdomain.LabelConfig{
		Alerts: lbdomain.Recipients{
			Warning: []string{"mail:ops@example.com"},
			Error:   []string{"mail:ops@example.com", "sms:+3581234"},
		},
	}))

	conf, err := store.LabelConfig(ctx, "ops")
	assert.Ok(t, err)
	assert.EqualJson(t, conf.RecipientsFor(lbdomain.StatusError), `[
  "mail:ops@example.com",
  "sms:+3581234"
]`)

	labels, err := store.Labels(ctx)
	assert.Ok(t, err)
	assert.Assert(t, contains(labels, "ops"))
}

func newService(id string, now int64) lbdomain.Service {
	return lbdomain.Service{
		Id:     id,
		Config: lbdomain.DefaultConfig(),
		State:  lbdomain.NewState(now),
	}
}

func putChange(service lbdomain.Service, beatTs int64) *Change {
	return &Change{
		Put:  &service,
		Beat: &lbdomain.Beat{Ts: beatTs, Val: 1},
	}
}

func contains(items []string, item string) bool {
	for _, candidate := range items {
		if candidate == item {
			return true
		}
	}

	return false
}
