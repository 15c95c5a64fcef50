// Durable storage of services, label indices and label routing configuration
package lbstore

import (
	"context"
	"errors"

	"github.com/function61/lovebeat/pkg/lbdomain"
)

// a watched key was modified between read and commit. never leaves the transactor.
var ErrConflict = errors.New("optimistic transaction conflict")

// Change is what a transaction commits. All of it is applied atomically, or nothing is.
type Change struct {
	Put           *lbdomain.Service // rewrite config + state
	Delete        bool              // removes service and its history. LabelsRemoved must list its labels
	Beat          *lbdomain.Beat    // pushed to the capped history
	LabelsAdded   []string          // label index (not watched)
	LabelsRemoved []string
}

// TxFn computes a change from a freshly read service (nil if it doesn't exist). It may run
// many times and must not have side effects besides capturing its last result. Returning a
// nil change commits nothing.
type TxFn func(current *lbdomain.Service) (*Change, error)

type Store interface {
	// nil, nil if service does not exist
	Get(ctx context.Context, id string) (*lbdomain.Service, error)
	// Transact makes one optimistic attempt: watch the service key, read it, run fn,
	// commit. Returns ErrConflict if the key changed under us. Use Transactor for retries.
	Transact(ctx context.Context, id string, fn TxFn) error
	// sorted service ids with the label. lbdomain.LabelAll lists every service.
	Members(ctx context.Context, label string) ([]string, error)
	// sorted list of labels ever used
	Labels(ctx context.Context) ([]string, error)
	// zero value if not configured
	LabelConfig(ctx context.Context, label string) (*lbdomain.LabelConfig, error)
	SetLabelConfig(ctx context.Context, label string, conf lbdomain.LabelConfig) error
	// newest first
	History(ctx context.Context, id string) ([]lbdomain.Beat, error)
	Close() error
}

// label sets the change adds the service to / removes it from, "all" included
func indexChanges(change *Change) (add []string, remove []string) {
	if change.Delete {
		return nil, append([]string{lbdomain.LabelAll}, change.LabelsRemoved...)
	}

	if change.Put != nil {
		add = append([]string{lbdomain.LabelAll}, change.LabelsAdded...)
	}

	return add, change.LabelsRemoved
}
