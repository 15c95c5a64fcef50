package lbstore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/function61/gokit/logex"
)

const DefaultMaxAttempts = 64

var ErrTooMuchContention = errors.New("too much contention")

type ConflictObserver func(id string, attempt int)

// Transactor retries a transaction from scratch (re-read, re-compute, re-commit) for as
// long as it loses races, making the read-modify-write of a service linearizable.
type Transactor struct {
	store       Store
	maxAttempts int // 0 = unbounded
	onConflict  ConflictObserver
	logl        *logex.Leveled
}

func NewTransactor(store Store, maxAttempts int, onConflict ConflictObserver, logger *log.Logger) *Transactor {
	if onConflict == nil {
		onConflict = func(string, int) {}
	}

	return &Transactor{
		store:       store,
		maxAttempts: maxAttempts,
		onConflict:  onConflict,
		logl:        logex.Levels(logger),
	}
}

func (t *Transactor) Run(ctx context.Context, id string, fn TxFn) error {
	for attempt := 1; ; attempt++ {
		err := t.store.Transact(ctx, id, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}

		t.onConflict(id, attempt)

		t.logl.Debug.Printf("conflict on %s (attempt %d)", id, attempt)

		if t.maxAttempts > 0 && attempt >= t.maxAttempts {
			return fmt.Errorf("%s: %w after %d attempts", id, ErrTooMuchContention, attempt)
		}
	}
}
