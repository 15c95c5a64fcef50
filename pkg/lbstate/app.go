// The heartbeat engine: every operation a caller can perform against services, labels
// and incidents. Each service mutation runs as an optimistic transaction.
package lbstate

import (
	"log"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/lovebeat/pkg/lbmetrics"
	"github.com/function61/lovebeat/pkg/lbstore"
)

type App struct {
	Store   lbstore.Store
	Tx      *lbstore.Transactor
	Metrics *lbmetrics.Metrics
	Logger  *log.Logger
	logl    *logex.Leveled
}

// metrics can be nil, in which case a private bundle is used
func New(store lbstore.Store, maxTxAttempts int, metrics *lbmetrics.Metrics, logger *log.Logger) *App {
	if metrics == nil {
		metrics = lbmetrics.NewBundle().Metrics
	}

	return &App{
		Store: store,
		Tx: lbstore.NewTransactor(store, maxTxAttempts, func(_ string, _ int) {
			metrics.TxConflictsTotal.Inc()
		}, logger),
		Metrics: metrics,
		Logger:  logger,
		logl:    logex.Levels(logger),
	}
}

// all timestamps we store are unix seconds
func unix(now time.Time) int64 {
	return now.Unix()
}
