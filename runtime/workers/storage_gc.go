package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// gcDiscardRatio is the share of stale data a value log file needs
// before badger rewrites it.
const gcDiscardRatio = 0.5

// StorageGCWorker periodically reclaims value log space of the message store.
type StorageGCWorker struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
}

func NewStorageGCWorker(log *slog.Logger, db *badger.DB, interval time.Duration) *StorageGCWorker {
	return &StorageGCWorker{log: log, db: db, interval: interval}
}

func (w *StorageGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping storage GC")
			return nil
		case <-ticker.C:
			w.collect()
		}
	}
}

// collect rewrites files until badger reports nothing left to reclaim.
func (w *StorageGCWorker) collect() {
	rewritten := 0
	for {
		err := w.db.RunValueLogGC(gcDiscardRatio)
		if err == nil {
			rewritten++
			continue
		}
		if !stderrors.Is(err, badger.ErrNoRewrite) && !stderrors.Is(err, badger.ErrRejected) {
			w.log.Error("Value log GC failed", "error", err)
		}
		break
	}
	if rewritten > 0 {
		w.log.Debug("Value log GC done", "rewritten_files", rewritten)
	}
}
