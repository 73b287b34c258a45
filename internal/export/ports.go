// Package export defines the outbound port for mirroring the ledger to an
// external target, with Google Sheets and in-memory adapters.
package export

import (
	"context"

	"fintrack/internal/core"
)

// Target keeps an external copy of the ledger. Upsert must be idempotent:
// the worker redelivers messages and replays rows during reconcile.
type Target interface {
	UpsertTransaction(ctx context.Context, tx core.ClassifiedTransaction) error
	DeleteTransaction(ctx context.Context, id int64) error
}
