// Package worker reconciles the transaction ledger with an export target,
// driven by queue messages with a periodic sweep as backstop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/storage"
)

// SyncConsumer delivers sync messages until the context is canceled.
// *amqp.Client implements it.
type SyncConsumer interface {
	ConsumeTransactionSync(ctx context.Context, handler func(*amqp.TransactionSyncMessage) error) error
}

// ExportWorker applies ledger changes to the export target. The queue
// message carries only the transaction id; the row is reloaded from
// storage so redeliveries and bursts of edits converge on current state.
type ExportWorker struct {
	store      *storage.SQLiteRepository
	target     export.Target
	windowDays int
}

// NewExportWorker builds a worker that reconciles the last windowDays of
// transactions during sweeps.
func NewExportWorker(store *storage.SQLiteRepository, target export.Target, windowDays int) *ExportWorker {
	if windowDays <= 0 {
		windowDays = 365
	}
	return &ExportWorker{
		store:      store,
		target:     target,
		windowDays: windowDays,
	}
}

// HandleSyncMessage applies a single queue message.
func (w *ExportWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"transaction_id", msg.TransactionID,
		"action", string(msg.Action))

	if msg.Action == amqp.ActionDelete {
		if err := w.target.DeleteTransaction(ctx, msg.TransactionID); err != nil {
			return fmt.Errorf("delete transaction %d from target: %w", msg.TransactionID, err)
		}
		return nil
	}

	tx, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted between publish and delivery. Make the target agree.
		slog.WarnContext(ctx, "Transaction vanished before sync, removing from target",
			"transaction_id", msg.TransactionID)
		if err := w.target.DeleteTransaction(ctx, msg.TransactionID); err != nil {
			return fmt.Errorf("delete vanished transaction %d from target: %w", msg.TransactionID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", msg.TransactionID, err)
	}

	if err := w.target.UpsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("upsert transaction %d into target: %w", msg.TransactionID, err)
	}
	return nil
}

// Reconcile replays every transaction inside the sweep window into the
// target, recovering from lost messages and worker downtime.
func (w *ExportWorker) Reconcile(ctx context.Context) error {
	end := core.DateOf(time.Now())
	start := end.AddDays(-w.windowDays)

	rows, err := w.store.ListTransactions(ctx, start, end, true)
	if err != nil {
		return fmt.Errorf("list transactions for reconcile: %w", err)
	}

	synced := 0
	var lastErr error
	for _, tx := range rows {
		if err := w.target.UpsertTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Reconcile upsert failed",
				"transaction_id", tx.ID, "error", err)
			lastErr = err
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Reconcile completed",
		"total", len(rows), "synced", synced)

	if lastErr != nil {
		return fmt.Errorf("reconcile finished with errors: %w", lastErr)
	}
	return nil
}

// Run consumes sync messages and sweeps on a timer until ctx is canceled.
func (w *ExportWorker) Run(ctx context.Context, consumer SyncConsumer, reconcileInterval time.Duration) error {
	if err := w.Reconcile(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup reconcile failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeTransactionSync(ctx, func(msg *amqp.TransactionSyncMessage) error {
			return w.HandleSyncMessage(ctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.Reconcile(ctx); err != nil {
					slog.ErrorContext(ctx, "Periodic reconcile failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
