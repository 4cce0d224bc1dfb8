package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// Ledger is the part of the ledger service the worker drives.
type Ledger interface {
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	ApplyRules(ctx context.Context, accountID *int64, from *core.Date) (int, error)
	SyncNotion(ctx context.Context, f core.TransactionFilter) (core.SyncResult, error)
}

// IngestWorker classifies and syncs an account after new transactions arrive.
type IngestWorker struct {
	ledger Ledger
}

func NewIngestWorker(l Ledger) *IngestWorker {
	return &IngestWorker{ledger: l}
}

// HandleIngested applies the rules to the account named in msg and then syncs
// it to Notion. Messages for accounts that no longer exist are acknowledged
// without work.
func (w *IngestWorker) HandleIngested(ctx context.Context, msg *amqp.TransactionsIngestedMessage) error {
	slog.InfoContext(ctx, "Processing ingest event",
		"account_id", msg.AccountID,
		"inserted", msg.Inserted)

	if _, err := w.ledger.GetAccount(ctx, msg.AccountID); err != nil {
		if core.IsNotFound(err) {
			slog.WarnContext(ctx, "Skipping event for unknown account", "account_id", msg.AccountID)
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}

	accountID := msg.AccountID
	processed, err := w.ledger.ApplyRules(ctx, &accountID, nil)
	if err != nil {
		return fmt.Errorf("apply rules: %w", err)
	}

	res, err := w.ledger.SyncNotion(ctx, core.TransactionFilter{AccountID: &accountID})
	if err != nil {
		return fmt.Errorf("sync notion: %w", err)
	}

	slog.InfoContext(ctx, "Ingest event handled",
		"account_id", accountID,
		"processed", processed,
		"synced_created", res.Created,
		"synced_updated", res.Updated)
	return nil
}

// Sweep reclassifies every stored transaction. It catches up on events that
// were lost while the worker was down.
func (w *IngestWorker) Sweep(ctx context.Context) error {
	processed, err := w.ledger.ApplyRules(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	slog.InfoContext(ctx, "Sweep finished", "processed", processed)
	return nil
}

// RunSweeps calls Sweep once at start and then every interval until ctx is
// done. Sweep failures are logged and retried on the next tick.
func (w *IngestWorker) RunSweeps(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Periodic sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
