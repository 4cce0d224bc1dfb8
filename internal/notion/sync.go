// Package notion maps ledger transactions to Notion pages.
//
// Sync is a placeholder: it builds the page properties a real Notion database
// would receive and reports every transaction as created, without calling the
// Notion API.
package notion

import (
	"context"
	"log/slog"

	"ledger/internal/core"
)

type Syncer struct {
	databaseID string
}

func NewSyncer(databaseID string) *Syncer {
	return &Syncer{databaseID: databaseID}
}

// Sync reports created = len(txns) and updated = 0.
func (s *Syncer) Sync(ctx context.Context, txns []core.Transaction) (core.SyncResult, error) {
	for _, t := range txns {
		if err := ctx.Err(); err != nil {
			return core.SyncResult{}, err
		}
		props := TransactionToProperties(t)
		slog.DebugContext(ctx, "Mapped transaction to Notion page",
			"database_id", s.databaseID,
			"transaction_id", t.ID,
			"properties", PropertyNames(props))
	}

	slog.InfoContext(ctx, "Notion sync completed (sample mode)",
		"database_id", s.databaseID,
		"created", len(txns))
	return core.SyncResult{Created: len(txns), Updated: 0}, nil
}
