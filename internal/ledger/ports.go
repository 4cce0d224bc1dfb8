package ledger

import (
	"context"
	"time"

	"ledger/internal/core"
)

// Ports for the durable store and outbound adapters.
type (
	// Repository is the set of ledger reads and writes. Inside WithTx every
	// call goes through the same database transaction.
	Repository interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		GetAccount(ctx context.Context, id int64) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
		TouchAccountSync(ctx context.Context, id int64, at time.Time) error

		TransactionExists(ctx context.Context, id string) (bool, error)
		InsertTransaction(ctx context.Context, t core.Transaction) error
		// ListTransactions returns matching rows, newest date first, then newest insert first.
		ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
		UpdateClassification(ctx context.Context, id string, category, bucket *string, at time.Time) error

		CreateRule(ctx context.Context, r core.Rule) (core.Rule, error)
		// ListRules returns rules by priority descending, then id ascending.
		ListRules(ctx context.Context) ([]core.Rule, error)
		DeleteRule(ctx context.Context, id int64) error

		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		// ListBudgets returns budgets in creation order.
		ListBudgets(ctx context.Context) ([]core.Budget, error)
	}

	// Store owns the connection. WithTx commits when fn returns nil and rolls
	// back otherwise.
	Store interface {
		Repository
		WithTx(ctx context.Context, fn func(Repository) error) error
		Ping(ctx context.Context) error
		Close() error
	}

	// Publisher announces new transactions to background consumers.
	Publisher interface {
		PublishTransactionsIngested(ctx context.Context, accountID int64, inserted int) error
	}

	// Syncer pushes transactions to an external workspace.
	Syncer interface {
		Sync(ctx context.Context, txns []core.Transaction) (core.SyncResult, error)
	}
)
