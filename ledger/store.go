/*
store.go - Persistence interfaces for balances and the transaction log

PURPOSE:
  Defines the interface between the engine and the database. The balance
  store is the only shared mutable resource in this core; the transaction
  log is appended and mutated strictly inside the same atomic unit of work
  as the balance effect it documents.

KEY INTERFACES:
  BalanceStore:     Tier balance reads and guarded adjustments
  TransactionStore: Transaction log reads and writes
  Store:            Both of the above, as seen inside a unit of work
  TxStore:          Adds WithTx for atomic multi-key mutations

ATOMICITY CONTRACT:
  Every multi-key mutation (transfer, distribute, revert+reapply) runs
  inside TxStore.WithTx. If the function returns an error, nothing is
  persisted. The unit-of-work boundary is also the crash-atomicity
  boundary: a transaction record must never exist without its balance
  effect, and vice versa.

NEGATIVE BALANCES:
  Adjust fails with ErrInsufficientStock rather than clamping. The
  implementation enforces this at commit time (CHECK constraint in SQLite,
  guarded arithmetic in memory), so a stale pre-check can never persist a
  negative balance.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: The only writer through these interfaces
*/
package ledger

import "context"

// =============================================================================
// BALANCE STORE
// =============================================================================

// BalanceStore holds the current quantity of each (tier, owner, item) key.
type BalanceStore interface {
	// Balance returns the current quantity, 0 if the key is absent.
	Balance(ctx context.Context, tier Tier, owner OwnerID, item ItemID) (int64, error)

	// Adjust applies delta to the key, creating the row on first credit.
	// Fails with ErrInsufficientStock if the result would be negative.
	// Returns the new quantity.
	Adjust(ctx context.Context, tier Tier, owner OwnerID, item ItemID, delta int64) (int64, error)

	// Balances returns all balance rows for an owner (all items), or for a
	// whole tier when owner is empty. Read-only, feeds dashboards.
	Balances(ctx context.Context, tier Tier, owner OwnerID) ([]BalanceRow, error)
}

// BalanceRow is one stored balance entry.
type BalanceRow struct {
	Tier     Tier
	Owner    OwnerID
	ItemID   ItemID
	Quantity int64
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// Filter selects transactions for read-only listing.
type Filter struct {
	From   *Date
	To     *Date
	ItemID *ItemID
	Tier   *Tier   // matches source, destination, or recipient tier
	Owner  *OwnerID
	Scope  *TierScope
}

// Page selects one chunk of a filtered listing. Results are ordered by
// (date, created_at, id) so a listing is restartable from the beginning.
type Page struct {
	Offset int
	Limit  int // <= 0 means no limit
}

// TransactionStore persists the ledger transaction log.
type TransactionStore interface {
	// InsertTransaction appends a new transaction record.
	InsertTransaction(ctx context.Context, tx Transaction) error

	// UpdateTransaction overwrites the stored movement fields in place.
	// Used only by the edit flow, inside the same unit of work as the
	// revert and reapply of the balance effect.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// DeleteTransaction removes a record. Used only by the delete flow,
	// after its effect has been reverted in the same unit of work.
	DeleteTransaction(ctx context.Context, id TransactionID) error

	// GetTransaction returns a record, or ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)

	// ListTransactions returns the filtered page, ordered chronologically.
	ListTransactions(ctx context.Context, filter Filter, page Page) ([]Transaction, error)
}

// =============================================================================
// COMBINED AND TRANSACTIONAL STORES
// =============================================================================

// Store is what the engine sees inside a unit of work.
type Store interface {
	BalanceStore
	TransactionStore
}

// TxStore wraps Store with atomic units of work.
type TxStore interface {
	Store

	// WithTx executes fn within a serializable unit of work. If fn returns
	// an error the unit is rolled back and nothing is observable; if it
	// returns nil, all of fn's writes commit together. Implementations
	// return ErrConflict for transient lock/serialization failures so the
	// engine can retry.
	WithTx(ctx context.Context, fn func(Store) error) error
}
