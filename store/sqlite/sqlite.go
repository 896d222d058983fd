/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.TxStore (tier balances + transaction log) and the
  catalog.Catalog/catalog.Roster reference stores using SQLite. The same
  patterns apply to PostgreSQL — only minor SQL dialect differences.

KEY TABLES:
  balances:                One row per (tier, owner, item); CHECK >= 0
  transactions:            The mutable ledger transaction log
  transaction_recipients:  Fan-out recipient sets, ordered
  items:                   Medicine catalog
  owners:                  Health center / school / student rosters

NEGATIVE-STOCK ENFORCEMENT:
  The balances table carries CHECK (quantity >= 0). Adjust never clamps;
  a decrement below zero fails the statement, which the store maps to
  ledger.ErrInsufficientStock. Combined with WithTx this makes the
  commit-time check authoritative — a stale pre-read can never persist a
  negative balance.

CONCURRENCY:
  Uses sync.RWMutex plus SQLite WAL mode. Writers are serialized
  in-process; a residual SQLITE_BUSY from an external writer maps to
  ledger.ErrConflict so the engine's bounded retry can take over.

USAGE:
  store, err := sqlite.New("./data/stock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := ledger.NewEngine(store, store, store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/stock-ledger/catalog"
	"github.com/warp/stock-ledger/ledger"
)

// Store implements ledger.TxStore, catalog.Catalog, and catalog.Roster.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One pooled connection: writers are serialized by the mutex anyway,
	// and ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Tier balances: one row per (tier, owner, item), created on first
	-- credit, never negative.
	CREATE TABLE IF NOT EXISTS balances (
		tier TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		PRIMARY KEY (tier, owner_id, item_id)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_tier
		ON balances(tier);
	CREATE INDEX IF NOT EXISTS idx_balances_item
		ON balances(item_id);

	-- Ledger transaction log. Mutated in place only by the edit flow,
	-- removed only by delete; both inside the same unit of work as the
	-- balance effect.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		tx_date TEXT NOT NULL,
		item_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		source_tier TEXT,
		source_owner TEXT,
		dest_tier TEXT,
		dest_owner TEXT,
		quantity INTEGER NOT NULL,
		per_recipient INTEGER NOT NULL DEFAULT 0,
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(tx_date, created_at, id);
	CREATE INDEX IF NOT EXISTS idx_transactions_item
		ON transactions(item_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_source
		ON transactions(source_tier, source_owner);
	CREATE INDEX IF NOT EXISTS idx_transactions_dest
		ON transactions(dest_tier, dest_owner);
	CREATE INDEX IF NOT EXISTS idx_transactions_scope
		ON transactions(scope);

	-- Fan-out recipient sets; position preserves first-seen order.
	CREATE TABLE IF NOT EXISTS transaction_recipients (
		transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		owner_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (transaction_id, owner_id)
	);

	CREATE INDEX IF NOT EXISTS idx_recipients_owner
		ON transaction_recipients(owner_id);

	-- Medicine catalog.
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'Umum',
		unit TEXT NOT NULL DEFAULT 'tablet',
		is_default BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Owner rosters: regional (health center), institutional (school),
	-- individual (student). parent_id links school->center, student->school.
	CREATE TABLE IF NOT EXISTS owners (
		tier TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		parent_id TEXT,
		PRIMARY KEY (tier, id)
	);

	CREATE INDEX IF NOT EXISTS idx_owners_parent
		ON owners(parent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the subset of *sql.DB / *sql.Tx the row-level helpers need, so
// the same code runs inside and outside a unit of work.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// BALANCE STORE (ledger.BalanceStore interface)
// =============================================================================

// Balance returns the current quantity for a key, 0 if absent.
func (s *Store) Balance(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, tier, owner, item)
}

func getBalance(ctx context.Context, db dbtx, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID) (int64, error) {
	var quantity int64
	err := db.QueryRowContext(ctx,
		"SELECT quantity FROM balances WHERE tier = ? AND owner_id = ? AND item_id = ?",
		tier, owner, item,
	).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, mapSQLError(err)
	}
	return quantity, nil
}

// Adjust applies delta to a key, creating the row on first credit. The
// CHECK constraint rejects a negative result at commit time.
func (s *Store) Adjust(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return adjustBalance(ctx, s.db, tier, owner, item, delta)
}

func adjustBalance(ctx context.Context, db dbtx, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID, delta int64) (int64, error) {
	res, err := db.ExecContext(ctx,
		"UPDATE balances SET quantity = quantity + ? WHERE tier = ? AND owner_id = ? AND item_id = ?",
		delta, tier, owner, item,
	)
	if err != nil {
		return 0, mapSQLError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		// First touch of this key. A debit against a missing row is an
		// insufficient-stock condition, not a new row at a negative value.
		if delta < 0 {
			return 0, ledger.ErrInsufficientStock
		}
		_, err := db.ExecContext(ctx,
			"INSERT INTO balances (tier, owner_id, item_id, quantity) VALUES (?, ?, ?, ?)",
			tier, owner, item, delta,
		)
		if err != nil {
			return 0, mapSQLError(err)
		}
		return delta, nil
	}

	return getBalance(ctx, db, tier, owner, item)
}

// Balances returns all balance rows for an owner, or a whole tier when
// owner is empty.
func (s *Store) Balances(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID) ([]ledger.BalanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBalances(ctx, s.db, tier, owner)
}

func listBalances(ctx context.Context, db dbtx, tier ledger.Tier, owner ledger.OwnerID) ([]ledger.BalanceRow, error) {
	query := "SELECT tier, owner_id, item_id, quantity FROM balances WHERE tier = ?"
	args := []any{tier}
	if owner != "" {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}
	query += " ORDER BY owner_id, item_id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var out []ledger.BalanceRow
	for rows.Next() {
		var row ledger.BalanceRow
		if err := rows.Scan(&row.Tier, &row.Owner, &row.ItemID, &row.Quantity); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTION STORE (ledger.TransactionStore interface)
// =============================================================================

// InsertTransaction appends a new transaction record.
func (s *Store) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertTransaction(ctx, s.db, tx)
}

func insertTransaction(ctx context.Context, db dbtx, tx ledger.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, tx_date, item_id, scope, source_tier, source_owner, dest_tier, dest_owner,
		 quantity, per_recipient, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	srcTier, srcOwner := refColumns(tx.Source)
	dstTier, dstOwner := refColumns(tx.Destination)

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.Date.String(),
		tx.ItemID,
		tx.Scope,
		srcTier, srcOwner,
		dstTier, dstOwner,
		tx.Quantity,
		tx.PerRecipient,
		nullString(tx.Note),
		tx.CreatedAt.UTC().Format(time.RFC3339),
		tx.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return mapSQLError(err)
	}
	return saveRecipients(ctx, db, tx.ID, tx.Recipients)
}

// UpdateTransaction overwrites the stored movement fields in place and
// replaces the recipient set.
func (s *Store) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTransaction(ctx, s.db, tx)
}

func updateTransaction(ctx context.Context, db dbtx, tx ledger.Transaction) error {
	query := `
		UPDATE transactions SET
			tx_date = ?, item_id = ?, scope = ?,
			source_tier = ?, source_owner = ?, dest_tier = ?, dest_owner = ?,
			quantity = ?, per_recipient = ?, note = ?, updated_at = ?
		WHERE id = ?
	`
	srcTier, srcOwner := refColumns(tx.Source)
	dstTier, dstOwner := refColumns(tx.Destination)

	res, err := db.ExecContext(ctx, query,
		tx.Date.String(),
		tx.ItemID,
		tx.Scope,
		srcTier, srcOwner,
		dstTier, dstOwner,
		tx.Quantity,
		tx.PerRecipient,
		nullString(tx.Note),
		tx.UpdatedAt.UTC().Format(time.RFC3339),
		tx.ID,
	)
	if err != nil {
		return mapSQLError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrTransactionNotFound
	}

	if _, err := db.ExecContext(ctx,
		"DELETE FROM transaction_recipients WHERE transaction_id = ?", tx.ID,
	); err != nil {
		return mapSQLError(err)
	}
	return saveRecipients(ctx, db, tx.ID, tx.Recipients)
}

func saveRecipients(ctx context.Context, db dbtx, id ledger.TransactionID, recipients []ledger.OwnerID) error {
	for i, r := range recipients {
		_, err := db.ExecContext(ctx,
			"INSERT INTO transaction_recipients (transaction_id, owner_id, position) VALUES (?, ?, ?)",
			id, r, i,
		)
		if err != nil {
			return mapSQLError(err)
		}
	}
	return nil
}

// DeleteTransaction removes a record; the recipients cascade.
func (s *Store) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteTransaction(ctx, s.db, id)
}

func deleteTransaction(ctx context.Context, db dbtx, id ledger.TransactionID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return mapSQLError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

// GetTransaction returns one record with its recipient set.
func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id)
}

func getTransaction(ctx context.Context, db dbtx, id ledger.TransactionID) (ledger.Transaction, error) {
	query := selectTransactions + " WHERE id = ?"
	txs, err := queryTransactions(ctx, db, query, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if len(txs) == 0 {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return txs[0], nil
}

const selectTransactions = `
	SELECT id, tx_date, item_id, scope, source_tier, source_owner,
	       dest_tier, dest_owner, quantity, per_recipient, note,
	       created_at, updated_at
	FROM transactions
`

// ListTransactions returns the filtered page, ordered by
// (tx_date, created_at, id).
func (s *Store) ListTransactions(ctx context.Context, filter ledger.Filter, page ledger.Page) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTransactions(ctx, s.db, filter, page)
}

func listTransactions(ctx context.Context, db dbtx, filter ledger.Filter, page ledger.Page) ([]ledger.Transaction, error) {
	var conds []string
	var args []any

	if filter.From != nil {
		conds = append(conds, "tx_date >= ?")
		args = append(args, filter.From.String())
	}
	if filter.To != nil {
		conds = append(conds, "tx_date <= ?")
		args = append(args, filter.To.String())
	}
	if filter.ItemID != nil {
		conds = append(conds, "item_id = ?")
		args = append(args, *filter.ItemID)
	}
	if filter.Scope != nil {
		conds = append(conds, "scope = ?")
		args = append(args, *filter.Scope)
	}
	if cond, condArgs := ownerCondition(filter.Tier, filter.Owner); cond != "" {
		conds = append(conds, cond)
		args = append(args, condArgs...)
	}

	query := selectTransactions
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY tx_date ASC, created_at ASC, id ASC"
	if page.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, page.Limit)
	}
	if page.Offset > 0 {
		if page.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, page.Offset)
	}

	return queryTransactions(ctx, db, query, args...)
}

// ownerCondition matches a transaction that touches the tier/owner as
// source, destination, or fan-out recipient.
func ownerCondition(tier *ledger.Tier, owner *ledger.OwnerID) (string, []any) {
	switch {
	case tier != nil && owner != nil:
		cond := "((source_tier = ? AND source_owner = ?) OR (dest_tier = ? AND dest_owner = ?)"
		args := []any{*tier, *owner, *tier, *owner}
		if *tier == ledger.TierIndividual {
			cond += " OR EXISTS (SELECT 1 FROM transaction_recipients r WHERE r.transaction_id = transactions.id AND r.owner_id = ?)"
			args = append(args, *owner)
		}
		return cond + ")", args
	case tier != nil:
		cond := "(source_tier = ? OR dest_tier = ?"
		args := []any{*tier, *tier}
		if *tier == ledger.TierIndividual {
			cond += " OR EXISTS (SELECT 1 FROM transaction_recipients r WHERE r.transaction_id = transactions.id)"
		}
		return cond + ")", args
	case owner != nil:
		cond := "(source_owner = ? OR dest_owner = ? OR EXISTS (SELECT 1 FROM transaction_recipients r WHERE r.transaction_id = transactions.id AND r.owner_id = ?))"
		return cond, []any{*owner, *owner, *owner}
	}
	return "", nil
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}

	var txs []ledger.Transaction
	func() {
		defer rows.Close()
		for rows.Next() {
			var tx ledger.Transaction
			tx, err = scanTransaction(rows)
			if err != nil {
				return
			}
			txs = append(txs, tx)
		}
		err = rows.Err()
	}()
	if err != nil {
		return nil, err
	}

	// Recipient sets are loaded after the main cursor is closed; SQLite
	// dislikes overlapping statements on one connection.
	for i := range txs {
		if txs[i].Scope != ledger.ScopeFanout {
			continue
		}
		recipients, err := loadRecipients(ctx, db, txs[i].ID)
		if err != nil {
			return nil, err
		}
		txs[i].Recipients = recipients
	}
	return txs, nil
}

func loadRecipients(ctx context.Context, db dbtx, id ledger.TransactionID) ([]ledger.OwnerID, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT owner_id FROM transaction_recipients WHERE transaction_id = ? ORDER BY position",
		id,
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var recipients []ledger.OwnerID
	for rows.Next() {
		var r ledger.OwnerID
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx                 ledger.Transaction
		txDate             string
		srcTier, srcOwner  sql.NullString
		dstTier, dstOwner  sql.NullString
		note               sql.NullString
		createdAt, updated string
	)

	err := rows.Scan(
		&tx.ID, &txDate, &tx.ItemID, &tx.Scope,
		&srcTier, &srcOwner, &dstTier, &dstOwner,
		&tx.Quantity, &tx.PerRecipient, &note,
		&createdAt, &updated,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Date, err = ledger.ParseDate(txDate)
	if err != nil {
		return tx, fmt.Errorf("failed to parse transaction date: %w", err)
	}
	tx.Source = refFromColumns(srcTier, srcOwner)
	tx.Destination = refFromColumns(dstTier, dstOwner)
	tx.Note = note.String
	tx.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return tx, fmt.Errorf("failed to parse created_at: %w", err)
	}
	tx.UpdatedAt, err = time.Parse(time.RFC3339, updated)
	if err != nil {
		return tx, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Rolled back on error,
// committed otherwise; transient lock errors map to ledger.ErrConflict.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLError(err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapSQLError(err)
	}
	return nil
}

// txStore routes the Store interface through one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Balance(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID) (int64, error) {
	return getBalance(ctx, ts.tx, tier, owner, item)
}

func (ts *txStore) Adjust(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID, delta int64) (int64, error) {
	return adjustBalance(ctx, ts.tx, tier, owner, item, delta)
}

func (ts *txStore) Balances(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID) ([]ledger.BalanceRow, error) {
	return listBalances(ctx, ts.tx, tier, owner)
}

func (ts *txStore) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	return insertTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	return updateTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return deleteTransaction(ctx, ts.tx, id)
}

func (ts *txStore) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	return getTransaction(ctx, ts.tx, id)
}

func (ts *txStore) ListTransactions(ctx context.Context, filter ledger.Filter, page ledger.Page) ([]ledger.Transaction, error) {
	return listTransactions(ctx, ts.tx, filter, page)
}

// =============================================================================
// ITEM CATALOG (catalog.Catalog interface)
// =============================================================================

// Item returns one catalog item.
func (s *Store) Item(ctx context.Context, id ledger.ItemID) (catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var item catalog.Item
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, category, unit, is_default FROM items WHERE id = ?", id,
	).Scan(&item.ID, &item.Name, &item.Category, &item.Unit, &item.IsDefault)
	if err == sql.ErrNoRows {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	if err != nil {
		return catalog.Item{}, mapSQLError(err)
	}
	return item, nil
}

// ItemExists satisfies ledger.ItemCatalog.
func (s *Store) ItemExists(ctx context.Context, id ledger.ItemID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, mapSQLError(err)
	}
	return count > 0, nil
}

// ListItems returns all items, default item first, then by name.
func (s *Store) ListItems(ctx context.Context) ([]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, unit, is_default FROM items ORDER BY is_default DESC, name",
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var item catalog.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Unit, &item.IsDefault); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveItem inserts or updates an item. Setting IsDefault clears the flag
// on every other item.
func (s *Store) SaveItem(ctx context.Context, item catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.IsDefault {
		if _, err := s.db.ExecContext(ctx, "UPDATE items SET is_default = FALSE WHERE id != ?", item.ID); err != nil {
			return mapSQLError(err)
		}
	}

	query := `
		INSERT INTO items (id, name, category, unit, is_default)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			unit = excluded.unit,
			is_default = excluded.is_default
	`
	_, err := s.db.ExecContext(ctx, query, item.ID, item.Name, item.Category, item.Unit, item.IsDefault)
	return mapSQLError(err)
}

// =============================================================================
// OWNER ROSTER (catalog.Roster interface)
// =============================================================================

// OwnerExists satisfies ledger.Roster.
func (s *Store) OwnerExists(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM owners WHERE tier = ? AND id = ?", tier, owner,
	).Scan(&count)
	if err != nil {
		return false, mapSQLError(err)
	}
	return count > 0, nil
}

// Owner returns one roster entry.
func (s *Store) Owner(ctx context.Context, tier ledger.Tier, id ledger.OwnerID) (catalog.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owner catalog.Owner
	var parent sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT tier, id, name, parent_id FROM owners WHERE tier = ? AND id = ?", tier, id,
	).Scan(&owner.Tier, &owner.ID, &owner.Name, &parent)
	if err == sql.ErrNoRows {
		return catalog.Owner{}, catalog.ErrOwnerNotFound
	}
	if err != nil {
		return catalog.Owner{}, mapSQLError(err)
	}
	owner.Parent = ledger.OwnerID(parent.String)
	return owner, nil
}

// ListOwners returns all owners of a tier, by name.
func (s *Store) ListOwners(ctx context.Context, tier ledger.Tier) ([]catalog.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT tier, id, name, parent_id FROM owners WHERE tier = ? ORDER BY name", tier,
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var owners []catalog.Owner
	for rows.Next() {
		var owner catalog.Owner
		var parent sql.NullString
		if err := rows.Scan(&owner.Tier, &owner.ID, &owner.Name, &parent); err != nil {
			return nil, err
		}
		owner.Parent = ledger.OwnerID(parent.String)
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// SaveOwner inserts or updates a roster entry.
func (s *Store) SaveOwner(ctx context.Context, owner catalog.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO owners (tier, id, name, parent_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tier, id) DO UPDATE SET
			name = excluded.name,
			parent_id = excluded.parent_id
	`
	_, err := s.db.ExecContext(ctx, query, owner.Tier, owner.ID, owner.Name, nullString(string(owner.Parent)))
	return mapSQLError(err)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transaction_recipients", "transactions", "balances", "items", "owners"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return mapSQLError(err)
		}
	}
	return nil
}

func refColumns(r *ledger.Ref) (tier, owner sql.NullString) {
	if r == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: string(r.Tier), Valid: true},
		sql.NullString{String: string(r.Owner), Valid: true}
}

func refFromColumns(tier, owner sql.NullString) *ledger.Ref {
	if !tier.Valid {
		return nil
	}
	return &ledger.Ref{Tier: ledger.Tier(tier.String), Owner: ledger.OwnerID(owner.String)}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// mapSQLError translates SQLite failures into ledger sentinels: the
// balances CHECK constraint means insufficient stock, lock contention
// means a retryable conflict.
func mapSQLError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "CHECK constraint failed"):
		return ledger.ErrInsufficientStock
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"):
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	}
	return err
}
