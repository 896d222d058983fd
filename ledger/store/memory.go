// Package store provides in-memory ledger.TxStore implementations for
// testing and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	balances     map[balanceKey]int64
	transactions map[ledger.TransactionID]ledger.Transaction
}

type balanceKey struct {
	Tier  ledger.Tier
	Owner ledger.OwnerID
	Item  ledger.ItemID
}

func NewMemory() *Memory {
	return &Memory{
		balances:     make(map[balanceKey]int64),
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
	}
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (m *Memory) Balance(_ context.Context, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[balanceKey{tier, owner, item}], nil
}

func (m *Memory) Adjust(_ context.Context, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustLocked(tier, owner, item, delta)
}

func (m *Memory) adjustLocked(tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID, delta int64) (int64, error) {
	k := balanceKey{tier, owner, item}
	next := m.balances[k] + delta
	if next < 0 {
		return 0, ledger.ErrInsufficientStock
	}
	m.balances[k] = next
	return next, nil
}

func (m *Memory) Balances(_ context.Context, tier ledger.Tier, owner ledger.OwnerID) ([]ledger.BalanceRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []ledger.BalanceRow
	for k, q := range m.balances {
		if k.Tier != tier {
			continue
		}
		if owner != "" && k.Owner != owner {
			continue
		}
		rows = append(rows, ledger.BalanceRow{Tier: k.Tier, Owner: k.Owner, ItemID: k.Item, Quantity: q})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Owner != rows[j].Owner {
			return rows[i].Owner < rows[j].Owner
		}
		return rows[i].ItemID < rows[j].ItemID
	})
	return rows, nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (m *Memory) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.ID] = cloneTx(tx)
	return nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	m.transactions[tx.ID] = cloneTx(tx)
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[id]; !ok {
		return ledger.ErrTransactionNotFound
	}
	delete(m.transactions, id)
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return cloneTx(tx), nil
}

func (m *Memory) ListTransactions(_ context.Context, filter ledger.Filter, page ledger.Page) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []ledger.Transaction
	for _, tx := range m.transactions {
		if matches(tx, filter) {
			all = append(all, cloneTx(tx))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if page.Offset >= len(all) {
		return nil, nil
	}
	all = all[page.Offset:]
	if page.Limit > 0 && page.Limit < len(all) {
		all = all[:page.Limit]
	}
	return all, nil
}

func matches(tx ledger.Transaction, f ledger.Filter) bool {
	if f.From != nil && tx.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.Date.After(*f.To) {
		return false
	}
	if f.ItemID != nil && tx.ItemID != *f.ItemID {
		return false
	}
	if f.Scope != nil && tx.Scope != *f.Scope {
		return false
	}
	if f.Tier != nil || f.Owner != nil {
		if !touches(tx, f.Tier, f.Owner) {
			return false
		}
	}
	return true
}

// touches reports whether the transaction involves the tier/owner as a
// source, destination, or fan-out recipient.
func touches(tx ledger.Transaction, tier *ledger.Tier, owner *ledger.OwnerID) bool {
	refMatch := func(r *ledger.Ref) bool {
		if r == nil {
			return false
		}
		if tier != nil && r.Tier != *tier {
			return false
		}
		if owner != nil && r.Owner != *owner {
			return false
		}
		return true
	}
	if refMatch(tx.Source) || refMatch(tx.Destination) {
		return true
	}
	if tier != nil && *tier != ledger.TierIndividual {
		return false
	}
	for _, r := range tx.Recipients {
		if owner == nil || r == *owner {
			return true
		}
	}
	return false
}

func cloneTx(tx ledger.Transaction) ledger.Transaction {
	c := tx
	if tx.Source != nil {
		s := *tx.Source
		c.Source = &s
	}
	if tx.Destination != nil {
		d := *tx.Destination
		c.Destination = &d
	}
	if tx.Recipients != nil {
		c.Recipients = append([]ledger.OwnerID(nil), tx.Recipients...)
	}
	return c
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with snapshot/rollback units of work. The whole
// store is locked for the duration of fn, which linearizes overlapping
// units the way the SQLite store's single writer does.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a view of the store; on error the pre-fn
// state is restored so no partial effect is observable.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	balances := make(map[balanceKey]int64, len(tm.balances))
	for k, v := range tm.balances {
		balances[k] = v
	}
	txs := make(map[ledger.TransactionID]ledger.Transaction, len(tm.transactions))
	for k, v := range tm.transactions {
		txs[k] = cloneTx(v)
	}
	return memorySnapshot{balances: balances, transactions: txs}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.balances = s.balances
	tm.transactions = s.transactions
}

type memorySnapshot struct {
	balances     map[balanceKey]int64
	transactions map[ledger.TransactionID]ledger.Transaction
}

// txMemoryView gives fn lock-free access to the already-locked parent.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Balance(_ context.Context, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID) (int64, error) {
	return tv.parent.balances[balanceKey{tier, owner, item}], nil
}

func (tv *txMemoryView) Adjust(_ context.Context, tier ledger.Tier, owner ledger.OwnerID, item ledger.ItemID, delta int64) (int64, error) {
	return tv.parent.adjustLocked(tier, owner, item, delta)
}

func (tv *txMemoryView) Balances(ctx context.Context, tier ledger.Tier, owner ledger.OwnerID) ([]ledger.BalanceRow, error) {
	var rows []ledger.BalanceRow
	for k, q := range tv.parent.balances {
		if k.Tier != tier {
			continue
		}
		if owner != "" && k.Owner != owner {
			continue
		}
		rows = append(rows, ledger.BalanceRow{Tier: k.Tier, Owner: k.Owner, ItemID: k.Item, Quantity: q})
	}
	return rows, nil
}

func (tv *txMemoryView) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	tv.parent.transactions[tx.ID] = cloneTx(tx)
	return nil
}

func (tv *txMemoryView) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	if _, ok := tv.parent.transactions[tx.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	tv.parent.transactions[tx.ID] = cloneTx(tx)
	return nil
}

func (tv *txMemoryView) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	if _, ok := tv.parent.transactions[id]; !ok {
		return ledger.ErrTransactionNotFound
	}
	delete(tv.parent.transactions, id)
	return nil
}

func (tv *txMemoryView) GetTransaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	tx, ok := tv.parent.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return cloneTx(tx), nil
}

func (tv *txMemoryView) ListTransactions(ctx context.Context, filter ledger.Filter, page ledger.Page) ([]ledger.Transaction, error) {
	var all []ledger.Transaction
	for _, tx := range tv.parent.transactions {
		if matches(tx, filter) {
			all = append(all, cloneTx(tx))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].ID < all[j].ID
	})
	if page.Offset >= len(all) {
		return nil, nil
	}
	all = all[page.Offset:]
	if page.Limit > 0 && page.Limit < len(all) {
		all = all[:page.Limit]
	}
	return all, nil
}
