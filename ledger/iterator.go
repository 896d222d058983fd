/*
iterator.go - Lazy, restartable reads over the transaction log

PURPOSE:
  Dashboards and exports consume the log read-only and can be large. The
  Iterator pages through ListTransactions a chunk at a time instead of
  materializing the whole result, and Reset restarts it from the
  beginning. Ordering is (date, created_at, id), so a restarted listing
  replays identically as long as no writer intervenes.
*/
package ledger

import "context"

const defaultIteratorPageSize = 200

// Iterator walks a filtered transaction listing lazily.
//
//	it := engine.Transactions(ctx, filter)
//	for it.Next() {
//	    tx := it.Transaction()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	ctx      context.Context
	store    TransactionStore
	filter   Filter
	pageSize int

	offset int
	buf    []Transaction
	pos    int
	done   bool
	err    error
}

func newIterator(ctx context.Context, store TransactionStore, filter Filter) *Iterator {
	return &Iterator{
		ctx:      ctx,
		store:    store,
		filter:   filter,
		pageSize: defaultIteratorPageSize,
	}
}

// Next advances to the next transaction, fetching the next page when the
// buffer is exhausted. Returns false at the end or on error.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.pos < len(it.buf) {
		it.pos++
		return true
	}
	if it.done {
		return false
	}

	page, err := it.store.ListTransactions(it.ctx, it.filter, Page{Offset: it.offset, Limit: it.pageSize})
	if err != nil {
		it.err = err
		return false
	}
	it.offset += len(page)
	if len(page) < it.pageSize {
		it.done = true
	}
	it.buf = page
	it.pos = 0
	if len(page) == 0 {
		return false
	}
	it.pos = 1
	return true
}

// Transaction returns the current element. Valid only after Next reported
// true.
func (it *Iterator) Transaction() Transaction {
	return it.buf[it.pos-1]
}

// Err returns the first error the iterator hit, if any.
func (it *Iterator) Err() error { return it.err }

// Reset restarts the iterator from the beginning of the listing.
func (it *Iterator) Reset() {
	it.offset = 0
	it.buf = nil
	it.pos = 0
	it.done = false
	it.err = nil
}

// Collect drains the iterator into a slice. Convenience for callers that
// want everything anyway (tests, small exports).
func (it *Iterator) Collect() ([]Transaction, error) {
	var out []Transaction
	for it.Next() {
		out = append(out, it.Transaction())
	}
	return out, it.Err()
}
