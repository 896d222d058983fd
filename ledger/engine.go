/*
engine.go - Transfer and distribution engines

PURPOSE:
  The Engine is the only writer of tier balances and the transaction log.
  It applies a transaction's effect to one or more balances atomically:
  tier-to-tier transfers (central deposit, central->regional,
  central->institutional, regional->institutional), retirements
  (consumption, expiry write-off), and the institutional->individual
  fan-out that credits many student balances from one school balance.

CONTROL FLOW (create):
  1. Validate references (item, owners) — rejected before any mutation
  2. Inside one unit of work: check the source balance, apply the deltas,
     append the transaction record
  3. On a transient store conflict, retry the whole unit (bounded)

CONTROL FLOW (edit):
  Active -> Reverting -> Active. Inside one unit of work: revert the old
  effect, validate the new payload against the reverted balances, apply
  the new effect, overwrite the stored record. Any failure rolls the whole
  unit back, so the old effect is never half-reverted.

CONTROL FLOW (delete):
  Active -> Reverting -> Deleted. Revert, then remove the record. A revert
  that would force a balance negative fails with ReversalConflict and the
  record stays Active.

SEE ALSO:
  - reversal.go: The shared undo math
  - store.go: The atomicity contract the engine relies on
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// ItemCatalog answers whether a medicine exists. Owned by the catalog
// package; the engine only needs existence.
type ItemCatalog interface {
	ItemExists(ctx context.Context, id ItemID) (bool, error)
}

// Roster answers whether a balance owner (health center, school, student)
// exists. The central singleton is always valid.
type Roster interface {
	OwnerExists(ctx context.Context, tier Tier, owner OwnerID) (bool, error)
}

// =============================================================================
// ENGINE
// =============================================================================

const defaultMaxRetries = 3

// Engine moves stock between tiers and keeps balances and the transaction
// log consistent under creation, editing, and deletion.
type Engine struct {
	store   TxStore
	catalog ItemCatalog
	roster  Roster
	log     *zap.Logger

	maxRetries int
	now        func() time.Time
	newID      func() TransactionID
}

// NewEngine wires an engine. A nil logger is replaced with a no-op.
func NewEngine(store TxStore, catalog ItemCatalog, roster Roster, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:      store,
		catalog:    catalog,
		roster:     roster,
		log:        log,
		maxRetries: defaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() TransactionID { return TransactionID(uuid.NewString()) },
	}
}

// =============================================================================
// CREATE: TRANSFER
// =============================================================================

// TransferSpec describes a tier-to-tier movement, a deposit (nil source),
// or a retirement (nil destination).
type TransferSpec struct {
	ItemID      ItemID
	Source      *Ref
	Destination *Ref
	Quantity    int64
	Date        Date
	Note        string
}

// CreateTransfer applies a transfer atomically and appends its record.
func (e *Engine) CreateTransfer(ctx context.Context, spec TransferSpec) (TransactionID, error) {
	scope, err := scopeFor(spec.Source, spec.Destination)
	if err != nil {
		return "", err
	}

	tx := Transaction{
		ID:          e.newID(),
		Date:        spec.Date,
		ItemID:      spec.ItemID,
		Scope:       scope,
		Source:      cloneRef(spec.Source),
		Destination: cloneRef(spec.Destination),
		Quantity:    spec.Quantity,
		Note:        spec.Note,
		CreatedAt:   e.now(),
	}
	tx.UpdatedAt = tx.CreatedAt

	if err := tx.Validate(); err != nil {
		return "", err
	}
	if err := e.validateReferences(ctx, tx); err != nil {
		return "", err
	}

	err = e.withRetry(ctx, func(s Store) error {
		if err := applyForward(ctx, s, tx); err != nil {
			return err
		}
		return s.InsertTransaction(ctx, tx)
	})
	if err != nil {
		return "", err
	}

	e.log.Info("transfer created",
		zap.String("transaction_id", string(tx.ID)),
		zap.String("scope", string(tx.Scope)),
		zap.String("item_id", string(tx.ItemID)),
		zap.Int64("quantity", tx.Quantity),
	)
	return tx.ID, nil
}

// =============================================================================
// CREATE: DISTRIBUTION (FAN-OUT)
// =============================================================================

// DistributionSpec describes one institutional->individual fan-out: one
// date, one medicine, one per-recipient quantity, many students.
type DistributionSpec struct {
	ItemID       ItemID
	Institution  Ref
	Recipients   []OwnerID
	PerRecipient int64
	Date         Date
	Note         string
}

// CreateDistribution decrements the institutional balance once by
// PerRecipient x N and credits each of the N recipients, atomically.
// Recipients are treated with set semantics: duplicates credit once.
func (e *Engine) CreateDistribution(ctx context.Context, spec DistributionSpec) (TransactionID, error) {
	recipients := dedupeRecipients(spec.Recipients)

	institution := spec.Institution
	tx := Transaction{
		ID:           e.newID(),
		Date:         spec.Date,
		ItemID:       spec.ItemID,
		Scope:        ScopeFanout,
		Source:       &institution,
		Quantity:     spec.PerRecipient * int64(len(recipients)),
		Recipients:   recipients,
		PerRecipient: spec.PerRecipient,
		Note:         spec.Note,
		CreatedAt:    e.now(),
	}
	tx.UpdatedAt = tx.CreatedAt

	if err := tx.Validate(); err != nil {
		return "", err
	}
	if err := e.validateReferences(ctx, tx); err != nil {
		return "", err
	}

	err := e.withRetry(ctx, func(s Store) error {
		if err := applyForward(ctx, s, tx); err != nil {
			return err
		}
		return s.InsertTransaction(ctx, tx)
	})
	if err != nil {
		return "", err
	}

	e.log.Info("distribution created",
		zap.String("transaction_id", string(tx.ID)),
		zap.String("institution", string(institution.Owner)),
		zap.String("item_id", string(tx.ItemID)),
		zap.Int("recipients", len(recipients)),
		zap.Int64("per_recipient", tx.PerRecipient),
		zap.Int64("total", tx.Quantity),
	)
	return tx.ID, nil
}

// =============================================================================
// EDIT
// =============================================================================

// EditPayload carries the replacement movement fields for a transaction.
// A non-empty Recipients list makes the new shape a fan-out; otherwise the
// source/destination pair decides the scope. Edits that change the item,
// source, or destination revert fully under the old identity and apply
// fresh under the new one — never a partial diff.
type EditPayload struct {
	ItemID       ItemID
	Source       *Ref
	Destination  *Ref
	Quantity     int64
	Recipients   []OwnerID
	PerRecipient int64
	Date         Date
	Note         string
}

// EditTransaction reverts the stored effect, validates the new payload
// against the reverted balances, applies it, and overwrites the record in
// place. On any failure the unit of work rolls back and the old effect
// stands untouched.
func (e *Engine) EditTransaction(ctx context.Context, id TransactionID, payload EditPayload) error {
	replacement, err := e.buildReplacement(id, payload)
	if err != nil {
		return err
	}
	if err := e.validateReferences(ctx, replacement); err != nil {
		return err
	}

	err = e.withRetry(ctx, func(s Store) error {
		old, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		replacement.CreatedAt = old.CreatedAt
		replacement.UpdatedAt = e.now()

		if err := applyReversal(ctx, s, old); err != nil {
			return err
		}
		if err := applyForward(ctx, s, replacement); err != nil {
			return err
		}
		return s.UpdateTransaction(ctx, replacement)
	})
	if err != nil {
		return err
	}

	e.log.Info("transaction edited",
		zap.String("transaction_id", string(id)),
		zap.String("scope", string(replacement.Scope)),
		zap.Int64("quantity", replacement.Quantity),
	)
	return nil
}

// buildReplacement shapes the new record for an edit. The id is preserved;
// everything else comes from the payload.
func (e *Engine) buildReplacement(id TransactionID, payload EditPayload) (Transaction, error) {
	tx := Transaction{
		ID:          id,
		Date:        payload.Date,
		ItemID:      payload.ItemID,
		Source:      cloneRef(payload.Source),
		Destination: cloneRef(payload.Destination),
		Quantity:    payload.Quantity,
		Note:        payload.Note,
	}

	if len(payload.Recipients) > 0 {
		tx.Scope = ScopeFanout
		tx.Recipients = dedupeRecipients(payload.Recipients)
		tx.PerRecipient = payload.PerRecipient
		tx.Quantity = payload.PerRecipient * int64(len(tx.Recipients))
		tx.Destination = nil
	} else {
		scope, err := scopeFor(tx.Source, tx.Destination)
		if err != nil {
			return Transaction{}, err
		}
		tx.Scope = scope
	}

	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteTransaction reverts the stored effect and removes the record. If
// the destination stock has since been spent downstream, it fails with
// ReversalConflict and nothing changes.
func (e *Engine) DeleteTransaction(ctx context.Context, id TransactionID) error {
	err := e.withRetry(ctx, func(s Store) error {
		old, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := applyReversal(ctx, s, old); err != nil {
			return err
		}
		return s.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}

	e.log.Info("transaction deleted", zap.String("transaction_id", string(id)))
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Balance returns the current quantity for a key, 0 if absent.
func (e *Engine) Balance(ctx context.Context, tier Tier, owner OwnerID, item ItemID) (int64, error) {
	return e.store.Balance(ctx, tier, owner, item)
}

// Balances returns all balance rows for an owner, or a whole tier when
// owner is empty.
func (e *Engine) Balances(ctx context.Context, tier Tier, owner OwnerID) ([]BalanceRow, error) {
	return e.store.Balances(ctx, tier, owner)
}

// Transaction returns one stored record.
func (e *Engine) Transaction(ctx context.Context, id TransactionID) (Transaction, error) {
	return e.store.GetTransaction(ctx, id)
}

// Transactions returns a restartable iterator over the filtered log.
func (e *Engine) Transactions(ctx context.Context, filter Filter) *Iterator {
	return newIterator(ctx, e.store, filter)
}

// =============================================================================
// INTERNALS
// =============================================================================

// withRetry runs fn as a unit of work, retrying transient conflicts a
// bounded number of times before surfacing ErrConflict.
func (e *Engine) withRetry(ctx context.Context, fn func(Store) error) error {
	var err error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		err = e.store.WithTx(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		e.log.Warn("unit of work conflicted, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return err
}

// validateReferences rejects unknown items and owners before any balance
// mutation is attempted. Authorization is assumed granted upstream.
func (e *Engine) validateReferences(ctx context.Context, tx Transaction) error {
	ok, err := e.catalog.ItemExists(ctx, tx.ItemID)
	if err != nil {
		return err
	}
	if !ok {
		return &InvalidReferenceError{Kind: "item", ID: string(tx.ItemID)}
	}

	refs := make([]Ref, 0, len(tx.Recipients)+2)
	if tx.Source != nil {
		refs = append(refs, *tx.Source)
	}
	if tx.Destination != nil {
		refs = append(refs, *tx.Destination)
	}
	for _, r := range tx.Recipients {
		refs = append(refs, Ref{Tier: TierIndividual, Owner: r})
	}

	for _, ref := range refs {
		if ref.Tier == TierCentral {
			if ref.Owner != CentralOwner {
				return &InvalidReferenceError{Kind: "owner", ID: string(ref.Owner)}
			}
			continue
		}
		ok, err := e.roster.OwnerExists(ctx, ref.Tier, ref.Owner)
		if err != nil {
			return err
		}
		if !ok {
			return &InvalidReferenceError{Kind: "owner", ID: string(ref.Owner)}
		}
	}
	return nil
}

func cloneRef(r *Ref) *Ref {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
