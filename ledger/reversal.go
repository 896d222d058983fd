/*
reversal.go - Inverse-effect computation for edits and deletes

PURPOSE:
  A stored transaction carries enough information to compute the exact
  inverse of its recorded effect. This file is the single place that undo
  math lives: the edit flow (revert old, validate new, apply new) and the
  delete flow (revert only) both call ReverseEffect, parameterized by
  transaction shape, instead of re-deriving per-handler reversal logic.

REVERSAL RULES:
  Simple transfer:  credit the original source by Quantity, debit the
                    original destination by Quantity (skip nil ends).
  Fan-out:          credit the institutional balance by Quantity, debit
                    every recorded recipient by PerRecipient.

CONFLICTS:
  Debiting an end that has since been spent below the required amount must
  not force a negative balance. applyDeltas maps the store's
  ErrInsufficientStock to a ReversalConflictError so the caller can tell
  "you asked for too much" apart from "this history can no longer be
  undone without manual reconciliation".

SEE ALSO:
  - engine.go: EditTransaction and DeleteTransaction drive this
*/
package ledger

import (
	"context"
	"errors"
)

// BalanceDelta is one signed adjustment to a tier balance key.
type BalanceDelta struct {
	Ref    Ref
	ItemID ItemID
	Delta  int64
}

// ReverseEffect computes the tier deltas required to undo tx. Pure; the
// caller applies the deltas inside a unit of work.
func ReverseEffect(tx Transaction) []BalanceDelta {
	if tx.IsFanout() {
		deltas := make([]BalanceDelta, 0, len(tx.Recipients)+1)
		deltas = append(deltas, BalanceDelta{Ref: *tx.Source, ItemID: tx.ItemID, Delta: tx.Quantity})
		for _, r := range tx.Recipients {
			deltas = append(deltas, BalanceDelta{
				Ref:    Ref{Tier: TierIndividual, Owner: r},
				ItemID: tx.ItemID,
				Delta:  -tx.PerRecipient,
			})
		}
		return deltas
	}

	var deltas []BalanceDelta
	if tx.Source != nil {
		deltas = append(deltas, BalanceDelta{Ref: *tx.Source, ItemID: tx.ItemID, Delta: tx.Quantity})
	}
	if tx.Destination != nil {
		deltas = append(deltas, BalanceDelta{Ref: *tx.Destination, ItemID: tx.ItemID, Delta: -tx.Quantity})
	}
	return deltas
}

// ForwardEffect computes the tier deltas that apply tx. It is the exact
// mirror of ReverseEffect; keeping both in one file keeps them honest.
func ForwardEffect(tx Transaction) []BalanceDelta {
	deltas := ReverseEffect(tx)
	for i := range deltas {
		deltas[i].Delta = -deltas[i].Delta
	}
	return deltas
}

// applyReversal applies the inverse deltas of tx through s. Any
// insufficient-stock failure is reported as a ReversalConflictError for
// that key: the balance to be debited back has been spent downstream.
func applyReversal(ctx context.Context, s Store, tx Transaction) error {
	for _, d := range ReverseEffect(tx) {
		if _, err := s.Adjust(ctx, d.Ref.Tier, d.Ref.Owner, d.ItemID, d.Delta); err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				available, berr := s.Balance(ctx, d.Ref.Tier, d.Ref.Owner, d.ItemID)
				if berr != nil {
					return berr
				}
				return &ReversalConflictError{
					TransactionID: tx.ID,
					Ref:           d.Ref,
					ItemID:        d.ItemID,
					Available:     available,
					Required:      -d.Delta,
				}
			}
			return err
		}
	}
	return nil
}

// applyForward applies tx's effect through s. A source decrement that fails
// is surfaced as InsufficientStockError with the balance at commit time.
func applyForward(ctx context.Context, s Store, tx Transaction) error {
	for _, d := range ForwardEffect(tx) {
		if _, err := s.Adjust(ctx, d.Ref.Tier, d.Ref.Owner, d.ItemID, d.Delta); err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				available, berr := s.Balance(ctx, d.Ref.Tier, d.Ref.Owner, d.ItemID)
				if berr != nil {
					return berr
				}
				return &InsufficientStockError{
					Ref:       d.Ref,
					ItemID:    d.ItemID,
					Available: available,
					Requested: -d.Delta,
				}
			}
			return err
		}
	}
	return nil
}
