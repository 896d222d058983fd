/*
Package ledger provides the core multi-tier stock ledger engine.

PURPOSE:
  This package contains the types and algorithms that move quantities of a
  medicine between the four tiers of the distribution hierarchy — central
  health office, regional health center, school, and student — and record
  every movement as a reversible transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tier/Ref: A balance owner — one of the four tiers plus its entity id
  - Date: A calendar date (ledger ordering carries no time-of-day)
  - Transaction: A user-visible stock movement, mutable only via the
    reversal flow in engine.go
  - TierScope: Which balance-pair rule a transaction follows

DESIGN PRINCIPLES:
  1. Conservation: quantity is never created or destroyed except by an
     explicit deposit (source = nil) or retirement (destination = nil)
  2. Reversibility: every transaction carries enough information to compute
     and apply its own exact inverse
  3. Type Safety: strong typing for tiers, owners, and items prevents
     crossing balance keys
  4. Atomicity: a transaction record exists iff its balance effect has been
     applied exactly once

USAGE:
  engine := ledger.NewEngine(store, catalog, roster, logger)
  id, err := engine.CreateTransfer(ctx, ledger.TransferSpec{
      ItemID:      "fe-tab",
      Source:      ledger.CentralRef(),
      Destination: &ledger.Ref{Tier: ledger.TierRegional, Owner: "pkm-01"},
      Quantity:    500,
      Date:        ledger.NewDate(2024, time.July, 1),
  })

SEE ALSO:
  - engine.go: Transfer and distribution engines
  - reversal.go: Inverse-effect computation
  - store.go: Persistence interfaces
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// TIERS AND REFS
// =============================================================================

// Tier identifies one level of the distribution hierarchy.
type Tier string

const (
	TierCentral       Tier = "central"       // Dinas — top tier, source of deposits
	TierRegional      Tier = "regional"      // Puskesmas — community health center
	TierInstitutional Tier = "institutional" // Sekolah — school
	TierIndividual    Tier = "individual"    // Siswa — student, terminal consumer
)

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierCentral, TierRegional, TierInstitutional, TierIndividual:
		return true
	}
	return false
}

type OwnerID string
type ItemID string
type TransactionID string

// CentralOwner is the singleton owner id for the central tier. The central
// health office holds exactly one balance per item.
const CentralOwner OwnerID = "central"

// Ref names one balance owner: a tier plus the entity that owns the balance.
type Ref struct {
	Tier  Tier
	Owner OwnerID
}

// CentralRef returns the ref for the singleton central balance.
func CentralRef() *Ref {
	return &Ref{Tier: TierCentral, Owner: CentralOwner}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.Tier, r.Owner)
}

// =============================================================================
// DATE - Calendar date, day granularity
// =============================================================================

// Date is a calendar date. Transactions are ordered by date then creation
// time; there is no time-of-day ordering guarantee within a day.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool {
	return d.Before(other) || d.Equal(other)
}
func (d Date) AfterOrEqual(other Date) bool {
	return d.After(other) || d.Equal(other)
}
func (d Date) IsZero() bool { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// =============================================================================
// TIER SCOPE - Which balance-pair rule a transaction follows
// =============================================================================

type TierScope string

const (
	// ScopeCentralDeposit materializes stock at the central tier (no source).
	ScopeCentralDeposit TierScope = "central_deposit"
	// ScopeCentralToRegional ships from the central office to a health center.
	ScopeCentralToRegional TierScope = "central_to_regional"
	// ScopeCentralToInstitutional ships from the central office directly to a
	// school, bypassing the health center.
	ScopeCentralToInstitutional TierScope = "central_to_institutional"
	// ScopeRegionalToInstitutional ships from a health center to a school.
	ScopeRegionalToInstitutional TierScope = "regional_to_institutional"
	// ScopeFanout distributes from one school to many students.
	ScopeFanout TierScope = "fanout"
	// ScopeConsumption retires stock at a student balance (no destination).
	ScopeConsumption TierScope = "consumption"
	// ScopeWriteOff retires expired stock at a school balance (no destination).
	ScopeWriteOff TierScope = "write_off"
)

// Direction of a transaction as seen from its originating tier.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// scopeFor derives the TierScope from a source/destination ref pair.
// Returns ErrContractViolation for pairs outside the hierarchy rules.
func scopeFor(source, destination *Ref) (TierScope, error) {
	switch {
	case source == nil && destination == nil:
		return "", fmt.Errorf("%w: transfer needs a source or a destination", ErrContractViolation)
	case source == nil:
		if destination.Tier != TierCentral {
			return "", fmt.Errorf("%w: deposits are only accepted at the central tier, got %s", ErrContractViolation, destination.Tier)
		}
		return ScopeCentralDeposit, nil
	case destination == nil:
		switch source.Tier {
		case TierIndividual:
			return ScopeConsumption, nil
		case TierInstitutional:
			return ScopeWriteOff, nil
		default:
			return "", fmt.Errorf("%w: stock can only be retired at institutional or individual tiers, got %s", ErrContractViolation, source.Tier)
		}
	case source.Tier == TierCentral && destination.Tier == TierRegional:
		return ScopeCentralToRegional, nil
	case source.Tier == TierCentral && destination.Tier == TierInstitutional:
		return ScopeCentralToInstitutional, nil
	case source.Tier == TierRegional && destination.Tier == TierInstitutional:
		return ScopeRegionalToInstitutional, nil
	case source.Tier == TierInstitutional && destination.Tier == TierIndividual:
		// Single-recipient individual credits go through CreateDistribution.
		return "", fmt.Errorf("%w: institutional to individual movement must use the distribution engine", ErrContractViolation)
	default:
		return "", fmt.Errorf("%w: no tier rule for %s -> %s", ErrContractViolation, source.Tier, destination.Tier)
	}
}

// Direction reports whether the scope credits (in) or debits (out) stock at
// the tier the transaction originates from.
func (s TierScope) Direction() Direction {
	if s == ScopeCentralDeposit {
		return DirectionIn
	}
	return DirectionOut
}

// =============================================================================
// TRANSACTION - One user-visible stock movement
// =============================================================================

// Transaction records one stock movement. Unlike an append-only journal,
// the stored record is mutated in place by an edit: the reversal engine
// first undoes the old effect, then the record's movement fields are
// replaced. A transaction's existence always corresponds to a balance
// effect applied exactly once.
type Transaction struct {
	ID     TransactionID
	Date   Date
	ItemID ItemID
	Scope  TierScope

	// Source supplies the quantity; nil for a central deposit.
	Source *Ref
	// Destination receives the quantity; nil for consumption and write-off.
	Destination *Ref

	// Quantity is the amount moved at the source/destination pair level.
	Quantity int64

	// Fan-out only: the individual owners credited and the per-recipient
	// amount. Invariant: Quantity == PerRecipient * len(Recipients).
	Recipients   []OwnerID
	PerRecipient int64

	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFanout reports whether the transaction distributes to many individuals.
func (t Transaction) IsFanout() bool { return t.Scope == ScopeFanout }

// Validate checks the transaction's internal invariants. It does not touch
// balances; the engine does that inside a unit of work.
func (t Transaction) Validate() error {
	if t.ItemID == "" {
		return fmt.Errorf("%w: missing item id", ErrContractViolation)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrContractViolation, t.Quantity)
	}
	if t.Source == nil && t.Destination == nil {
		return fmt.Errorf("%w: transaction needs a source or a destination", ErrContractViolation)
	}
	if t.IsFanout() {
		if t.Source == nil || t.Source.Tier != TierInstitutional {
			return fmt.Errorf("%w: fan-out must be sourced from an institutional balance", ErrContractViolation)
		}
		if len(t.Recipients) == 0 {
			return fmt.Errorf("%w: fan-out needs at least one recipient", ErrContractViolation)
		}
		if t.PerRecipient <= 0 {
			return fmt.Errorf("%w: per-recipient quantity must be positive, got %d", ErrContractViolation, t.PerRecipient)
		}
		if t.Quantity != t.PerRecipient*int64(len(t.Recipients)) {
			return fmt.Errorf("%w: total %d != per-recipient %d x %d recipients",
				ErrContractViolation, t.Quantity, t.PerRecipient, len(t.Recipients))
		}
	}
	return nil
}

// dedupeRecipients collapses a recipient list to set semantics, preserving
// first-seen order. Each student holds a single balance row per item, so a
// recipient named twice is credited once.
func dedupeRecipients(ids []OwnerID) []OwnerID {
	seen := make(map[OwnerID]bool, len(ids))
	out := make([]OwnerID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
