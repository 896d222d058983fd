/*
Package report computes read-only summaries over the ledger: per-owner
movement totals, distribution coverage rates, and the conservation check
the reconciliation sweep runs.

All numbers are derived from the transaction log and the balance table;
the package never writes. Ratios (coverage, write-off share) use
shopspring/decimal so percentages survive rounding across report pages.
*/
package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/stock-ledger/ledger"
)

// Service derives summaries from the ledger stores.
type Service struct {
	store ledger.Store
}

func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// =============================================================================
// OWNER SUMMARY
// =============================================================================

// OwnerSummary aggregates one owner's movements for one item over a period.
type OwnerSummary struct {
	Tier   ledger.Tier
	Owner  ledger.OwnerID
	ItemID ledger.ItemID

	// Received counts quantity credited to the owner by transfers from
	// upstream tiers (or deposits, for the central tier).
	Received int64
	// Shipped counts quantity debited by transfers to downstream tiers.
	Shipped int64
	// Distributed counts fan-out quantity leaving an institutional owner.
	Distributed int64
	// Consumed counts consumption retirements (individual tier only).
	Consumed int64
	// WrittenOff counts expiry write-offs (institutional tier only).
	WrittenOff int64

	// Balance is the current stored balance, independent of the period.
	Balance int64
}

// Summarize aggregates an owner's transactions for one item between from
// and to (inclusive; nil means unbounded).
func (s *Service) Summarize(ctx context.Context, ref ledger.Ref, item ledger.ItemID, from, to *ledger.Date) (OwnerSummary, error) {
	summary := OwnerSummary{Tier: ref.Tier, Owner: ref.Owner, ItemID: item}

	filter := ledger.Filter{From: from, To: to, ItemID: &item, Tier: &ref.Tier, Owner: &ref.Owner}
	offset := 0
	for {
		page, err := s.store.ListTransactions(ctx, filter, ledger.Page{Offset: offset, Limit: reportPageSize})
		if err != nil {
			return OwnerSummary{}, err
		}
		for _, tx := range page {
			s.accumulate(&summary, ref, tx)
		}
		offset += len(page)
		if len(page) < reportPageSize {
			break
		}
	}

	balance, err := s.store.Balance(ctx, ref.Tier, ref.Owner, item)
	if err != nil {
		return OwnerSummary{}, err
	}
	summary.Balance = balance
	return summary, nil
}

const reportPageSize = 500

func (s *Service) accumulate(summary *OwnerSummary, ref ledger.Ref, tx ledger.Transaction) {
	switch tx.Scope {
	case ledger.ScopeFanout:
		if tx.Source != nil && *tx.Source == ref {
			summary.Distributed += tx.Quantity
		}
		if ref.Tier == ledger.TierIndividual {
			for _, r := range tx.Recipients {
				if r == ref.Owner {
					summary.Received += tx.PerRecipient
				}
			}
		}
	case ledger.ScopeConsumption:
		if tx.Source != nil && *tx.Source == ref {
			summary.Consumed += tx.Quantity
		}
	case ledger.ScopeWriteOff:
		if tx.Source != nil && *tx.Source == ref {
			summary.WrittenOff += tx.Quantity
		}
	default:
		if tx.Destination != nil && *tx.Destination == ref {
			summary.Received += tx.Quantity
		}
		if tx.Source != nil && *tx.Source == ref {
			summary.Shipped += tx.Quantity
		}
	}
}

// =============================================================================
// COVERAGE
// =============================================================================

// Coverage describes how much of an institutional owner's received stock
// has reached individuals, as exact decimal ratios.
type Coverage struct {
	Institution ledger.OwnerID
	ItemID      ledger.ItemID

	Received    int64
	Distributed int64
	WrittenOff  int64

	// DistributionRate is Distributed / Received; zero when nothing was
	// received. WriteOffRate likewise.
	DistributionRate decimal.Decimal
	WriteOffRate     decimal.Decimal
}

// InstitutionCoverage reports the distribution coverage for one school over
// a period.
func (s *Service) InstitutionCoverage(ctx context.Context, institution ledger.OwnerID, item ledger.ItemID, from, to *ledger.Date) (Coverage, error) {
	summary, err := s.Summarize(ctx, ledger.Ref{Tier: ledger.TierInstitutional, Owner: institution}, item, from, to)
	if err != nil {
		return Coverage{}, err
	}

	cov := Coverage{
		Institution: institution,
		ItemID:      item,
		Received:    summary.Received,
		Distributed: summary.Distributed,
		WrittenOff:  summary.WrittenOff,
	}
	if summary.Received > 0 {
		received := decimal.NewFromInt(summary.Received)
		cov.DistributionRate = decimal.NewFromInt(summary.Distributed).DivRound(received, 4)
		cov.WriteOffRate = decimal.NewFromInt(summary.WrittenOff).DivRound(received, 4)
	}
	return cov, nil
}

// =============================================================================
// CONSERVATION
// =============================================================================

// ConservationReport is the outcome of a conservation check for one item:
// deposits minus retirements must equal the sum of every stored balance.
type ConservationReport struct {
	ItemID    ledger.ItemID
	Deposited int64
	Retired   int64
	Held      int64
}

// Balanced reports whether the item's ledger conserves quantity.
func (r ConservationReport) Balanced() bool {
	return r.Deposited-r.Retired == r.Held
}

// Drift returns the unexplained quantity (positive means stock exists that
// no deposit accounts for).
func (r ConservationReport) Drift() int64 {
	return r.Held - (r.Deposited - r.Retired)
}

// VerifyConservation walks the whole log and every balance row and checks
// the conservation invariant per item. It returns one report per item seen;
// callers decide whether a drift is an alert or a halt.
func (s *Service) VerifyConservation(ctx context.Context) ([]ConservationReport, error) {
	byItem := make(map[ledger.ItemID]*ConservationReport)
	get := func(item ledger.ItemID) *ConservationReport {
		r, ok := byItem[item]
		if !ok {
			r = &ConservationReport{ItemID: item}
			byItem[item] = r
		}
		return r
	}

	offset := 0
	for {
		page, err := s.store.ListTransactions(ctx, ledger.Filter{}, ledger.Page{Offset: offset, Limit: reportPageSize})
		if err != nil {
			return nil, fmt.Errorf("conservation sweep: %w", err)
		}
		for _, tx := range page {
			switch tx.Scope {
			case ledger.ScopeCentralDeposit:
				get(tx.ItemID).Deposited += tx.Quantity
			case ledger.ScopeConsumption, ledger.ScopeWriteOff:
				get(tx.ItemID).Retired += tx.Quantity
			default:
				// Internal movement; conserves by construction but still
				// registers the item so zero-balance drift is reported.
				get(tx.ItemID)
			}
		}
		offset += len(page)
		if len(page) < reportPageSize {
			break
		}
	}

	for _, tier := range []ledger.Tier{ledger.TierCentral, ledger.TierRegional, ledger.TierInstitutional, ledger.TierIndividual} {
		rows, err := s.store.Balances(ctx, tier, "")
		if err != nil {
			return nil, fmt.Errorf("conservation sweep: %w", err)
		}
		for _, row := range rows {
			get(row.ItemID).Held += row.Quantity
		}
	}

	reports := make([]ConservationReport, 0, len(byItem))
	for _, r := range byItem {
		reports = append(reports, *r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ItemID < reports[j].ItemID })
	return reports, nil
}
