package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/catalog"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/ledger/store"
	"github.com/warp/stock-ledger/report"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seedLedger builds a small but complete history: a deposit, two shipments,
// a fan-out, a consumption, and a write-off.
func seedLedger(t *testing.T) (*ledger.Engine, *store.TxMemory) {
	t.Helper()

	refs := catalog.NewMemory()
	ctx := context.Background()
	require.NoError(t, refs.SaveItem(ctx, catalog.Item{ID: "fe-tab", Name: "Tablet Tambah Darah"}))
	require.NoError(t, refs.SaveOwner(ctx, catalog.Owner{Tier: ledger.TierRegional, ID: "pkm-01", Name: "Puskesmas 1"}))
	require.NoError(t, refs.SaveOwner(ctx, catalog.Owner{Tier: ledger.TierInstitutional, ID: "sch-01", Name: "SMP 1"}))
	require.NoError(t, refs.SaveOwner(ctx, catalog.Owner{Tier: ledger.TierIndividual, ID: "stu-01", Name: "Siswa A"}))
	require.NoError(t, refs.SaveOwner(ctx, catalog.Owner{Tier: ledger.TierIndividual, ID: "stu-02", Name: "Siswa B"}))

	mem := store.NewTxMemory()
	engine := ledger.NewEngine(mem, refs, refs, nil)

	_, err := engine.CreateTransfer(ctx, ledger.TransferSpec{
		ItemID: "fe-tab", Destination: ledger.CentralRef(), Quantity: 1000,
		Date: ledger.NewDate(2025, time.July, 1),
	})
	require.NoError(t, err)

	_, err = engine.CreateTransfer(ctx, ledger.TransferSpec{
		ItemID: "fe-tab", Source: ledger.CentralRef(),
		Destination: &ledger.Ref{Tier: ledger.TierRegional, Owner: "pkm-01"},
		Quantity:    300, Date: ledger.NewDate(2025, time.July, 2),
	})
	require.NoError(t, err)

	_, err = engine.CreateTransfer(ctx, ledger.TransferSpec{
		ItemID: "fe-tab", Source: &ledger.Ref{Tier: ledger.TierRegional, Owner: "pkm-01"},
		Destination: &ledger.Ref{Tier: ledger.TierInstitutional, Owner: "sch-01"},
		Quantity:    100, Date: ledger.NewDate(2025, time.July, 3),
	})
	require.NoError(t, err)

	_, err = engine.CreateDistribution(ctx, ledger.DistributionSpec{
		ItemID:      "fe-tab",
		Institution: ledger.Ref{Tier: ledger.TierInstitutional, Owner: "sch-01"},
		Recipients:  []ledger.OwnerID{"stu-01", "stu-02"},
		PerRecipient: 13, Date: ledger.NewDate(2025, time.July, 4),
	})
	require.NoError(t, err)

	_, err = engine.CreateTransfer(ctx, ledger.TransferSpec{
		ItemID: "fe-tab", Source: &ledger.Ref{Tier: ledger.TierIndividual, Owner: "stu-01"},
		Quantity: 5, Date: ledger.NewDate(2025, time.July, 5),
	})
	require.NoError(t, err)

	_, err = engine.CreateTransfer(ctx, ledger.TransferSpec{
		ItemID: "fe-tab", Source: &ledger.Ref{Tier: ledger.TierInstitutional, Owner: "sch-01"},
		Quantity: 10, Date: ledger.NewDate(2025, time.July, 6), Note: "kadaluarsa",
	})
	require.NoError(t, err)

	return engine, mem
}

// =============================================================================
// SUMMARY TESTS
// =============================================================================

func TestSummarize_InstitutionalOwner(t *testing.T) {
	// GIVEN: A school that received 100, distributed 26, wrote off 10
	// WHEN: Summarizing the school's movements
	// THEN: Every counter and the closing balance line up

	_, mem := seedLedger(t)
	svc := report.NewService(mem)

	summary, err := svc.Summarize(context.Background(),
		ledger.Ref{Tier: ledger.TierInstitutional, Owner: "sch-01"}, "fe-tab", nil, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 100, summary.Received)
	assert.EqualValues(t, 26, summary.Distributed)
	assert.EqualValues(t, 10, summary.WrittenOff)
	assert.EqualValues(t, 0, summary.Shipped)
	assert.EqualValues(t, 64, summary.Balance)
}

func TestSummarize_IndividualOwner_CountsFanOutCredits(t *testing.T) {
	_, mem := seedLedger(t)
	svc := report.NewService(mem)

	summary, err := svc.Summarize(context.Background(),
		ledger.Ref{Tier: ledger.TierIndividual, Owner: "stu-01"}, "fe-tab", nil, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 13, summary.Received)
	assert.EqualValues(t, 5, summary.Consumed)
	assert.EqualValues(t, 8, summary.Balance)
}

func TestSummarize_PeriodBounds(t *testing.T) {
	// GIVEN: The school's shipment arrived July 3
	// WHEN: Summarizing only July 4 onward
	// THEN: The shipment is excluded, the distribution included

	_, mem := seedLedger(t)
	svc := report.NewService(mem)

	from := ledger.NewDate(2025, time.July, 4)
	summary, err := svc.Summarize(context.Background(),
		ledger.Ref{Tier: ledger.TierInstitutional, Owner: "sch-01"}, "fe-tab", &from, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 0, summary.Received)
	assert.EqualValues(t, 26, summary.Distributed)
}

// =============================================================================
// COVERAGE TESTS
// =============================================================================

func TestInstitutionCoverage_ExactRates(t *testing.T) {
	// GIVEN: 100 received, 26 distributed, 10 written off
	// WHEN: Computing coverage
	// THEN: Rates are the exact decimals 0.26 and 0.1

	_, mem := seedLedger(t)
	svc := report.NewService(mem)

	cov, err := svc.InstitutionCoverage(context.Background(), "sch-01", "fe-tab", nil, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 100, cov.Received)
	assert.Equal(t, "0.26", cov.DistributionRate.String())
	assert.Equal(t, "0.1", cov.WriteOffRate.String())
}

func TestInstitutionCoverage_NothingReceived_ZeroRates(t *testing.T) {
	mem := store.NewTxMemory()
	svc := report.NewService(mem)

	cov, err := svc.InstitutionCoverage(context.Background(), "sch-09", "fe-tab", nil, nil)
	require.NoError(t, err)
	assert.True(t, cov.DistributionRate.IsZero())
}

// =============================================================================
// CONSERVATION TESTS
// =============================================================================

func TestVerifyConservation_BalancedLedger(t *testing.T) {
	// GIVEN: A history produced only through the engine
	// WHEN: Running the conservation check
	// THEN: deposits - retirements == held, per item

	_, mem := seedLedger(t)
	svc := report.NewService(mem)

	reports, err := svc.VerifyConservation(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, ledger.ItemID("fe-tab"), r.ItemID)
	assert.EqualValues(t, 1000, r.Deposited)
	assert.EqualValues(t, 15, r.Retired)
	assert.EqualValues(t, 985, r.Held)
	assert.True(t, r.Balanced())
	assert.EqualValues(t, 0, r.Drift())
}

func TestVerifyConservation_DetectsDrift(t *testing.T) {
	// GIVEN: A balance mutated behind the engine's back
	// WHEN: Running the conservation check
	// THEN: The drift is reported, not silently absorbed

	_, mem := seedLedger(t)
	_, err := mem.Adjust(context.Background(), ledger.TierRegional, "pkm-01", "fe-tab", 7)
	require.NoError(t, err)

	svc := report.NewService(mem)
	reports, err := svc.VerifyConservation(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.False(t, reports[0].Balanced())
	assert.EqualValues(t, 7, reports[0].Drift())
}
