package recon_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/catalog"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/ledger/store"
	"github.com/warp/stock-ledger/recon"
	"github.com/warp/stock-ledger/report"
)

func TestRunOnce_ReportsPerItem(t *testing.T) {
	// GIVEN: A ledger with one deposited item
	// WHEN: Running the sweep once
	// THEN: One balanced report comes back

	refs := catalog.NewMemory()
	ctx := context.Background()
	require.NoError(t, refs.SaveItem(ctx, catalog.Item{ID: "fe-tab", Name: "Tablet Tambah Darah"}))

	mem := store.NewTxMemory()
	engine := ledger.NewEngine(mem, refs, refs, nil)
	_, err := engine.CreateTransfer(ctx, ledger.TransferSpec{
		ItemID:      "fe-tab",
		Destination: ledger.CentralRef(),
		Quantity:    500,
		Date:        ledger.NewDate(2025, time.July, 1),
	})
	require.NoError(t, err)

	sweeper := recon.NewSweeper(report.NewService(mem), nil)
	reports, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Balanced())
}

func TestStart_EmptyScheduleDisablesSweep(t *testing.T) {
	sweeper := recon.NewSweeper(report.NewService(store.NewTxMemory()), nil)
	assert.NoError(t, sweeper.Start(""))
	sweeper.Stop()
}

func TestStart_RejectsBadExpression(t *testing.T) {
	sweeper := recon.NewSweeper(report.NewService(store.NewTxMemory()), nil)
	assert.Error(t, sweeper.Start("not a cron line"))
}
