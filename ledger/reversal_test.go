package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// REVERSE / FORWARD EFFECT MATH
// =============================================================================

func TestReverseEffect_SimpleTransfer(t *testing.T) {
	// GIVEN: A 200-tablet shipment from central to a health center
	// WHEN: Computing the inverse
	// THEN: The source is credited back and the destination debited

	tx := Transaction{
		ID:          "tx-1",
		ItemID:      "fe-tab",
		Scope:       ScopeCentralToRegional,
		Source:      CentralRef(),
		Destination: &Ref{Tier: TierRegional, Owner: "pkm-01"},
		Quantity:    200,
	}

	deltas := ReverseEffect(tx)
	require.Len(t, deltas, 2)
	assert.Equal(t, BalanceDelta{Ref: *CentralRef(), ItemID: "fe-tab", Delta: 200}, deltas[0])
	assert.Equal(t, BalanceDelta{Ref: Ref{Tier: TierRegional, Owner: "pkm-01"}, ItemID: "fe-tab", Delta: -200}, deltas[1])
}

func TestReverseEffect_Deposit_OnlyDebitsDestination(t *testing.T) {
	tx := Transaction{
		ID:          "tx-1",
		ItemID:      "fe-tab",
		Scope:       ScopeCentralDeposit,
		Destination: CentralRef(),
		Quantity:    500,
	}

	deltas := ReverseEffect(tx)
	require.Len(t, deltas, 1)
	assert.EqualValues(t, -500, deltas[0].Delta)
}

func TestReverseEffect_Retirement_OnlyCreditsSource(t *testing.T) {
	tx := Transaction{
		ID:       "tx-1",
		ItemID:   "fe-tab",
		Scope:    ScopeWriteOff,
		Source:   &Ref{Tier: TierInstitutional, Owner: "sch-01"},
		Quantity: 30,
	}

	deltas := ReverseEffect(tx)
	require.Len(t, deltas, 1)
	assert.EqualValues(t, 30, deltas[0].Delta)
	assert.Equal(t, Ref{Tier: TierInstitutional, Owner: "sch-01"}, deltas[0].Ref)
}

func TestReverseEffect_FanOut_DebitsEveryRecipient(t *testing.T) {
	// GIVEN: A distribution of 13 each to 3 students
	// WHEN: Computing the inverse
	// THEN: The school gets the full 39 back and each student loses 13

	tx := Transaction{
		ID:           "tx-1",
		ItemID:       "fe-tab",
		Scope:        ScopeFanout,
		Source:       &Ref{Tier: TierInstitutional, Owner: "sch-01"},
		Quantity:     39,
		Recipients:   []OwnerID{"stu-01", "stu-02", "stu-03"},
		PerRecipient: 13,
	}

	deltas := ReverseEffect(tx)
	require.Len(t, deltas, 4)
	assert.EqualValues(t, 39, deltas[0].Delta)
	for _, d := range deltas[1:] {
		assert.EqualValues(t, -13, d.Delta)
		assert.Equal(t, TierIndividual, d.Ref.Tier)
	}
}

func TestForwardEffect_IsExactMirror(t *testing.T) {
	tx := Transaction{
		ID:           "tx-1",
		ItemID:       "fe-tab",
		Scope:        ScopeFanout,
		Source:       &Ref{Tier: TierInstitutional, Owner: "sch-01"},
		Quantity:     26,
		Recipients:   []OwnerID{"stu-01", "stu-02"},
		PerRecipient: 13,
	}

	reverse := ReverseEffect(tx)
	forward := ForwardEffect(tx)
	require.Len(t, forward, len(reverse))
	for i := range forward {
		assert.Equal(t, reverse[i].Ref, forward[i].Ref)
		assert.Equal(t, -reverse[i].Delta, forward[i].Delta)
	}
}

// =============================================================================
// SCOPE DERIVATION
// =============================================================================

func TestScopeFor_TierRules(t *testing.T) {
	central := CentralRef()
	regional := &Ref{Tier: TierRegional, Owner: "pkm-01"}
	school := &Ref{Tier: TierInstitutional, Owner: "sch-01"}
	student := &Ref{Tier: TierIndividual, Owner: "stu-01"}

	cases := []struct {
		name    string
		source  *Ref
		dest    *Ref
		want    TierScope
		wantErr bool
	}{
		{"deposit", nil, central, ScopeCentralDeposit, false},
		{"central to regional", central, regional, ScopeCentralToRegional, false},
		{"central to school", central, school, ScopeCentralToInstitutional, false},
		{"regional to school", regional, school, ScopeRegionalToInstitutional, false},
		{"school write-off", school, nil, ScopeWriteOff, false},
		{"student consumption", student, nil, ScopeConsumption, false},
		{"deposit at school", nil, school, "", true},
		{"school to student", school, student, "", true},
		{"regional upstream", regional, central, "", true},
		{"student to student", student, student, "", true},
		{"central retirement", central, nil, "", true},
		{"both nil", nil, nil, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scope, err := scopeFor(tc.source, tc.dest)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrContractViolation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, scope)
		})
	}
}

// =============================================================================
// TRANSACTION VALIDATION
// =============================================================================

func TestTransactionValidate_FanOutTotalInvariant(t *testing.T) {
	tx := Transaction{
		ID:           "tx-1",
		ItemID:       "fe-tab",
		Scope:        ScopeFanout,
		Source:       &Ref{Tier: TierInstitutional, Owner: "sch-01"},
		Quantity:     25, // should be 26
		Recipients:   []OwnerID{"stu-01", "stu-02"},
		PerRecipient: 13,
	}

	assert.ErrorIs(t, tx.Validate(), ErrContractViolation)

	tx.Quantity = 26
	assert.NoError(t, tx.Validate())
}

func TestTransactionValidate_FanOutSourceMustBeInstitutional(t *testing.T) {
	tx := Transaction{
		ID:           "tx-1",
		ItemID:       "fe-tab",
		Scope:        ScopeFanout,
		Source:       &Ref{Tier: TierRegional, Owner: "pkm-01"},
		Quantity:     10,
		Recipients:   []OwnerID{"stu-01"},
		PerRecipient: 10,
	}

	assert.ErrorIs(t, tx.Validate(), ErrContractViolation)

	tx.Source = nil
	assert.ErrorIs(t, tx.Validate(), ErrContractViolation)

	tx.Source = &Ref{Tier: TierInstitutional, Owner: "sch-01"}
	assert.NoError(t, tx.Validate())
}

func TestTransactionValidate_RejectsNonPositiveQuantities(t *testing.T) {
	tx := Transaction{ID: "tx-1", ItemID: "fe-tab", Scope: ScopeCentralDeposit, Destination: CentralRef()}

	tx.Quantity = 0
	assert.ErrorIs(t, tx.Validate(), ErrContractViolation)

	tx.Quantity = -5
	assert.ErrorIs(t, tx.Validate(), ErrContractViolation)
}

func TestDedupeRecipients_PreservesFirstSeenOrder(t *testing.T) {
	got := dedupeRecipients([]OwnerID{"b", "a", "b", "c", "a"})
	assert.Equal(t, []OwnerID{"b", "a", "c"}, got)
}
