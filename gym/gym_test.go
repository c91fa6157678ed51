package gym_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/generic/store"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// EXPIRY CALCULATOR
// =============================================================================

func TestPlan_ExpiryFrom(t *testing.T) {
	start := generic.MustParseDate("2024-01-01")

	cases := []struct {
		plan gym.Plan
		want string
	}{
		{gym.PlanDayPass, "2024-01-02"},
		{gym.PlanWarriorPass, "2024-02-01"},
		{gym.PlanGladiatorPass, "2024-01-31"},
		{gym.PlanAlphaElitePass, "2024-04-01"},
		{gym.Plan("PlatinumPass"), "2024-02-01"}, // unknown tier: one month
	}
	for _, tc := range cases {
		t.Run(string(tc.plan), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.plan.ExpiryFrom(start).String())
		})
	}
}

func TestPlan_ExpiryAlwaysAfterStart(t *testing.T) {
	// Every day of a leap year, every tier
	day := generic.MustParseDate("2024-01-01")
	plans := append([]gym.Plan{"Unknown"}, gym.Plans...)
	for i := 0; i < 366; i++ {
		for _, p := range plans {
			exp := p.ExpiryFrom(day)
			require.True(t, exp.After(day), "%s from %s gave %s", p, day, exp)
		}
		day = day.AddDays(1)
	}
}

func TestPlan_Terms(t *testing.T) {
	assert.Equal(t, "Warrior Pass", gym.PlanWarriorPass.Label())
	assert.True(t, gym.PlanAlphaElitePass.DefaultPrice().Equal(decimal.NewFromInt(2099)))
	assert.Equal(t, "30 days", gym.PlanGladiatorPass.RenewalPeriod())
	assert.True(t, gym.PlanGladiatorPass.AllowsCustomExpiry())
	assert.False(t, gym.PlanWarriorPass.AllowsCustomExpiry())
	assert.False(t, gym.Plan("Nope").Valid())

	p, ok := gym.PlanForLabel("Alpha Elite Pass")
	assert.True(t, ok)
	assert.Equal(t, gym.PlanAlphaElitePass, p)
	_, ok = gym.PlanForLabel("Product Sale")
	assert.False(t, ok)
}

// =============================================================================
// STATUS
// =============================================================================

func TestMember_StatusIsRecomputed(t *testing.T) {
	// GIVEN: A member expiring 2024-02-01
	m := gym.Member{ExpiryDate: generic.MustParseDate("2024-02-01")}

	// THEN: Active strictly before the expiry day starts
	assert.Equal(t, gym.StatusActive, m.Status(time.Date(2024, time.January, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, gym.StatusExpired, m.Status(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, gym.StatusExpired, m.Status(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))

	// AND: Days remaining follows the same clock
	assert.Equal(t, 31, m.DaysRemaining(time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, m.DaysRemaining(time.Date(2024, time.February, 2, 8, 0, 0, 0, time.UTC)))
}

func TestMember_StatusUsesClockLocation(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	m := gym.Member{ExpiryDate: generic.MustParseDate("2024-02-01")}

	// 2024-01-31 17:00 UTC is already Feb 1 in Manila
	now := time.Date(2024, time.January, 31, 17, 0, 0, 0, time.UTC).In(manila)

	assert.Equal(t, gym.StatusExpired, m.Status(now))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestMember_Validate(t *testing.T) {
	valid := gym.Member{
		Name:           "Ana",
		MembershipType: gym.PlanWarriorPass,
		StartDate:      generic.MustParseDate("2024-01-01"),
		ExpiryDate:     generic.MustParseDate("2024-02-01"),
		AmountPaid:     decimal.NewFromInt(799),
		PaymentMethod:  gym.PaymentCash,
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.ExpiryDate = bad.StartDate
	bad.Email = "nope"
	err := bad.Validate()
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestWalkIn_NormalizeAndValidate(t *testing.T) {
	w := gym.WalkIn{Name: "  ", Date: generic.MustParseDate("2024-01-01"), Amount: decimal.NewFromInt(100), PaymentMethod: gym.PaymentGCash}
	w.Normalize()
	assert.Equal(t, gym.DefaultWalkInName, w.Name)
	assert.NoError(t, w.Validate())

	w.Amount = decimal.Zero
	assert.ErrorIs(t, w.Validate(), generic.ErrValidation)
}

func TestCashflowEntry_Validate(t *testing.T) {
	e := gym.CashflowEntry{
		Type: gym.Expense, Source: "Rent", Amount: decimal.NewFromInt(5000),
		Date: generic.MustParseDate("2024-01-01"),
	}
	assert.NoError(t, e.Validate())
	assert.True(t, e.SignedAmount().Equal(decimal.NewFromInt(-5000)))

	e.Source = "Snacks"
	assert.ErrorIs(t, e.Validate(), generic.ErrValidation)

	// Income may use any source
	e.Type = gym.Income
	assert.NoError(t, e.Validate())
}

func TestEntryNotes(t *testing.T) {
	assert.Equal(t, "Membership - Ana", gym.EntryNotes(gym.LinkedMember, "Ana"))
	assert.Equal(t, "Sale", gym.EntryNotes(gym.LinkedSale, ""))

	assert.True(t, gym.NotesMention("Walk-in - Juan Dela Cruz", "juan dela cruz"))
	assert.False(t, gym.NotesMention("Walk-in - Juan", "Pedro"))
	assert.True(t, gym.NotesMention("", "Pedro"))
}

func TestParseLinkedType(t *testing.T) {
	k, err := gym.ParseLinkedType("walkin")
	require.NoError(t, err)
	assert.Equal(t, gym.LinkedWalkIn, k)

	_, err = gym.ParseLinkedType("refund")
	assert.ErrorIs(t, err, generic.ErrUnknownKind)
}

// =============================================================================
// SALES AND INVENTORY
// =============================================================================

func TestSale_Total(t *testing.T) {
	sale := gym.Sale{Items: []gym.SaleItem{
		{ProductName: "Protein Bar", Quantity: 2, Subtotal: decimal.NewFromInt(100)},
		{ProductName: "Shaker Bottle", Quantity: 1, Subtotal: decimal.RequireFromString("249.50")},
	}}

	assert.Equal(t, "349.5", sale.Total().String())
	assert.True(t, (&gym.Sale{}).Total().IsZero())
}

func TestRepository_DeleteItem(t *testing.T) {
	// GIVEN: One product in stock
	ctx := context.Background()
	repo := gym.NewRepository(store.NewMemory())
	item := gym.InventoryItem{ProductName: "Towel", Price: decimal.NewFromInt(120), Stock: 3}
	require.NoError(t, repo.SaveItem(ctx, &item, time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)))

	// WHEN: Deleting it
	require.NoError(t, repo.DeleteItem(ctx, item.ID))

	// THEN: It is gone, and a second delete reports it missing
	_, err := repo.Item(ctx, item.ID)
	assert.True(t, generic.IsNotFound(err))
	err = repo.DeleteItem(ctx, item.ID)
	var nf *generic.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, gym.CollInventory, nf.Collection)
}
