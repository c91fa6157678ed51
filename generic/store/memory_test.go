package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/generic/store"
)

type item struct {
	ID    string `json:"id"`
	Name  string `json:"productName"`
	Stock int    `json:"stock"`
}

func TestMemory_CommitAndQuery(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	// GIVEN: Three items written in one batch
	err := s.Commit(ctx, generic.NewBatch().
		Set("inventory", "i-1", item{ID: "i-1", Name: "Towel", Stock: 4}).
		Set("inventory", "i-2", item{ID: "i-2", Name: "Shaker", Stock: 0}).
		Set("inventory", "i-3", item{ID: "i-3", Name: "Bar", Stock: 9}))
	require.NoError(t, err)

	// WHEN: Querying items in stock, by name
	got, err := generic.Find[item](ctx, s, "inventory",
		generic.Where("stock", generic.OpGt, 0).Order("productName", false))
	require.NoError(t, err)

	// THEN: Filtered and ordered
	require.Len(t, got, 2)
	assert.Equal(t, "Bar", got[0].Name)
	assert.Equal(t, "Towel", got[1].Name)

	// AND: Limit applies after ordering
	got, err = generic.Find[item](ctx, s, "inventory", generic.All().Order("stock", true).Take(1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "i-3", got[0].ID)
}

func TestMemory_CommitIsAtomic(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, generic.NewBatch().Set("inventory", "i-1", item{ID: "i-1", Stock: 1})))

	// WHEN: A batch whose last operation takes stock below zero
	err := s.Commit(ctx, generic.NewBatch().
		Set("sales", "s-1", map[string]any{"id": "s-1"}).
		Increment("inventory", "i-1", "stock", -2))

	// THEN: Nothing from the batch is visible
	assert.ErrorIs(t, err, generic.ErrNegativeCounter)
	assert.Equal(t, 0, s.Count("sales"))
	got, err := generic.Load[item](ctx, s, "inventory", "i-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
}

func TestMemory_UpdateMissingFails(t *testing.T) {
	s := store.NewMemory()

	err := s.Commit(context.Background(), generic.NewBatch().Update("members", "m-1", map[string]any{"name": "x"}))

	assert.True(t, generic.IsNotFound(err))
	var nf *generic.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "m-1", nf.ID)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, generic.NewBatch().Set("inventory", "i-1", item{ID: "i-1", Stock: 1})))

	doc, err := s.Get(ctx, "inventory", "i-1")
	require.NoError(t, err)
	doc.Data[0] = 'X'

	again, err := s.Get(ctx, "inventory", "i-1")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), again.Data[0])
}

func TestMemory_FailCommitAndReset(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailCommit = func(*generic.Batch) error { return boom }
	assert.ErrorIs(t, s.Commit(ctx, generic.NewBatch().Delete("x", "1")), boom)

	s.FailCommit = nil
	require.NoError(t, s.Commit(ctx, generic.NewBatch().Set("x", "1", map[string]any{"id": "1"})))
	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, 0, s.Count("x"))

	assert.NotEqual(t, s.NewID(), s.NewID())
}
