package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type entry struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Source   string `json:"source"`
	Amount   string `json:"amount"`
	Date     string `json:"date"`
	LinkedID string `json:"linkedId,omitempty"`
	Auto     bool   `json:"autoGenerated,omitempty"`
}

func seed(t *testing.T, s *sqlite.Store) {
	err := s.Commit(context.Background(), generic.NewBatch().
		Set("cashflow", "e-1", entry{ID: "e-1", Type: "income", Source: "Day Pass", Amount: "100", Date: "2024-01-02", LinkedID: "w-1", Auto: true}).
		Set("cashflow", "e-2", entry{ID: "e-2", Type: "income", Source: "Product Sale", Amount: "100", Date: "2024-01-05"}).
		Set("cashflow", "e-3", entry{ID: "e-3", Type: "expense", Source: "Rent", Amount: "9000", Date: "2023-12-31"}).
		Set("members", "m-1", map[string]any{"id": "m-1", "name": "Ana"}))
	require.NoError(t, err)
}

// =============================================================================
// READS
// =============================================================================

func TestSQLite_GetAndNotFound(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	doc, err := s.Get(ctx, "members", "m-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"m-1","name":"Ana"}`, string(doc.Data))

	// Same id in another collection does not leak
	_, err = s.Get(ctx, "cashflow", "m-1")
	assert.True(t, generic.IsNotFound(err))
}

func TestSQLite_QueryFilters(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	cases := []struct {
		name  string
		query generic.Query
		want  []string
	}{
		{"all ordered by date", generic.All().Order("date", false), []string{"e-3", "e-1", "e-2"}},
		{"desc", generic.All().Order("date", true), []string{"e-2", "e-1", "e-3"}},
		{"equality", generic.Where("type", generic.OpEq, "income").Order("date", false), []string{"e-1", "e-2"}},
		{"range", generic.All().In(generic.Period{
			Start: generic.MustParseDate("2024-01-01"),
			End:   generic.MustParseDate("2024-01-03"),
		}.Filters("date")...), []string{"e-1"}},
		{"linked", generic.Where("linkedId", generic.OpEq, "w-1"), []string{"e-1"}},
		{"not equal includes missing", generic.Where("linkedId", generic.OpNeq, "w-1").Order("date", false), []string{"e-3", "e-2"}},
		{"bool", generic.Where("autoGenerated", generic.OpEq, true), []string{"e-1"}},
		{"limit", generic.All().Order("date", false).Take(2), []string{"e-3", "e-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := s.Query(ctx, "cashflow", tc.query)
			require.NoError(t, err)
			got := make([]string, len(docs))
			for i, d := range docs {
				got[i] = d.ID
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSQLite_RejectsBadFieldNames(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Query(context.Background(), "cashflow", generic.Where("x') OR 1=1 --", generic.OpEq, "y"))

	assert.Error(t, err)
}

// =============================================================================
// WRITES
// =============================================================================

func TestSQLite_BatchRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, generic.NewBatch().
		Set("inventory", "i-1", map[string]any{"id": "i-1", "stock": 1})))

	// WHEN: A batch that writes a sale and then overdraws stock
	err := s.Commit(ctx, generic.NewBatch().
		Set("sales", "s-1", map[string]any{"id": "s-1"}).
		Increment("inventory", "i-1", "stock", -5))

	// THEN: The whole batch is rolled back
	assert.ErrorIs(t, err, generic.ErrNegativeCounter)
	n, err := s.Count(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_UpdateAndIncrement(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, generic.NewBatch().
		Set("inventory", "i-1", map[string]any{"id": "i-1", "stock": 1})))

	err := s.Commit(ctx, generic.NewBatch().
		Update("cashflow", "e-2", map[string]any{"linkedId": "s-9", "linkedType": "sale"}).
		Increment("inventory", "i-1", "stock", 4).
		Delete("cashflow", "e-3"))
	require.NoError(t, err)

	docs, err := s.Query(ctx, "cashflow", generic.Where("linkedId", generic.OpEq, "s-9"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "e-2", docs[0].ID)

	doc, err := s.Get(ctx, "inventory", "i-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"i-1","stock":5}`, string(doc.Data))

	n, err := s.Count(ctx, "cashflow")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_EmptyBatch(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.Commit(context.Background(), generic.NewBatch()), generic.ErrEmptyBatch)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gym.db")
	ctx := context.Background()

	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, generic.NewBatch().Set("members", "m-1", map[string]any{"id": "m-1"})))
	require.NoError(t, s.Close())

	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, "members", "m-1")
	assert.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	_, err = s.Get(ctx, "members", "m-1")
	assert.True(t, generic.IsNotFound(err))
}

func TestSQLite_OrdersByInstant(t *testing.T) {
	// GIVEN: Runs stamped in the same second, with and without a fraction
	s := newTestStore(t)
	ctx := context.Background()
	whole := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Commit(ctx, generic.NewBatch().
		Set("runs", "r-2", map[string]any{"id": "r-2", "startedAt": whole.Add(500 * time.Millisecond)}).
		Set("runs", "r-3", map[string]any{"id": "r-3", "startedAt": whole.Add(time.Second)}).
		Set("runs", "r-1", map[string]any{"id": "r-1", "startedAt": whole})))

	// WHEN: Listing oldest first
	docs, err := s.Query(ctx, "runs", generic.All().Order("startedAt", false))
	require.NoError(t, err)

	// THEN: Time order, not string order
	got := make([]string, len(docs))
	for i, d := range docs {
		got[i] = d.ID
	}
	assert.Equal(t, []string{"r-1", "r-2", "r-3"}, got)
}
