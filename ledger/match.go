package ledger

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// FALLBACK MATCHING - Best-effort search for unlinked legacy entries
// =============================================================================
// Entries written before back-references existed carry no linkedId. They
// can only be found by what they say: type, source, amount, date and the
// party name in the notes. Two real events can coincide exactly, so a
// match is a guess. Callers must treat more than one candidate as
// ambiguous and leave it alone.

// entryCriteria describes the entry a primary record would have produced.
type entryCriteria struct {
	Source string
	Amount decimal.Decimal
	Date   generic.TimePoint
	Party  string
}

// matches reports whether an unlinked entry fits the criteria.
func (c entryCriteria) matches(e gym.CashflowEntry) bool {
	return !e.IsLinked() &&
		!e.Manual &&
		e.Type == gym.Income &&
		e.Source == c.Source &&
		e.Amount.Equal(c.Amount) &&
		e.Date.Equal(c.Date) &&
		gym.NotesMention(e.Notes, c.Party)
}

// fallbackCandidates queries unlinked income entries matching c.
// Entries in exclude were already claimed by the current operation.
func (b base) fallbackCandidates(ctx context.Context, c entryCriteria, exclude map[string]bool) ([]gym.CashflowEntry, error) {
	entries, err := generic.Find[gym.CashflowEntry](ctx, b.Store, gym.CollCashflow,
		generic.Where(gym.FieldType, generic.OpEq, string(gym.Income)).
			Where(gym.FieldSource, generic.OpEq, c.Source).
			Where(gym.FieldDate, generic.OpEq, c.Date.String()).
			Order("createdAt", false))
	if err != nil {
		return nil, err
	}
	var out []gym.CashflowEntry
	for _, e := range entries {
		if exclude[e.ID] || !c.matches(e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// pickBest returns the single best candidate. With several candidates, one
// whose notes explicitly name the party wins; otherwise the match is
// ambiguous.
func pickBest(cands []gym.CashflowEntry, party string) (best *gym.CashflowEntry, ambiguous bool) {
	switch len(cands) {
	case 0:
		return nil, false
	case 1:
		return &cands[0], false
	}
	var named []int
	for i, e := range cands {
		if e.Notes != "" && party != "" && gym.NotesMention(e.Notes, party) {
			named = append(named, i)
		}
	}
	if len(named) == 1 {
		return &cands[named[0]], false
	}
	return nil, true
}

// findFallback runs the search and logs ambiguity.
func (b base) findFallback(ctx context.Context, what string, c entryCriteria, exclude map[string]bool) (*gym.CashflowEntry, []string, error) {
	cands, err := b.fallbackCandidates(ctx, c, exclude)
	if err != nil {
		return nil, nil, err
	}
	best, ambiguous := pickBest(cands, c.Party)
	if ambiguous {
		ids := entryIDs(cands)
		log.Printf("[Ledger] ambiguous fallback for %s: %d unlinked entries match %s %s on %s, leaving %v",
			what, len(cands), c.Source, c.Amount, c.Date, ids)
		return nil, ids, nil
	}
	if best != nil {
		log.Printf("[Ledger] fallback matched unlinked entry %s for %s", best.ID, what)
	}
	return best, nil, nil
}

func entryIDs(entries []gym.CashflowEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
