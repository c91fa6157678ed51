package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// CLEANUP SCANNER - Operator-triggered repair of ledger drift
// =============================================================================
// For one kind of primary record, every income entry that belongs to that
// kind is examined:
//
//   linked, target alive    -> left alone
//   linked, target gone     -> deleted (orphan)
//   unlinked, one match     -> relinked to that record
//   unlinked, no match      -> deleted, unless it matches a record of a
//                              kind sharing the same source label (skipped)
//   unlinked, several       -> left alone, reported as ambiguous
//
// Only records without a live entry of their own ("unclaimed") are offered
// to the matcher, and each can be claimed once per run. Running the scanner
// twice with no writes in between changes nothing the second time.

// Action names used in CleanupAction.
const (
	ActionDeletedOrphan    = "deleted_orphan"
	ActionDeletedUnmatched = "deleted_unmatched"
	ActionRelinked         = "relinked"
	ActionAmbiguous        = "ambiguous"
	ActionSkipped          = "skipped"
)

// CleanupAction is one decision taken by the scanner.
type CleanupAction struct {
	EntryID    string   `json:"entryId"`
	Action     string   `json:"action"`
	LinkedID   string   `json:"linkedId,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// CleanupReport is the outcome of one scan.
type CleanupReport struct {
	RunID          string          `json:"runId"`
	Kind           gym.LinkedType  `json:"kind"`
	Scanned        int             `json:"scanned"`
	DeletedOrphans int             `json:"deletedOrphans"`
	Relinked       int             `json:"relinked"`
	Ambiguous      int             `json:"ambiguous"`
	Skipped        int             `json:"skipped"`
	Actions        []CleanupAction `json:"actions"`
}

// Scanner repairs drift between primary records and ledger entries.
type Scanner struct {
	base
}

func NewScanner(store generic.Store, clock generic.Clock) *Scanner {
	return &Scanner{base: newBase(store, clock)}
}

// primary is a record as seen by the matcher.
type primary struct {
	Key      string // document id of the record itself
	LinkID   string // value written to linkedId (member id for renewals)
	Criteria entryCriteria
	Claimed  bool
}

// ScanAll scans every kind in order and stops at the first failure.
func (s *Scanner) ScanAll(ctx context.Context) ([]CleanupReport, error) {
	reports := make([]CleanupReport, 0, len(gym.LinkedTypes))
	for _, kind := range gym.LinkedTypes {
		rep, err := s.Scan(ctx, kind)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *rep)
	}
	return reports, nil
}

// Scan repairs one kind and records a CleanupRun in the same batch.
func (s *Scanner) Scan(ctx context.Context, kind gym.LinkedType) (*CleanupReport, error) {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := gym.ParseLinkedType(string(kind)); err != nil {
		return nil, err
	}
	started := s.now()

	entries, err := generic.Find[gym.CashflowEntry](ctx, s.Store, gym.CollCashflow,
		generic.Where(gym.FieldType, generic.OpEq, string(gym.Income)).Order("createdAt", false))
	if err != nil {
		return nil, err
	}
	live := make(map[string]gym.CashflowEntry, len(entries))
	for _, e := range entries {
		live[e.ID] = e
	}

	prims, err := s.primaries(ctx, kind, live)
	if err != nil {
		return nil, err
	}
	targets, err := s.targets(ctx, kind, prims)
	if err != nil {
		return nil, err
	}
	sources := sourcesOf(kind)

	rep := &CleanupReport{Kind: kind, Actions: []CleanupAction{}}
	b := generic.NewBatch()
	var siblings []primary

	for _, e := range entries {
		switch {
		case e.IsLinked() && e.LinkedType == kind:
			rep.Scanned++
			if targets[e.LinkedID] {
				continue
			}
			b.Delete(gym.CollCashflow, e.ID)
			rep.DeletedOrphans++
			rep.Actions = append(rep.Actions, CleanupAction{
				EntryID: e.ID, Action: ActionDeletedOrphan, LinkedID: e.LinkedID,
				Reason: fmt.Sprintf("%s %s no longer exists", kind, e.LinkedID),
			})

		case !e.IsLinked() && !e.Manual && sources[e.Source]:
			rep.Scanned++
			matched := matchPrimaries(prims, e)
			switch {
			case len(matched) == 1:
				p := matched[0]
				p.Claimed = true
				s.queueRelink(b, kind, e, p)
				rep.Relinked++
				rep.Actions = append(rep.Actions, CleanupAction{
					EntryID: e.ID, Action: ActionRelinked, LinkedID: p.LinkID,
				})

			case len(matched) > 1:
				ids := make([]string, len(matched))
				for i, p := range matched {
					ids[i] = p.Key
				}
				rep.Ambiguous++
				rep.Actions = append(rep.Actions, CleanupAction{
					EntryID: e.ID, Action: ActionAmbiguous, Candidates: ids,
					Reason: fmt.Sprintf("%d %s records match", len(matched), kind),
				})
				log.Printf("[Cleanup] ambiguous: entry %s (%s %s on %s) matches %s records %v, leaving it",
					e.ID, e.Source, e.Amount, e.Date, kind, ids)

			default:
				if siblings == nil {
					if siblings, err = s.siblings(ctx, kind, live); err != nil {
						return nil, err
					}
				}
				if other := matchAny(siblings, e); other != "" {
					rep.Skipped++
					rep.Actions = append(rep.Actions, CleanupAction{
						EntryID: e.ID, Action: ActionSkipped,
						Reason: "matches " + other,
					})
					continue
				}
				b.Delete(gym.CollCashflow, e.ID)
				rep.DeletedOrphans++
				rep.Actions = append(rep.Actions, CleanupAction{
					EntryID: e.ID, Action: ActionDeletedUnmatched,
					Reason: "no " + string(kind) + " record matches",
				})
			}
		}
	}

	rep.RunID = s.Store.NewID()
	run := gym.CleanupRun{
		ID:             rep.RunID,
		Kind:           kind,
		Scanned:        rep.Scanned,
		DeletedOrphans: rep.DeletedOrphans,
		Relinked:       rep.Relinked,
		Ambiguous:      rep.Ambiguous,
		Skipped:        rep.Skipped,
		Operator:       op.Label(),
		StartedAt:      started,
		CompletedAt:    s.now(),
	}
	b.Set(gym.CollCleanupRuns, run.ID, run)
	if err := s.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to commit %s cleanup: %w", kind, err)
	}

	log.Printf("[Cleanup] %s: scanned %d, deleted %d, relinked %d, ambiguous %d, skipped %d (by %s)",
		kind, rep.Scanned, rep.DeletedOrphans, rep.Relinked, rep.Ambiguous, rep.Skipped, op.Label())
	return rep, nil
}

// queueRelink points an unlinked entry at its record.
func (s *Scanner) queueRelink(b *generic.Batch, kind gym.LinkedType, e gym.CashflowEntry, p *primary) {
	b.Update(gym.CollCashflow, e.ID, map[string]any{
		gym.FieldLinkedID:   p.LinkID,
		gym.FieldLinkedType: kind,
		"updatedAt":         s.now(),
	})
	if kind == gym.LinkedRenewal {
		b.Update(gym.CollRenewals, p.Key, map[string]any{"cashflowEntryId": e.ID})
	}
}

// matchPrimaries returns the unclaimed records e could belong to. With
// several, records named explicitly in the notes win.
func matchPrimaries(prims []*primary, e gym.CashflowEntry) []*primary {
	var out []*primary
	for _, p := range prims {
		if !p.Claimed && p.Criteria.matches(e) {
			out = append(out, p)
		}
	}
	if len(out) <= 1 || e.Notes == "" {
		return out
	}
	var named []*primary
	for _, p := range out {
		if p.Criteria.Party != "" && gym.NotesMention(e.Notes, p.Criteria.Party) {
			named = append(named, p)
		}
	}
	if len(named) == 1 {
		return named
	}
	return out
}

// matchAny returns a description of the first record matching e, or "".
func matchAny(prims []primary, e gym.CashflowEntry) string {
	for _, p := range prims {
		if p.Criteria.matches(e) {
			return p.Key
		}
	}
	return ""
}

// sourcesOf lists the entry sources a kind can produce.
func sourcesOf(kind gym.LinkedType) map[string]bool {
	out := make(map[string]bool)
	switch kind {
	case gym.LinkedMember, gym.LinkedRenewal:
		for _, l := range gym.PlanLabels() {
			out[l] = true
		}
	case gym.LinkedWalkIn:
		out[gym.SourceWalkIn] = true
	case gym.LinkedSale:
		out[gym.SourceSale] = true
	}
	return out
}

// siblingKinds are kinds whose sources overlap with kind.
func siblingKinds(kind gym.LinkedType) []gym.LinkedType {
	var out []gym.LinkedType
	mine := sourcesOf(kind)
	for _, other := range gym.LinkedTypes {
		if other == kind {
			continue
		}
		for src := range sourcesOf(other) {
			if mine[src] {
				out = append(out, other)
				break
			}
		}
	}
	return out
}

// siblings loads the records of every overlapping kind.
func (s *Scanner) siblings(ctx context.Context, kind gym.LinkedType, live map[string]gym.CashflowEntry) ([]primary, error) {
	out := []primary{}
	for _, other := range siblingKinds(kind) {
		prims, err := s.primaries(ctx, other, live)
		if err != nil {
			return nil, err
		}
		for _, p := range prims {
			cp := *p
			cp.Key = string(other) + " " + p.Key
			out = append(out, cp)
		}
	}
	return out, nil
}

// primaries loads every record of kind with its matching criteria.
func (s *Scanner) primaries(ctx context.Context, kind gym.LinkedType, live map[string]gym.CashflowEntry) ([]*primary, error) {
	claimed := make(map[string]bool)
	for _, e := range live {
		if e.IsLinked() && e.LinkedType == kind {
			claimed[e.LinkedID] = true
		}
	}

	var out []*primary
	switch kind {
	case gym.LinkedMember:
		members, err := generic.Find[gym.Member](ctx, s.Store, gym.CollMembers, generic.All().Order("createdAt", false))
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			out = append(out, &primary{
				Key: m.ID, LinkID: m.ID, Claimed: claimed[m.ID],
				Criteria: entryCriteria{Source: m.MembershipType.Label(), Amount: m.AmountPaid, Date: m.StartDate, Party: m.Name},
			})
		}

	case gym.LinkedWalkIn:
		walkIns, err := generic.Find[gym.WalkIn](ctx, s.Store, gym.CollWalkIns, generic.All().Order("createdAt", false))
		if err != nil {
			return nil, err
		}
		for _, w := range walkIns {
			out = append(out, &primary{
				Key: w.ID, LinkID: w.ID, Claimed: claimed[w.ID],
				Criteria: entryCriteria{Source: gym.SourceWalkIn, Amount: w.Amount, Date: w.Date, Party: w.Name},
			})
		}

	case gym.LinkedSale:
		sales, err := generic.Find[gym.Sale](ctx, s.Store, gym.CollSales, generic.All().Order("createdAt", false))
		if err != nil {
			return nil, err
		}
		for _, sl := range sales {
			out = append(out, &primary{
				Key: sl.ID, LinkID: sl.ID, Claimed: claimed[sl.ID],
				Criteria: entryCriteria{Source: gym.SourceSale, Amount: sl.TotalAmount, Date: sl.Date, Party: sl.CustomerName},
			})
		}

	case gym.LinkedRenewal:
		// Renewal entries point at the member, so a renewal payment is
		// claimed through its own cashflowEntryId instead.
		payments, err := generic.Find[gym.RenewalPayment](ctx, s.Store, gym.CollRenewals, generic.All().Order("createdAt", false))
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			e, ok := live[p.CashflowEntryID]
			out = append(out, &primary{
				Key: p.ID, LinkID: p.MemberID,
				Claimed:  ok && e.LinkedType == gym.LinkedRenewal,
				Criteria: entryCriteria{Source: p.MembershipType.Label(), Amount: p.Amount, Date: p.PaymentDate, Party: p.MemberName},
			})
		}
	}
	return out, nil
}

// targets is the set of linkedId values that resolve to a live record.
func (s *Scanner) targets(ctx context.Context, kind gym.LinkedType, prims []*primary) (map[string]bool, error) {
	out := make(map[string]bool, len(prims))
	if kind != gym.LinkedRenewal {
		for _, p := range prims {
			out[p.LinkID] = true
		}
		return out, nil
	}
	docs, err := s.Store.Query(ctx, gym.CollMembers, generic.All())
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = true
	}
	return out, nil
}

func (r CleanupReport) String() string {
	return fmt.Sprintf("%s: scanned=%d deleted=%d relinked=%d ambiguous=%d skipped=%d",
		r.Kind, r.Scanned, r.DeletedOrphans, r.Relinked, r.Ambiguous, r.Skipped)
}
