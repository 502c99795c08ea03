// Package aggregate holds the pure reductions over the event log. Every
// function takes a snapshot slice and derives its result on each call;
// nothing here is persisted or cached.
package aggregate

import (
	"sort"

	"tipstream/internal/domain"
)

// Tips filters a raw event snapshot down to the tip-sent records the
// rest of the read surface consumes, preserving insertion order.
func Tips(events []domain.TipEvent) []domain.TipEvent {
	out := make([]domain.TipEvent, 0, len(events))
	for i := range events {
		if events[i].Kind == domain.KindTipSent {
			out = append(out, events[i])
		}
	}
	return out
}

// Recent returns a most-recent-first copy (insertion order reversed).
func Recent(events []domain.TipEvent) []domain.TipEvent {
	out := make([]domain.TipEvent, len(events))
	for i := range events {
		out[len(events)-1-i] = events[i]
	}
	return out
}

// Page applies offset/limit to an already ordered slice and returns the
// page along with the total qualifying count. Negative values clamp to
// zero; bounds beyond the slice yield an empty page, never an error.
func Page(events []domain.TipEvent, offset, limit int) ([]domain.TipEvent, int) {
	total := len(events)
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= total {
		return []domain.TipEvent{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return events[offset:end], total
}

// ForUser keeps tips where addr is the sender or the recipient.
func ForUser(events []domain.TipEvent, addr string) []domain.TipEvent {
	out := make([]domain.TipEvent, 0)
	for i := range events {
		if events[i].Kind == domain.KindTipSent && events[i].Involves(addr) {
			out = append(out, events[i])
		}
	}
	return out
}

// FindByTipID returns the first tip-sent event with the given id in
// stored order. Uniqueness of tipId is assumed upstream, not enforced
// here, so first-match is the deterministic tie-break.
func FindByTipID(events []domain.TipEvent, tipID uint64) (domain.TipEvent, bool) {
	for i := range events {
		if events[i].Kind == domain.KindTipSent && events[i].TipID == tipID {
			return events[i], true
		}
	}
	return domain.TipEvent{}, false
}

// Stats reduces the snapshot to platform totals. Correct for an empty
// snapshot: all fields zero.
func Stats(events []domain.TipEvent) domain.AggregateStats {
	senders := make(map[string]struct{})
	recipients := make(map[string]struct{})

	var stats domain.AggregateStats
	for i := range events {
		ev := &events[i]
		if ev.Kind != domain.KindTipSent {
			continue
		}
		stats.TotalTips++
		stats.TotalVolume += ev.AmountOrZero()
		stats.TotalFees += ev.FeeOrZero()
		if ev.Sender != "" {
			senders[ev.Sender] = struct{}{}
		}
		if ev.Recipient != "" {
			recipients[ev.Recipient] = struct{}{}
		}
	}
	stats.UniqueSenders = len(senders)
	stats.UniqueRecipients = len(recipients)
	return stats
}

// Leaderboard folds every tip twice, crediting the sender leg and the
// recipient leg, and ranks addresses by combined volume.
func Leaderboard(events []domain.TipEvent) []domain.LeaderboardEntry {
	byAddr := make(map[string]*domain.LeaderboardEntry)
	entry := func(addr string) *domain.LeaderboardEntry {
		e, ok := byAddr[addr]
		if !ok {
			e = &domain.LeaderboardEntry{Address: addr}
			byAddr[addr] = e
		}
		return e
	}

	for i := range events {
		ev := &events[i]
		if ev.Kind != domain.KindTipSent {
			continue
		}
		if ev.Sender != "" {
			s := entry(ev.Sender)
			s.TipsSent++
			s.TotalSent += ev.AmountOrZero()
		}
		if ev.Recipient != "" {
			r := entry(ev.Recipient)
			r.TipsReceived++
			r.TotalReceived += ev.AmountOrZero()
		}
	}

	out := make([]domain.LeaderboardEntry, 0, len(byAddr))
	for _, e := range byAddr {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		vi := out[i].TotalSent + out[i].TotalReceived
		vj := out[j].TotalSent + out[j].TotalReceived
		if vi != vj {
			return vi > vj
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// CategoryTally is the per-category rollup derived from tip-categorized
// events correlated to their tip-sent twin by tipId.
type CategoryTally struct {
	Category uint64 `json:"category"`
	Tips     uint64 `json:"tips"`
	Volume   uint64 `json:"volume"`
}

// Categories correlates tip-categorized events to tip-sent events by
// tipId and tallies count and volume per category. Categorized events
// without a matching tip still count, with zero volume.
func Categories(events []domain.TipEvent) []CategoryTally {
	amounts := make(map[uint64]uint64)
	for i := range events {
		if events[i].Kind == domain.KindTipSent {
			if _, ok := amounts[events[i].TipID]; !ok {
				amounts[events[i].TipID] = events[i].AmountOrZero()
			}
		}
	}

	tallies := make(map[uint64]*CategoryTally)
	for i := range events {
		ev := &events[i]
		if ev.Kind != domain.KindTipCategorized || ev.Category == nil {
			continue
		}
		tl, ok := tallies[*ev.Category]
		if !ok {
			tl = &CategoryTally{Category: *ev.Category}
			tallies[*ev.Category] = tl
		}
		tl.Tips++
		tl.Volume += amounts[ev.TipID]
	}

	out := make([]CategoryTally, 0, len(tallies))
	for _, tl := range tallies {
		out = append(out, *tl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
