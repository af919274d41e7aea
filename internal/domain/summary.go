package domain

import (
	"sort"
	"time"
)

// DailySummary aggregates one calendar day of a ledger.
type DailySummary struct {
	Date             time.Time
	TotalIn          Money
	TotalOut         Money
	NetChange        Money
	EndingBalance    Money
	TransactionCount int
}

// Summarize groups entries by the local calendar day of OccurredAt, newest
// day first. EndingBalance is the balance after the day's last entry by
// sequence.
func Summarize(entries []*Entry, loc *time.Location) []DailySummary {
	ordered := make([]*Entry, len(entries))
	copy(ordered, entries)
	SortBySequence(ordered)

	byDay := make(map[string]*DailySummary)
	for _, e := range ordered {
		day := StartOfDay(e.OccurredAt, loc)
		key := day.Format(DateLayout)
		s, ok := byDay[key]
		if !ok {
			s = &DailySummary{Date: day}
			byDay[key] = s
		}

		if e.Type.Increases() {
			s.TotalIn = s.TotalIn.Add(e.Amount)
		} else {
			s.TotalOut = s.TotalOut.Add(e.Amount)
		}
		s.TransactionCount++
		s.EndingBalance = e.BalanceAfter
	}

	out := make([]DailySummary, 0, len(byDay))
	for _, s := range byDay {
		s.NetChange = s.TotalIn.Sub(s.TotalOut)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// Flow is the in/out movement of a ledger over some period.
type Flow struct {
	In  Money
	Out Money
	Net Money
}

// FlowOf sums the movement of entries.
func FlowOf(entries []*Entry) Flow {
	var f Flow
	for _, e := range entries {
		if e.Type.Increases() {
			f.In = f.In.Add(e.Amount)
		} else {
			f.Out = f.Out.Add(e.Amount)
		}
	}
	f.Net = f.In.Sub(f.Out)
	return f
}
