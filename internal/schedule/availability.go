package schedule

import "time"

// ComputeFreeIntervals produces candidate work windows for every weekday in
// [rangeStart, rangeEnd], in the policy timezone. Weekends yield nothing. A
// configured break splits each day into a morning and an afternoon interval.
//
// Existing busy events are NOT subtracted here; the conflict gate handles
// collisions once a concrete slot is chosen. See the package comment.
func ComputeFreeIntervals(rangeStart, rangeEnd time.Time, p WorkPolicy) []FreeInterval {
	if !rangeEnd.After(rangeStart) {
		return nil
	}

	loc := p.Location()
	day := midnight(rangeStart.In(loc))
	last := midnight(rangeEnd.In(loc))

	var out []FreeInterval
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, dayWindows(day, p)...)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func dayWindows(day time.Time, p WorkPolicy) []FreeInterval {
	workStart := p.WorkStart.On(day)
	workEnd := p.WorkEnd.On(day)

	if p.BreakStart == nil || p.BreakEnd == nil {
		if workEnd.After(workStart) {
			return []FreeInterval{{Start: workStart, End: workEnd}}
		}
		return nil
	}

	var out []FreeInterval
	if bs := p.BreakStart.On(day); bs.After(workStart) {
		out = append(out, FreeInterval{Start: workStart, End: bs})
	}
	if be := p.BreakEnd.On(day); workEnd.After(be) {
		out = append(out, FreeInterval{Start: be, End: workEnd})
	}
	return out
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
