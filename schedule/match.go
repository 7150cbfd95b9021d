package schedule

import "time"

// FindActiveEntry returns the first entry whose day equals now's day and
// whose match window [Start, Start+MatchWindow) contains now. The boolean is
// false when no class is currently active.
//
// Tie-break: overlapping entries resolve to the first match in schedule
// order. Entries spanning midnight are not supported.
func FindActiveEntry(set Set, now time.Time) (Entry, bool) {
	nowMin := minuteOf(now)
	windowMin := MinuteOfDay(MatchWindow / time.Minute)

	for _, e := range set {
		if e.Day != now.Weekday() {
			continue
		}
		if nowMin >= e.Start && nowMin < e.Start+windowMin {
			return e, true
		}
	}
	return Entry{}, false
}

// NextEntry returns the next entry starting strictly after now on the same
// day. Used for one-shot pause targeting and idle logging; lookahead does
// not cross into the following day, matching how users think about "my next
// class" when talking to the bot.
func NextEntry(set Set, now time.Time) (Entry, bool) {
	nowMin := minuteOf(now)

	var best Entry
	found := false
	for _, e := range set {
		if e.Day != now.Weekday() || e.Start <= nowMin {
			continue
		}
		if !found || e.Start < best.Start {
			best = e
			found = true
		}
	}
	return best, found
}
