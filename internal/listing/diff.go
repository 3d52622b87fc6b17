package listing

// Changes holds the classified transitions between two snapshots of a feed.
// Each slice preserves the input order of the new snapshot, and a record
// appears in at most one of them per diff.
type Changes struct {
	New         []Record
	Deactivated []Record
	Reactivated []Record
}

// Empty reports whether the diff produced no transitions at all.
func (c Changes) Empty() bool {
	return len(c.New) == 0 && len(c.Deactivated) == 0 && len(c.Reactivated) == 0
}

// Total returns the number of transitions across all classes.
func (c Changes) Total() int {
	return len(c.New) + len(c.Deactivated) + len(c.Reactivated)
}

// Diff classifies the changes from an old snapshot to a new one.
//
// It is a pure function: no I/O, no clock, deterministic output ordered by
// the new snapshot. Records without an id are invisible to it on both sides.
//
// Classification per new record:
//   - known id, was active, now inactive            -> Deactivated
//   - known id, was inactive, now active+visible    -> Reactivated
//     (only when the feed supports reactivation; feeds that republish ids
//     without meaning it never emit this class)
//   - unknown id, active+visible                    -> New
//   - anything else                                 -> no transition
//
// A freshly seen record that is already inactive or invisible is silently
// dropped; it must never generate a notification.
func Diff(old, latest []Record, supportsReactivation bool) Changes {
	index := make(map[ID]Record, len(old))
	for _, r := range old {
		if !r.HasID() {
			continue
		}
		index[r.ID] = r
	}

	var out Changes
	for _, r := range latest {
		if !r.HasID() {
			continue
		}

		active := r.IsActive()
		visible := r.IsVisible()

		prev, known := index[r.ID]
		if known {
			wasActive := prev.IsActive()
			switch {
			case wasActive && !active:
				out.Deactivated = append(out.Deactivated, r)
			case supportsReactivation && !wasActive && active && visible:
				out.Reactivated = append(out.Reactivated, r)
			}
			continue
		}

		if active && visible {
			out.New = append(out.New, r)
		}
	}
	return out
}
