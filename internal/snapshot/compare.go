package snapshot

// Change describes how a run differs from the previous one.
type Change struct {
	First      bool
	Changed    bool
	FlagDelta  int
	GroupDelta int
}

func Compare(previous *Summary, current Summary) Change {
	if previous == nil {
		return Change{First: true, Changed: current.FlagCount > 0 || current.DuplicateGroups > 0}
	}
	return Change{
		Changed:    previous.Fingerprint != current.Fingerprint,
		FlagDelta:  current.FlagCount - previous.FlagCount,
		GroupDelta: current.DuplicateGroups - previous.DuplicateGroups,
	}
}
