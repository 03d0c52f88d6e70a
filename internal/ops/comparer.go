package ops

// Compare matches the source snapshot against the replica snapshot by file
// name. Source files are returned first, in source listing order, flagged as
// StatusNew when the replica has no file of that name and StatusOk when it
// does; content is not looked at here, that is left to the HashGenerator.
// Replica files without a source counterpart follow, flagged StatusNotFound.
func Compare(source, replica *Snapshot) []*EntryInfo {
	out := make([]*EntryInfo, 0, len(source.Entries)+len(replica.Entries))

	for _, info := range source.Entries {
		if replica.Names.Contains(info.Name) {
			info.Status = StatusOk
		} else {
			info.Status = StatusNew
		}
		out = append(out, info)
	}

	for _, info := range replica.Entries {
		if !source.Names.Contains(info.Name) {
			info.Status = StatusNotFound
			out = append(out, info)
		}
	}

	return out
}
