package ddbload

// FoldWriteOutcomes merges the unprocessed requests of one round into a
// single map. Per-table lists are concatenated in outcome order and tables
// without leftovers are left out.
func FoldWriteOutcomes(outcomes []WriteOutcome) BatchWriteMap {
	folded := BatchWriteMap{}
	for _, o := range outcomes {
		folded.merge(o.Unprocessed)
	}
	return folded
}

// FoldReadOutcomes flattens the items of one round in outcome order and
// merges the unprocessed keys the same way FoldWriteOutcomes does. The read
// options of the first outcome carrying a table are kept for that table.
func FoldReadOutcomes(outcomes []ReadOutcome) ([]Item, BatchReadMap) {
	var items []Item
	folded := BatchReadMap{}
	for _, o := range outcomes {
		items = append(items, o.Items...)
		folded.merge(o.Unprocessed)
	}
	return items, folded
}

// pendingWrites is FoldWriteOutcomes where a failed call hands back its
// whole batch. Nothing a round did not confirm is lost.
func pendingWrites(outcomes []WriteOutcome) BatchWriteMap {
	folded := BatchWriteMap{}
	for _, o := range outcomes {
		if o.Err != nil {
			folded.merge(o.Requests)
			continue
		}
		folded.merge(o.Unprocessed)
	}
	return folded
}

// pendingReads is pendingWrites for keys.
func pendingReads(outcomes []ReadOutcome) BatchReadMap {
	folded := BatchReadMap{}
	for _, o := range outcomes {
		if o.Err != nil {
			folded.merge(o.Requests)
			continue
		}
		folded.merge(o.Unprocessed)
	}
	return folded
}
