package mailbox

import (
	"cmp"
	"slices"
)

// sortMessages orders messages by timestamp, breaking ties by id.
func sortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
