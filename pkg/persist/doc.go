// Package persist combines the key/value store, the atomic save
// coordinator, and the operation queue into the record-persistence pattern
// the application uses: snapshot now, compensate later.
//
// A Store[T] keeps JSON-encoded records under a key prefix. Every write runs
// as an atomic save transaction that first snapshots the record's current
// value (inside the transaction, under a per-record lock) and registers a
// rollback that restores the snapshot, or deletes the record when the
// write created it. SaveAll extends this to several records with
// all-or-nothing semantics.
//
//	type Roster struct {
//	    Team    string   `json:"team"`
//	    Players []string `json:"players"`
//	}
//
//	rosters, err := persist.New[Roster](store,
//	    persist.WithKeyPrefix("roster:"),
//	    persist.WithQueue(q),
//	)
//
//	// Inline, atomic:
//	err = rosters.Save(ctx, "42", roster)
//
//	// Scheduled: user saves at high priority, auto-save at low.
//	ticket, err := rosters.QueueSave("42", roster, opqueue.PriorityHigh)
//
// Loads submitted through QueueLoad run at critical priority and therefore
// preempt queued background work.
package persist
