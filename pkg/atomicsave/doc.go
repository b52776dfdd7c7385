// Package atomicsave executes ordered save operations with all-or-nothing
// semantics via compensating rollback, giving a non-transactional key/value
// store atomic-looking writes for a single logical record.
//
// A SaveOperation pairs an execute function with an optional rollback that
// undoes it. ExecuteAtomicSave runs the operations in order; the first
// failure stops execution and rolls back every completed operation in
// reverse order. Rollback is best-effort: a rollback that itself fails is
// recorded in the result and logged, and the remaining rollbacks still run.
//
// The call never returns a Go error. All failure detail (which operation
// failed, whether compensation ran, and the outcome of each rollback) lives
// in the returned Result.
//
// # Usage
//
// The typical caller snapshots the record before writing, so the rollback can
// restore the prior value (or delete a freshly created record):
//
//	prev, err := store.Get(ctx, key)
//	existed := err == nil
//
//	op := atomicsave.NewSaveOperation("write-roster",
//	    func(ctx context.Context) ([]byte, error) {
//	        return next, store.Set(ctx, key, next)
//	    },
//	    func(ctx context.Context) error {
//	        if existed {
//	            return store.Set(ctx, key, prev)
//	        }
//	        return store.Delete(ctx, key)
//	    },
//	)
//
//	res := coordinator.ExecuteAtomicSave(ctx, []atomicsave.SaveOperation[[]byte]{op},
//	    atomicsave.WithLockKey(key))
//	if !res.Success {
//	    // res.Err names the failing step; res.Rollbacks reports compensation.
//	}
//
// The snapshot read and the write race when two saves target the same record
// concurrently; WithLockKey serializes saves that declare the same key to
// close that window.
package atomicsave
