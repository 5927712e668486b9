// Package dotlock provides advisory locks on files shared between hosts,
// including over NFS where fcntl and flock locks are unreliable.
//
// A lock on path is represented by the file "<path>.lock". Acquiring it
// never needs anything beyond hard links, so any POSIX filesystem works.
//
// # Holding a lock
//
// Locks that are not refreshed within ValidLockAge are treated as stale
// and taken over by waiters. A holder that works for longer must call
// Refresh periodically, e.g. every third of ValidLockAge:
//
//	l, err := dotlock.New("/nfs/shared/queue.db")
//	if err != nil {
//	    return err
//	}
//	defer l.Close()
//	if err := l.Acquire(ctx); err != nil {
//	    return err
//	}
//	// ... work, calling l.Refresh() in between ...
//
// For short critical sections With acquires, runs a function and
// releases on every exit path:
//
//	err := dotlock.With(ctx, path, func(l *dotlock.Lock) error {
//	    return appendRecord(path)
//	})
//
// # Guarantees
//
//   - Only one engine holds a lock at a time, as long as every holder
//     refreshes in time.
//   - A holder whose lock was taken over finds out through IsLocked or a
//     failing Refresh (ErrNotLocked). Release never removes a lock held by
//     someone else.
//   - Waiters are not queued. Under heavy contention use TryWith or
//     AcquireN with an attempt limit.
//
// A Lock must not be shared between goroutines that each expect to hold it;
// create one Lock per independent caller.
package dotlock
