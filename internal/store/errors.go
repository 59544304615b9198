package store

import "errors"

// ErrNotFound is returned by single-row reads that find nothing. It is
// never returned by CAS writes - those report a false/zero result instead,
// since "no row matched" is their normal losing branch, not a fault.
var ErrNotFound = errors.New("store: not found")

// ErrNotPending is returned by CancelTask when the task exists but is no
// longer PENDING.
var ErrNotPending = errors.New("store: task is not pending")
