// Package sync implements the idempotent batch-sync core: the operation
// applier, the batch coordinator over the idempotency ledger, and the
// conflict resolver.
package sync

import "errors"

// ErrBatchTransaction marks a batch-fatal failure: the enclosing
// transaction could not be opened or committed. Per-operation failures
// never carry this error; they are reported inside the result list.
var ErrBatchTransaction = errors.New("batch transaction failure")
