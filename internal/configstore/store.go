package configstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by ResolveModel when no TestModel exists for the
// requested (mn, option) pair — TestEngine maps this to StationFailure per
// spec.md §4.5 step 1.
var ErrNotFound = errors.New("configstore: no test model for that (mn, option)")

// Store is the abstraction TestEngine depends on, letting Postgres (the
// only production implementation) and Memory (the test double) share a
// contract. TestEngine never sees pgx directly.
type Store interface {
	// ResolveModel fetches the current TestModel for (mn, option).
	ResolveModel(ctx context.Context, mn int64, option string) (*TestModel, error)

	// CreateIteration persists a new, empty Iteration in the Idle state,
	// keyed by dut and the model's revision id.
	CreateIteration(ctx context.Context, dut DUT, revisionID string) (*Iteration, error)

	// CommitIteration writes the completed (or partially completed,
	// Unfinished) Iteration tree in a single transaction. Intermediate
	// step progress is never committed separately — only the final write,
	// per spec.md §4.5 "Persistence".
	CommitIteration(ctx context.Context, it *Iteration) error

	// RecentIterations returns the most recent n iteration summaries,
	// newest first, for HistoryGetAllMessage.
	RecentIterations(ctx context.Context, n int) ([]*Iteration, error)

	// RecordConfigUpdate appends one row to the AppConfigUpdate audit log.
	RecordConfigUpdate(ctx context.Context, u AppConfigUpdate) error
}
