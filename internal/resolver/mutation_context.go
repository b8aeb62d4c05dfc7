package resolver

import (
	"context"
	"sync"

	"graphdb-graphql/internal/graphdb"
)

type mutationContextKey struct{}

// MutationContext holds the transaction shared by every mutation field of
// one request. The first recorded failure decides that the transaction is
// rolled back and makes later fields fail fast.
type MutationContext struct {
	tx        graphdb.Tx
	err       error
	finalized bool
	committed bool
	mu        sync.Mutex
}

func NewMutationContext(tx graphdb.Tx) *MutationContext {
	return &MutationContext{tx: tx}
}

func (mc *MutationContext) Tx() graphdb.Tx {
	return mc.tx
}

// MarkError records err as the request's failure. Only the first call wins.
func (mc *MutationContext) MarkError(err error) {
	if err == nil {
		return
	}
	mc.mu.Lock()
	if mc.err == nil {
		mc.err = err
	}
	mc.mu.Unlock()
}

// Err returns the first recorded failure.
func (mc *MutationContext) Err() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.err
}

// Committed reports whether Finalize committed the transaction.
func (mc *MutationContext) Committed() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.committed
}

// Finalize commits or rolls back the transaction based on the error state.
// The lock is held throughout so MarkError cannot slip in between the check
// and the commit.
func (mc *MutationContext) Finalize(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.finalized {
		return nil
	}
	mc.finalized = true

	if mc.err != nil {
		return mc.tx.Rollback(context.WithoutCancel(ctx))
	}
	if err := mc.tx.Commit(ctx); err != nil {
		return normalizeCommitError(err)
	}
	mc.committed = true
	return nil
}

func WithMutationContext(ctx context.Context, mc *MutationContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, mutationContextKey{}, mc)
}

func MutationContextFromContext(ctx context.Context) *MutationContext {
	if ctx == nil {
		return nil
	}
	mc, _ := ctx.Value(mutationContextKey{}).(*MutationContext)
	return mc
}
