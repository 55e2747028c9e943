package txn

import "context"

// ctxKey is an unexported type so this package's context value never
// collides with keys set by other packages (the standard Go idiom for
// context.WithValue keys).
type ctxKey struct{}

// bound holds the transaction bound to the currently executing task,
// rendered as a context.Context value instead of goroutine-local
// storage since that is the idiomatic Go form of the same capability
// and composes with the cancellation upper layers already thread
// through calls.
type bound[K comparable] struct {
	ro *ReadOnlyTxn[K]
	rw *ReadWriteTxn[K]
}

func withBound[K comparable](ctx context.Context, b *bound[K]) context.Context {
	return context.WithValue(ctx, ctxKey{}, b)
}

func boundFrom[K comparable](ctx context.Context) (*bound[K], bool) {
	b, ok := ctx.Value(ctxKey{}).(*bound[K])
	return b, ok
}
