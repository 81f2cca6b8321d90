package txn

import "context"

// An ExecutionContext is one goroutine-sized unit of control flow that can
// run at most one active Transaction at a time. Call sites pass the
// ExecutionContext through the call chain rather than relying on hidden
// global state.
type ExecutionContext struct {
	current *Transaction
}

// NewExecutionContext creates an ExecutionContext with no active
// transaction.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{}
}

// Current returns the active transaction, or nil.
func (c *ExecutionContext) Current() *Transaction {
	return c.current
}

// SetCurrent installs txn as the active transaction, replacing any previous
// binding.
func (c *ExecutionContext) SetCurrent(txn *Transaction) {
	c.current = txn
}

// Clear removes the active transaction binding.
func (c *ExecutionContext) Clear() {
	c.current = nil
}

type contextKey struct{}

// NewContext returns a context.Context carrying the execution context, so
// that instrumentation can flow it through standard request plumbing.
func NewContext(parent context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(parent, contextKey{}, ec)
}

// FromContext extracts the execution context, or nil if none is attached.
func FromContext(ctx context.Context) *ExecutionContext {
	ec, _ := ctx.Value(contextKey{}).(*ExecutionContext)
	return ec
}
