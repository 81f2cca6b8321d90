package monitoring

import (
	"sync"

	"github.com/sarchlab/txcore/hooking"
	"github.com/sarchlab/txcore/txn"
)

// A RecentRing keeps the most recently finished transactions. It is a hook:
// attach it to an agent and it fills itself from the transaction-finished
// events.
type RecentRing struct {
	mu       sync.Mutex
	payloads []*txn.Payload
	capacity int
}

// NewRecentRing creates a RecentRing that retains up to capacity payloads.
func NewRecentRing(capacity int) *RecentRing {
	if capacity <= 0 {
		capacity = 64
	}

	return &RecentRing{capacity: capacity}
}

// Func records the finished transaction carried by the hook context.
func (r *RecentRing) Func(ctx hooking.HookCtx) {
	if ctx.Pos != hooking.HookPosTxnFinished {
		return
	}

	p, ok := ctx.Item.(*txn.Payload)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.payloads = append(r.payloads, p)
	if len(r.payloads) > r.capacity {
		r.payloads = r.payloads[len(r.payloads)-r.capacity:]
	}
}

// All returns the retained payloads, newest first.
func (r *RecentRing) All() []*txn.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*txn.Payload, len(r.payloads))
	for i, p := range r.payloads {
		out[len(r.payloads)-1-i] = p
	}

	return out
}

// Find returns the retained payload with the given GUID, or nil.
func (r *RecentRing) Find(guid string) *txn.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.payloads) - 1; i >= 0; i-- {
		if r.payloads[i].GUID == guid {
			return r.payloads[i]
		}
	}

	return nil
}
