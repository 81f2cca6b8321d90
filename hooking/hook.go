// Package hooking provides the hook registration and fan-out mechanism that
// connects the transaction core to external listeners. The agent is a
// hookable domain; downstream subsystems (recorders, dashboards, exporters)
// attach hooks to observe transaction lifecycle events.
package hooking

import "log"

// HookPos is a position in the transaction lifecycle that hooks can attach
// to.
type HookPos struct {
	Name string
}

// Positions invoked by the transaction core.
var (
	HookPosTxnStart    = &HookPos{Name: "TxnStart"}
	HookPosTxnFinished = &HookPos{Name: "TxnFinished"}
)

// HookCtx holds all the information about the site that a hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accepts Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// A HookableBase provides some utility function for other types that
// implement the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, existing := range h.hookList {
		if existing == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the registered Hooks. A panicking hook is recovered
// and logged so that one listener cannot take down the instrumented
// application or starve the remaining listeners.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		invokeOne(hook, ctx)
	}
}

func invokeOne(hook Hook, ctx HookCtx) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("txcore: hook at %s panicked: %v", ctx.Pos.Name, r)
		}
	}()

	hook.Func(ctx)
}
