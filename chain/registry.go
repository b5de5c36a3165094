// Package chain implements the verifier state machine: replaying a
// rootdir's block triples in order, checking every invariant the
// original pyomcore implementation checks, and dispatching each
// action to the handler registered for its type in chain/actions.
package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/toddfratello/pyomcore/block"
)

// Context is passed to every action Handler: the verifier whose state
// the action mutates, and the block-level facts (index, timestamp) an
// action needs but doesn't carry itself.
type Context struct {
	V              *Verifier
	BlockIdx       int64
	BlockTimestamp time.Time
}

// Handler verifies and applies one action against ctx.V. Receiving the
// concrete action requires a type assertion inside the handler — the
// registry only guarantees the ActionType used to look it up matches.
type Handler func(ctx *Context, action block.Action) error

// Registry maps ActionTypes to Handlers. Thread-safe for concurrent
// registration, mirroring how the wider module registers per-kind
// handlers from independent init() functions.
type Registry struct {
	mu       sync.RWMutex
	handlers map[block.ActionType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[block.ActionType]Handler)}
}

// Register associates typ with h. Panics on duplicate registration,
// since the action set is closed and a duplicate means a programming
// mistake, not a runtime condition to recover from.
func (r *Registry) Register(typ block.ActionType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[typ]; exists {
		panic(fmt.Sprintf("chain: handler already registered for action %q", typ))
	}
	r.handlers[typ] = h
}

// Execute dispatches action to the handler registered for typ.
func (r *Registry) Execute(typ block.ActionType, ctx *Context, action block.Action) error {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("chain: no handler registered for action %q", typ)
	}
	return h(ctx, action)
}

// globalRegistry is the package-level singleton chain/actions registers
// into from each action file's init().
var globalRegistry = NewRegistry()

// Register adds a handler to the global registry. Action implementation
// files call this from init() to self-register.
func Register(typ block.ActionType, h Handler) {
	globalRegistry.Register(typ, h)
}
