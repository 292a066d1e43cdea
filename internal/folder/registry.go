package folder

import (
	"fmt"
	"slices"
	"sync"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// Registry maps content types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.ContentType]Handler
}

// NewRegistry returns a registry holding hs.
func NewRegistry(hs ...Handler) *Registry {
	r := &Registry{handlers: make(map[models.ContentType]Handler)}
	for _, h := range hs {
		r.Register(h)
	}
	return r
}

// Register adds h. It panics when h's content type is invalid or already
// taken: both are wiring mistakes.
func (r *Registry) Register(h Handler) {
	ct := h.ContentType()
	if !ct.Valid() {
		panic(fmt.Sprintf("folder: handler for invalid content type %d", uint8(ct)))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[ct]; dup {
		panic(fmt.Sprintf("folder: duplicate handler for %s", ct))
	}
	r.handlers[ct] = h
}

// Get returns the handler for ct.
func (r *Registry) Get(ct models.ContentType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[ct]
	if !ok {
		return nil, apperr.InvalidData("folder: no handler for content type %s", ct)
	}
	return h, nil
}

// Handlers returns every handler ordered by content type.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]models.ContentType, 0, len(r.handlers))
	for ct := range r.handlers {
		types = append(types, ct)
	}
	slices.Sort(types)
	out := make([]Handler, len(types))
	for i, ct := range types {
		out[i] = r.handlers[ct]
	}
	return out
}
