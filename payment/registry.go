package payment

import (
	"errors"
	"fmt"
	"sync"
)

// ErrControllerActive is returned by Add when the session already has a
// live controller.
var ErrControllerActive = errors.New("payment: session already has an active controller")

// Registry tracks the single active controller per session id. All
// mutation of a session's confirmation state goes through its one
// controller; the registry is how the HTTP layer finds it.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]*Controller)}
}

// Add registers a controller. A session id can have at most one active
// controller; a second Add for the same id fails.
func (r *Registry) Add(c *Controller) error {
	id := c.Session().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.controllers[id]; exists {
		return fmt.Errorf("%w: %s", ErrControllerActive, id)
	}
	r.controllers[id] = c
	return nil
}

func (r *Registry) Get(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[sessionID]
	return c, ok
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.controllers, sessionID)
	r.mu.Unlock()
}

// DisposeAll tears down every active controller. Used on shutdown;
// persisted deadlines are left in place so sessions resume on restart.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	controllers := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		controllers = append(controllers, c)
	}
	r.controllers = make(map[string]*Controller)
	r.mu.Unlock()

	for _, c := range controllers {
		c.Dispose()
	}
}
