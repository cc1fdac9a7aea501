// Package session owns the mapping from browsing sessions to carts. It is
// the only place carts live; nothing holds a cart as ambient global state.
package session

import (
	"sync"

	"github.com/carekitchen/mealorder/internal/domain/cart"
)

// Manager hands out exactly one cart per session key, creating it lazily on
// first access. The map is guarded for concurrent sessions; each individual
// cart remains single-writer within its own session.
type Manager struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{carts: make(map[string]*cart.Cart)}
}

// Cart returns the cart for the session, creating an empty one if the
// session has none yet.
func (m *Manager) Cart(sessionID string) *cart.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[sessionID]
	if !ok {
		c = cart.New()
		m.carts[sessionID] = c
	}
	return c
}

// Drop discards the session's cart. Carts are transient; nothing survives
// the session that created it.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
}
