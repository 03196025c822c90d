package yachu

import (
	"sync"

	"github.com/google/uuid"
)

// identityIndex maps logged-in account ids to their clients. One id may be
// bound to at most one client.
type identityIndex struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*Client
}

func newIdentityIndex() *identityIndex {
	return &identityIndex{byID: map[uuid.UUID]*Client{}}
}

// TryAdd binds id to c unless another client already holds it.
func (x *identityIndex) TryAdd(id uuid.UUID, c *Client) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if other, ok := x.byID[id]; ok && other != c {
		return false
	}
	x.byID[id] = c
	return true
}

// Remove unbinds id if it is bound to c.
func (x *identityIndex) Remove(id uuid.UUID, c *Client) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.byID[id] == c {
		delete(x.byID, id)
	}
}

func (x *identityIndex) Lookup(id uuid.UUID) (*Client, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	c, ok := x.byID[id]
	return c, ok
}

func (x *identityIndex) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byID)
}
