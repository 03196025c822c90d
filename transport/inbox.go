package transport

import (
	"sync"

	"github.com/sicilica/yachu-server/message"
)

// Inbox holds decoded messages between the receive goroutine and the game
// loop.
type Inbox struct {
	mu    sync.Mutex
	queue []message.Message
}

func (i *Inbox) Push(m message.Message) {
	i.mu.Lock()
	i.queue = append(i.queue, m)
	i.mu.Unlock()
}

// Drain appends every queued message to dst in arrival order and empties
// the inbox.
func (i *Inbox) Drain(dst []message.Message) []message.Message {
	i.mu.Lock()
	defer i.mu.Unlock()

	dst = append(dst, i.queue...)
	clear(i.queue)
	i.queue = i.queue[:0]
	return dst
}

func (i *Inbox) Clear() {
	i.mu.Lock()
	i.queue = nil
	i.mu.Unlock()
}

func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queue)
}
