package yachu

import (
	"github.com/google/uuid"

	"github.com/sicilica/yachu-server/message"
)

// roomPlayer is a member of a room. The list index is the player's index
// on the wire.
type roomPlayer struct {
	client  *Client
	isHost  bool
	isReady bool

	removeObserver func()
}

// winnerUnreported marks a session player that has not sent GameEnd yet.
const winnerUnreported = -2

// sessionPlayer is a player as seen by a running game. The set is fixed
// when the game starts; leavers stay in it with alive cleared. The account
// is captured at start, since the connection may log out or switch
// accounts before the game ends.
type sessionPlayer struct {
	client      *Client
	id          uuid.UUID
	kind        ClientKind
	data        message.ClientData
	userData    message.UserData
	index       int
	sceneLoaded bool
	turnEnded   bool
	alive       bool
	winner      int

	removeObserver func()
}

// online reports whether the player can still act in the game.
func (p *sessionPlayer) online() bool {
	return p.alive && p.client.Connected()
}

// sameAccount reports whether the connection still plays as the account
// that started the game.
func (p *sessionPlayer) sameAccount() bool {
	return p.client.id == p.id
}
