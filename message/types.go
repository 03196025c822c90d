package message

import "strconv"

// Type identifies the body carried by a frame.
type Type uint16

const (
	TYPE_HANDSHAKE Type = iota + 1
	TYPE_LOGIN
	TYPE_REGISTER
	TYPE_LOGOUT

	TYPE_ALERT_MESSAGE
	TYPE_NAME_CHANGE
	TYPE_USER_DATA_UPDATE
	TYPE_PURCHASE_ITEM

	TYPE_ROOM_AUTO_ENTER
	TYPE_ROOM_CREATE
	TYPE_ROOM_ENTER
	TYPE_ROOM_UPDATE
	TYPE_ROOM_NEW_USER
	TYPE_ROOM_EXIT
	TYPE_ROOM_EXIT_USER
	TYPE_ROOM_READY
	TYPE_ROOM_START

	TYPE_SCENE_LOAD_DONE

	TYPE_GAME_TURN_START

	TYPE_GAME_CUP_UPDATE
	TYPE_GAME_DICE_UPDATE
	TYPE_GAME_DICE_THROW
	TYPE_GAME_DICE_DETERMINED
	TYPE_GAME_SELECT
	TYPE_GAME_INTERACT_CUP
	TYPE_GAME_HOLD_DICE
	TYPE_GAME_MARK_SCORE

	TYPE_GAME_TURN_END
	TYPE_GAME_END

	// TYPE_USER_CLOSED is synthesized locally when the peer goes away. It is
	// never written to the wire.
	TYPE_USER_CLOSED

	TypeCount
)

const (
	ProtocolVersion = 4

	MaxPlayerInRoom    = 8
	MaxAlertLength     = 128
	MaxNameLength      = 32
	PasswordHashLength = 64
	MaxRoomNameLength  = 40

	// MaxBodyLength bounds a single frame body.
	MaxBodyLength = 1024 * 2000
)

var typeNames = [TypeCount]string{
	TYPE_HANDSHAKE:            "Handshake",
	TYPE_LOGIN:                "Login",
	TYPE_REGISTER:             "Register",
	TYPE_LOGOUT:               "Logout",
	TYPE_ALERT_MESSAGE:        "AlertMessage",
	TYPE_NAME_CHANGE:          "NameChange",
	TYPE_USER_DATA_UPDATE:     "UserDataUpdate",
	TYPE_PURCHASE_ITEM:        "PurchaseItem",
	TYPE_ROOM_AUTO_ENTER:      "RoomAutoEnter",
	TYPE_ROOM_CREATE:          "RoomCreate",
	TYPE_ROOM_ENTER:           "RoomEnter",
	TYPE_ROOM_UPDATE:          "RoomUpdate",
	TYPE_ROOM_NEW_USER:        "RoomNewUser",
	TYPE_ROOM_EXIT:            "RoomExit",
	TYPE_ROOM_EXIT_USER:       "RoomExitUser",
	TYPE_ROOM_READY:           "RoomReady",
	TYPE_ROOM_START:           "RoomStart",
	TYPE_SCENE_LOAD_DONE:      "SceneLoadDone",
	TYPE_GAME_TURN_START:      "GameTurnStart",
	TYPE_GAME_CUP_UPDATE:      "GameCupUpdate",
	TYPE_GAME_DICE_UPDATE:     "GameDiceUpdate",
	TYPE_GAME_DICE_THROW:      "GameDiceThrow",
	TYPE_GAME_DICE_DETERMINED: "GameDiceDetermined",
	TYPE_GAME_SELECT:          "GameSelect",
	TYPE_GAME_INTERACT_CUP:    "GameInteractCup",
	TYPE_GAME_HOLD_DICE:       "GameHoldDice",
	TYPE_GAME_MARK_SCORE:      "GameMarkScore",
	TYPE_GAME_TURN_END:        "GameTurnEnd",
	TYPE_GAME_END:             "GameEnd",
	TYPE_USER_CLOSED:          "UserClosed",
}

// Valid reports whether t falls inside the declared range.
func (t Type) Valid() bool {
	return t < TypeCount
}

// OnWire reports whether t may arrive from a peer. Local markers such as
// TYPE_USER_CLOSED never do.
func (t Type) OnWire() bool {
	return t.Valid() && t != TYPE_USER_CLOSED
}

func (t Type) String() string {
	if t.Valid() && typeNames[t] != "" {
		return typeNames[t]
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Message is one complete frame. Payload is owned by the Message and must
// not be modified after construction.
type Message struct {
	Type    Type
	Payload []byte
}

// Closed is the local marker delivered when a connection ends.
var Closed = Message{Type: TYPE_USER_CLOSED}
