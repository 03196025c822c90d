package message

// Phase is the play state of a running game.
type Phase int32

const (
	PHASE_SCENE_LOADING Phase = iota
	PHASE_INTRO
	PHASE_CUP_SHAKING
	PHASE_DICE_THROWING
	PHASE_SELECTING
	PHASE_TURN_ENDING
	PHASE_GAME_ENDING
)

func (p Phase) String() string {
	switch p {
	case PHASE_SCENE_LOADING:
		return "SceneLoading"
	case PHASE_INTRO:
		return "Intro"
	case PHASE_CUP_SHAKING:
		return "CupShaking"
	case PHASE_DICE_THROWING:
		return "DiceThrowing"
	case PHASE_SELECTING:
		return "Selecting"
	case PHASE_TURN_ENDING:
		return "TurnEnding"
	case PHASE_GAME_ENDING:
		return "GameEnding"
	}
	return "Unknown"
}

const DiceCount = 5

type SceneLoadDone struct{ empty }

func (*SceneLoadDone) Type() Type { return TYPE_SCENE_LOAD_DONE }

type GameTurnStart struct {
	Timestamp int64
	Turn      int32
}

func (*GameTurnStart) Type() Type { return TYPE_GAME_TURN_START }

func (g *GameTurnStart) encode(w *writer) {
	w.i64(g.Timestamp)
	w.i32(g.Turn)
}

func (g *GameTurnStart) decode(r *reader) {
	g.Timestamp = r.i64()
	g.Turn = r.i32()
}

type GameCupUpdate struct {
	Cup Transform
}

func (*GameCupUpdate) Type() Type { return TYPE_GAME_CUP_UPDATE }

func (g *GameCupUpdate) encode(w *writer) { g.Cup.encode(w) }

func (g *GameCupUpdate) decode(r *reader) { g.Cup.decode(r) }

// Hit sounds pack a sound strength in the low 2 bits and the surface hit
// above it.
const (
	soundTypeBits  = 2
	soundTypeCount = 3
	materialCount  = 4

	// NoSound marks a die that made no sound this update.
	NoSound byte = soundTypeCount | materialCount<<soundTypeBits
)

type GameDiceUpdate struct {
	Sounds [DiceCount]byte
	Dice   [DiceCount]Transform
}

func (*GameDiceUpdate) Type() Type { return TYPE_GAME_DICE_UPDATE }

func (g *GameDiceUpdate) encode(w *writer) {
	w.bytes(g.Sounds[:], DiceCount)
	for _, t := range g.Dice {
		t.encode(w)
	}
}

func (g *GameDiceUpdate) decode(r *reader) {
	copy(g.Sounds[:], r.bytes(DiceCount))
	for i := range g.Dice {
		g.Dice[i].decode(r)
	}
}

// Sound unpacks the hit sound of die i.
func (g *GameDiceUpdate) Sound(i int) (sound, material byte, ok bool) {
	if i < 0 || i >= DiceCount {
		return 0, 0, false
	}
	sound = g.Sounds[i] & (1<<soundTypeBits - 1)
	material = g.Sounds[i] >> soundTypeBits
	if sound >= soundTypeCount || material >= materialCount {
		return 0, 0, false
	}
	return sound, material, true
}

type GameDiceThrow struct{ empty }

func (*GameDiceThrow) Type() Type { return TYPE_GAME_DICE_THROW }

type GameDiceDetermined struct {
	Timestamp int64
	Numbers   [DiceCount]byte
}

func (*GameDiceDetermined) Type() Type { return TYPE_GAME_DICE_DETERMINED }

func (g *GameDiceDetermined) encode(w *writer) {
	w.i64(g.Timestamp)
	w.bytes(g.Numbers[:], DiceCount)
}

func (g *GameDiceDetermined) decode(r *reader) {
	g.Timestamp = r.i64()
	copy(g.Numbers[:], r.bytes(DiceCount))
}

type SelectType byte

const (
	SELECT_SCORE_BOARD SelectType = iota
	SELECT_DICE
	SELECT_CUP
)

type GameSelect struct {
	Selection SelectType
	Data      uint32
	Interact  bool
}

func (*GameSelect) Type() Type { return TYPE_GAME_SELECT }

func (g *GameSelect) encode(w *writer) {
	w.u8(uint8(g.Selection))
	w.u32(g.Data)
	w.boolean(g.Interact)
}

func (g *GameSelect) decode(r *reader) {
	g.Selection = SelectType(r.u8())
	g.Data = r.u32()
	g.Interact = r.boolean()
}

type GameTurnEnd struct{ empty }

func (*GameTurnEnd) Type() Type { return TYPE_GAME_TURN_END }

// DrawIndex is the GameEnd winner value for a draw.
const DrawIndex = -1

// GameEnd is each client's verdict and, from the server, the resolved
// result.
type GameEnd struct {
	Index  int16
	Client ClientData
}

func (*GameEnd) Type() Type { return TYPE_GAME_END }

func (g *GameEnd) encode(w *writer) {
	w.i16(g.Index)
	g.Client.encode(w)
}

func (g *GameEnd) decode(r *reader) {
	g.Index = r.i16()
	g.Client.decode(r)
}
