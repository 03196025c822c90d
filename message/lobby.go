package message

// Handshake is the first message a client sends.
type Handshake struct {
	Version int32
}

func (*Handshake) Type() Type { return TYPE_HANDSHAKE }

func (h *Handshake) encode(w *writer) { w.i32(h.Version) }

func (h *Handshake) decode(r *reader) { h.Version = r.i32() }

// HandshakeAck is the server's reply to an accepted Handshake.
type HandshakeAck struct{ empty }

func (*HandshakeAck) Type() Type { return TYPE_HANDSHAKE }

type Login struct {
	Name           string
	HashedPassword string
}

func (*Login) Type() Type { return TYPE_LOGIN }

func (l *Login) encode(w *writer) {
	w.str(l.Name, MaxNameLength)
	w.str(l.HashedPassword, PasswordHashLength)
}

func (l *Login) decode(r *reader) {
	l.Name = r.str(MaxNameLength)
	l.HashedPassword = r.str(PasswordHashLength)
}

// Register has the same layout as Login.
type Register struct {
	Name           string
	HashedPassword string
}

func (*Register) Type() Type { return TYPE_REGISTER }

func (l *Register) encode(w *writer) {
	w.str(l.Name, MaxNameLength)
	w.str(l.HashedPassword, PasswordHashLength)
}

func (l *Register) decode(r *reader) {
	l.Name = r.str(MaxNameLength)
	l.HashedPassword = r.str(PasswordHashLength)
}

type LoginCode int32

const (
	LOGIN_SUCCESS LoginCode = iota
	LOGIN_INVALID_NAME
	LOGIN_INVALID_PASSWORD
	LOGIN_ALREADY_LOGGED_ON
	LOGIN_ERROR
)

type LoginResult struct {
	Result LoginCode
	Client ClientData
}

func (*LoginResult) Type() Type { return TYPE_LOGIN }

func (l *LoginResult) encode(w *writer) {
	w.i32(int32(l.Result))
	l.Client.encode(w)
}

func (l *LoginResult) decode(r *reader) {
	l.Result = LoginCode(r.i32())
	l.Client.decode(r)
}

type RegisterCode int32

const (
	REGISTER_SUCCESS RegisterCode = iota
	REGISTER_DUPLICATED_NAME
	REGISTER_ERROR
)

type RegisterResult struct {
	Result RegisterCode
	Client ClientData
}

func (*RegisterResult) Type() Type { return TYPE_REGISTER }

func (l *RegisterResult) encode(w *writer) {
	w.i32(int32(l.Result))
	l.Client.encode(w)
}

func (l *RegisterResult) decode(r *reader) {
	l.Result = RegisterCode(r.i32())
	l.Client.decode(r)
}

type Logout struct{ empty }

func (*Logout) Type() Type { return TYPE_LOGOUT }

// Alert carries a human readable notice shown by the client.
type Alert struct {
	Content string
}

func (*Alert) Type() Type { return TYPE_ALERT_MESSAGE }

func (a *Alert) encode(w *writer) { w.str(a.Content, MaxAlertLength) }

func (a *Alert) decode(r *reader) { a.Content = r.str(MaxAlertLength) }

// NameChange is both the request and the echo of the name now in effect.
type NameChange struct {
	NewName string
}

func (*NameChange) Type() Type { return TYPE_NAME_CHANGE }

func (n *NameChange) encode(w *writer) { w.str(n.NewName, MaxNameLength) }

func (n *NameChange) decode(r *reader) { n.NewName = r.str(MaxNameLength) }

type UserDataUpdate struct {
	Client ClientData
	Data   UserData
}

func (*UserDataUpdate) Type() Type { return TYPE_USER_DATA_UPDATE }

func (u *UserDataUpdate) encode(w *writer) {
	u.Client.encode(w)
	u.Data.encode(w)
}

func (u *UserDataUpdate) decode(r *reader) {
	u.Client.decode(r)
	u.Data.decode(r)
}
