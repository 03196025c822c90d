package yachu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/sicilica/yachu-server/message"
	"github.com/sicilica/yachu-server/storage"
)

const (
	ANONYMOUS_PREFIX      = "Anonymous_"
	ANONYMOUS_SUFFIX_SIZE = 5

	alphanumerics = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func (s *Server) registerClientHandlers(d *Dispatcher) {
	d.Handle(message.TYPE_HANDSHAKE, s.handleHandshake)
	d.Handle(message.TYPE_LOGIN, s.handleLogin)
	d.Handle(message.TYPE_REGISTER, s.handleRegister)
	d.Handle(message.TYPE_LOGOUT, s.handleLogout)
	d.Handle(message.TYPE_NAME_CHANGE, s.handleNameChange)
	d.Handle(message.TYPE_USER_DATA_UPDATE, s.handleUserDataUpdate)
	d.Handle(message.TYPE_USER_CLOSED, func(ctx context.Context, c *Client, m message.Message) {
		c.Close()
	})
}

func (s *Server) handleHandshake(ctx context.Context, c *Client, m message.Message) {
	if c.state != CLIENT_HANDSHAKING {
		Logger(ctx).Debug("ignoring repeated handshake")
		return
	}

	var req message.Handshake
	if err := message.Decode(m, &req); err != nil {
		Logger(ctx).Warn("bad handshake", errAttr(err))
		c.Close()
		return
	}

	if req.Version != message.ProtocolVersion {
		Logger(ctx).Info("protocol version mismatch", slog.Int("version", int(req.Version)))
		if req.Version < message.ProtocolVersion {
			c.SendAlert(fmt.Sprintf("Your game is out of date. Please update it. (client %d < server %d)",
				req.Version, message.ProtocolVersion))
		} else {
			c.SendAlert(fmt.Sprintf("Protocol version mismatch. (client %d > server %d)",
				req.Version, message.ProtocolVersion))
		}
		c.Close()
		return
	}

	c.state = CLIENT_NOT_LOGGED_IN
	c.Send(&message.HandshakeAck{})
	Logger(ctx).Debug("handshake complete")
}

func (s *Server) handleLogin(ctx context.Context, c *Client, m message.Message) {
	if c.state != CLIENT_NOT_LOGGED_IN {
		Logger(ctx).Warn("login in wrong state", slog.String("state", c.state.String()))
		return
	}

	var req message.Login
	if err := message.Decode(m, &req); err != nil {
		Logger(ctx).Warn("bad login", errAttr(err))
		return
	}

	if req.Name == "" {
		s.loginAnonymous(c)
		return
	}
	if !validName(req.Name) {
		s.rejectLogin(c, message.LOGIN_INVALID_NAME)
		return
	}

	c.state = CLIENT_LOGGING_IN
	runAsync(s, func(ctx context.Context) (storage.Account, error) {
		return s.store.Login(ctx, req.Name, req.HashedPassword)
	}, func(acc storage.Account, err error) {
		if c.state != CLIENT_LOGGING_IN {
			return
		}

		switch {
		case err == nil:
		case errors.Is(err, storage.ErrInvalidAccount):
			s.rejectLogin(c, message.LOGIN_INVALID_NAME)
			return
		case errors.Is(err, storage.ErrInvalidPassword):
			s.rejectLogin(c, message.LOGIN_INVALID_PASSWORD)
			return
		default:
			c.logger.Error("login failed", slog.String("name", req.Name), errAttr(err))
			s.rejectLogin(c, message.LOGIN_ERROR)
			return
		}

		if !s.identities.TryAdd(acc.ID, c) {
			s.rejectLogin(c, message.LOGIN_ALREADY_LOGGED_ON)
			return
		}

		c.identify(CLIENT_REGISTERED, acc.ID, acc.Name)
		s.metrics.Logins.WithLabelValues("login", "success").Inc()
		c.logger.Info("logged in")
		c.SendAlert(fmt.Sprintf("Welcome, %s!", c.name))
		c.Send(&message.LoginResult{Result: message.LOGIN_SUCCESS, Client: c.Data()})
		s.refreshUserData(c)
	})
}

func (s *Server) rejectLogin(c *Client, code message.LoginCode) {
	c.state = CLIENT_NOT_LOGGED_IN
	s.metrics.Logins.WithLabelValues("login", loginCodeLabel(code)).Inc()

	switch code {
	case message.LOGIN_INVALID_NAME, message.LOGIN_INVALID_PASSWORD:
		c.SendAlert("Wrong name or password.")
	case message.LOGIN_ALREADY_LOGGED_ON:
		c.SendAlert("This account is already logged on.")
	default:
		c.SendAlert("Login failed because of a server error.")
	}
	c.Send(&message.LoginResult{Result: code, Client: c.Data()})
}

func (s *Server) loginAnonymous(c *Client) {
	name := ANONYMOUS_PREFIX + randomAlphanumerics(ANONYMOUS_SUFFIX_SIZE)
	c.identify(CLIENT_ANONYMOUS, uuid.New(), name)
	c.userData = message.UserData{}
	s.metrics.Logins.WithLabelValues("anonymous", "success").Inc()
	c.logger.Info("logged in anonymously")

	c.SendAlert(fmt.Sprintf("Welcome, %s!", c.name))
	c.Send(&message.LoginResult{Result: message.LOGIN_SUCCESS, Client: c.Data()})
	c.syncUserData()
}

func (s *Server) handleRegister(ctx context.Context, c *Client, m message.Message) {
	if c.state != CLIENT_NOT_LOGGED_IN {
		Logger(ctx).Warn("register in wrong state", slog.String("state", c.state.String()))
		return
	}

	var req message.Register
	if err := message.Decode(m, &req); err != nil {
		Logger(ctx).Warn("bad register", errAttr(err))
		return
	}

	if !validName(req.Name) {
		s.rejectRegister(c, message.REGISTER_ERROR)
		return
	}

	c.state = CLIENT_LOGGING_IN
	runAsync(s, func(ctx context.Context) (storage.Account, error) {
		return s.store.Register(ctx, req.Name, req.HashedPassword)
	}, func(acc storage.Account, err error) {
		if c.state != CLIENT_LOGGING_IN {
			return
		}

		switch {
		case err == nil:
		case errors.Is(err, storage.ErrDuplicateName):
			s.rejectRegister(c, message.REGISTER_DUPLICATED_NAME)
			return
		default:
			c.logger.Error("register failed", slog.String("name", req.Name), errAttr(err))
			s.rejectRegister(c, message.REGISTER_ERROR)
			return
		}

		if !s.identities.TryAdd(acc.ID, c) {
			c.logger.Error("fresh account id already bound", slog.String("id", acc.ID.String()))
			s.rejectRegister(c, message.REGISTER_ERROR)
			return
		}

		c.identify(CLIENT_REGISTERED, acc.ID, acc.Name)
		s.metrics.Logins.WithLabelValues("register", "success").Inc()
		c.logger.Info("registered")
		c.SendAlert(fmt.Sprintf("Welcome, %s!", c.name))
		c.Send(&message.RegisterResult{Result: message.REGISTER_SUCCESS, Client: c.Data()})
		s.refreshUserData(c)
	})
}

func (s *Server) rejectRegister(c *Client, code message.RegisterCode) {
	c.state = CLIENT_NOT_LOGGED_IN

	result := "error"
	if code == message.REGISTER_DUPLICATED_NAME {
		result = "duplicated_name"
		c.SendAlert("That name is already taken.")
	} else {
		c.SendAlert("Registration failed because of a server error.")
	}
	s.metrics.Logins.WithLabelValues("register", result).Inc()
	c.Send(&message.RegisterResult{Result: code, Client: c.Data()})
}

func (s *Server) handleLogout(ctx context.Context, c *Client, m message.Message) {
	if c.state != CLIENT_CONNECTED {
		Logger(ctx).Warn("logout in wrong state", slog.String("state", c.state.String()))
		return
	}

	if c.room != nil {
		c.room.Leave(c)
	}
	s.identities.Remove(c.id, c)
	Logger(ctx).Info("logged out")
	c.forget()
	c.state = CLIENT_NOT_LOGGED_IN
}

func (s *Server) handleNameChange(ctx context.Context, c *Client, m message.Message) {
	if c.id == uuid.Nil {
		Logger(ctx).Warn("name change before login")
		return
	}

	var req message.NameChange
	if err := message.Decode(m, &req); err != nil {
		Logger(ctx).Warn("bad name change", errAttr(err))
		return
	}

	echo := func(name string) { c.Send(&message.NameChange{NewName: name}) }

	if c.room != nil || req.NewName == c.name || !validName(req.NewName) {
		echo(c.name)
		return
	}

	if c.kind == CLIENT_ANONYMOUS {
		s.applyName(c, req.NewName)
		return
	}

	id := c.id
	runAsync(s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.ChangeName(ctx, id, req.NewName)
	}, func(_ struct{}, err error) {
		if c.Disconnected() || c.id != id {
			return
		}

		switch {
		case err == nil:
			s.applyName(c, req.NewName)
		case errors.Is(err, storage.ErrDuplicateName):
			echo(c.name)
			c.SendAlert(fmt.Sprintf("%s is already in use.", req.NewName))
		default:
			c.logger.Error("name change failed", slog.String("new_name", req.NewName), errAttr(err))
			echo(c.name)
			c.SendAlert("Name change failed because of a server error.")
		}
	})
}

func (s *Server) applyName(c *Client, name string) {
	c.logger.Info("name changed", slog.String("new_name", name))
	c.identify(c.kind, c.id, name)
	c.Send(&message.NameChange{NewName: name})
	c.SendAlert(fmt.Sprintf("Your name is now %s.", name))
}

func (s *Server) handleUserDataUpdate(ctx context.Context, c *Client, m message.Message) {
	if !c.Connected() {
		Logger(ctx).Warn("user data request before login")
		return
	}
	s.refreshUserData(c)
}

// refreshUserData reloads the cached record and pushes it to the player.
func (s *Server) refreshUserData(c *Client) {
	if c.kind == CLIENT_ANONYMOUS {
		c.syncUserData()
		return
	}

	id := c.id
	runAsync(s, func(ctx context.Context) (storage.UserData, error) {
		return s.store.UserData(ctx, id)
	}, func(data storage.UserData, err error) {
		if c.Disconnected() || c.id != id {
			return
		}
		if err != nil {
			c.logger.Warn("loading user data", errAttr(err))
			return
		}
		c.userData = message.UserData(data)
		c.syncUserData()
	})
}

// saveUserData replaces the cached record, persists it for registered
// accounts, then pushes it to the player if they are still here.
func (s *Server) saveUserData(c *Client, data message.UserData) {
	if c.id == uuid.Nil {
		return
	}
	c.userData = data
	if c.kind == CLIENT_ANONYMOUS {
		if c.Connected() {
			c.syncUserData()
		}
		return
	}

	id := c.id
	s.persistUserData(id, data, func() {
		if c.Connected() && c.id == id {
			c.syncUserData()
		}
	})
}

// storeUserData persists data for an account no longer bound to the
// connection that earned it. A connection now holding the account gets
// the new record.
func (s *Server) storeUserData(id uuid.UUID, kind ClientKind, data message.UserData) {
	if id == uuid.Nil || kind == CLIENT_ANONYMOUS {
		return
	}
	s.persistUserData(id, data, func() {
		if c, ok := s.identities.Lookup(id); ok && c.Connected() && c.id == id {
			s.refreshUserData(c)
		}
	})
}

func (s *Server) persistUserData(id uuid.UUID, data message.UserData, saved func()) {
	runAsync(s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.SetUserData(ctx, id, storage.UserData(data))
	}, func(_ struct{}, err error) {
		if err != nil {
			s.logger.Error("saving user data", slog.String("id", id.String()), errAttr(err))
			return
		}
		saved()
	})
}

func validName(name string) bool {
	n := message.NameLength(name)
	return n > 0 && n < message.MaxNameLength
}

func randomAlphanumerics(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumerics[rand.IntN(len(alphanumerics))]
	}
	return string(b)
}

func loginCodeLabel(code message.LoginCode) string {
	switch code {
	case message.LOGIN_SUCCESS:
		return "success"
	case message.LOGIN_INVALID_NAME:
		return "invalid_name"
	case message.LOGIN_INVALID_PASSWORD:
		return "invalid_password"
	case message.LOGIN_ALREADY_LOGGED_ON:
		return "already_logged_on"
	}
	return "error"
}
