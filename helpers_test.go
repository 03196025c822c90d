package yachu

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sicilica/yachu-server/config"
	"github.com/sicilica/yachu-server/message"
	"github.com/sicilica/yachu-server/metrics"
	"github.com/sicilica/yachu-server/storage"
	"github.com/sicilica/yachu-server/transport"
)

// fakeConn records what the server sends. It is only touched from the
// test goroutine.
type fakeConn struct {
	inbox  transport.Inbox
	addr   net.Addr
	sent   []message.Message
	closed bool
}

var nextFakePort = 40000

func newFakeConn() *fakeConn {
	nextFakePort++
	return &fakeConn{addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: nextFakePort}}
}

func (f *fakeConn) Send(m message.Message) error {
	if f.closed {
		return transport.ErrClosed
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeConn) Shutdown() error {
	f.closed = true
	return nil
}

func (f *fakeConn) RemoteAddr() net.Addr { return f.addr }

func (f *fakeConn) Inbox() *transport.Inbox { return &f.inbox }

func (f *fakeConn) push(b message.Body) {
	f.inbox.Push(message.Encode(b))
}

// ofType returns the sent messages of type t in order.
func (f *fakeConn) ofType(t message.Type) []message.Message {
	var out []message.Message
	for _, m := range f.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) types() []message.Type {
	out := make([]message.Type, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Type
	}
	return out
}

func (f *fakeConn) reset() { f.sent = nil }

type testServer struct {
	*Server
	store *storage.Memory
	clock time.Time
}

func newTestServer(t *testing.T, environ map[string]string) *testServer {
	t.Helper()

	if environ == nil {
		environ = map[string]string{}
	}
	if _, ok := environ["YACHU_ROOM_COUNT"]; !ok {
		environ["YACHU_ROOM_COUNT"] = "3"
	}
	cfg, err := config.Load(nil, environ)
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	ts := &testServer{
		store: storage.NewMemoryWithCost(bcrypt.MinCost),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	ts.Server = NewServer(cfg, ts.store, slog.New(slog.DiscardHandler), metrics.New())
	ts.now = func() time.Time { return ts.clock }
	return ts
}

// settle runs ticks until every async store call has come back.
func (ts *testServer) settle() {
	for range 5 {
		ts.pending.Wait()
		ts.Tick(context.Background())
	}
}

func (ts *testServer) connect() (*Client, *fakeConn) {
	fc := newFakeConn()
	return ts.addClient(fc), fc
}

// guest returns a client already logged in as an anonymous player.
func (ts *testServer) guest(name string) (*Client, *fakeConn) {
	c, fc := ts.connect()
	c.identify(CLIENT_ANONYMOUS, uuid.New(), name)
	return c, fc
}

// member returns a client logged in with a freshly registered account.
func (ts *testServer) member(t *testing.T, name string) (*Client, *fakeConn) {
	t.Helper()

	acc, err := ts.store.Register(context.Background(), name, "pw-"+name)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	c, fc := ts.connect()
	c.identify(CLIENT_REGISTERED, acc.ID, acc.Name)
	ts.identities.TryAdd(acc.ID, c)
	return c, fc
}

func decodeAs[T any, P interface {
	*T
	message.Body
}](t *testing.T, m message.Message) *T {
	t.Helper()

	var v T
	if err := message.Decode(m, P(&v)); err != nil {
		t.Fatalf("decode %s: %v", m.Type, err)
	}
	return &v
}

// last decodes the most recent message of the body's type sent to f.
func last[T any, P interface {
	*T
	message.Body
}](t *testing.T, f *fakeConn) *T {
	t.Helper()

	var probe T
	typ := P(&probe).Type()
	msgs := f.ofType(typ)
	if len(msgs) == 0 {
		t.Fatalf("no %s sent; got %v", typ, f.types())
	}
	return decodeAs[T, P](t, msgs[len(msgs)-1])
}

func storeData(money, play, win, lose int32) storage.UserData {
	return storage.UserData{Money: money, PlayCount: play, WinCount: win, LoseCount: lose}
}
