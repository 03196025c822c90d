package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sicilica/yachu-server/message"
)

func testMessage(i int) message.Message {
	return message.Message{Type: message.TYPE_GAME_MARK_SCORE, Payload: []byte{byte(i), 0xEE}}
}

func newPipeConn(t *testing.T, pool *Pool) (*Conn, net.Conn) {
	t.Helper()

	server, client := net.Pipe()
	c, err := NewConn(server, pool, Options{})
	if err != nil {
		t.Fatalf("new conn: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		client.Close()
	})
	return c, client
}

func waitInbox(t *testing.T, c *Conn, n int) []message.Message {
	t.Helper()

	var got []message.Message
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < n {
		if time.Now().After(deadline) {
			t.Fatalf("received %d of %d messages", len(got), n)
		}
		got = c.Inbox().Drain(got)
		time.Sleep(2 * time.Millisecond)
	}
	return got
}

func TestConn_SendOrder(t *testing.T) {
	pool := NewPool(2, 64, 2)
	c, peer := newPipeConn(t, pool)

	want := []message.Message{
		message.Encode(&message.RoomStart{Timestamp: 1}),
		{Type: message.TYPE_GAME_HOLD_DICE, Payload: bytes.Repeat([]byte{7}, 500)},
		message.Encode(&message.RoomExitUser{Index: 3}),
	}
	for _, m := range want {
		if err := c.Send(m); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i, w := range want {
		m, err := message.ReadFrame(peer)
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if m.Type != w.Type || !bytes.Equal(m.Payload, w.Payload) {
			t.Fatalf("frame %d = %s (%d bytes), want %s (%d bytes)", i, m.Type, len(m.Payload), w.Type, len(w.Payload))
		}
	}
}

func TestConn_SendRejectsOversizedBody(t *testing.T) {
	c, _ := newPipeConn(t, NewPool(2, 64, 2))

	m := message.Message{Type: message.TYPE_GAME_MARK_SCORE, Payload: make([]byte, message.MaxBodyLength+1)}
	if err := c.Send(m); !errors.Is(err, message.ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestConn_ReceiveSplitFrames(t *testing.T) {
	c, peer := newPipeConn(t, NewPool(2, 8, 2))
	c.Start()

	var stream []byte
	for i := 0; i < 10; i++ {
		stream = message.AppendFrame(stream, testMessage(i))
	}

	go func() {
		// Odd-sized writes so frames straddle reads.
		for len(stream) > 0 {
			n := min(len(stream), 5)
			if _, err := peer.Write(stream[:n]); err != nil {
				return
			}
			stream = stream[n:]
		}
	}()

	got := waitInbox(t, c, 10)
	for i, m := range got {
		if m.Type != message.TYPE_GAME_MARK_SCORE || m.Payload[0] != byte(i) {
			t.Fatalf("message %d = %s %v", i, m.Type, m.Payload)
		}
	}
}

func TestConn_PeerCloseDeliversClosed(t *testing.T) {
	pool := NewPool(2, 32, 2)
	c, peer := newPipeConn(t, pool)
	c.Start()

	peer.Close()

	got := waitInbox(t, c, 1)
	if got[0].Type != message.TYPE_USER_CLOSED {
		t.Fatalf("got %s, want UserClosed", got[0].Type)
	}

	c.Close()
	if s := pool.Stats(); s.InUse != 0 {
		t.Fatalf("pool stats after close = %+v", s)
	}
}

func TestConn_InvalidFrameDeliversClosed(t *testing.T) {
	c, peer := newPipeConn(t, NewPool(2, 32, 2))
	c.Start()

	go peer.Write([]byte{0xFF, 0xFF, 0, 0, 0, 0})

	got := waitInbox(t, c, 1)
	if got[0].Type != message.TYPE_USER_CLOSED {
		t.Fatalf("got %s, want UserClosed", got[0].Type)
	}
}

func TestConn_PeerSentUserClosedIsRejected(t *testing.T) {
	c, peer := newPipeConn(t, NewPool(2, 64, 2))
	c.Start()

	var stream []byte
	stream = message.AppendFrame(stream, message.Encode(&message.Handshake{Version: message.ProtocolVersion}))
	stream = message.AppendFrame(stream, message.Closed)
	stream = message.AppendFrame(stream, testMessage(1))
	go peer.Write(stream)

	got := waitInbox(t, c, 2)
	time.Sleep(20 * time.Millisecond)
	got = c.Inbox().Drain(got)

	if len(got) != 2 {
		t.Fatalf("received %d messages, want 2", len(got))
	}
	if got[0].Type != message.TYPE_HANDSHAKE || got[1].Type != message.TYPE_USER_CLOSED {
		t.Fatalf("got %s, %s", got[0].Type, got[1].Type)
	}
	if len(got[1].Payload) != 0 {
		t.Errorf("closed marker carries %d payload bytes", len(got[1].Payload))
	}
}

func TestConn_Close(t *testing.T) {
	pool := NewPool(2, 32, 2)
	c, peer := newPipeConn(t, pool)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.Send(testMessage(0)); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v, want ErrClosed", err)
	}
	if s := pool.Stats(); s.InUse != 0 || s.Free != 2 {
		t.Fatalf("pool stats = %+v, want both buffers back", s)
	}

	peer.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := peer.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("peer read = %v, want EOF", err)
	}
}

func TestConn_CloseDuringSend(t *testing.T) {
	pool := NewPool(2, 32, 2)
	c, _ := newPipeConn(t, pool)

	// Nobody reads the peer, so this write stays in flight.
	if err := c.Send(testMessage(1)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for pool.Stats().InUse != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("send buffer never returned: %+v", pool.Stats())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestConn_ShutdownFlushesQueue(t *testing.T) {
	pool := NewPool(2, 64, 2)
	c, peer := newPipeConn(t, pool)

	alert := message.Encode(&message.Alert{Content: "bye"})
	if err := c.Send(alert); err != nil {
		t.Fatal(err)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := c.Send(alert); !errors.Is(err, ErrClosed) {
		t.Errorf("send after shutdown: %v", err)
	}

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	m, err := message.ReadFrame(peer)
	if err != nil {
		t.Fatalf("queued frame lost: %v", err)
	}
	if m.Type != message.TYPE_ALERT_MESSAGE {
		t.Fatalf("got %s", m.Type)
	}
	if _, err := message.ReadFrame(peer); err == nil {
		t.Fatal("connection still open after flush")
	}
	if !c.Closed() {
		t.Error("Closed() = false")
	}
}

func TestListener_RefusesWhenPoolExhausted(t *testing.T) {
	pool := NewPool(2, 32, 2)
	l, err := Listen("127.0.0.1:0", pool, Options{})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	accepted := make(chan *Conn, 2)
	done := make(chan error, 1)
	go func() {
		done <- l.Serve(ctx, func(c *Conn) { accepted <- c })
	}()

	first, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	var c *Conn
	select {
	case c = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("first connection not accepted")
	}
	defer c.Close()

	second, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := second.Read(make([]byte, 1)); err == nil {
		t.Fatal("second connection was not refused")
	}
	select {
	case <-accepted:
		t.Fatal("second connection reached the accept callback")
	default:
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}
