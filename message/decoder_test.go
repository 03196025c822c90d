package message

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"testing"
)

func sampleStream(t *testing.T) ([]Message, []byte) {
	t.Helper()

	msgs := []Message{
		Encode(&Handshake{Version: ProtocolVersion}),
		Encode(&Login{Name: "alice", HashedPassword: "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"}),
		{Type: TYPE_GAME_DICE_THROW},
		Encode(&GameTurnStart{Timestamp: 1700000000000, Turn: 3}),
		{Type: TYPE_SCENE_LOAD_DONE, Payload: []byte{}},
		Encode(&RoomEnter{Room: RoomData{Number: 7, MaxPlayer: 2, PlayerCount: 1, Name: "room 7"}}),
		{Type: TYPE_GAME_MARK_SCORE, Payload: bytes.Repeat([]byte{0xAB}, 3000)},
	}

	var stream []byte
	for _, m := range msgs {
		stream = AppendFrame(stream, m)
	}
	return msgs, stream
}

func feedChunks(t *testing.T, chunks [][]byte) []Message {
	t.Helper()

	var d Decoder
	var got []Message
	for _, c := range chunks {
		if err := d.Feed(c, func(m Message) { got = append(got, m) }); err != nil {
			t.Fatalf("feed: %v", err)
		}
	}
	return got
}

func assertMessages(t *testing.T, got, want []Message) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("decoded %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Type != want[i].Type {
			t.Fatalf("message %d type = %s, want %s", i, got[i].Type, want[i].Type)
		}
		if !bytes.Equal(got[i].Payload, want[i].Payload) {
			t.Fatalf("message %d payload differs (%d bytes vs %d)", i, len(got[i].Payload), len(want[i].Payload))
		}
	}
}

func TestDecoderWholeStream(t *testing.T) {
	want, stream := sampleStream(t)
	assertMessages(t, feedChunks(t, [][]byte{stream}), want)
}

func TestDecoderOneByteAtATime(t *testing.T) {
	want, stream := sampleStream(t)

	chunks := make([][]byte, len(stream))
	for i := range stream {
		chunks[i] = stream[i : i+1]
	}
	assertMessages(t, feedChunks(t, chunks), want)
}

func TestDecoderRandomSplits(t *testing.T) {
	want, stream := sampleStream(t)
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 200; round++ {
		var chunks [][]byte
		rest := stream
		for len(rest) > 0 {
			n := rng.IntN(min(len(rest), 64)) + 1
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		assertMessages(t, feedChunks(t, chunks), want)
	}
}

func TestDecoderSplitInsideHeader(t *testing.T) {
	want, stream := sampleStream(t)

	// Cut the first frame after one type byte, then inside the length.
	chunks := [][]byte{stream[:1], stream[1:4], stream[4:HeaderSize+1], stream[HeaderSize+1:]}
	assertMessages(t, feedChunks(t, chunks), want)
}

func TestDecoderDoesNotAliasInput(t *testing.T) {
	buf := AppendFrame(nil, Message{Type: TYPE_ROOM_EXIT, Payload: []byte{1, 2, 3, 4}})

	var d Decoder
	var got Message
	if err := d.Feed(buf, func(m Message) { got = m }); err != nil {
		t.Fatalf("feed: %v", err)
	}
	for i := range buf {
		buf[i] = 0xFF
	}
	if !bytes.Equal(got.Payload, []byte{1, 2, 3, 4}) {
		t.Fatalf("payload changed with the receive buffer: %v", got.Payload)
	}
}

func TestDecoderRejectsInvalidType(t *testing.T) {
	var frame [HeaderSize]byte
	binary.LittleEndian.PutUint16(frame[0:2], uint16(TypeCount))

	var d Decoder
	calls := 0
	err := d.Feed(frame[:], func(Message) { calls++ })
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("err = %v, want ErrInvalidType", err)
	}
	if calls != 0 {
		t.Fatalf("emitted %d messages for an invalid frame", calls)
	}

	// Parsing stays stopped even when valid bytes follow.
	valid := AppendFrame(nil, Encode(&Handshake{Version: 4}))
	if err := d.Feed(valid, func(Message) { calls++ }); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("second feed err = %v, want ErrInvalidType", err)
	}
	if calls != 0 {
		t.Fatal("decoder resumed after a protocol violation")
	}
}

func TestDecoderRejectsLocalMarker(t *testing.T) {
	frame := AppendFrame(nil, Closed)

	var d Decoder
	err := d.Feed(frame, func(Message) { t.Fatal("local marker decoded from the wire") })
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("err = %v, want ErrInvalidType", err)
	}

	if _, err := ReadFrame(bytes.NewReader(frame)); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("ReadFrame err = %v, want ErrInvalidType", err)
	}
}

func TestDecoderRejectsOversizedBody(t *testing.T) {
	var frame [HeaderSize]byte
	binary.LittleEndian.PutUint16(frame[0:2], uint16(TYPE_LOGIN))
	binary.LittleEndian.PutUint32(frame[2:6], MaxBodyLength+1)

	var d Decoder
	err := d.Feed(frame[:], func(Message) { t.Fatal("unexpected message") })
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestDecoderReset(t *testing.T) {
	frame := AppendFrame(nil, Encode(&Handshake{Version: 4}))

	var d Decoder
	if err := d.Feed(frame[:HeaderSize+2], func(Message) { t.Fatal("frame is incomplete") }); err != nil {
		t.Fatalf("feed: %v", err)
	}
	d.Reset()

	var got []Message
	if err := d.Feed(frame, func(m Message) { got = append(got, m) }); err != nil {
		t.Fatalf("feed after reset: %v", err)
	}
	if len(got) != 1 || got[0].Type != TYPE_HANDSHAKE {
		t.Fatalf("got %v after reset", got)
	}
}

func TestReadFrame(t *testing.T) {
	want, stream := sampleStream(t)

	r := bytes.NewReader(stream)
	var got []Message
	for range want {
		m, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		got = append(got, m)
	}
	assertMessages(t, got, want)
}
