package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 10020 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.MaxConnections != 64 || cfg.RoomCount != 32 || cfg.RoomCapacity != 2 {
		t.Errorf("connections/rooms = %d/%d/%d", cfg.MaxConnections, cfg.RoomCount, cfg.RoomCapacity)
	}
	if cfg.HandshakeTimeout != 3*time.Second || cfg.ReceiveTimeout != time.Minute || cfg.SendTimeout != 3*time.Second {
		t.Errorf("timeouts = %v/%v/%v", cfg.HandshakeTimeout, cfg.ReceiveTimeout, cfg.SendTimeout)
	}
	if cfg.WinReward != 100 {
		t.Errorf("win reward = %d", cfg.WinReward)
	}
	if cfg.TickInterval() != time.Second/30 {
		t.Errorf("tick interval = %v", cfg.TickInterval())
	}
	if l, _ := cfg.Level(); l != slog.LevelInfo {
		t.Errorf("level = %v", l)
	}
}

func TestLoadEnvThenFlags(t *testing.T) {
	environ := map[string]string{
		"YACHU_PORT":          "4000",
		"YACHU_ROOM_CAPACITY": "4",
		"YACHU_LOG_LEVEL":     "debug",
		"YACHU_LOG_FORMAT":    "json",
	}

	cfg, err := Load([]string{"-port", "5000", "-rooms", "3"}, environ)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 5000 {
		t.Errorf("flag did not override env: port = %d", cfg.Port)
	}
	if cfg.RoomCapacity != 4 || cfg.RoomCount != 3 {
		t.Errorf("capacity/rooms = %d/%d", cfg.RoomCapacity, cfg.RoomCount)
	}
	if l, _ := cfg.Level(); l != slog.LevelDebug {
		t.Errorf("level = %v", l)
	}
	if cfg.Addr() != ":5000" {
		t.Errorf("addr = %q", cfg.Addr())
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []map[string]string{
		{"YACHU_ROOM_CAPACITY": "9"},
		{"YACHU_ROOM_CAPACITY": "1"},
		{"YACHU_TICK_RATE": "0"},
		{"YACHU_LOG_LEVEL": "loud"},
		{"YACHU_LOG_FORMAT": "xml"},
		{"YACHU_PORT": "70000"},
		{"YACHU_SEND_TIMEOUT": "soon"},
	}

	for _, environ := range tests {
		if _, err := Load(nil, environ); err == nil {
			t.Errorf("Load(%v) succeeded", environ)
		}
	}
}
