package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromReader(t *testing.T) {
	jsonData := `{
		"slack": {
			"token": "xoxb-file",
			"roomName": "ops",
			"autoJoin": true
		},
		"retry": {
			"handshakeAttempts": 3,
			"handshakeDelay": "250ms",
			"reconnectDelay": "5s"
		},
		"keepalive": {"interval": "0"}
	}`

	cfg, err := LoadFromReader(strings.NewReader(jsonData))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if cfg.Slack.Token != "xoxb-file" {
		t.Errorf("expected token xoxb-file, got %s", cfg.Slack.Token)
	}
	if cfg.Slack.RoomName != "ops" {
		t.Errorf("expected room ops, got %s", cfg.Slack.RoomName)
	}
	if !cfg.Slack.AutoJoin {
		t.Error("expected autoJoin true")
	}
	if cfg.Retry.HandshakeAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Retry.HandshakeAttempts)
	}
	if cfg.Retry.HandshakeDelay.Std() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cfg.Retry.HandshakeDelay.Std())
	}
	if cfg.Retry.ReconnectDelay.Std() != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.Retry.ReconnectDelay.Std())
	}
	if cfg.Keepalive.Interval != 0 {
		t.Errorf("expected keepalive disabled, got %s", cfg.Keepalive.Interval.Std())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"roomName", cfg.Slack.RoomName, "servicecontrol"},
		{"autoJoin", cfg.Slack.AutoJoin, false},
		{"handshakeAttempts", cfg.Retry.HandshakeAttempts, 10},
		{"handshakeDelay", cfg.Retry.HandshakeDelay.Std(), time.Second},
		{"reconnectDelay", cfg.Retry.ReconnectDelay.Std(), time.Minute},
		{"keepalive", cfg.Keepalive.Interval.Std(), 30 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, tc.got)
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SLACKBRIDGE_SLACK_TOKEN", "env-token")
	t.Setenv("SLACKBRIDGE_SLACK_ROOMNAME", "env-room")
	t.Setenv("SLACKBRIDGE_SLACK_AUTOJOIN", "true")

	cfg, err := LoadFromReader(strings.NewReader(`{"slack": {"token": "file-token"}}`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.Slack.Token != "env-token" {
		t.Errorf("expected env override env-token, got %s", cfg.Slack.Token)
	}
	if cfg.Slack.RoomName != "env-room" {
		t.Errorf("expected env-room, got %s", cfg.Slack.RoomName)
	}
	if !cfg.Slack.AutoJoin {
		t.Error("expected autoJoin from env")
	}
}

func TestLoadFromFileValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"slack": {"token": "abc"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Slack.Token != "abc" {
		t.Errorf("expected token abc, got %q", cfg.Slack.Token)
	}
	// defaults survive a partial file
	if cfg.Slack.RoomName != DefaultRoomName {
		t.Errorf("expected default room, got %q", cfg.Slack.RoomName)
	}
}

func TestMissingFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist in chain, got %v", err)
	}
}

func TestLoadWithoutFileUsesEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SLACKBRIDGE_SLACK_TOKEN", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Slack.Token != "from-env" {
		t.Errorf("expected token from env, got %q", cfg.Slack.Token)
	}
}

func TestInvalidDuration(t *testing.T) {
	tests := []string{
		`{"retry": {"handshakeDelay": "soon"}}`,
		`{"retry": {"handshakeDelay": 5}}`,
	}
	for _, in := range tests {
		if _, err := LoadFromReader(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		ok      bool
	}{
		{"missing token", func(c *Config) {}, ErrMissingToken, false},
		{"valid", func(c *Config) { c.Slack.Token = "t" }, nil, true},
		{"zero attempts", func(c *Config) { c.Slack.Token = "t"; c.Retry.HandshakeAttempts = 0 }, nil, false},
		{"negative delay", func(c *Config) { c.Slack.Token = "t"; c.Retry.ReconnectDelay = -1 }, nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDurationMarshal(t *testing.T) {
	b, err := Duration(90 * time.Second).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"1m30s"` {
		t.Errorf("got %s", b)
	}
}
