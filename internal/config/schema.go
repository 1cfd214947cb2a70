package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingToken is returned by Validate when no Slack token is configured.
var ErrMissingToken = errors.New("config: slack token is required (set slack.token or SLACKBRIDGE_SLACK_TOKEN)")

// DefaultRoomName is where notifications go when no room is configured.
const DefaultRoomName = "servicecontrol"

// Config is the top-level configuration
type Config struct {
	Slack     SlackConfig     `json:"slack"`
	Retry     RetryConfig     `json:"retry"`
	Keepalive KeepaliveConfig `json:"keepalive"`
}

type SlackConfig struct {
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
	APIURL   string `json:"apiUrl"`   // empty means slack-go's default
	AutoJoin bool   `json:"autoJoin"` // try channels.join before giving up on a channel
}

// RetryConfig holds the two-tier reconnect policy.
type RetryConfig struct {
	HandshakeAttempts int      `json:"handshakeAttempts"`
	HandshakeDelay    Duration `json:"handshakeDelay"`
	ReconnectDelay    Duration `json:"reconnectDelay"`
}

type KeepaliveConfig struct {
	Interval Duration `json:"interval"` // zero disables pings
}

// Duration is a time.Duration that reads and writes as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("duration must be a string, got %s", s)
	}
	s = s[1 : len(s)-1]
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Slack: SlackConfig{
			RoomName: DefaultRoomName,
		},
		Retry: RetryConfig{
			HandshakeAttempts: 10,
			HandshakeDelay:    Duration(time.Second),
			ReconnectDelay:    Duration(time.Minute),
		},
		Keepalive: KeepaliveConfig{
			Interval: Duration(30 * time.Second),
		},
	}
}

// Validate reports configuration that would make the adapter unusable.
func (c *Config) Validate() error {
	if c.Slack.Token == "" {
		return ErrMissingToken
	}
	if c.Retry.HandshakeAttempts <= 0 {
		return fmt.Errorf("config: retry.handshakeAttempts must be positive, got %d", c.Retry.HandshakeAttempts)
	}
	if c.Retry.HandshakeDelay < 0 || c.Retry.ReconnectDelay < 0 {
		return errors.New("config: retry delays must not be negative")
	}
	return nil
}
