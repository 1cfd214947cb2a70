package rtm

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Inbound frame types handled by the dispatcher.
const (
	frameMessage        = "message"
	frameTeamJoin       = "team_join"
	frameChannelCreated = "channel_created"
	frameChannelDeleted = "channel_deleted"
	frameChannelRename  = "channel_rename"
	frameHello          = "hello"
	framePong           = "pong"
)

// encodeMessage builds an outbound chat frame.
func encodeMessage(id int64, room, text string) ([]byte, error) {
	frame := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"id", id},
		{"type", frameMessage},
		{"channel", room},
		{"text", text},
	} {
		if frame, err = sjson.SetBytes(frame, kv.path, kv.value); err != nil {
			return nil, fmt.Errorf("encode %s: %w", kv.path, err)
		}
	}
	return frame, nil
}

// encodePing builds a keepalive frame.
func encodePing(id int64) ([]byte, error) {
	frame, err := sjson.SetBytes([]byte(`{"type":"ping"}`), "id", id)
	if err != nil {
		return nil, fmt.Errorf("encode ping: %w", err)
	}
	return frame, nil
}

// decodeObject unmarshals the JSON object at path in frame into v.
func decodeObject(frame gjson.Result, path string, v any) error {
	raw := frame.Get(path)
	if !raw.IsObject() {
		return fmt.Errorf("%s is not an object", path)
	}
	return json.Unmarshal([]byte(raw.Raw), v)
}
