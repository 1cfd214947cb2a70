package rtm

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestEncodeMessage(t *testing.T) {
	frame, err := encodeMessage(7, "C1", `say "hi"`+"\n")
	if err != nil {
		t.Fatalf("encodeMessage: %v", err)
	}
	if !gjson.ValidBytes(frame) {
		t.Fatalf("invalid JSON: %s", frame)
	}
	r := gjson.ParseBytes(frame)
	if r.Get("id").Int() != 7 || r.Get("type").String() != "message" || r.Get("channel").String() != "C1" {
		t.Errorf("unexpected frame %s", frame)
	}
	if r.Get("text").String() != "say \"hi\"\n" {
		t.Errorf("text not escaped correctly: %s", frame)
	}
}

func TestEncodePing(t *testing.T) {
	frame, err := encodePing(3)
	if err != nil {
		t.Fatalf("encodePing: %v", err)
	}
	if gjson.GetBytes(frame, "type").String() != "ping" || gjson.GetBytes(frame, "id").Int() != 3 {
		t.Errorf("unexpected frame %s", frame)
	}
}

func TestDecodeObject(t *testing.T) {
	frame := gjson.Parse(`{"channel":{"id":"C1","name":"general"},"user":"U1"}`)
	var c Channel
	if err := decodeObject(frame, "channel", &c); err != nil || c.ID != "C1" {
		t.Errorf("decode channel: %+v %v", c, err)
	}
	var u User
	if err := decodeObject(frame, "user", &u); err == nil {
		t.Error("expected error decoding a string as an object")
	}
}
