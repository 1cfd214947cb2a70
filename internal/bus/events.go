package bus

import "strings"

// EnvelopeKind describes where an inbound chat message came from.
type EnvelopeKind int

const (
	KindConsole EnvelopeKind = iota
	KindChannel
	KindDirectMessage
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindConsole:
		return "console"
	case KindChannel:
		return "channel"
	case KindDirectMessage:
		return "dm"
	default:
		return "unknown"
	}
}

// Envelope carries the provenance of an inbound chat message.
type Envelope struct {
	UserID    string       // sender user id
	DMID      string       // direct-message room with the sender, empty if none
	ChannelID string       // room the message was posted in
	Kind      EnvelopeKind // console, channel or direct message
}

// Message is an inbound chat message. Text is trimmed of surrounding whitespace.
type Message struct {
	Envelope Envelope
	Text     string
}

// NewMessage builds a Message, trimming text.
func NewMessage(env Envelope, text string) Message {
	return Message{Envelope: env, Text: strings.TrimSpace(text)}
}

// ReplyTarget returns the room a reply to this message should go to:
// the sender's direct-message room for DMs, otherwise the source channel.
func (m Message) ReplyTarget() string {
	if m.Envelope.Kind == KindDirectMessage && m.Envelope.DMID != "" {
		return m.Envelope.DMID
	}
	return m.Envelope.ChannelID
}
