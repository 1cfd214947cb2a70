package rtm

import (
	"log/slog"

	"github.com/coopco/slackbridge/internal/bus"
	"github.com/tidwall/gjson"
)

// Dispatcher classifies inbound frames. Chat messages are published to the
// broadcaster; directory events update the Directory. It is driven by one
// connection's read loop, one frame at a time.
type Dispatcher struct {
	dir  *Directory
	out  *bus.Broadcaster
	self func() string
}

// NewDispatcher creates a Dispatcher. self returns the bot's own user id.
func NewDispatcher(dir *Directory, out *bus.Broadcaster, self func() string) *Dispatcher {
	return &Dispatcher{dir: dir, out: out, self: self}
}

// Dispatch handles one raw frame. Malformed frames are logged and dropped.
func (d *Dispatcher) Dispatch(data []byte) {
	if !gjson.ValidBytes(data) {
		slog.Warn("rtm: dropping malformed frame", "frame", truncate(data))
		return
	}
	frame := gjson.ParseBytes(data)
	switch typ := frame.Get("type").String(); typ {
	case frameMessage:
		// Subtypes are things like channel join announcements.
		if st := frame.Get("subtype"); st.Exists() && st.String() != "" {
			return
		}
		d.receive(frame.Get("channel").String(), frame.Get("user").String(), frame.Get("text").String())
	case frameTeamJoin:
		d.teamJoin(frame)
	case frameChannelCreated:
		d.channelCreated(frame)
	case frameChannelDeleted:
		d.channelDeleted(frame)
	case frameChannelRename:
		d.channelRename(frame)
	case frameHello:
		slog.Debug("rtm: hello received")
	case framePong, "":
	default:
		slog.Debug("rtm: ignoring frame", "type", typ)
	}
}

func (d *Dispatcher) receive(channelID, userID, text string) {
	if userID == d.self() {
		return
	}
	if _, ok := d.dir.UserByID(userID); !ok {
		// Probably an integration rather than a person.
		return
	}

	env := bus.Envelope{UserID: userID, ChannelID: channelID, Kind: bus.KindChannel}
	if im, ok := d.dir.IMForUser(userID); ok {
		env.DMID = im.ID
	}
	if d.dir.IsIM(channelID) {
		env.Kind = bus.KindDirectMessage
	}
	d.out.Publish(bus.NewMessage(env, text))
}

func (d *Dispatcher) teamJoin(frame gjson.Result) {
	var u User
	if err := decodeObject(frame, "user", &u); err != nil || u.ID == "" {
		slog.Warn("rtm: bad team_join frame", "error", err)
		return
	}
	slog.Debug("rtm: user joined the team", "name", u.Name, "id", u.ID)
	if !u.IsBot {
		d.dir.AddUser(u)
	}
}

func (d *Dispatcher) channelCreated(frame gjson.Result) {
	var c Channel
	if err := decodeObject(frame, "channel", &c); err != nil || c.ID == "" {
		slog.Warn("rtm: bad channel_created frame", "error", err)
		return
	}
	slog.Debug("rtm: channel created", "name", c.Name, "id", c.ID)
	d.dir.AddChannel(c)
}

func (d *Dispatcher) channelDeleted(frame gjson.Result) {
	id := frame.Get("channel").String()
	old, ok := d.dir.RemoveChannel(id)
	if !ok {
		return
	}
	slog.Debug("rtm: channel deleted", "name", old.Name, "id", old.ID)
}

func (d *Dispatcher) channelRename(frame gjson.Result) {
	var c Channel
	if err := decodeObject(frame, "channel", &c); err != nil || c.ID == "" {
		slog.Warn("rtm: bad channel_rename frame", "error", err)
		return
	}
	old, ok := d.dir.RenameChannel(c)
	if !ok {
		slog.Debug("rtm: rename for unknown channel, adding", "id", c.ID, "name", c.Name)
		return
	}
	slog.Debug("rtm: channel renamed", "id", c.ID, "old", old.Name, "new", c.Name)
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
