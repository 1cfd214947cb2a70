package rtm

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Backend is the request/response half of the protocol.
type Backend interface {
	// Handshake exchanges the token for a stream URL, the directory
	// snapshot and the bot's own identity. Errors wrapping ErrInvalidAuth
	// are fatal.
	Handshake(ctx context.Context) (Snapshot, error)
	// OpenIM opens (or reopens) the direct-message room with userID.
	OpenIM(ctx context.Context, userID string) (IM, error)
	// JoinChannel joins the bot to channelID.
	JoinChannel(ctx context.Context, channelID string) (Channel, error)
}

// SlackBackend implements Backend with the Slack Web API.
type SlackBackend struct {
	client *slack.Client
}

// NewSlackBackend creates a backend for token. apiURL overrides the Web API
// base URL when non-empty; it must end with a slash.
func NewSlackBackend(token, apiURL string) *SlackBackend {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackBackend{client: slack.New(token, opts...)}
}

func (b *SlackBackend) Handshake(ctx context.Context) (Snapshot, error) {
	info, url, err := b.client.ConnectRTMContext(ctx)
	if err != nil {
		return Snapshot{}, classify(fmt.Errorf("rtm.connect: %w", err))
	}

	snap := Snapshot{URL: url}
	if info != nil && info.User != nil {
		snap.Self = Self{ID: info.User.ID, Name: info.User.Name}
	}

	users, err := b.client.GetUsersContext(ctx)
	if err != nil {
		return Snapshot{}, classify(fmt.Errorf("users.list: %w", err))
	}
	for _, u := range users {
		if u.Deleted {
			continue
		}
		snap.Users = append(snap.Users, User{ID: u.ID, Name: u.Name, IsBot: u.IsBot})
	}

	channels, err := b.conversations(ctx, "public_channel", "private_channel")
	if err != nil {
		return Snapshot{}, classify(fmt.Errorf("conversations.list: %w", err))
	}
	for _, c := range channels {
		snap.Channels = append(snap.Channels, Channel{ID: c.ID, Name: c.Name, IsMember: c.IsMember})
	}

	ims, err := b.conversations(ctx, "im")
	if err != nil {
		return Snapshot{}, classify(fmt.Errorf("conversations.list im: %w", err))
	}
	for _, c := range ims {
		snap.IMs = append(snap.IMs, IM{ID: c.ID, User: c.User, IsOpen: c.IsOpen})
	}

	return snap, nil
}

func (b *SlackBackend) conversations(ctx context.Context, types ...string) ([]slack.Channel, error) {
	var all []slack.Channel
	params := &slack.GetConversationsParameters{
		Types:           types,
		ExcludeArchived: true,
		Limit:           200,
	}
	for {
		page, cursor, err := b.client.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if cursor == "" {
			return all, nil
		}
		params.Cursor = cursor
	}
}

func (b *SlackBackend) OpenIM(ctx context.Context, userID string) (IM, error) {
	ch, _, _, err := b.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users:    []string{userID},
		ReturnIM: true,
	})
	if err != nil {
		return IM{}, classify(fmt.Errorf("conversations.open %s: %w", userID, err))
	}
	return IM{ID: ch.ID, User: userID, IsOpen: true}, nil
}

func (b *SlackBackend) JoinChannel(ctx context.Context, channelID string) (Channel, error) {
	ch, _, _, err := b.client.JoinConversationContext(ctx, channelID)
	if err != nil {
		return Channel{}, classify(fmt.Errorf("conversations.join %s: %w", channelID, err))
	}
	return Channel{ID: ch.ID, Name: ch.Name, IsMember: true}, nil
}
