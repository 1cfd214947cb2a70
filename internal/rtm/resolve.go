package rtm

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Resolver maps a caller-supplied destination to a wire-level room id.
//
// Precedence: channels, then direct-message rooms, then users (opening a
// new room on demand). Anything unmatched is used verbatim.
type Resolver struct {
	dir      *Directory
	backend  Backend
	autoJoin bool
	opens    singleflight.Group
}

// NewResolver creates a Resolver. With autoJoin set it attempts to join
// channels the bot is not a member of instead of refusing them.
func NewResolver(dir *Directory, backend Backend, autoJoin bool) *Resolver {
	return &Resolver{dir: dir, backend: backend, autoJoin: autoJoin}
}

// Resolve returns the room to send to. ok is false when the send must be
// dropped; the reason has already been logged.
func (r *Resolver) Resolve(ctx context.Context, destination string) (room string, ok bool) {
	if ch, found := r.dir.FindChannel(destination); found {
		if ch.IsMember {
			return ch.ID, true
		}
		if !r.autoJoin {
			// Bots cannot add themselves to channels; someone has to invite it.
			slog.Error("rtm: bot is not in channel, invite it first", "name", ch.Name, "id", ch.ID)
			return "", false
		}
		if _, err := r.backend.JoinChannel(ctx, ch.ID); err != nil {
			slog.Error("rtm: could not join channel", "name", ch.Name, "id", ch.ID, "error", err)
			return "", false
		}
		r.dir.SetChannelMember(ch.ID, true)
		return ch.ID, true
	}

	if im, found := r.dir.FindIM(destination); found {
		if !im.IsOpen {
			if _, err := r.openIM(ctx, im.User); err != nil {
				slog.Error("rtm: could not open im channel", "user", im.User, "error", err)
				return "", false
			}
			r.dir.MarkIMOpen(im.ID)
		}
		return im.ID, true
	}

	if user, found := r.dir.FindUser(destination); found {
		im, err := r.openIM(ctx, user.ID)
		if err != nil {
			slog.Error("rtm: could not open im channel", "user", user.ID, "error", err)
			return "", false
		}
		r.dir.AddIM(im)
		return im.ID, true
	}

	return destination, true
}

// openIM collapses concurrent opens for the same user into one request.
// The shared request ignores cancellation of whichever caller started it.
func (r *Resolver) openIM(ctx context.Context, userID string) (IM, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.opens.Do(userID, func() (any, error) {
		return r.backend.OpenIM(shared, userID)
	})
	if err != nil {
		return IM{}, err
	}
	return v.(IM), nil
}
